package address

import (
	"bytes"
	"encoding/base32"
	"fmt"

	"github.com/lotus-sign/filsign/pkg/hashing"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz234567"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// decodeTable maps an ASCII character to its 5-bit value, or 0xff.
var decodeTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 0xff
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = byte(i)
	}
	return t
}()

// NewFromString decodes the text form of an address.
//
// The checksum is stripped but not verified, and payload lengths are not
// checked, so any string with a known network, a known protocol digit and
// base32 characters decodes. Use NewFromStringStrict for user input.
func NewFromString(s string) (Address, error) {
	protocol, raw, err := splitText(s)
	if err != nil {
		return Undef, err
	}
	decoded, err := decodeLenient(raw)
	if err != nil {
		return Undef, err
	}
	if len(decoded) >= hashing.ChecksumSize {
		decoded = decoded[:len(decoded)-hashing.ChecksumSize]
	}
	return newAddress(protocol, decoded), nil
}

// NewFromStringStrict decodes the text form of an address and rejects
// non-canonical base32, bad checksums and payloads of the wrong size for
// their protocol.
func NewFromStringStrict(s string) (Address, error) {
	protocol, raw, err := splitText(s)
	if err != nil {
		return Undef, err
	}
	decoded, err := encoding.DecodeString(raw)
	if err != nil {
		return Undef, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	if len(decoded) <= hashing.ChecksumSize {
		return Undef, fmt.Errorf("%w: decoded %d bytes", ErrInvalidLength, len(decoded))
	}
	payload := decoded[:len(decoded)-hashing.ChecksumSize]
	sum := decoded[len(decoded)-hashing.ChecksumSize:]

	addr := newAddress(protocol, payload)
	if !bytes.Equal(hashing.Checksum(addr.Bytes()), sum) {
		return Undef, ErrInvalidChecksum
	}
	if err := validatePayload(protocol, payload); err != nil {
		return Undef, err
	}
	return addr, nil
}

func splitText(s string) (Protocol, string, error) {
	if len(s) < 3 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidLength, s)
	}
	switch Network(s[0]) {
	case Mainnet, Testnet:
	default:
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s[0])
	}
	if s[1] < '0' || s[1] > '3' {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownProtocol, s[1])
	}
	return Protocol(s[1] - '0'), s[2:], nil
}

// decodeLenient unpacks 5-bit groups MSB first, emitting a byte for every 8
// accumulated bits. Leftover low bits are dropped.
func decodeLenient(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*5/8)
	var acc uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := decodeTable[s[i]]
		if v == 0xff {
			return nil, fmt.Errorf("%w: illegal character %q at %d", ErrInvalidEncoding, s[i], i)
		}
		acc = acc<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
			acc &= 1<<bits - 1
		}
	}
	return out, nil
}

func validatePayload(protocol Protocol, payload []byte) error {
	switch protocol {
	case ID:
		if len(payload) > maxIDPayloadSize {
			return fmt.Errorf("%w: id payload of %d bytes", ErrInvalidPayload, len(payload))
		}
		if _, err := newAddress(ID, payload).ID(); err != nil {
			return err
		}
	case SECP256K1, Actor:
		if len(payload) != hashing.PayloadSize {
			return fmt.Errorf("%w: %s payload must be %d bytes, got %d",
				ErrInvalidPayload, protocol, hashing.PayloadSize, len(payload))
		}
	case BLS:
		if len(payload) != BLSPubKeySize {
			return fmt.Errorf("%w: bls payload must be %d bytes, got %d",
				ErrInvalidPayload, BLSPubKeySize, len(payload))
		}
	}
	return nil
}
