package address

import (
	"fmt"
	"math"

	"github.com/multiformats/go-varint"

	"github.com/lotus-sign/filsign/pkg/hashing"
)

// Protocol identifies the kind of an address and is its first byte on the wire.
type Protocol byte

const (
	ID Protocol = iota
	SECP256K1
	Actor
	BLS
)

// String returns the lowercase protocol name.
func (p Protocol) String() string {
	switch p {
	case ID:
		return "id"
	case SECP256K1:
		return "secp256k1"
	case Actor:
		return "actor"
	case BLS:
		return "bls"
	default:
		return fmt.Sprintf("unknown(%d)", byte(p))
	}
}

// Network is the single-character prefix of an address' text form.
type Network byte

const (
	Mainnet Network = 'f'
	Testnet Network = 't'
)

const (
	// Secp256k1PubKeySize is the length of an uncompressed secp256k1 public key.
	Secp256k1PubKeySize = 65
	// BLSPubKeySize is the length of a compressed BLS12-381 G1 public key.
	BLSPubKeySize = 48
	// maxIDPayloadSize bounds the uvarint encoding of an actor number.
	maxIDPayloadSize = 9

	undefText = "<empty>"
)

// Address is an immutable Filecoin address. The zero value is Undef.
//
// The protocol byte and payload are kept together in a string so that
// addresses are comparable with == and usable as map keys.
type Address struct{ str string }

// Undef is the empty address.
var Undef = Address{}

func newAddress(protocol Protocol, payload []byte) Address {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(protocol)
	copy(buf[1:], payload)
	return Address{string(buf)}
}

// NewIDAddress returns the ID address of the actor with the given number.
// Actor numbers above math.MaxInt64 do not round trip through the uvarint
// payload and are rejected.
func NewIDAddress(id uint64) (Address, error) {
	if id > math.MaxInt64 {
		return Undef, fmt.Errorf("%w: id %d exceeds %d", ErrInvalidPayload, id, uint64(math.MaxInt64))
	}
	return newAddress(ID, varint.ToUvarint(id)), nil
}

// MustIDAddress is like NewIDAddress but panics on error. It is meant for
// well-known actors.
func MustIDAddress(id uint64) Address {
	addr, err := NewIDAddress(id)
	if err != nil {
		panic(err)
	}
	return addr
}

// NewSecp256k1Address derives an address from an uncompressed 65-byte
// secp256k1 public key. The payload is the 20-byte blake2b hash of the key.
func NewSecp256k1Address(pubkey []byte) (Address, error) {
	if len(pubkey) != Secp256k1PubKeySize {
		return Undef, fmt.Errorf("%w: secp256k1 public key must be %d bytes, got %d",
			ErrInvalidPayload, Secp256k1PubKeySize, len(pubkey))
	}
	return newAddress(SECP256K1, hashing.Payload(pubkey)), nil
}

// NewBLSAddress wraps a 48-byte BLS public key, which becomes the payload verbatim.
func NewBLSAddress(pubkey []byte) (Address, error) {
	if len(pubkey) != BLSPubKeySize {
		return Undef, fmt.Errorf("%w: bls public key must be %d bytes, got %d",
			ErrInvalidPayload, BLSPubKeySize, len(pubkey))
	}
	return newAddress(BLS, pubkey), nil
}

// NewActorAddress returns the actor address derived from arbitrary data.
func NewActorAddress(data []byte) Address {
	return newAddress(Actor, hashing.Payload(data))
}

// NewFromBytes decodes the binary form: protocol byte followed by the payload.
func NewFromBytes(raw []byte) (Address, error) {
	if len(raw) < 2 {
		return Undef, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(raw))
	}
	protocol := Protocol(raw[0])
	if protocol > BLS {
		return Undef, fmt.Errorf("%w: %d", ErrUnknownProtocol, raw[0])
	}
	return newAddress(protocol, raw[1:]), nil
}

// Protocol returns the address protocol.
func (a Address) Protocol() Protocol {
	if a.str == "" {
		return ID
	}
	return Protocol(a.str[0])
}

// Payload returns a copy of the address payload.
func (a Address) Payload() []byte {
	if a.str == "" {
		return nil
	}
	return []byte(a.str[1:])
}

// Bytes returns the binary form used inside signed messages.
func (a Address) Bytes() []byte {
	return []byte(a.str)
}

// Empty reports whether a is Undef.
func (a Address) Empty() bool {
	return a == Undef
}

// ID returns the actor number of an ID address.
func (a Address) ID() (uint64, error) {
	if a.Protocol() != ID || a.Empty() {
		return 0, fmt.Errorf("%w: %s address has no id", ErrInvalidPayload, a.Protocol())
	}
	id, n, err := varint.FromUvarint(a.Payload())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if n != len(a.str)-1 {
		return 0, fmt.Errorf("%w: trailing bytes after id", ErrInvalidPayload)
	}
	return id, nil
}

// String returns the mainnet text form of the address.
func (a Address) String() string {
	return a.Format(Mainnet)
}

// Format returns the text form of the address with the given network prefix.
// Undef formats as "<empty>".
func (a Address) Format(network Network) string {
	if a.Empty() {
		return undefText
	}
	payload := a.Payload()
	buf := make([]byte, 0, len(payload)+hashing.ChecksumSize)
	buf = append(buf, payload...)
	buf = append(buf, hashing.Checksum(a.Bytes())...)

	return string(network) + fmt.Sprintf("%d", a.Protocol()) + encoding.EncodeToString(buf)
}
