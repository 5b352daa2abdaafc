package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/sign"
)

// ErrInvalidKeyInfo is returned when imported key material cannot be parsed.
var ErrInvalidKeyInfo = fmt.Errorf("invalid key info")

// KeyInfo is a private key with its type, in the format Lotus uses for
// `wallet export` and `wallet import`.
type KeyInfo struct {
	Type       sign.KeyType
	PrivateKey []byte
}

// NewKey generates a random key of the given type.
func NewKey(keyType sign.KeyType) (KeyInfo, error) {
	priv, err := sign.GenerateKey(keyType)
	if err != nil {
		return KeyInfo{}, err
	}
	return KeyInfo{Type: keyType, PrivateKey: priv}, nil
}

// Signer returns the signer for the key.
func (ki KeyInfo) Signer() (sign.Signer, error) {
	return sign.NewSigner(ki.Type, ki.PrivateKey)
}

// Address derives the address controlled by the key.
func (ki KeyInfo) Address() (address.Address, error) {
	signer, err := ki.Signer()
	if err != nil {
		return address.Undef, err
	}
	return signer.PublicKey().Address(), nil
}

// Export returns the hex-encoded JSON form printed by `lotus wallet export`.
func (ki KeyInfo) Export() (string, error) {
	data, err := json.Marshal(ki)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// ParseKeyInfo accepts the `lotus wallet export` hex form, its decoded JSON,
// or a bare hex secp256k1 private key.
func ParseKeyInfo(s string) (KeyInfo, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")

	if strings.HasPrefix(s, "{") {
		return parseKeyInfoJSON([]byte(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("%w: not hex or json: %w", ErrInvalidKeyInfo, err)
	}
	if len(raw) > 0 && raw[0] == '{' {
		return parseKeyInfoJSON(raw)
	}
	if len(raw) == 32 {
		return KeyInfo{Type: sign.KeyTypeSecp256k1, PrivateKey: raw}, nil
	}
	return KeyInfo{}, fmt.Errorf("%w: %d raw bytes", ErrInvalidKeyInfo, len(raw))
}

func parseKeyInfoJSON(data []byte) (KeyInfo, error) {
	var ki KeyInfo
	if err := json.Unmarshal(data, &ki); err != nil {
		return KeyInfo{}, fmt.Errorf("%w: %w", ErrInvalidKeyInfo, err)
	}
	keyType, err := sign.ParseKeyType(string(ki.Type))
	if err != nil {
		return KeyInfo{}, err
	}
	ki.Type = keyType
	if len(ki.PrivateKey) == 0 {
		return KeyInfo{}, fmt.Errorf("%w: empty private key", ErrInvalidKeyInfo)
	}
	return ki, nil
}
