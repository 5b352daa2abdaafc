package sign

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/lotus-sign/filsign/pkg/address"
)

// Signer produces typed signatures over message CID bytes.
type Signer interface {
	PublicKey() PublicKey                // Public key associated with this signer.
	Sign(data []byte) (Signature, error) // Sign generates a signature for the given CID bytes.
}

// AddressRecoverer is implemented by schemes whose signatures reveal the signer.
type AddressRecoverer interface {
	RecoverAddress(data []byte, signature Signature) (address.Address, error)
}

// PublicKey is a scheme-specific public key.
type PublicKey interface {
	Address() address.Address
	Bytes() []byte
}

// Errors returned while signing. All of them wrap ErrSigning.
var (
	ErrSigning          = fmt.Errorf("signing failed")
	ErrUnknownKeyType   = fmt.Errorf("%w: unknown key type", ErrSigning)
	ErrKeyNotFound      = fmt.Errorf("%w: key not found", ErrSigning)
	ErrInvalidKeyLength = fmt.Errorf("%w: invalid key length", ErrSigning)
	ErrCryptoFailure    = fmt.Errorf("%w: crypto failure", ErrSigning)
)

// ErrInvalidSignature is returned when a signature does not verify.
var ErrInvalidSignature = fmt.Errorf("invalid signature")

// Type is the signature scheme tag carried next to the signature bytes.
type Type uint8

const (
	TypeSecp256k1 Type = 1
	TypeBLS       Type = 2
	TypeUnknown   Type = 255
)

// String returns the string representation of the scheme.
func (t Type) String() string {
	switch t {
	case TypeSecp256k1:
		return "secp256k1"
	case TypeBLS:
		return "bls"
	default:
		return "unknown"
	}
}

// KeyType is the name a key store records next to raw private key bytes.
type KeyType string

const (
	KeyTypeSecp256k1 KeyType = "secp256k1"
	KeyTypeBLS       KeyType = "bls"
)

// ParseKeyType resolves a case-insensitive key type name.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(strings.ToLower(s)) {
	case KeyTypeSecp256k1:
		return KeyTypeSecp256k1, nil
	case KeyTypeBLS:
		return KeyTypeBLS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKeyType, s)
	}
}

// SigType returns the signature scheme used by keys of this type.
func (k KeyType) SigType() Type {
	switch k {
	case KeyTypeSecp256k1:
		return TypeSecp256k1
	case KeyTypeBLS:
		return TypeBLS
	default:
		return TypeUnknown
	}
}

// Signature is a typed signature as carried by a signed message.
// It encodes to JSON as {"Type": 1, "Data": "<base64>"}.
type Signature struct {
	Type Type
	Data []byte
}

// Bytes returns the chain form: the type byte followed by the signature data.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, 1+len(s.Data))
	out = append(out, byte(s.Type))
	return append(out, s.Data...)
}

// String implements the fmt.Stringer interface.
func (s Signature) String() string {
	return s.Type.String() + ":" + hex.EncodeToString(s.Data)
}

// MarshalCBOR encodes the signature as a CBOR byte string of Bytes.
func (s Signature) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(s.Bytes())
}

// NewSigner returns the signer for a raw private key of the given type.
// Secp256k1 keys are 32 big-endian bytes; BLS keys are 32 little-endian bytes.
func NewSigner(keyType KeyType, privateKey []byte) (Signer, error) {
	switch keyType {
	case KeyTypeSecp256k1:
		return NewSecp256k1Signer(privateKey)
	case KeyTypeBLS:
		return NewBLSSigner(privateKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyType, keyType)
	}
}

// GenerateKey creates a new random private key of the given type in the
// byte order NewSigner expects.
func GenerateKey(keyType KeyType) ([]byte, error) {
	switch keyType {
	case KeyTypeSecp256k1:
		return generateSecp256k1Key()
	case KeyTypeBLS:
		return generateBLSKey()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyType, keyType)
	}
}

// Verify checks that sig is a valid signature by signer over data.
func Verify(sig Signature, signer address.Address, data []byte) error {
	switch sig.Type {
	case TypeSecp256k1:
		recovered, err := (&Secp256k1AddressRecoverer{}).RecoverAddress(data, sig)
		if err != nil {
			return err
		}
		if recovered != signer {
			return fmt.Errorf("%w: signed by %s, not %s", ErrInvalidSignature, recovered, signer)
		}
		return nil
	case TypeBLS:
		return verifyBLS(sig, signer, data)
	default:
		return fmt.Errorf("%w: unsupported signature type %d", ErrInvalidSignature, sig.Type)
	}
}
