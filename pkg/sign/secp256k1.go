package sign

import (
	"crypto/ecdsa"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/hashing"
)

// Ensure our types implement the interfaces at compile time.
var _ Signer = (*Secp256k1Signer)(nil)
var _ AddressRecoverer = (*Secp256k1AddressRecoverer)(nil)
var _ PublicKey = (*Secp256k1PublicKey)(nil)

const (
	secp256k1PrivateKeySize = 32
	secp256k1SignatureSize  = 65
)

// Secp256k1PublicKey implements the PublicKey interface for secp256k1.
type Secp256k1PublicKey struct{ *ecdsa.PublicKey }

// Address returns the f1 address of the key.
func (p Secp256k1PublicKey) Address() address.Address {
	addr, _ := address.NewSecp256k1Address(p.Bytes())
	return addr
}

// Bytes returns the 65-byte uncompressed public key.
func (p Secp256k1PublicKey) Bytes() []byte { return ethcrypto.FromECDSAPub(p.PublicKey) }

// Secp256k1Signer signs the blake2b-256 digest of its input with a
// recoverable ECDSA signature.
type Secp256k1Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  Secp256k1PublicKey
}

// NewSecp256k1Signer creates a signer from a 32-byte big-endian private key.
func NewSecp256k1Signer(privateKey []byte) (*Secp256k1Signer, error) {
	if len(privateKey) != secp256k1PrivateKeySize {
		return nil, fmt.Errorf("%w: secp256k1 key must be %d bytes, got %d",
			ErrInvalidKeyLength, secp256k1PrivateKeySize, len(privateKey))
	}
	key, err := ethcrypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	return &Secp256k1Signer{
		privateKey: key,
		publicKey:  Secp256k1PublicKey{&key.PublicKey},
	}, nil
}

func (s *Secp256k1Signer) PublicKey() PublicKey { return s.publicKey }

// Sign returns R || S || V over blake2b-256(data), with V in {0, 1}.
func (s *Secp256k1Signer) Sign(data []byte) (Signature, error) {
	sig, err := ethcrypto.Sign(hashing.Sum256(data), s.privateKey)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	return Signature{Type: TypeSecp256k1, Data: sig}, nil
}

// Secp256k1AddressRecoverer recovers f1 addresses from secp256k1 signatures.
type Secp256k1AddressRecoverer struct{}

// RecoverAddress implements the AddressRecoverer interface.
func (r *Secp256k1AddressRecoverer) RecoverAddress(data []byte, sig Signature) (address.Address, error) {
	if sig.Type != TypeSecp256k1 {
		return address.Undef, fmt.Errorf("%w: not a secp256k1 signature", ErrInvalidSignature)
	}
	if len(sig.Data) != secp256k1SignatureSize {
		return address.Undef, fmt.Errorf("%w: invalid signature length %d", ErrInvalidSignature, len(sig.Data))
	}
	pub, err := ethcrypto.Ecrecover(hashing.Sum256(data), sig.Data)
	if err != nil {
		return address.Undef, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return address.NewSecp256k1Address(pub)
}

func generateSecp256k1Key() ([]byte, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	return ethcrypto.FromECDSA(key), nil
}
