package sign

import (
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/lotus-sign/filsign/pkg/address"
)

var _ Signer = (*BLSSigner)(nil)
var _ PublicKey = (*BLSPublicKey)(nil)

// BLSDomainSeparationTag is mixed into every BLS signature.
const BLSDomainSeparationTag = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"

const (
	blsPrivateKeySize = 32
	blsSignatureSize  = 96
)

var blsDST = []byte(BLSDomainSeparationTag)

// BLSPublicKey is a compressed 48-byte G1 public key.
type BLSPublicKey []byte

// Address returns the f3 address of the key.
func (p BLSPublicKey) Address() address.Address {
	addr, _ := address.NewBLSAddress(p)
	return addr
}

func (p BLSPublicKey) Bytes() []byte { return p }

// BLSSigner signs its input directly, without prehashing, with a min-pk
// BLS12-381 signature.
type BLSSigner struct {
	secretKey *blst.SecretKey
	publicKey BLSPublicKey
}

// NewBLSSigner creates a signer from a 32-byte little-endian private key,
// the byte order Filecoin wallets store BLS keys in.
func NewBLSSigner(privateKey []byte) (*BLSSigner, error) {
	if len(privateKey) != blsPrivateKeySize {
		return nil, fmt.Errorf("%w: bls key must be %d bytes, got %d",
			ErrInvalidKeyLength, blsPrivateKeySize, len(privateKey))
	}
	sk := new(blst.SecretKey).Deserialize(reverse(privateKey))
	if sk == nil {
		return nil, fmt.Errorf("%w: invalid bls secret key", ErrCryptoFailure)
	}
	pk := new(blst.P1Affine).From(sk)
	return &BLSSigner{
		secretKey: sk,
		publicKey: BLSPublicKey(pk.Compress()),
	}, nil
}

func (s *BLSSigner) PublicKey() PublicKey { return s.publicKey }

// Sign returns the 96-byte compressed G2 signature over data.
func (s *BLSSigner) Sign(data []byte) (Signature, error) {
	sig := new(blst.P2Affine).Sign(s.secretKey, data, blsDST)
	if sig == nil {
		return Signature{}, fmt.Errorf("%w: bls signing returned no signature", ErrCryptoFailure)
	}
	return Signature{Type: TypeBLS, Data: sig.Compress()}, nil
}

func verifyBLS(sig Signature, signer address.Address, data []byte) error {
	if signer.Protocol() != address.BLS {
		return fmt.Errorf("%w: %s is not a bls address", ErrInvalidSignature, signer)
	}
	if len(sig.Data) != blsSignatureSize {
		return fmt.Errorf("%w: invalid signature length %d", ErrInvalidSignature, len(sig.Data))
	}
	pk := new(blst.P1Affine).Uncompress(signer.Payload())
	if pk == nil {
		return fmt.Errorf("%w: invalid bls public key", ErrInvalidSignature)
	}
	s := new(blst.P2Affine).Uncompress(sig.Data)
	if s == nil {
		return fmt.Errorf("%w: malformed bls signature", ErrInvalidSignature)
	}
	if !s.Verify(true, pk, true, data, blsDST) {
		return ErrInvalidSignature
	}
	return nil
}

func generateBLSKey() ([]byte, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	sk := blst.KeyGen(ikm[:])
	if sk == nil {
		return nil, fmt.Errorf("%w: bls key generation failed", ErrCryptoFailure)
	}
	return reverse(sk.Serialize()), nil
}

// reverse returns a reversed copy of b.
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
