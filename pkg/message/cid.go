package message

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"

	"github.com/lotus-sign/filsign/pkg/hashing"
	"github.com/lotus-sign/filsign/pkg/sign"
)

// HashFunction is the multihash code of blake2b-256.
const HashFunction = multihash.BLAKE2B_MIN + 31

// cidPrefix is CIDv1 || dag-cbor || blake2b-256 || digest length,
// each as an unsigned varint: 01 71 a0e402 20.
var cidPrefix = func() []byte {
	p := varint.ToUvarint(1)
	p = append(p, varint.ToUvarint(cid.DagCBOR)...)
	p = append(p, varint.ToUvarint(HashFunction)...)
	return append(p, varint.ToUvarint(hashing.DigestSize)...)
}()

// CidPrefix returns a copy of the bytes preceding the digest in every message CID.
func CidPrefix() []byte {
	return append([]byte(nil), cidPrefix...)
}

// ComputeCidBytes returns the CID bytes of an encoded block: the fixed prefix
// followed by the blake2b-256 digest of data.
func ComputeCidBytes(data []byte) []byte {
	out := make([]byte, 0, len(cidPrefix)+hashing.DigestSize)
	out = append(out, cidPrefix...)
	return append(out, hashing.Sum256(data)...)
}

// ComputeCid is ComputeCidBytes as a cid.Cid.
func ComputeCid(data []byte) (cid.Cid, error) {
	c, err := cid.Cast(ComputeCidBytes(data))
	if err != nil {
		return cid.Undef, fmt.Errorf("casting cid: %w", err)
	}
	return c, nil
}

// CidBytes returns the bytes a signer signs for this message.
func (m *Message) CidBytes() ([]byte, error) {
	data, err := m.Serialize()
	if err != nil {
		return nil, err
	}
	return ComputeCidBytes(data), nil
}

// Cid returns the content identifier of the message.
func (m *Message) Cid() (cid.Cid, error) {
	data, err := m.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	return ComputeCid(data)
}

// Cid returns the identifier the network assigns to the signed message:
// BLS messages are identified by their unsigned message, secp256k1 messages
// by the signed encoding.
func (sm *SignedMessage) Cid() (cid.Cid, error) {
	if sm.Signature.Type == sign.TypeBLS {
		return sm.Message.Cid()
	}
	data, err := sm.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	return ComputeCid(data)
}
