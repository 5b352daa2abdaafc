// Package wallet signs messages with keys looked up by address.
package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/log"
	"github.com/lotus-sign/filsign/pkg/message"
	"github.com/lotus-sign/filsign/pkg/sign"
)

// KeyStore looks up private keys by address. Implementations return an
// error wrapping sign.ErrKeyNotFound for unknown addresses.
type KeyStore interface {
	GetKey(ctx context.Context, addr address.Address) (KeyInfo, error)
}

// Wallet signs on behalf of the addresses in a KeyStore.
type Wallet struct {
	keys KeyStore
}

// New returns a wallet backed by keys.
func New(keys KeyStore) *Wallet {
	return &Wallet{keys: keys}
}

// Sign signs arbitrary bytes with the key of addr.
func (w *Wallet) Sign(ctx context.Context, addr address.Address, data []byte) (sign.Signature, error) {
	ki, err := w.keys.GetKey(ctx, addr)
	if err != nil {
		return sign.Signature{}, err
	}
	signer, err := ki.Signer()
	if err != nil {
		return sign.Signature{}, err
	}
	return signer.Sign(data)
}

// SignMessage signs msg with the key of msg.From.
func (w *Wallet) SignMessage(ctx context.Context, msg *message.Message) (*message.SignedMessage, error) {
	ki, err := w.keys.GetKey(ctx, msg.From)
	if err != nil {
		return nil, err
	}
	sm, err := SignMessage(msg, ki)
	if err != nil {
		return nil, err
	}

	c, err := sm.Cid()
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Debug("signed message",
		"from", msg.From,
		"nonce", msg.Nonce,
		"sigType", sm.Signature.Type,
		"cid", c)

	return sm, nil
}

// SignMessage signs the CID of msg with ki. The key must control msg.From
// unless msg.From is an ID or actor address, which cannot be checked offline.
func SignMessage(msg *message.Message, ki KeyInfo) (*message.SignedMessage, error) {
	signer, err := ki.Signer()
	if err != nil {
		return nil, err
	}
	switch msg.From.Protocol() {
	case address.SECP256K1, address.BLS:
		if keyAddr := signer.PublicKey().Address(); keyAddr != msg.From {
			return nil, fmt.Errorf("%w: key for %s cannot sign for %s", sign.ErrKeyNotFound, keyAddr, msg.From)
		}
	}

	cidBytes, err := msg.CidBytes()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(cidBytes)
	if err != nil {
		return nil, err
	}
	return &message.SignedMessage{Message: *msg, Signature: sig}, nil
}

// VerifyMessage checks the signature of sm against its From address.
func VerifyMessage(sm *message.SignedMessage) error {
	cidBytes, err := sm.Message.CidBytes()
	if err != nil {
		return err
	}
	return sign.Verify(sm.Signature, sm.Message.From, cidBytes)
}

var _ KeyStore = (*MemoryKeyStore)(nil)

// MemoryKeyStore is a KeyStore held in memory, used for offline signing
// from a key file and in tests.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[address.Address]KeyInfo
}

// NewMemoryKeyStore returns an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[address.Address]KeyInfo)}
}

// Put stores ki under the address it controls and returns that address.
func (s *MemoryKeyStore) Put(ki KeyInfo) (address.Address, error) {
	addr, err := ki.Address()
	if err != nil {
		return address.Undef, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[addr] = ki
	return addr, nil
}

// GetKey implements KeyStore.
func (s *MemoryKeyStore) GetKey(_ context.Context, addr address.Address) (KeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ki, ok := s.keys[addr]
	if !ok {
		return KeyInfo{}, fmt.Errorf("%w: %s", sign.ErrKeyNotFound, addr)
	}
	return ki, nil
}
