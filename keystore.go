package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/sign"
	"github.com/lotus-sign/filsign/pkg/wallet"
)

var ErrKeyExists = fmt.Errorf("key already exists")

// WalletKey is a sealed private key row.
type WalletKey struct {
	ID           uint            `gorm:"primaryKey"`
	Address      address.Address `gorm:"column:address;type:varchar(128);not null;uniqueIndex:idx_wallet_keys_address"`
	KeyType      sign.KeyType    `gorm:"column:key_type;type:varchar(16);not null"`
	EncryptedKey []byte          `gorm:"column:encrypted_key;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for WalletKey
func (WalletKey) TableName() string {
	return "wallet_keys"
}

var _ wallet.KeyStore = (*KeyStore)(nil)

// KeyStore keeps private keys in the database, sealed under the wallet
// password.
type KeyStore struct {
	db     *gorm.DB
	sealer *KeySealer
}

// NewKeyStore creates a key store. A nil sealer allows listing and deleting
// keys but not reading or adding them.
func NewKeyStore(db *gorm.DB, sealer *KeySealer) *KeyStore {
	return &KeyStore{db: db, sealer: sealer}
}

func (s *KeyStore) requireSealer() error {
	if s.sealer == nil {
		return ErrEmptyPassword
	}
	return nil
}

// Insert seals and stores ki, returning the address it controls.
func (s *KeyStore) Insert(ctx context.Context, ki wallet.KeyInfo) (address.Address, error) {
	if err := s.requireSealer(); err != nil {
		return address.Undef, err
	}
	addr, err := ki.Address()
	if err != nil {
		return address.Undef, err
	}

	sealed, err := s.sealer.Seal(ki.PrivateKey, addr.Bytes())
	if err != nil {
		return address.Undef, fmt.Errorf("failed to seal key: %w", err)
	}

	row := WalletKey{
		Address:      addr,
		KeyType:      ki.Type,
		EncryptedKey: sealed,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return address.Undef, fmt.Errorf("%w: %s", ErrKeyExists, addr)
		}
		return address.Undef, fmt.Errorf("failed to store key: %w", err)
	}
	return addr, nil
}

// GetKey implements wallet.KeyStore.
func (s *KeyStore) GetKey(ctx context.Context, addr address.Address) (wallet.KeyInfo, error) {
	if err := s.requireSealer(); err != nil {
		return wallet.KeyInfo{}, err
	}
	row, err := s.get(ctx, addr)
	if err != nil {
		return wallet.KeyInfo{}, err
	}

	priv, err := s.sealer.Open(row.EncryptedKey, row.Address.Bytes())
	if err != nil {
		return wallet.KeyInfo{}, err
	}
	return wallet.KeyInfo{Type: row.KeyType, PrivateKey: priv}, nil
}

func (s *KeyStore) get(ctx context.Context, addr address.Address) (*WalletKey, error) {
	var row WalletKey
	err := s.db.WithContext(ctx).Where("address = ?", addr).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", sign.ErrKeyNotFound, addr)
	} else if err != nil {
		return nil, fmt.Errorf("failed to retrieve key: %w", err)
	}
	return &row, nil
}

// Has reports whether a key for addr is stored.
func (s *KeyStore) Has(ctx context.Context, addr address.Address) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&WalletKey{}).Where("address = ?", addr).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns the stored keys, oldest first, without decrypting them.
func (s *KeyStore) List(ctx context.Context) ([]WalletKey, error) {
	var rows []WalletKey
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return rows, nil
}

// Delete removes the key for addr.
func (s *KeyStore) Delete(ctx context.Context, addr address.Address) error {
	res := s.db.WithContext(ctx).Where("address = ?", addr).Delete(&WalletKey{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", sign.ErrKeyNotFound, addr)
	}
	return nil
}
