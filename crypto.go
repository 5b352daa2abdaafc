package main

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Sealed key layout: salt || nonce || AES-256-GCM ciphertext.
const (
	sealSaltSize = 16
	sealKeySize  = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	ErrEmptyPassword = fmt.Errorf("wallet password is empty")
	ErrWrongPassword = fmt.Errorf("wrong wallet password or corrupted key")
)

// KeySealer encrypts private keys at rest under a password.
type KeySealer struct {
	password []byte
	n        int
}

// NewKeySealer returns a sealer for password.
func NewKeySealer(password string) (*KeySealer, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return &KeySealer{password: []byte(password), n: scryptN}, nil
}

func (s *KeySealer) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.password, salt, s.n, scryptR, scryptP, sealKeySize)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with a fresh salt and nonce. additional is
// authenticated but not stored.
func (s *KeySealer) Seal(plaintext, additional []byte) ([]byte, error) {
	salt := make([]byte, sealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	aead, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, additional), nil
}

// Open decrypts a value produced by Seal with the same additional data.
func (s *KeySealer) Open(sealed, additional []byte) ([]byte, error) {
	if len(sealed) < sealSaltSize {
		return nil, ErrWrongPassword
	}
	aead, err := s.aead(sealed[:sealSaltSize])
	if err != nil {
		return nil, err
	}
	rest := sealed[sealSaltSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrWrongPassword
	}
	plaintext, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], additional)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
