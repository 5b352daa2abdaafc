// Package hashing wraps the variable-length blake2b digests used by the
// Filecoin address and message formats.
package hashing

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	// ChecksumSize is the digest length of an address checksum.
	ChecksumSize = 4
	// PayloadSize is the digest length of a secp256k1 or actor address payload.
	PayloadSize = 20
	// DigestSize is the digest length used for message CIDs and secp256k1 signing.
	DigestSize = 32
)

// Sum returns the unkeyed blake2b digest of data with the given output size.
// It panics if size is outside 1..64, which is a programming error.
func Sum(data []byte, size int) []byte {
	h, err := blake2b.New(size, nil)
	if err != nil {
		panic(fmt.Sprintf("hashing: invalid blake2b size %d: %v", size, err))
	}
	h.Write(data)
	return h.Sum(nil)
}

// Checksum returns the 4-byte address checksum of data.
func Checksum(data []byte) []byte {
	return Sum(data, ChecksumSize)
}

// Payload returns the 20-byte address payload hash of data.
func Payload(data []byte) []byte {
	return Sum(data, PayloadSize)
}

// Sum256 returns the 32-byte digest of data.
func Sum256(data []byte) []byte {
	d := blake2b.Sum256(data)
	return d[:]
}
