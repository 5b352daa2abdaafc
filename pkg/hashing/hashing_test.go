package hashing

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	t.Run("Digest lengths", func(t *testing.T) {
		data := []byte("filecoin")
		assert.Len(t, Checksum(data), ChecksumSize)
		assert.Len(t, Payload(data), PayloadSize)
		assert.Len(t, Sum256(data), DigestSize)
	})

	t.Run("Sum256 matches variable-size sum", func(t *testing.T) {
		data := []byte{0x01, 0x02, 0x03}
		assert.Equal(t, Sum(data, DigestSize), Sum256(data))
	})

	t.Run("Different sizes are not prefixes of each other", func(t *testing.T) {
		data := []byte("actor")
		assert.NotEqual(t, Sum256(data)[:PayloadSize], Payload(data))
	})

	t.Run("Known vector", func(t *testing.T) {
		expected, err := hex.DecodeString("aef63faeb6ce428e185c3387792eff0ad23f903a")
		require.NoError(t, err)
		assert.Equal(t, expected, Payload([]byte("actor")))
	})

	t.Run("Invalid size panics", func(t *testing.T) {
		assert.Panics(t, func() { Sum(nil, 0) })
		assert.Panics(t, func() { Sum(nil, 65) })
	})
}
