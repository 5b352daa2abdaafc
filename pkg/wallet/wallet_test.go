package wallet

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
	"github.com/lotus-sign/filsign/pkg/sign"
)

const (
	testPrivateKey = "1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f809"
	testAddress    = "f12h3cxrx2brbssclovedjwqouzvssque43rymgfy"
	testTo         = "f14rkut6lkfumi33nj765t4kli2m7aqytdaclor3y"
	testSignature  = "5f2a606258c81d4980fae3fc51d4f5e4fca3b4b4325c3299d68c8f482049933962b4d27cd2296ac1f16f330a750d2636060b849640e4164ff261e9fd1158f72500"
)

func testKey(t *testing.T) KeyInfo {
	t.Helper()
	priv, err := hex.DecodeString(testPrivateKey)
	require.NoError(t, err)
	return KeyInfo{Type: sign.KeyTypeSecp256k1, PrivateKey: priv}
}

func testMessage(t *testing.T, from address.Address) *message.Message {
	t.Helper()
	to, err := address.NewFromStringStrict(testTo)
	require.NoError(t, err)

	return &message.Message{
		To:         to,
		From:       from,
		Nonce:      1,
		Value:      fil.MustParseFIL("0.1"),
		GasFeeCap:  fil.Zero(),
		GasPremium: fil.Zero(),
		Method:     message.MethodSend,
	}
}

func TestKeyInfo(t *testing.T) {
	ki := testKey(t)

	addr, err := ki.Address()
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr.String())

	t.Run("export round trip", func(t *testing.T) {
		exported, err := ki.Export()
		require.NoError(t, err)

		parsed, err := ParseKeyInfo(exported)
		require.NoError(t, err)
		assert.Equal(t, ki, parsed)
	})

	t.Run("json form", func(t *testing.T) {
		parsed, err := ParseKeyInfo(`{"Type":"secp256k1","PrivateKey":"Gis8TV5vcIGSo7TF1uf4CRorPE1eb3CBkqO0xdbn+Ak="}`)
		require.NoError(t, err)
		assert.Equal(t, ki, parsed)
	})

	t.Run("raw hex", func(t *testing.T) {
		parsed, err := ParseKeyInfo("0x" + testPrivateKey + "\n")
		require.NoError(t, err)
		assert.Equal(t, ki, parsed)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, in := range []string{"", "zz", "abcd", `{"Type":"secp256k1"}`, `{"Type":"ed25519","PrivateKey":"AQ=="}`, `{bad`} {
			_, err := ParseKeyInfo(in)
			assert.Error(t, err, in)
		}
		_, err := ParseKeyInfo("abcd")
		assert.ErrorIs(t, err, ErrInvalidKeyInfo)
		_, err = ParseKeyInfo(`{"Type":"ed25519","PrivateKey":"AQ=="}`)
		assert.ErrorIs(t, err, sign.ErrUnknownKeyType)
	})
}

func TestNewKey(t *testing.T) {
	for _, keyType := range []sign.KeyType{sign.KeyTypeSecp256k1, sign.KeyTypeBLS} {
		t.Run(string(keyType), func(t *testing.T) {
			ki, err := NewKey(keyType)
			require.NoError(t, err)
			assert.Len(t, ki.PrivateKey, 32)

			addr, err := ki.Address()
			require.NoError(t, err)
			assert.Equal(t, keyType.SigType(), protocolSigType(addr.Protocol()))
		})
	}
}

func protocolSigType(p address.Protocol) sign.Type {
	switch p {
	case address.SECP256K1:
		return sign.TypeSecp256k1
	case address.BLS:
		return sign.TypeBLS
	default:
		return sign.TypeUnknown
	}
}

func TestWalletSignMessage(t *testing.T) {
	keys := NewMemoryKeyStore()
	from, err := keys.Put(testKey(t))
	require.NoError(t, err)

	w := New(keys)

	t.Run("known signature", func(t *testing.T) {
		sm, err := w.SignMessage(context.Background(), testMessage(t, from))
		require.NoError(t, err)
		assert.Equal(t, sign.TypeSecp256k1, sm.Signature.Type)
		assert.Equal(t, testSignature, hex.EncodeToString(sm.Signature.Data))
		assert.NoError(t, VerifyMessage(sm))

		c, err := sm.Cid()
		require.NoError(t, err)
		assert.Equal(t, "bafy2bzaced7qcc3rvgg4py5iucslt24yvs6w4enjmzsbbvlxogdrmgryjyzru", c.String())
	})

	t.Run("tampered message fails verification", func(t *testing.T) {
		sm, err := w.SignMessage(context.Background(), testMessage(t, from))
		require.NoError(t, err)

		sm.Message.Nonce++
		assert.ErrorIs(t, VerifyMessage(sm), sign.ErrInvalidSignature)
	})

	t.Run("unknown address", func(t *testing.T) {
		to, err := address.NewFromStringStrict(testTo)
		require.NoError(t, err)

		_, err = w.SignMessage(context.Background(), testMessage(t, to))
		assert.ErrorIs(t, err, sign.ErrKeyNotFound)
	})
}

func TestSignMessageKeyMismatch(t *testing.T) {
	other, err := NewKey(sign.KeyTypeSecp256k1)
	require.NoError(t, err)

	from, err := testKey(t).Address()
	require.NoError(t, err)

	_, err = SignMessage(testMessage(t, from), other)
	assert.ErrorIs(t, err, sign.ErrKeyNotFound)
}

func TestSignMessageIDSender(t *testing.T) {
	msg := testMessage(t, address.MustIDAddress(1000))

	sm, err := SignMessage(msg, testKey(t))
	require.NoError(t, err)
	assert.Len(t, sm.Signature.Data, 65)
}

func TestSignMessageBLS(t *testing.T) {
	ki, err := NewKey(sign.KeyTypeBLS)
	require.NoError(t, err)

	keys := NewMemoryKeyStore()
	from, err := keys.Put(ki)
	require.NoError(t, err)
	assert.Equal(t, address.BLS, from.Protocol())

	sm, err := New(keys).SignMessage(context.Background(), testMessage(t, from))
	require.NoError(t, err)
	assert.Equal(t, sign.TypeBLS, sm.Signature.Type)
	assert.Len(t, sm.Signature.Data, 96)
	assert.NoError(t, VerifyMessage(sm))

	msgCid, err := sm.Message.Cid()
	require.NoError(t, err)
	smCid, err := sm.Cid()
	require.NoError(t, err)
	assert.Equal(t, msgCid, smCid)
}

func TestWalletSign(t *testing.T) {
	keys := NewMemoryKeyStore()
	from, err := keys.Put(testKey(t))
	require.NoError(t, err)

	msg := testMessage(t, from)
	cidBytes, err := msg.CidBytes()
	require.NoError(t, err)

	sig, err := New(keys).Sign(context.Background(), from, cidBytes)
	require.NoError(t, err)
	assert.Equal(t, testSignature, hex.EncodeToString(sig.Data))

	_, err = New(keys).Sign(context.Background(), address.MustIDAddress(1), cidBytes)
	assert.ErrorIs(t, err, sign.ErrKeyNotFound)
}
