package main

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotus-sign/filsign/pkg/actors"
	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
	"github.com/lotus-sign/filsign/pkg/rpc"
	"github.com/lotus-sign/filsign/pkg/wallet"
)

const (
	testSignature        = "5f2a606258c81d4980fae3fc51d4f5e4fca3b4b4325c3299d68c8f482049933962b4d27cd2296ac1f16f330a750d2636060b849640e4164ff261e9fd1158f72500"
	testSignedMessageCid = "bafy2bzaced7qcc3rvgg4py5iucslt24yvs6w4enjmzsbbvlxogdrmgryjyzru"
)

// mockNode records what the executor asks of the node.
type mockNode struct {
	balance   fil.Amount
	nonce     uint64
	estimate  func(msg *message.Message) (*message.Message, error)
	pushErr   error
	exitCode  int64
	pushed    []*message.SignedMessage
	waited    []uint64
	nonceAsks int
}

func (m *mockNode) WalletBalance(context.Context, address.Address) (fil.Amount, error) {
	return m.balance, nil
}

func (m *mockNode) MpoolGetNonce(context.Context, address.Address) (uint64, error) {
	m.nonceAsks++
	return m.nonce, nil
}

func (m *mockNode) GasEstimateMessageGas(_ context.Context, msg *message.Message) (*message.Message, error) {
	if m.estimate == nil {
		out := *msg
		return &out, nil
	}
	return m.estimate(msg)
}

func (m *mockNode) MpoolPush(_ context.Context, sm *message.SignedMessage) (cid.Cid, error) {
	if m.pushErr != nil {
		return cid.Undef, m.pushErr
	}
	m.pushed = append(m.pushed, sm)
	return sm.Cid()
}

func (m *mockNode) StateWaitMsg(_ context.Context, c cid.Cid, confidence uint64) (*rpc.MsgLookup, error) {
	m.waited = append(m.waited, confidence)
	return &rpc.MsgLookup{
		Message: c,
		Receipt: rpc.MessageReceipt{ExitCode: m.exitCode, GasUsed: 1234},
		Height:  100,
	}, nil
}

type executorFixture struct {
	exec    *Executor
	node    *mockNode
	journal *MessageJournal
	metrics *Metrics
	from    address.Address
}

func setupExecutor(t *testing.T) *executorFixture {
	t.Helper()

	keys := wallet.NewMemoryKeyStore()
	from, err := keys.Put(testKeyInfo(t))
	require.NoError(t, err)

	node := &mockNode{balance: fil.FromFIL(1000), nonce: 1}
	journal := NewMessageJournal(setupTestDB(t))
	metrics := NewMetrics()
	return &executorFixture{
		exec:    NewExecutor(node, wallet.New(keys), journal, metrics, 3),
		node:    node,
		journal: journal,
		metrics: metrics,
		from:    from,
	}
}

func TestExecutorTransfer(t *testing.T) {
	f := setupExecutor(t)
	ctx := context.Background()

	res, err := f.exec.Transfer(ctx, f.from, mustAddress(t, testTo), fil.MustParseFIL("0.1"), SendOptions{})
	require.NoError(t, err)

	assert.True(t, res.Pushed)
	assert.Equal(t, testSignedMessageCid, res.Cid.String())
	assert.Equal(t, testSignature, hex.EncodeToString(res.Signed.Signature.Data))
	assert.Equal(t, 1, f.node.nonceAsks)
	require.Len(t, f.node.pushed, 1)
	assert.Nil(t, res.Lookup)

	records, err := f.journal.History(ctx, f.from, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Pushed)
	assert.Equal(t, testSignedMessageCid, records[0].Cid)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MessagesSigned.WithLabelValues("secp256k1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PushAttemptsSuccess))
}

func TestExecutorGasEstimation(t *testing.T) {
	f := setupExecutor(t)
	f.node.estimate = func(msg *message.Message) (*message.Message, error) {
		out := *msg
		out.GasLimit = 2_000_000
		out.GasFeeCap = fil.NewInt(100_000)
		out.GasPremium = fil.NewInt(50_000)
		return &out, nil
	}

	t.Run("estimated when no limit is given", func(t *testing.T) {
		res, err := f.exec.Transfer(context.Background(), f.from, mustAddress(t, testTo), fil.FromFIL(1), SendOptions{})
		require.NoError(t, err)
		assert.EqualValues(t, 2_000_000, res.Signed.Message.GasLimit)
		assert.Equal(t, "100000", res.Signed.Message.GasFeeCap.String())
		assert.Equal(t, "50000", res.Signed.Message.GasPremium.String())
	})

	t.Run("explicit limit skips estimation", func(t *testing.T) {
		res, err := f.exec.Transfer(context.Background(), f.from, mustAddress(t, testTo), fil.FromFIL(1), SendOptions{
			GasLimit:   10_000,
			GasFeeCap:  fil.NewInt(7),
			GasPremium: fil.NewInt(3),
		})
		require.NoError(t, err)
		assert.EqualValues(t, 10_000, res.Signed.Message.GasLimit)
		assert.Equal(t, "7", res.Signed.Message.GasFeeCap.String())
	})

	t.Run("estimation failure", func(t *testing.T) {
		f.node.estimate = func(*message.Message) (*message.Message, error) {
			return nil, errors.New("actor not found")
		}
		_, err := f.exec.Transfer(context.Background(), f.from, mustAddress(t, testTo), fil.FromFIL(1), SendOptions{})
		assert.ErrorContains(t, err, "failed to estimate gas")
	})
}

func TestExecutorOffline(t *testing.T) {
	f := setupExecutor(t)
	ctx := context.Background()
	to := mustAddress(t, testTo)
	nonce := uint64(0)

	t.Run("needs nonce", func(t *testing.T) {
		_, err := f.exec.Transfer(ctx, f.from, to, fil.FromFIL(1), SendOptions{Offline: true, GasLimit: 1})
		assert.ErrorIs(t, err, ErrOfflineNonce)
	})

	t.Run("needs gas limit", func(t *testing.T) {
		_, err := f.exec.Transfer(ctx, f.from, to, fil.FromFIL(1), SendOptions{Offline: true, Nonce: &nonce})
		assert.ErrorIs(t, err, ErrOfflineGas)
	})

	t.Run("signs without the node", func(t *testing.T) {
		exec := NewExecutor(nil, f.exec.wallet, f.journal, nil, 0)
		res, err := exec.Transfer(ctx, f.from, to, fil.FromFIL(1), SendOptions{
			Offline:  true,
			Nonce:    &nonce,
			GasLimit: 1_000_000,
		})
		require.NoError(t, err)
		assert.False(t, res.Pushed)
		assert.EqualValues(t, 0, res.Signed.Message.Nonce)
		assert.NoError(t, wallet.VerifyMessage(res.Signed))

		c, err := res.Signed.Cid()
		require.NoError(t, err)
		assert.Equal(t, c, res.Cid)

		records, err := f.journal.History(ctx, f.from, nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, records[0].Pushed)
	})
}

func TestExecutorWait(t *testing.T) {
	f := setupExecutor(t)
	ctx := context.Background()
	miner := address.MustIDAddress(1000)

	t.Run("success", func(t *testing.T) {
		res, err := f.exec.MinerWithdraw(ctx, f.from, miner, fil.FromFIL(1), SendOptions{Wait: true})
		require.NoError(t, err)
		require.NotNil(t, res.Lookup)
		assert.EqualValues(t, 100, res.Lookup.Height)
		assert.Equal(t, []uint64{3}, f.node.waited)
		assert.Equal(t, actors.MethodMinerWithdrawBalance, res.Signed.Message.Method)
	})

	t.Run("non-zero exit code", func(t *testing.T) {
		f.node.exitCode = 16
		res, err := f.exec.ConfirmChangeWorker(ctx, f.from, miner, SendOptions{Wait: true})
		assert.ErrorIs(t, err, ErrExecution)
		require.NotNil(t, res)
		assert.EqualValues(t, 16, res.Lookup.Receipt.ExitCode)
	})
}

func TestExecutorPushRejected(t *testing.T) {
	f := setupExecutor(t)
	f.node.pushErr = errors.New("mpool push: nonce too low")

	_, err := f.exec.Transfer(context.Background(), f.from, mustAddress(t, testTo), fil.FromFIL(1), SendOptions{})
	assert.ErrorContains(t, err, "nonce too low")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PushAttemptsFail))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PushAttemptsTotal))
}

func TestExecutorActorCalls(t *testing.T) {
	f := setupExecutor(t)
	ctx := context.Background()
	miner := address.MustIDAddress(1000)
	worker := address.MustIDAddress(1001)

	res, err := f.exec.ChangeOwner(ctx, f.from, miner, worker, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, actors.MethodMinerChangeOwnerAddress, res.Signed.Message.Method)
	assert.Equal(t, "4300e907", hex.EncodeToString(res.Signed.Message.Params))

	res, err = f.exec.ProposeChangeWorker(ctx, f.from, miner, worker, nil, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, actors.MethodMinerChangeWorkerAddress, res.Signed.Message.Method)

	res, err = f.exec.MarketWithdraw(ctx, f.from, miner, fil.FromFIL(1), SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, actors.StorageMarketActor, res.Signed.Message.To)
	assert.Equal(t, "824300e80749000de0b6b3a7640000", hex.EncodeToString(res.Signed.Message.Params))

	_, err = f.exec.MinerWithdraw(ctx, f.from, miner, fil.NewInt(-1), SendOptions{})
	assert.ErrorIs(t, err, actors.ErrInvalidParams)
}

func TestExecutorInsufficientFunds(t *testing.T) {
	f := setupExecutor(t)
	ctx := context.Background()
	to := mustAddress(t, testTo)
	f.node.balance = fil.FromFIL(1)

	// 1 FIL plus 1000 * 1e15 attoFIL of gas exceeds the balance.
	opts := SendOptions{GasLimit: 1000, GasFeeCap: fil.NewInt(1_000_000_000_000_000)}
	_, err := f.exec.Transfer(ctx, f.from, to, fil.FromFIL(1), opts)
	assert.ErrorIs(t, err, ErrFunds)
	assert.Empty(t, f.node.pushed)

	records, err := f.journal.History(ctx, f.from, nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Exactly the balance is enough.
	opts.GasFeeCap = fil.Zero()
	_, err = f.exec.Transfer(ctx, f.from, to, fil.FromFIL(1), opts)
	require.NoError(t, err)
	assert.Len(t, f.node.pushed, 1)

	// Offline signing never asks for the balance.
	nonce := uint64(2)
	exec := NewExecutor(nil, f.exec.wallet, nil, nil, 0)
	_, err = exec.Transfer(ctx, f.from, to, fil.FromFIL(10), SendOptions{Offline: true, Nonce: &nonce, GasLimit: 1000})
	require.NoError(t, err)
}

func TestExecutorUnknownSender(t *testing.T) {
	f := setupExecutor(t)
	_, err := f.exec.Transfer(context.Background(), mustAddress(t, testTo), f.from, fil.FromFIL(1), SendOptions{})
	assert.Error(t, err)
	assert.Empty(t, f.node.pushed)
}
