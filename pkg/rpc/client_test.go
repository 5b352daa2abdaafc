package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
	"github.com/lotus-sign/filsign/pkg/rpc"
	"github.com/lotus-sign/filsign/pkg/sign"
)

const (
	testFrom   = "f12h3cxrx2brbssclovedjwqouzvssque43rymgfy"
	testTo     = "f14rkut6lkfumi33nj765t4kli2m7aqytdaclor3y"
	testMsgCid = "bafy2bzacec6ke337dpxzdl7ijw43y3igkqwwgep6dk5khyv2v44qlwlpjdhcm"
)

func mustAddress(t *testing.T, s string) address.Address {
	t.Helper()
	addr, err := address.NewFromStringStrict(s)
	require.NoError(t, err)
	return addr
}

func testMessage(t *testing.T) *message.Message {
	t.Helper()
	return &message.Message{
		To:         mustAddress(t, testTo),
		From:       mustAddress(t, testFrom),
		Nonce:      1,
		Value:      fil.MustParseFIL("0.1"),
		GasFeeCap:  fil.Zero(),
		GasPremium: fil.Zero(),
		Method:     message.MethodSend,
		Params:     []byte{},
	}
}

func unmarshalParam(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestNewRequest(t *testing.T) {
	req := rpc.NewRequest(7, rpc.MethodChainHead)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"method":"Filecoin.ChainHead","params":[]}`, string(data))

	req = rpc.NewRequest(8, rpc.MethodStateLookupID, address.MustIDAddress(5), rpc.TipSetKey(nil))
	data, err = json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":8,"method":"Filecoin.StateLookupID","params":["f0avlrxw6v",null]}`, string(data))
}

func TestResponseDecode(t *testing.T) {
	var n uint64
	res := rpc.Response{Result: json.RawMessage(`42`)}
	require.NoError(t, res.Decode(&n))
	assert.Equal(t, uint64(42), n)

	res = rpc.Response{}
	assert.ErrorIs(t, res.Decode(&n), rpc.ErrEmptyResult)

	res = rpc.Response{Result: json.RawMessage(`"x"`)}
	assert.ErrorIs(t, res.Decode(&n), rpc.ErrUnmarshalingResult)

	res = rpc.Response{Error: &rpc.Error{Code: 1, Message: "boom"}}
	err := res.Decode(&n)
	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "rpc error 1: boom", rpcErr.Error())
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	dialer := NewMockDialer()
	from := mustAddress(t, testFrom)
	msgCid, err := cid.Decode(testMsgCid)
	require.NoError(t, err)

	var observed []string
	var observedMu sync.Mutex
	client := rpc.NewClient(dialer, rpc.WithCallObserver(func(method string, _ time.Duration, err error) {
		observedMu.Lock()
		defer observedMu.Unlock()
		observed = append(observed, method)
	}))

	t.Run("WalletBalance", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodWalletBalance, func(params []json.RawMessage) (any, error) {
			require.Len(t, params, 1)
			var addr address.Address
			unmarshalParam(t, params[0], &addr)
			assert.Equal(t, from, addr)
			return "1500000000000000000", nil
		})

		balance, err := client.WalletBalance(ctx, from)
		require.NoError(t, err)
		assert.Equal(t, "1.5 FIL", balance.Format())
	})

	t.Run("MpoolGetNonce", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodMpoolGetNonce, func(params []json.RawMessage) (any, error) {
			return 42, nil
		})

		nonce, err := client.MpoolGetNonce(ctx, from)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), nonce)
	})

	t.Run("GasEstimateMessageGas", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodGasEstimateMessageGas, func(params []json.RawMessage) (any, error) {
			require.Len(t, params, 3)
			assert.JSONEq(t, `{}`, string(params[1]))
			assert.Equal(t, "null", string(params[2]))

			var msg message.Message
			unmarshalParam(t, params[0], &msg)
			msg.GasLimit = 2_000_000
			msg.GasFeeCap = fil.NewInt(100_000)
			msg.GasPremium = fil.NewInt(99_000)
			return msg, nil
		})

		estimated, err := client.GasEstimateMessageGas(ctx, testMessage(t))
		require.NoError(t, err)
		assert.Equal(t, int64(2_000_000), estimated.GasLimit)
		assert.Equal(t, "100000", estimated.GasFeeCap.String())
		assert.Equal(t, "99000", estimated.GasPremium.String())
		assert.Equal(t, from, estimated.From)
		assert.Equal(t, uint64(1), estimated.Nonce)
	})

	t.Run("MpoolPush", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodMpoolPush, func(params []json.RawMessage) (any, error) {
			var sm message.SignedMessage
			unmarshalParam(t, params[0], &sm)
			assert.Equal(t, sign.TypeSecp256k1, sm.Signature.Type)
			return map[string]string{"/": testMsgCid}, nil
		})

		sm := &message.SignedMessage{
			Message:   *testMessage(t),
			Signature: sign.Signature{Type: sign.TypeSecp256k1, Data: make([]byte, 65)},
		}
		pushed, err := client.MpoolPush(ctx, sm)
		require.NoError(t, err)
		assert.Equal(t, msgCid, pushed)
	})

	t.Run("StateMinerInfo", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodStateMinerInfo, func(params []json.RawMessage) (any, error) {
			assert.Equal(t, "null", string(params[1]))
			return json.RawMessage(`{
				"Owner": "f05ad2llfeza",
				"Worker": "` + testFrom + `",
				"NewWorker": "<empty>",
				"ControlAddresses": null,
				"WorkerChangeEpoch": -1,
				"PeerId": null,
				"SectorSize": 34359738368
			}`), nil
		})

		info, err := client.StateMinerInfo(ctx, address.MustIDAddress(1000))
		require.NoError(t, err)
		assert.Equal(t, address.MustIDAddress(1000), info.Owner)
		assert.Equal(t, from, info.Worker)
		assert.True(t, info.NewWorker.Empty())
		assert.Nil(t, info.PeerID)
		assert.Equal(t, uint64(32<<30), info.SectorSize)
	})

	t.Run("StateMinerAvailableBalance", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodStateMinerAvailableBalance, func(params []json.RawMessage) (any, error) {
			return "0", nil
		})

		balance, err := client.StateMinerAvailableBalance(ctx, address.MustIDAddress(1000))
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("StateMarketBalance", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodStateMarketBalance, func(params []json.RawMessage) (any, error) {
			return map[string]string{"Escrow": "3000", "Locked": "1000"}, nil
		})

		balance, err := client.StateMarketBalance(ctx, from)
		require.NoError(t, err)
		assert.Equal(t, "3000", balance.Escrow.String())
		assert.Equal(t, "1000", balance.Locked.String())
	})

	t.Run("StateWaitMsg", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodStateWaitMsg, func(params []json.RawMessage) (any, error) {
			require.Len(t, params, 2)
			var c cid.Cid
			unmarshalParam(t, params[0], &c)
			assert.Equal(t, msgCid, c)
			assert.Equal(t, "5", string(params[1]))
			return json.RawMessage(`{
				"Message": {"/": "` + testMsgCid + `"},
				"Receipt": {"ExitCode": 0, "Return": null, "GasUsed": 488500},
				"TipSet": [{"/": "` + testMsgCid + `"}],
				"Height": 1234
			}`), nil
		})

		lookup, err := client.StateWaitMsg(ctx, msgCid, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), lookup.Height)
		assert.Equal(t, int64(0), lookup.Receipt.ExitCode)
		assert.Equal(t, int64(488500), lookup.Receipt.GasUsed)
		assert.Equal(t, rpc.TipSetKey{msgCid}, lookup.TipSet)
	})

	t.Run("StateLookupID and StateAccountKey", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodStateLookupID, func(params []json.RawMessage) (any, error) {
			return "f05ad2llfeza", nil
		})
		dialer.RegisterHandler(rpc.MethodStateAccountKey, func(params []json.RawMessage) (any, error) {
			return testFrom, nil
		})

		id, err := client.StateLookupID(ctx, from)
		require.NoError(t, err)
		assert.Equal(t, address.MustIDAddress(1000), id)

		key, err := client.StateAccountKey(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, from, key)
	})

	t.Run("ChainHead", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodChainHead, func(params []json.RawMessage) (any, error) {
			assert.Empty(t, params)
			return json.RawMessage(`{"Cids": [{"/": "` + testMsgCid + `"}], "Height": 4000000}`), nil
		})

		head, err := client.ChainHead(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4_000_000), head.Height)
		assert.Equal(t, []cid.Cid{msgCid}, head.Cids)
	})

	t.Run("node error", func(t *testing.T) {
		dialer.RegisterHandler(rpc.MethodMpoolGetNonce, func(params []json.RawMessage) (any, error) {
			return nil, &rpc.Error{Code: 1, Message: "resolution lookup failed"}
		})

		_, err := client.MpoolGetNonce(ctx, from)
		var rpcErr *rpc.Error
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, 1, rpcErr.Code)
		assert.Contains(t, err.Error(), rpc.MethodMpoolGetNonce)
	})

	t.Run("unknown method", func(t *testing.T) {
		err := client.Call(ctx, "NoSuchMethod", nil)
		var rpcErr *rpc.Error
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, -32601, rpcErr.Code)
	})

	t.Run("request ids increase", func(t *testing.T) {
		reqs := dialer.Requests()
		require.NotEmpty(t, reqs)
		for i := 1; i < len(reqs); i++ {
			assert.Greater(t, reqs[i].ID, reqs[i-1].ID)
		}
		for _, req := range reqs {
			assert.Equal(t, "2.0", req.JSONRPC)
		}
	})

	observedMu.Lock()
	defer observedMu.Unlock()
	assert.Contains(t, observed, rpc.MethodWalletBalance)
	assert.Contains(t, observed, rpc.MethodChainHead)
	assert.Contains(t, observed, "NoSuchMethod")
}

func TestClientTimeout(t *testing.T) {
	client := rpc.NewClient(blockingDialer{}, rpc.WithTimeout(10*time.Millisecond))

	err := client.Call(context.Background(), rpc.MethodChainHead, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStateWaitMsgOutlivesClientTimeout(t *testing.T) {
	msgCid, err := cid.Decode(testMsgCid)
	require.NoError(t, err)

	// The node takes longer than the client timeout to answer every call.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		res := rpc.Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{
			"Message": {"/": "` + testMsgCid + `"},
			"Receipt": {"ExitCode": 0, "Return": null, "GasUsed": 488500},
			"TipSet": [],
			"Height": 1234
		}`)}
		assert.NoError(t, json.NewEncoder(w).Encode(res))
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := rpc.Dial(ctx, rpc.Config{URL: server.URL, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	err = client.Call(ctx, rpc.MethodChainHead, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	lookup, err := client.StateWaitMsg(ctx, msgCid, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), lookup.Height)
	assert.Equal(t, msgCid, lookup.Message)

	// A caller deadline still bounds the wait.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = client.StateWaitMsg(waitCtx, msgCid, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingDialer struct{}

func (blockingDialer) Call(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDialUnsupportedScheme(t *testing.T) {
	_, err := rpc.Dial(context.Background(), rpc.Config{URL: "ftp://node"})
	assert.ErrorIs(t, err, rpc.ErrUnsupportedScheme)
}
