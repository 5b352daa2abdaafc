package rpc

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
)

// Lotus API method names, without the namespace.
const (
	MethodChainHead                  = "ChainHead"
	MethodGasEstimateMessageGas      = "GasEstimateMessageGas"
	MethodMpoolGetNonce              = "MpoolGetNonce"
	MethodMpoolPush                  = "MpoolPush"
	MethodStateAccountKey            = "StateAccountKey"
	MethodStateLookupID              = "StateLookupID"
	MethodStateMarketBalance         = "StateMarketBalance"
	MethodStateMinerAvailableBalance = "StateMinerAvailableBalance"
	MethodStateMinerInfo             = "StateMinerInfo"
	MethodStateWaitMsg               = "StateWaitMsg"
	MethodWalletBalance              = "WalletBalance"
)

// TipSetKey selects the tipset a state query runs against. The empty key
// means the current head and encodes as null.
type TipSetKey []cid.Cid

// TipSet is the subset of a tipset the client reads.
type TipSet struct {
	Cids   []cid.Cid
	Height int64
}

// MinerInfo describes a storage provider's control addresses.
type MinerInfo struct {
	Owner             address.Address
	Worker            address.Address
	NewWorker         address.Address
	ControlAddresses  []address.Address
	WorkerChangeEpoch int64
	PeerID            *string `json:"PeerId"`
	SectorSize        uint64
}

// MarketBalance is the storage market escrow of an address.
type MarketBalance struct {
	Escrow fil.Amount
	Locked fil.Amount
}

// MessageReceipt is the execution result of a message.
type MessageReceipt struct {
	ExitCode int64
	Return   []byte
	GasUsed  int64
}

// MsgLookup is where and how a message was executed.
type MsgLookup struct {
	Message cid.Cid
	Receipt MessageReceipt
	TipSet  TipSetKey
	Height  int64
}

// ChainHead returns the current head tipset.
func (c *Client) ChainHead(ctx context.Context) (*TipSet, error) {
	var ts TipSet
	if err := c.Call(ctx, MethodChainHead, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// WalletBalance returns the balance of addr.
func (c *Client) WalletBalance(ctx context.Context, addr address.Address) (fil.Amount, error) {
	var balance fil.Amount
	if err := c.Call(ctx, MethodWalletBalance, &balance, addr); err != nil {
		return fil.Zero(), err
	}
	return balance, nil
}

// MpoolGetNonce returns the next nonce for addr, counting pending messages.
func (c *Client) MpoolGetNonce(ctx context.Context, addr address.Address) (uint64, error) {
	var nonce uint64
	if err := c.Call(ctx, MethodMpoolGetNonce, &nonce, addr); err != nil {
		return 0, err
	}
	return nonce, nil
}

// MpoolPush submits a signed message and returns its CID.
func (c *Client) MpoolPush(ctx context.Context, sm *message.SignedMessage) (cid.Cid, error) {
	var id cid.Cid
	if err := c.Call(ctx, MethodMpoolPush, &id, sm); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// GasEstimateMessageGas returns msg with GasLimit, GasFeeCap and GasPremium
// filled in by the node.
func (c *Client) GasEstimateMessageGas(ctx context.Context, msg *message.Message) (*message.Message, error) {
	var estimated message.Message
	if err := c.Call(ctx, MethodGasEstimateMessageGas, &estimated, msg, struct{}{}, TipSetKey(nil)); err != nil {
		return nil, err
	}
	return &estimated, nil
}

// StateMinerInfo returns the control addresses of a miner at the head.
func (c *Client) StateMinerInfo(ctx context.Context, miner address.Address) (*MinerInfo, error) {
	var info MinerInfo
	if err := c.Call(ctx, MethodStateMinerInfo, &info, miner, TipSetKey(nil)); err != nil {
		return nil, err
	}
	return &info, nil
}

// StateMinerAvailableBalance returns the balance a miner can withdraw.
func (c *Client) StateMinerAvailableBalance(ctx context.Context, miner address.Address) (fil.Amount, error) {
	var balance fil.Amount
	if err := c.Call(ctx, MethodStateMinerAvailableBalance, &balance, miner, TipSetKey(nil)); err != nil {
		return fil.Zero(), err
	}
	return balance, nil
}

// StateMarketBalance returns the storage market escrow of addr.
func (c *Client) StateMarketBalance(ctx context.Context, addr address.Address) (*MarketBalance, error) {
	var balance MarketBalance
	if err := c.Call(ctx, MethodStateMarketBalance, &balance, addr, TipSetKey(nil)); err != nil {
		return nil, err
	}
	return &balance, nil
}

// StateWaitMsg blocks until the message is executed and confidence epochs
// have passed on top of it. The client timeout does not apply.
func (c *Client) StateWaitMsg(ctx context.Context, msg cid.Cid, confidence uint64) (*MsgLookup, error) {
	var lookup MsgLookup
	if err := c.CallUnbounded(ctx, MethodStateWaitMsg, &lookup, msg, confidence); err != nil {
		return nil, err
	}
	return &lookup, nil
}

// StateLookupID resolves addr to its ID address.
func (c *Client) StateLookupID(ctx context.Context, addr address.Address) (address.Address, error) {
	var id address.Address
	if err := c.Call(ctx, MethodStateLookupID, &id, addr, TipSetKey(nil)); err != nil {
		return address.Undef, err
	}
	return id, nil
}

// StateAccountKey resolves an ID address to its public key address.
func (c *Client) StateAccountKey(ctx context.Context, addr address.Address) (address.Address, error) {
	var key address.Address
	if err := c.Call(ctx, MethodStateAccountKey, &key, addr, TipSetKey(nil)); err != nil {
		return address.Undef, err
	}
	return key, nil
}
