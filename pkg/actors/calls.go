package actors

import (
	"fmt"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
)

// ErrInvalidParams is returned when a call cannot be built from its inputs.
var ErrInvalidParams = fmt.Errorf("invalid actor params")

// Call is the target, method and encoded params of an actor invocation,
// ready to be placed in a message.
type Call struct {
	To     address.Address
	Method message.MethodNum
	Value  fil.Amount
	Params []byte
}

// Message returns an unsigned message from `from` carrying the call. Nonce
// and gas are left for the caller to fill in.
func (c Call) Message(from address.Address) *message.Message {
	return &message.Message{
		To:         c.To,
		From:       from,
		Value:      c.Value,
		GasFeeCap:  fil.Zero(),
		GasPremium: fil.Zero(),
		Method:     c.Method,
		Params:     c.Params,
	}
}

// Send is a plain value transfer.
func Send(to address.Address, value fil.Amount) (Call, error) {
	if value.Sign() < 0 {
		return Call{}, fmt.Errorf("%w: negative value %s", ErrInvalidParams, value)
	}
	return Call{To: to, Method: message.MethodSend, Value: value, Params: []byte{}}, nil
}

// MinerWithdraw withdraws available balance from a miner to its owner.
func MinerWithdraw(miner address.Address, amount fil.Amount) (Call, error) {
	if amount.Sign() < 0 {
		return Call{}, fmt.Errorf("%w: negative amount %s", ErrInvalidParams, amount)
	}
	return newCall(miner, MethodMinerWithdrawBalance, &WithdrawBalanceParams{AmountRequested: amount})
}

// MarketWithdraw withdraws escrow held by the storage market for a
// provider or client.
func MarketWithdraw(providerOrClient address.Address, amount fil.Amount) (Call, error) {
	if amount.Sign() < 0 {
		return Call{}, fmt.Errorf("%w: negative amount %s", ErrInvalidParams, amount)
	}
	return newCall(StorageMarketActor, MethodMarketWithdrawBalance, &MarketWithdrawBalanceParams{
		ProviderOrClientAddress: providerOrClient,
		Amount:                  amount,
	})
}

// ChangeOwner proposes (or, sent from the new owner, confirms) a new miner
// owner. The param is the bare address.
func ChangeOwner(miner, newOwner address.Address) (Call, error) {
	if newOwner.Empty() {
		return Call{}, fmt.Errorf("%w: empty new owner", ErrInvalidParams)
	}
	return newCall(miner, MethodMinerChangeOwnerAddress, newOwner)
}

// ProposeChangeWorker proposes a new worker and control address set.
func ProposeChangeWorker(miner, newWorker address.Address, controlAddrs []address.Address) (Call, error) {
	if newWorker.Empty() {
		return Call{}, fmt.Errorf("%w: empty new worker", ErrInvalidParams)
	}
	return newCall(miner, MethodMinerChangeWorkerAddress, &ChangeWorkerAddressParams{
		NewWorker:       newWorker,
		NewControlAddrs: controlAddrs,
	})
}

// ConfirmChangeWorker confirms a worker change once its effective epoch has
// passed.
func ConfirmChangeWorker(miner address.Address) Call {
	return Call{To: miner, Method: MethodMinerConfirmChangeWorkerAddress, Value: fil.Zero(), Params: []byte{}}
}

func newCall(to address.Address, method message.MethodNum, params any) (Call, error) {
	if to.Empty() {
		return Call{}, fmt.Errorf("%w: empty target", ErrInvalidParams)
	}
	data, err := EncodeParams(params)
	if err != nil {
		return Call{}, err
	}
	return Call{To: to, Method: method, Value: fil.Zero(), Params: data}, nil
}
