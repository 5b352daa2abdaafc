// Package actors holds the method numbers and parameter encodings of the
// builtin miner and storage market actors.
package actors

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
)

// Miner actor methods.
const (
	MethodMinerChangeWorkerAddress        message.MethodNum = 3
	MethodMinerWithdrawBalance            message.MethodNum = 16
	MethodMinerConfirmChangeWorkerAddress message.MethodNum = 21
	MethodMinerChangeOwnerAddress         message.MethodNum = 23
)

// Storage market actor methods.
const (
	MethodMarketWithdrawBalance message.MethodNum = 2
)

// StorageMarketActor is the singleton storage market actor, f05.
var StorageMarketActor = address.MustIDAddress(5)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		NilContainers: cbor.NilContainerAsEmpty,
	}.EncMode()
	if err != nil {
		panic(err)
	}
}

// WithdrawBalanceParams are the params of the miner WithdrawBalance method.
type WithdrawBalanceParams struct {
	_               struct{} `cbor:",toarray"`
	AmountRequested fil.Amount
}

// ChangeWorkerAddressParams are the params of the miner ChangeWorkerAddress
// method.
type ChangeWorkerAddressParams struct {
	_               struct{} `cbor:",toarray"`
	NewWorker       address.Address
	NewControlAddrs []address.Address
}

// MarketWithdrawBalanceParams are the params of the market WithdrawBalance
// method.
type MarketWithdrawBalanceParams struct {
	_                       struct{} `cbor:",toarray"`
	ProviderOrClientAddress address.Address
	Amount                  fil.Amount
}

// EncodeParams serializes actor method params. A nil v encodes as empty
// params.
func EncodeParams(v any) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode params %T: %w", v, err)
	}
	return data, nil
}
