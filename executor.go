package main

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lotus-sign/filsign/pkg/actors"
	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/log"
	"github.com/lotus-sign/filsign/pkg/message"
	"github.com/lotus-sign/filsign/pkg/rpc"
	"github.com/lotus-sign/filsign/pkg/wallet"
)

var (
	ErrOfflineNonce = fmt.Errorf("offline signing needs an explicit nonce")
	ErrOfflineGas   = fmt.Errorf("offline signing needs an explicit gas limit")
	ErrExecution    = fmt.Errorf("message execution failed")
	ErrFunds        = fmt.Errorf("not enough funds")
)

// NodeAPI is the part of the Lotus API the executor uses.
type NodeAPI interface {
	WalletBalance(ctx context.Context, addr address.Address) (fil.Amount, error)
	MpoolGetNonce(ctx context.Context, addr address.Address) (uint64, error)
	GasEstimateMessageGas(ctx context.Context, msg *message.Message) (*message.Message, error)
	MpoolPush(ctx context.Context, sm *message.SignedMessage) (cid.Cid, error)
	StateWaitMsg(ctx context.Context, msg cid.Cid, confidence uint64) (*rpc.MsgLookup, error)
}

var _ NodeAPI = (*rpc.Client)(nil)

// SendOptions override what the executor would otherwise ask the node for.
type SendOptions struct {
	// Nonce is used as is when set, else MpoolGetNonce is asked.
	Nonce *uint64
	// GasLimit, when non-zero, skips gas estimation. The fee cap and
	// premium are then taken as given.
	GasLimit   int64
	GasFeeCap  fil.Amount
	GasPremium fil.Amount
	// Offline signs without contacting the node and returns the signed
	// message unpushed.
	Offline bool
	// Wait blocks until the message is executed.
	Wait bool
}

// Result is the outcome of an executed call.
type Result struct {
	Signed *message.SignedMessage
	Cid    cid.Cid
	Pushed bool
	Lookup *rpc.MsgLookup
}

// Executor builds, signs and submits messages.
type Executor struct {
	api        NodeAPI
	wallet     *wallet.Wallet
	journal    *MessageJournal
	metrics    *Metrics
	confidence uint64
	tracer     trace.Tracer
}

// NewExecutor creates an executor. api may be nil for offline use; journal
// and metrics may be nil.
func NewExecutor(api NodeAPI, w *wallet.Wallet, journal *MessageJournal, metrics *Metrics, confidence uint64) *Executor {
	return &Executor{
		api:        api,
		wallet:     w,
		journal:    journal,
		metrics:    metrics,
		confidence: confidence,
		tracer:     otel.Tracer("github.com/lotus-sign/filsign"),
	}
}

// Transfer sends amount from `from` to `to`.
func (e *Executor) Transfer(ctx context.Context, from, to address.Address, amount fil.Amount, opts SendOptions) (*Result, error) {
	call, err := actors.Send(to, amount)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, from, call, opts)
}

// MinerWithdraw withdraws amount from the miner's available balance.
func (e *Executor) MinerWithdraw(ctx context.Context, from, miner address.Address, amount fil.Amount, opts SendOptions) (*Result, error) {
	call, err := actors.MinerWithdraw(miner, amount)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, from, call, opts)
}

// MarketWithdraw withdraws amount of storage market escrow.
func (e *Executor) MarketWithdraw(ctx context.Context, from, providerOrClient address.Address, amount fil.Amount, opts SendOptions) (*Result, error) {
	call, err := actors.MarketWithdraw(providerOrClient, amount)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, from, call, opts)
}

// ChangeOwner proposes or confirms newOwner as the miner owner.
func (e *Executor) ChangeOwner(ctx context.Context, from, miner, newOwner address.Address, opts SendOptions) (*Result, error) {
	call, err := actors.ChangeOwner(miner, newOwner)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, from, call, opts)
}

// ProposeChangeWorker proposes a new worker and control addresses.
func (e *Executor) ProposeChangeWorker(ctx context.Context, from, miner, newWorker address.Address, controlAddrs []address.Address, opts SendOptions) (*Result, error) {
	call, err := actors.ProposeChangeWorker(miner, newWorker, controlAddrs)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, from, call, opts)
}

// ConfirmChangeWorker confirms a pending worker change.
func (e *Executor) ConfirmChangeWorker(ctx context.Context, from, miner address.Address, opts SendOptions) (*Result, error) {
	return e.Execute(ctx, from, actors.ConfirmChangeWorker(miner), opts)
}

// Execute turns call into a message from `from`, fills in nonce and gas,
// signs it and, unless offline, pushes it.
func (e *Executor) Execute(ctx context.Context, from address.Address, call actors.Call, opts SendOptions) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "Execute", trace.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", call.To.String()),
		attribute.Int64("method", int64(call.Method)),
	))
	defer span.End()
	ctx = log.SetContextLogger(ctx, log.FromContext(ctx).WithName("executor"))

	// res may be set alongside err when the message was pushed but failed.
	res, err := e.execute(ctx, from, call, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (e *Executor) execute(ctx context.Context, from address.Address, call actors.Call, opts SendOptions) (*Result, error) {
	msg := call.Message(from)
	msg.GasLimit = opts.GasLimit
	msg.GasFeeCap = opts.GasFeeCap
	msg.GasPremium = opts.GasPremium

	if opts.Offline {
		if opts.Nonce == nil {
			return nil, ErrOfflineNonce
		}
		if opts.GasLimit == 0 {
			return nil, ErrOfflineGas
		}
	}

	if opts.Nonce != nil {
		msg.Nonce = *opts.Nonce
	} else {
		nonce, err := e.api.MpoolGetNonce(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("failed to get nonce: %w", err)
		}
		msg.Nonce = nonce
	}

	if msg.GasLimit == 0 {
		estimated, err := e.api.GasEstimateMessageGas(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		msg.GasLimit = estimated.GasLimit
		msg.GasFeeCap = estimated.GasFeeCap
		msg.GasPremium = estimated.GasPremium
	}

	if !opts.Offline {
		if err := e.checkFunds(ctx, msg); err != nil {
			return nil, err
		}
	}

	sm, err := e.SignOnly(ctx, msg)
	if err != nil {
		return nil, err
	}

	if opts.Offline {
		c, err := sm.Cid()
		if err != nil {
			return nil, err
		}
		return &Result{Signed: sm, Cid: c}, nil
	}
	return e.Push(ctx, sm, opts.Wait)
}

// checkFunds rejects messages the sender cannot cover at the current head,
// the same check the node's message pool applies on push.
func (e *Executor) checkFunds(ctx context.Context, msg *message.Message) error {
	balance, err := e.api.WalletBalance(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}
	if required := msg.RequiredFunds(); balance.Cmp(required) < 0 {
		return fmt.Errorf("%w: %s has %s, message needs up to %s", ErrFunds, msg.From, balance.Format(), required.Format())
	}
	return nil
}

// SignOnly validates and signs msg as is and records it in the journal.
func (e *Executor) SignOnly(ctx context.Context, msg *message.Message) (*message.SignedMessage, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	sm, err := e.wallet.SignMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.ObserveSigned(sm)
	}
	if e.journal != nil {
		if err := e.journal.Record(ctx, sm); err != nil {
			log.FromContext(ctx).Warn("failed to journal message", "error", err)
		}
	}
	return sm, nil
}

// Push submits a signed message and, if wait is set, waits for its
// receipt. A non-zero exit code is reported as ErrExecution.
func (e *Executor) Push(ctx context.Context, sm *message.SignedMessage, wait bool) (*Result, error) {
	lg := log.FromContext(ctx)

	c, err := e.api.MpoolPush(ctx, sm)
	if e.metrics != nil {
		e.metrics.ObservePush(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to push message: %w", err)
	}
	lg.Info("message pushed", "cid", c, "from", sm.Message.From, "nonce", sm.Message.Nonce)

	if e.journal != nil {
		if err := e.journal.MarkPushed(ctx, c.String()); err != nil {
			lg.Warn("failed to journal push", "cid", c, "error", err)
		}
	}

	res := &Result{Signed: sm, Cid: c, Pushed: true}
	if !wait {
		return res, nil
	}

	lookup, err := e.api.StateWaitMsg(ctx, c, e.confidence)
	if err != nil {
		return res, fmt.Errorf("failed to wait for %s: %w", c, err)
	}
	res.Lookup = lookup
	if lookup.Receipt.ExitCode != 0 {
		return res, fmt.Errorf("%w: %s exited with code %d", ErrExecution, c, lookup.Receipt.ExitCode)
	}
	return res, nil
}
