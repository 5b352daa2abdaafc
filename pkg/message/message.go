// Package message implements Filecoin messages: the fixed ten-field record,
// its canonical CBOR form and the CID that signers sign.
package message

import (
	"bytes"
	"fmt"
	"io"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/sign"
)

// MethodNum selects the actor method a message invokes. Zero is a plain transfer.
type MethodNum uint64

// MethodSend is the method number of a value transfer.
const MethodSend MethodNum = 0

// messageFields is the number of elements in the encoded message array.
const messageFields = 10

// ErrInvalidMessage is returned by Validate.
var ErrInvalidMessage = fmt.Errorf("invalid message")

// totalFilecoin is the total token supply; no message can move more.
var totalFilecoin = fil.FromFIL(2_000_000_000)

// Message is an unsigned Filecoin message. Field order is significant: it is
// the order of the encoded array.
type Message struct {
	Version uint64

	To   address.Address
	From address.Address

	Nonce uint64

	Value fil.Amount

	GasLimit   int64
	GasFeeCap  fil.Amount
	GasPremium fil.Amount

	Method MethodNum
	Params []byte
}

// MarshalCBOR writes the canonical encoding: a ten-element array in field order.
func (m *Message) MarshalCBOR(w io.Writer) error {
	cw := newCborWriter(w)

	if err := cw.writeArrayHeader(messageFields); err != nil {
		return err
	}
	if err := cw.writeUint(m.Version); err != nil {
		return err
	}
	if err := cw.writeBytes(m.To.Bytes()); err != nil {
		return err
	}
	if err := cw.writeBytes(m.From.Bytes()); err != nil {
		return err
	}
	if err := cw.writeUint(m.Nonce); err != nil {
		return err
	}
	if err := cw.writeBytes(m.Value.Bytes()); err != nil {
		return err
	}
	if err := cw.writeInt(m.GasLimit); err != nil {
		return err
	}
	if err := cw.writeBytes(m.GasFeeCap.Bytes()); err != nil {
		return err
	}
	if err := cw.writeBytes(m.GasPremium.Bytes()); err != nil {
		return err
	}
	if err := cw.writeUint(uint64(m.Method)); err != nil {
		return err
	}
	return cw.writeBytes(m.Params)
}

// Serialize returns the canonical encoding of the message.
func (m *Message) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate performs the syntactic checks a node applies before accepting a
// message into its pool. Gas fields may still be zero.
func (m *Message) Validate() error {
	if m.Version != 0 {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidMessage, m.Version)
	}
	if m.To.Empty() {
		return fmt.Errorf("%w: empty To address", ErrInvalidMessage)
	}
	if m.From.Empty() {
		return fmt.Errorf("%w: empty From address", ErrInvalidMessage)
	}
	if m.Value.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s", ErrInvalidMessage, m.Value)
	}
	if m.Value.Cmp(totalFilecoin) > 0 {
		return fmt.Errorf("%w: value %s exceeds total supply", ErrInvalidMessage, m.Value.Format())
	}
	if m.GasLimit < 0 {
		return fmt.Errorf("%w: negative gas limit %d", ErrInvalidMessage, m.GasLimit)
	}
	if m.GasFeeCap.Sign() < 0 {
		return fmt.Errorf("%w: negative gas fee cap", ErrInvalidMessage)
	}
	if m.GasPremium.Sign() < 0 {
		return fmt.Errorf("%w: negative gas premium", ErrInvalidMessage)
	}
	if m.GasPremium.Cmp(m.GasFeeCap) > 0 {
		return fmt.Errorf("%w: gas premium %s above fee cap %s", ErrInvalidMessage, m.GasPremium, m.GasFeeCap)
	}
	return nil
}

// RequiredFunds is the most the sender can be charged: value plus fee cap
// times gas limit.
func (m *Message) RequiredFunds() fil.Amount {
	return m.Value.Add(m.GasFeeCap.Mul(m.GasLimit))
}

// SignedMessage is a message with the signature of its From address.
type SignedMessage struct {
	Message   Message
	Signature sign.Signature
}

// signedMessageFields is the number of elements in the encoded signed message array.
const signedMessageFields = 2

// MarshalCBOR writes the signed message as [message, signature bytes].
func (sm *SignedMessage) MarshalCBOR(w io.Writer) error {
	cw := newCborWriter(w)
	if err := cw.writeArrayHeader(signedMessageFields); err != nil {
		return err
	}
	if err := sm.Message.MarshalCBOR(w); err != nil {
		return err
	}
	return cw.writeBytes(sm.Signature.Bytes())
}

// Serialize returns the canonical encoding of the signed message.
func (sm *SignedMessage) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := sm.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
