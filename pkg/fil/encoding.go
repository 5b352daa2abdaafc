package fil

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

const (
	signPositive = 0x00
	signNegative = 0x01
)

// Bytes returns the on-chain form: empty for zero, otherwise a sign byte
// (0x00 positive, 0x01 negative) followed by the big-endian magnitude.
func (a Amount) Bytes() []byte {
	v := a.int()
	if v.Sign() == 0 {
		return []byte{}
	}
	mag := v.Bytes()
	out := make([]byte, 1+len(mag))
	if v.Sign() < 0 {
		out[0] = signNegative
	}
	copy(out[1:], mag)
	return out
}

// FromBytes decodes the on-chain form produced by Bytes.
func FromBytes(b []byte) (Amount, error) {
	if len(b) == 0 {
		return Amount{}, nil
	}
	v := new(big.Int).SetBytes(b[1:])
	switch b[0] {
	case signPositive:
	case signNegative:
		v.Neg(v)
	default:
		return Amount{}, fmt.Errorf("%w: invalid sign byte 0x%02x", ErrMalformed, b[0])
	}
	return Amount{v}, nil
}

// MarshalJSON encodes the amount as a quoted attoFIL integer.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a quoted attoFIL integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := FromString(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalCBOR encodes the amount as a CBOR byte string of Bytes.
func (a Amount) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.Bytes())
}

// UnmarshalCBOR decodes an amount from a CBOR byte string.
func (a *Amount) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := FromBytes(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
