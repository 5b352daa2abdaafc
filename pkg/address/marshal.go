package address

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// MarshalJSON encodes the address as its mainnet text form.
func (a Address) MarshalJSON() ([]byte, error) {
	if a.Empty() {
		return nil, fmt.Errorf("%w: cannot marshal empty address", ErrFormat)
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a text-form address. Node responses are decoded
// leniently, like NewFromString, and ID addresses may also use the decimal
// form Lotus emits ("f01000"). "<empty>" decodes to Undef.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == undefText {
		*a = Undef
		return nil
	}
	addr, err := newFromNodeString(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// newFromNodeString tries the base32 form of an all-digit ID address first,
// since digits 2-7 are also base32 characters, and falls back to decimal.
func newFromNodeString(s string) (Address, error) {
	if !isDecimalID(s) {
		return NewFromString(s)
	}
	if addr, err := NewFromStringStrict(s); err == nil {
		return addr, nil
	}
	id, err := strconv.ParseUint(s[2:], 10, 64)
	if err != nil {
		return Undef, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return NewIDAddress(id)
}

func isDecimalID(s string) bool {
	if len(s) < 3 || s[1] != '0' {
		return false
	}
	switch Network(s[0]) {
	case Mainnet, Testnet:
	default:
		return false
	}
	for i := 2; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MarshalCBOR encodes the address as a CBOR byte string of its binary form.
func (a Address) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.Bytes())
}

// UnmarshalCBOR decodes an address from a CBOR byte string.
func (a *Address) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	addr, err := NewFromBytes(raw)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// Value implements driver.Valuer so addresses can be stored as text columns.
func (a Address) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Address) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrFormat, src)
	}
	if s == undefText {
		*a = Undef
		return nil
	}
	addr, err := NewFromString(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
