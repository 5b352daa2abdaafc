// Package fil implements Filecoin token amounts: arbitrary-precision
// integers of attoFIL (10^-18 FIL) with parsing, display formatting and the
// sign-magnitude byte form used on chain.
package fil

import (
	"fmt"
	"math/big"
)

// Precision is the number of decimal places between FIL and attoFIL.
const Precision = 18

var (
	ErrFormat         = fmt.Errorf("invalid amount")
	ErrUnknownUnit    = fmt.Errorf("%w: unrecognized unit", ErrFormat)
	ErrFractionalAtto = fmt.Errorf("%w: attoFIL cannot have decimals", ErrFormat)
	ErrMalformed      = fmt.Errorf("%w: malformed number", ErrFormat)
)

var attoPerFIL = new(big.Int).Exp(big.NewInt(10), big.NewInt(Precision), nil)

// Amount is an immutable signed quantity of attoFIL. The zero value is 0.
type Amount struct {
	v *big.Int
}

// Zero returns the zero amount.
func Zero() Amount { return Amount{} }

// NewInt returns an amount of n attoFIL.
func NewInt(n int64) Amount {
	return Amount{big.NewInt(n)}
}

// FromBig returns an amount of b attoFIL. b is copied.
func FromBig(b *big.Int) Amount {
	if b == nil {
		return Amount{}
	}
	return Amount{new(big.Int).Set(b)}
}

// FromFIL returns an amount of n whole FIL.
func FromFIL(n int64) Amount {
	return Amount{new(big.Int).Mul(big.NewInt(n), attoPerFIL)}
}

// FromString parses a plain base-10 attoFIL integer, as found in node
// responses and message JSON.
func FromString(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return Amount{v}, nil
}

// FromStringLenient parses a base-10 attoFIL integer and returns zero on
// malformed input. It exists only for byte-for-byte compatibility with tools
// that never reported malformed amounts; new code should use FromString.
func FromStringLenient(s string) Amount {
	a, err := FromString(s)
	if err != nil {
		return Amount{}
	}
	return a
}

func (a Amount) int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Int returns a copy of the underlying attoFIL integer.
func (a Amount) Int() *big.Int {
	return new(big.Int).Set(a.int())
}

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int { return a.int().Sign() }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.Sign() == 0 }

// Cmp compares a and b.
func (a Amount) Cmp(b Amount) int { return a.int().Cmp(b.int()) }

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{new(big.Int).Add(a.int(), b.int())}
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{new(big.Int).Sub(a.int(), b.int())}
}

// Mul returns a*n.
func (a Amount) Mul(n int64) Amount {
	return Amount{new(big.Int).Mul(a.int(), big.NewInt(n))}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{new(big.Int).Neg(a.int())}
}

// String returns the attoFIL integer in base 10.
func (a Amount) String() string {
	return a.int().String()
}
