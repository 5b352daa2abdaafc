package fil

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is the denomination of an amount's text form.
type Unit int

const (
	UnitFIL Unit = iota
	UnitAttoFIL
)

func (u Unit) String() string {
	if u == UnitAttoFIL {
		return "attoFIL"
	}
	return "FIL"
}

// ParseUnit resolves a case-insensitive unit suffix. The empty suffix
// resolves to implied.
func ParseUnit(s string, implied Unit) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return implied, nil
	case "fil":
		return UnitFIL, nil
	case "attofil", "afil":
		return UnitAttoFIL, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
}

// Parse parses a decimal amount with an optional unit suffix such as
// "1.5 FIL", "0.1fil" or "1000 attoFIL". A bare number is read in implied.
//
// FIL values are scaled to attoFIL by padding or truncating the fractional
// digits to 18 places.
func Parse(text string, implied Unit) (Amount, error) {
	text = strings.TrimSpace(text)
	num, suffix := splitNumber(text)

	unit, err := ParseUnit(suffix, implied)
	if err != nil {
		return Amount{}, err
	}

	intPart, fracPart, hasPoint := strings.Cut(num, ".")
	if strings.TrimPrefix(intPart, "-")+fracPart == "" {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, text)
	}
	if hasPoint {
		if unit == UnitAttoFIL {
			return Amount{}, fmt.Errorf("%w: %q", ErrFractionalAtto, text)
		}
		if strings.Contains(fracPart, ".") || strings.Contains(fracPart, "-") {
			return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, text)
		}
	}

	digits := intPart
	if unit == UnitFIL {
		if len(fracPart) > Precision {
			fracPart = fracPart[:Precision]
		}
		digits += fracPart + strings.Repeat("0", Precision-len(fracPart))
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, text)
	}
	return Amount{v}, nil
}

// ParseFIL parses text whose bare numbers are FIL.
func ParseFIL(text string) (Amount, error) {
	return Parse(text, UnitFIL)
}

// MustParseFIL is like ParseFIL but panics on error. Intended for constants
// and tests.
func MustParseFIL(text string) Amount {
	a, err := ParseFIL(text)
	if err != nil {
		panic(err)
	}
	return a
}

// splitNumber splits text at the first character that cannot belong to a
// number. The remainder is the unit.
func splitNumber(text string) (string, string) {
	i := strings.IndexFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// Format renders the amount in FIL with trailing fractional zeros removed,
// e.g. "1 FIL", "0.1 FIL" or "-1.5 FIL".
func (a Amount) Format() string {
	return a.Decimal().String() + " FIL"
}

// Decimal returns the amount in FIL as a decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.int(), -Precision)
}
