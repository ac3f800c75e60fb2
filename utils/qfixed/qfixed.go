// Package qfixed implements the deterministic fixed-point scalar used for
// every consensus-relevant quantity in the kernel: risk values, budgets and
// the admission constant kappa.
//
// A QFixed is an unsigned rational with exactly 18 fractional decimal digits,
// backed by a 256-bit integer holding the scaled value. There is no binary
// floating point anywhere on this path: all arithmetic is integer arithmetic,
// all rounding is truncation, and every overflow is a hard error rather than
// a silent saturation. Two machines given the same inputs always produce the
// same bytes.
package qfixed

import (
	"errors"
	"strings"

	"github.com/holiman/uint256"
)

// FracDigits is the fixed number of fractional decimal digits.
// One QFixed unit is represented internally as 10^18 scaled units.
const FracDigits = 18

// Errors returned by the arithmetic operations. They are the only failure
// modes: no operation clamps, wraps or rounds away an error condition.
var (
	// ErrOverflow is returned when a result exceeds MaxQFixed.
	ErrOverflow = errors.New("qfixed: overflow")
	// ErrNegativeResult is returned by the unsigned subtraction path when
	// the result would be negative. Use SignedSub for a signed delta.
	ErrNegativeResult = errors.New("qfixed: negative result not allowed")
	// ErrMalformedDecimal is returned when a decimal string cannot be
	// parsed exactly (bad characters, too many fractional digits, etc).
	ErrMalformedDecimal = errors.New("qfixed: malformed decimal string")
)

// scale is 10^18, the number of scaled units per whole unit.
var scale = uint256.NewInt(1_000_000_000_000_000_000)

// maxScaled is the largest representable scaled value: 2^128 - 1.
// The headroom between 2^128 and 2^256 guarantees that a single
// multiplication of two in-range values cannot wrap the backing integer,
// so overflow detection is a plain comparison.
var maxScaled = func() *uint256.Int {
	m := new(uint256.Int).SetAllOne()
	return m.Rsh(m, 128)
}()

// QFixed is a non-negative fixed-point scalar. The zero value is 0.
type QFixed struct {
	u uint256.Int
}

// QDelta is the signed result of SignedSub. It is a distinct type so that a
// negative-capable value can never be fed back into the unsigned paths by
// accident.
type QDelta struct {
	Mag QFixed
	Neg bool
}

// Zero returns the zero scalar.
func Zero() QFixed {
	return QFixed{}
}

// MaxQFixed returns the largest representable value.
func MaxQFixed() QFixed {
	var q QFixed
	q.u.Set(maxScaled)
	return q
}

// FromUint64 converts a whole number of units. It fails with ErrOverflow if
// units*10^18 exceeds the representable range (it cannot, for any uint64,
// but the check is kept so the constructor never trusts its own headroom).
func FromUint64(units uint64) (QFixed, error) {
	var q QFixed
	_, overflow := q.u.MulOverflow(uint256.NewInt(units), scale)
	if overflow || q.u.Gt(maxScaled) {
		return QFixed{}, ErrOverflow
	}
	return q, nil
}

// FromScaled constructs a QFixed directly from scaled (10^-18) units.
func FromScaled(scaled uint64) QFixed {
	var q QFixed
	q.u.SetUint64(scaled)
	return q
}

// FromDecimal parses an exact decimal string such as "1", "0.4" or
// "12.000000000000000001". Scientific notation, signs, leading zeros and
// more than 18 fractional digits are all rejected: the input must denote
// the value exactly.
func FromDecimal(s string) (QFixed, error) {
	if s == "" {
		return QFixed{}, ErrMalformedDecimal
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		if fracPart == "" {
			return QFixed{}, ErrMalformedDecimal
		}
	}
	if intPart == "" || !isDigits(intPart) || !isDigits(fracPart) {
		return QFixed{}, ErrMalformedDecimal
	}
	if len(intPart) > 1 && intPart[0] == '0' {
		return QFixed{}, ErrMalformedDecimal
	}
	if len(fracPart) > FracDigits {
		return QFixed{}, ErrMalformedDecimal
	}

	whole, err := uint256.FromDecimal(intPart)
	if err != nil {
		return QFixed{}, ErrMalformedDecimal
	}
	var q QFixed
	if _, overflow := q.u.MulOverflow(whole, scale); overflow {
		return QFixed{}, ErrOverflow
	}
	if fracPart != "" {
		// Right-pad to 18 digits: "4" after "0." means 4*10^17 scaled units.
		padded := fracPart + strings.Repeat("0", FracDigits-len(fracPart))
		if trimmed := strings.TrimLeft(padded, "0"); trimmed != "" {
			frac, err := uint256.FromDecimal(trimmed)
			if err != nil {
				return QFixed{}, ErrMalformedDecimal
			}
			if _, overflow := q.u.AddOverflow(&q.u, frac); overflow {
				return QFixed{}, ErrOverflow
			}
		}
	}
	if q.u.Gt(maxScaled) {
		return QFixed{}, ErrOverflow
	}
	return q, nil
}

// MustFromDecimal is FromDecimal for static literals; it panics on error.
func MustFromDecimal(s string) QFixed {
	q, err := FromDecimal(s)
	if err != nil {
		panic("qfixed: bad literal " + s + ": " + err.Error())
	}
	return q
}

// Add returns a+b or ErrOverflow.
func (a QFixed) Add(b QFixed) (QFixed, error) {
	var q QFixed
	if _, overflow := q.u.AddOverflow(&a.u, &b.u); overflow || q.u.Gt(maxScaled) {
		return QFixed{}, ErrOverflow
	}
	return q, nil
}

// Sub returns a-b, failing with ErrNegativeResult if b > a. This is the
// unsigned path used for budget consumption, where a negative budget is a
// law violation rather than a value.
func (a QFixed) Sub(b QFixed) (QFixed, error) {
	if a.u.Lt(&b.u) {
		return QFixed{}, ErrNegativeResult
	}
	var q QFixed
	q.u.Sub(&a.u, &b.u)
	return q, nil
}

// SignedSub returns a-b as a signed delta. Unlike Sub it cannot fail:
// a negative result is reported through QDelta.Neg.
func (a QFixed) SignedSub(b QFixed) QDelta {
	if a.u.Lt(&b.u) {
		var q QFixed
		q.u.Sub(&b.u, &a.u)
		return QDelta{Mag: q, Neg: !q.u.IsZero()}
	}
	var q QFixed
	q.u.Sub(&a.u, &b.u)
	return QDelta{Mag: q}
}

// Mul returns a*b with truncation toward zero, or ErrOverflow.
// Both operands are at most 2^128-1 scaled units, so the raw product fits
// the backing 256-bit integer exactly; truncation happens only at the final
// division by the scale.
func (a QFixed) Mul(b QFixed) (QFixed, error) {
	var raw uint256.Int
	if _, overflow := raw.MulOverflow(&a.u, &b.u); overflow {
		return QFixed{}, ErrOverflow
	}
	var q QFixed
	q.u.Div(&raw, scale)
	if q.u.Gt(maxScaled) {
		return QFixed{}, ErrOverflow
	}
	return q, nil
}

// Cmp returns -1, 0 or +1.
func (a QFixed) Cmp(b QFixed) int {
	return a.u.Cmp(&b.u)
}

// Lt reports a < b.
func (a QFixed) Lt(b QFixed) bool { return a.u.Lt(&b.u) }

// Gt reports a > b.
func (a QFixed) Gt(b QFixed) bool { return a.u.Gt(&b.u) }

// Eq reports a == b.
func (a QFixed) Eq(b QFixed) bool { return a.u.Eq(&b.u) }

// IsZero reports whether the value is exactly zero.
func (a QFixed) IsZero() bool { return a.u.IsZero() }

// Scaled returns the backing scaled integer as a big-endian 32-byte array.
func (a QFixed) Scaled() [32]byte {
	return a.u.Bytes32()
}

// String renders the canonical exact decimal form: no exponent, no sign,
// no leading zeros, fractional digits trimmed of trailing zeros, and no
// decimal point at all for whole values. This exact rendering is what the
// canonical serializer hashes, so it is consensus-critical and must never
// vary.
func (a QFixed) String() string {
	var whole, frac uint256.Int
	whole.Div(&a.u, scale)
	frac.Mod(&a.u, scale)
	if frac.IsZero() {
		return whole.Dec()
	}
	fs := frac.Dec()
	fs = strings.Repeat("0", FracDigits-len(fs)) + fs
	fs = strings.TrimRight(fs, "0")
	return whole.Dec() + "." + fs
}

// MarshalText implements encoding.TextMarshaler using the canonical decimal
// form, so JSON configs and logs always show exact values.
func (a QFixed) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *QFixed) UnmarshalText(text []byte) error {
	q, err := FromDecimal(string(text))
	if err != nil {
		return err
	}
	*a = q
	return nil
}

// String renders a signed delta, with a leading '-' for negative values.
func (d QDelta) String() string {
	if d.Neg {
		return "-" + d.Mag.String()
	}
	return d.Mag.String()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
