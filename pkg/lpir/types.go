// Package lpir implements the LPIR intermediate representation: a
// Cranelift/CLIF-style SSA form with block parameters standing in for phis,
// a data-flow graph separate from block/instruction layout, and a four-layer
// verifier.
package lpir

import "fmt"

// Type is an LPIR primitive type.
type Type uint8

const (
	// TypeInvalid marks an unset type; never valid on a verified function.
	TypeInvalid Type = iota
	TypeI32
	TypeU32
	TypeF32
)

func (t Type) String() string {
	switch t {
	case TypeI32:
		return "i32"
	case TypeU32:
		return "u32"
	case TypeF32:
		return "f32"
	default:
		return "invalid"
	}
}

// IsInteger reports whether t is an integer type (signed or unsigned).
func (t Type) IsInteger() bool {
	return t == TypeI32 || t == TypeU32
}

// IsFloat reports whether t is a floating-point type.
func (t Type) IsFloat() bool {
	return t == TypeF32
}

// ParseType parses a type name as it appears in LPIR text.
func ParseType(s string) (Type, error) {
	switch s {
	case "i32":
		return TypeI32, nil
	case "u32":
		return TypeU32, nil
	case "f32":
		return TypeF32, nil
	default:
		return TypeInvalid, fmt.Errorf("unknown type %q", s)
	}
}

// CondCode is a comparison condition code, shared between icmp and fcmp with
// the float-only orderedness qualifiers folded in.
type CondCode uint8

const (
	CondEqual CondCode = iota
	CondNotEqual
	CondSignedLessThan
	CondSignedLessThanOrEqual
	CondSignedGreaterThan
	CondSignedGreaterThanOrEqual
	CondUnsignedLessThan
	CondUnsignedLessThanOrEqual
	CondUnsignedGreaterThan
	CondUnsignedGreaterThanOrEqual
	// Float-only qualifiers; a NaN-free fixed-point representation folds
	// these into one of the above upon the float->fixed transform.
	CondUnordered
	CondOrdered
	CondUnorderedOrEqual
	CondOrderedNotEqual
	CondUnorderedOrLessThan
	CondUnorderedOrLessThanOrEqual
	CondUnorderedOrGreaterThan
	CondUnorderedOrGreaterThanOrEqual
)

var condNames = map[CondCode]string{
	CondEqual:                         "eq",
	CondNotEqual:                      "ne",
	CondSignedLessThan:                "slt",
	CondSignedLessThanOrEqual:         "sle",
	CondSignedGreaterThan:             "sgt",
	CondSignedGreaterThanOrEqual:      "sge",
	CondUnsignedLessThan:              "ult",
	CondUnsignedLessThanOrEqual:       "ule",
	CondUnsignedGreaterThan:           "ugt",
	CondUnsignedGreaterThanOrEqual:    "uge",
	CondUnordered:                     "uno",
	CondOrdered:                       "ord",
	CondUnorderedOrEqual:              "ueq",
	CondOrderedNotEqual:               "one",
	CondUnorderedOrLessThan:           "ult_f",
	CondUnorderedOrLessThanOrEqual:    "ule_f",
	CondUnorderedOrGreaterThan:        "ugt_f",
	CondUnorderedOrGreaterThanOrEqual: "uge_f",
}

func (c CondCode) String() string {
	if s, ok := condNames[c]; ok {
		return s
	}
	return "?cond"
}

var condByName = func() map[string]CondCode {
	m := make(map[string]CondCode, len(condNames))
	for c, s := range condNames {
		m[s] = c
	}
	return m
}()

// ParseCondCode parses a condition code mnemonic.
func ParseCondCode(s string) (CondCode, error) {
	if c, ok := condByName[s]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("unknown condition code %q", s)
}

// FixedToIntCond maps a float condition code to the signed integer
// equivalent used after the float->fixed transform. The fixed-point
// representation has no NaN, so Unordered/Ordered map to NotEqual/Equal,
// which the transform applies to the left operand compared with itself: an
// always-false/always-true surrogate rather than a distinct comparison.
func FixedToIntCond(c CondCode) CondCode {
	switch c {
	case CondEqual, CondUnorderedOrEqual:
		return CondEqual
	case CondNotEqual, CondOrderedNotEqual:
		return CondNotEqual
	case CondSignedLessThan, CondUnorderedOrLessThan:
		return CondSignedLessThan
	case CondSignedLessThanOrEqual, CondUnorderedOrLessThanOrEqual:
		return CondSignedLessThanOrEqual
	case CondSignedGreaterThan, CondUnorderedOrGreaterThan:
		return CondSignedGreaterThan
	case CondSignedGreaterThanOrEqual, CondUnorderedOrGreaterThanOrEqual:
		return CondSignedGreaterThanOrEqual
	case CondUnordered:
		return CondNotEqual
	case CondOrdered:
		return CondEqual
	default:
		return c
	}
}
