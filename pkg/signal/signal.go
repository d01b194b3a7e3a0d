// Package signal defines the typed value vector carried by a Sample and
// the signal descriptor list that names each slot in that vector.
package signal

import "fmt"

// Kind discriminates the type carried by a Value slot.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindComplex
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindComplex:
		return "complex"
	default:
		return "invalid"
	}
}

// Value is a single discriminated-union slot in a Sample's value array.
// It carries a fixed-width payload per Kind to avoid interface{} boxing
// on the routing hot path.
type Value struct {
	Kind    Kind
	Int     int64
	Float   float64
	Bool    bool
	Complex complex128
}

// IntValue constructs an integer Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue constructs a float Value.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// BoolValue constructs a boolean Value.
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// ComplexValue constructs a complex Value.
func ComplexValue(v complex128) Value { return Value{Kind: KindComplex, Complex: v} }

// Equal compares two Values for equality, including Kind.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindBool:
		return v.Bool == other.Bool
	case KindComplex:
		return v.Complex == other.Complex
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindComplex:
		return fmt.Sprintf("%g", v.Complex)
	default:
		return "<invalid>"
	}
}

// Descriptor names one slot of a Node's value vector.
type Descriptor struct {
	Name string
	Unit string
	Kind Kind
}

// List is a signal descriptor list, shared (pointer-equal) across every
// Sample produced by one Node — it is never copied per-Sample.
type List []Descriptor

// Len reports the declared vector capacity implied by the descriptor list.
func (l List) Len() int { return len(l) }
