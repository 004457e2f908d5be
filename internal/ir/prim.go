package ir

import "fmt"

// PrimKind enumerates scalar types. Integers are sign-agnostic; operators
// decide the interpretation.
type PrimKind uint8

const (
	PrimBool PrimKind = iota
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimF32
	PrimF64

	primCount
)

func (p PrimKind) String() string {
	switch p {
	case PrimBool:
		return "bool"
	case PrimI8:
		return "i8"
	case PrimI16:
		return "i16"
	case PrimI32:
		return "i32"
	case PrimI64:
		return "i64"
	case PrimF32:
		return "f32"
	case PrimF64:
		return "f64"
	default:
		return fmt.Sprintf("PrimKind(%d)", p)
	}
}

// Width returns the bit width of the type.
func (p PrimKind) Width() uint {
	switch p {
	case PrimBool:
		return 1
	case PrimI8:
		return 8
	case PrimI16:
		return 16
	case PrimI32, PrimF32:
		return 32
	case PrimI64, PrimF64:
		return 64
	default:
		panic(fmt.Sprintf("ir: invalid prim kind %d", p))
	}
}

// IsFloat reports whether p is a floating-point type.
func (p PrimKind) IsFloat() bool {
	return p == PrimF32 || p == PrimF64
}

// mask returns the low-bit mask for integer values of p.
func (p PrimKind) mask() uint64 {
	w := p.Width()
	if w == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// signExtend interprets bits as a signed value of p's width.
func (p PrimKind) signExtend(bits uint64) int64 {
	shift := 64 - p.Width()
	return int64(bits<<shift) >> shift //nolint:gosec // two's complement reinterpretation
}
