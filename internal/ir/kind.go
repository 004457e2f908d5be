package ir

import "fmt"

// Kind discriminates term nodes.
type Kind uint8

const (
	KindInvalid Kind = iota

	// types
	KindStar  // type of all types
	KindNever // result type of a jump; has no values
	KindPrim  // primitive scalar type, Flags holds the PrimKind
	KindSigma // tuple type (structural) or recursive aggregate (nominal)
	KindPi    // continuation type, operands are the domain

	// literals and degenerate values
	KindLit    // Flags holds the raw bits
	KindBottom // undefined value
	KindError  // trapping value, distinct from undef

	// integer and float arithmetic
	KindAdd
	KindSub
	KindMul
	KindSDiv
	KindUDiv
	KindSRem
	KindURem
	KindFDiv
	KindFRem
	KindAnd
	KindOr
	KindXor
	KindShl
	KindLShr
	KindAShr

	// comparisons, always yield bool
	KindCmpEq
	KindCmpNe
	KindCmpULt
	KindCmpULe
	KindCmpSLt
	KindCmpSLe
	KindCmpFLt
	KindCmpFLe

	KindSelect  // select(cond, a, b)
	KindTuple   // tuple(ops...)
	KindExtract // extract(tuple), Flags holds the index
	KindInsert  // insert(tuple, value), Flags holds the index

	KindLam   // nominal continuation, single operand: body
	KindVar   // bound variable, operand 0 is the binder, Flags holds the index
	KindApp   // jump: app(callee, args...)
	KindAxiom // registry-backed operator, Flags holds the annex flags

	kindCount
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindStar:    "*",
	KindNever:   "never",
	KindPrim:    "prim",
	KindSigma:   "sigma",
	KindPi:      "pi",
	KindLit:     "lit",
	KindBottom:  "bot",
	KindError:   "error",
	KindAdd:     "add",
	KindSub:     "sub",
	KindMul:     "mul",
	KindSDiv:    "sdiv",
	KindUDiv:    "udiv",
	KindSRem:    "srem",
	KindURem:    "urem",
	KindFDiv:    "fdiv",
	KindFRem:    "frem",
	KindAnd:     "and",
	KindOr:      "or",
	KindXor:     "xor",
	KindShl:     "shl",
	KindLShr:    "lshr",
	KindAShr:    "ashr",
	KindCmpEq:   "eq",
	KindCmpNe:   "ne",
	KindCmpULt:  "ult",
	KindCmpULe:  "ule",
	KindCmpSLt:  "slt",
	KindCmpSLe:  "sle",
	KindCmpFLt:  "flt",
	KindCmpFLe:  "fle",
	KindSelect:  "select",
	KindTuple:   "tuple",
	KindExtract: "extract",
	KindInsert:  "insert",
	KindLam:     "lam",
	KindVar:     "var",
	KindApp:     "app",
	KindAxiom:   "axiom",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsType reports whether nodes of this kind are types.
func (k Kind) IsType() bool {
	return k >= KindStar && k <= KindPi
}

// IsArith reports whether k is a binary arithmetic operator.
func (k Kind) IsArith() bool {
	return k >= KindAdd && k <= KindAShr
}

// IsCmp reports whether k is a comparison.
func (k Kind) IsCmp() bool {
	return k >= KindCmpEq && k <= KindCmpFLe
}

// IsCommutative reports whether operand order is irrelevant for k.
func (k Kind) IsCommutative() bool {
	switch k {
	case KindAdd, KindMul, KindAnd, KindOr, KindXor, KindCmpEq, KindCmpNe:
		return true
	default:
		return false
	}
}

// IsDivOrRem reports whether k traps on a zero or undefined divisor.
func (k Kind) IsDivOrRem() bool {
	switch k {
	case KindSDiv, KindUDiv, KindSRem, KindURem, KindFDiv, KindFRem:
		return true
	default:
		return false
	}
}

func (k Kind) isBitwise() bool {
	switch k {
	case KindAnd, KindOr, KindXor, KindShl, KindLShr, KindAShr:
		return true
	default:
		return false
	}
}

func (k Kind) isIntOnly() bool {
	switch k {
	case KindSDiv, KindUDiv, KindSRem, KindURem, KindCmpULt, KindCmpULe, KindCmpSLt, KindCmpSLe:
		return true
	default:
		return k.isBitwise()
	}
}

func (k Kind) isFloatOnly() bool {
	switch k {
	case KindFDiv, KindFRem, KindCmpFLt, KindCmpFLe:
		return true
	default:
		return false
	}
}

// Rel is a comparison relation as requested by a frontend. The greater-than
// forms do not exist as node kinds; Cmp swaps the operands instead.
type Rel uint8

const (
	RelEq Rel = iota
	RelNe
	RelULt
	RelULe
	RelUGt
	RelUGe
	RelSLt
	RelSLe
	RelSGt
	RelSGe
	RelFLt
	RelFLe
	RelFGt
	RelFGe
)

// normalize maps rel to a node kind and reports whether operands must be swapped.
func (r Rel) normalize() (Kind, bool) {
	switch r {
	case RelEq:
		return KindCmpEq, false
	case RelNe:
		return KindCmpNe, false
	case RelULt:
		return KindCmpULt, false
	case RelULe:
		return KindCmpULe, false
	case RelUGt:
		return KindCmpULt, true
	case RelUGe:
		return KindCmpULe, true
	case RelSLt:
		return KindCmpSLt, false
	case RelSLe:
		return KindCmpSLe, false
	case RelSGt:
		return KindCmpSLt, true
	case RelSGe:
		return KindCmpSLe, true
	case RelFLt:
		return KindCmpFLt, false
	case RelFLe:
		return KindCmpFLe, false
	case RelFGt:
		return KindCmpFLt, true
	case RelFGe:
		return KindCmpFLe, true
	default:
		panic(fmt.Sprintf("ir: invalid relation %d", r))
	}
}
