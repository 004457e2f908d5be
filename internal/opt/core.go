package opt

import (
	"fmt"

	"weft/internal/ir"
)

// CoreNamespace is the annex namespace of the built-in axioms.
const CoreNamespace = "core"

// Core holds the flags of the core axioms after registration.
type Core struct {
	Abs  uint64 // abs(x), signed
	SMin uint64 // smin(a, b)
	SMax uint64 // smax(a, b)
}

// RegisterCore binds the core axioms and their normalizers in reg.
func RegisterCore(reg *ir.Registry) (Core, error) {
	var c Core
	for _, ax := range []struct {
		name string
		dst  *uint64
		fn   ir.Normalizer
	}{
		{"abs", &c.Abs, normAbs},
		{"smin", &c.SMin, normMinMax(false)},
		{"smax", &c.SMax, normMinMax(true)},
	} {
		tag, err := reg.Tag(CoreNamespace, ax.name)
		if err != nil {
			return Core{}, err
		}
		flags, err := reg.Register(CoreNamespace, tag, 0, ax.name, ax.fn)
		if err != nil {
			return Core{}, err
		}
		*ax.dst = flags
	}
	return c, nil
}

func intArgs(name string, typ *ir.Def, args []*ir.Def, n int) {
	if len(args) != n {
		panic(fmt.Sprintf("opt: %s takes %d operands, got %d", name, n, len(args)))
	}
	for _, a := range args {
		if a.Type() != typ {
			panic(fmt.Sprintf("opt: %s operand %s is not of type %s", name, a, typ))
		}
	}
	if p, ok := typ.Prim(); !ok || p.IsFloat() || p == ir.PrimBool {
		panic(fmt.Sprintf("opt: %s is undefined on %s", name, typ))
	}
}

func normAbs(w *ir.World, typ *ir.Def, args []*ir.Def, _ uint64) *ir.Def {
	intArgs("abs", typ, args, 1)
	x := args[0]
	switch {
	case x.IsError() || x.IsBottom():
		return x
	case x.IsLit():
		if v := x.Int(); v < 0 {
			return w.LitInt(typ, -v)
		}
		return x
	}
	return nil
}

func normMinMax(isMax bool) ir.Normalizer {
	name := "smin"
	if isMax {
		name = "smax"
	}
	return func(w *ir.World, typ *ir.Def, args []*ir.Def, _ uint64) *ir.Def {
		intArgs(name, typ, args, 2)
		a, b := args[0], args[1]
		switch {
		case a.IsError():
			return a
		case b.IsError():
			return b
		case a == b:
			return a
		case a.IsLit() && b.IsLit():
			if (a.Int() > b.Int()) == isMax {
				return a
			}
			return b
		}
		return nil
	}
}
