package ir

import (
	"fmt"
	"math"
	"sync/atomic"

	"fortio.org/safecast"
)

// GID is the creation-ordered identifier of a Def. GIDs are never reused,
// not even after the node is destroyed.
type GID uint32

var gidCounter atomic.Uint64

func nextGID() GID {
	gid, err := safecast.Conv[uint32](gidCounter.Add(1))
	if err != nil {
		panic(fmt.Errorf("ir: gid overflow: %w", err))
	}
	return GID(gid)
}

// Def is a term node. Structural defs are immutable and unique per
// (kind, type, operands, flags); nominal defs are created empty and filled
// exactly once by World.Set.
type Def struct {
	world   *World
	gid     GID
	slot    uint32
	kind    Kind
	typ     *Def
	ops     []*Def
	flags   uint64
	name    string
	nominal bool
	set     bool
	dead    bool
	mark    uint32
	flows   []*Def
}

// GID returns the creation-ordered identifier.
func (d *Def) GID() GID { return d.gid }

// Kind returns the node discriminant.
func (d *Def) Kind() Kind { return d.kind }

// Type returns the type of d; nil for Star only.
func (d *Def) Type() *Def { return d.typ }

// Flags returns the kind-specific payload (literal bits, indices, annex flags).
func (d *Def) Flags() uint64 { return d.flags }

// Name returns the debug annotation.
func (d *Def) Name() string { return d.name }

// SetName attaches a debug annotation. Names never take part in hashing.
func (d *Def) SetName(name string) *Def {
	d.name = name
	return d
}

// World returns the owning world.
func (d *Def) World() *World { return d.world }

// IsNominal reports whether d has identity semantics.
func (d *Def) IsNominal() bool { return d.nominal }

// IsSet reports whether d's operands are filled in. Structural defs are
// always set.
func (d *Def) IsSet() bool { return d.set }

// IsDead reports whether d was destroyed.
func (d *Def) IsDead() bool { return d.dead }

// NumOps returns the operand count; valid for unset nominals too.
func (d *Def) NumOps() int { return len(d.ops) }

// Op returns operand i.
func (d *Def) Op(i int) *Def {
	d.assertReadable()
	return d.ops[i]
}

// Ops returns the operands. The slice must not be modified.
func (d *Def) Ops() []*Def {
	d.assertReadable()
	return d.ops
}

func (d *Def) assertReadable() {
	if d.dead {
		panic(fmt.Sprintf("ir: use of destroyed node %s", d))
	}
	if !d.set {
		panic(fmt.Sprintf("ir: operands of unset nominal %s read", d))
	}
}

// IsLit reports whether d is a literal.
func (d *Def) IsLit() bool { return d.kind == KindLit }

// IsBottom reports whether d is the undefined value.
func (d *Def) IsBottom() bool { return d.kind == KindBottom }

// IsError reports whether d is an error value.
func (d *Def) IsError() bool { return d.kind == KindError }

// Prim returns the primitive kind of a prim type, or of a value whose type is
// a prim type.
func (d *Def) Prim() (PrimKind, bool) {
	t := d
	if t.kind != KindPrim {
		t = d.typ
	}
	if t == nil || t.kind != KindPrim {
		return 0, false
	}
	return PrimKind(t.flags), true
}

// Bits returns the raw literal bits.
func (d *Def) Bits() uint64 {
	if d.kind != KindLit {
		panic(fmt.Sprintf("ir: %s is not a literal", d))
	}
	return d.flags
}

// Int returns a literal's value sign-extended to int64.
func (d *Def) Int() int64 {
	p, _ := d.Prim()
	return p.signExtend(d.Bits())
}

// Float returns a floating-point literal's value.
func (d *Def) Float() float64 {
	p, _ := d.Prim()
	switch p {
	case PrimF32:
		return float64(math.Float32frombits(uint32(d.Bits()))) //nolint:gosec // low 32 bits hold the value
	case PrimF64:
		return math.Float64frombits(d.Bits())
	default:
		panic(fmt.Sprintf("ir: %s is not a float literal", d))
	}
}

// Index returns the position payload of extract, insert and var nodes.
func (d *Def) Index() int {
	switch d.kind {
	case KindExtract, KindInsert, KindVar:
		idx, err := safecast.Conv[int](d.flags)
		if err != nil {
			panic(fmt.Errorf("ir: index overflow: %w", err))
		}
		return idx
	default:
		panic(fmt.Sprintf("ir: %s has no index", d))
	}
}

// Binder returns the nominal a variable belongs to.
func (d *Def) Binder() *Def {
	if d.kind != KindVar {
		panic(fmt.Sprintf("ir: %s is not a variable", d))
	}
	return d.ops[0]
}

// Body returns the body of a set lambda.
func (d *Def) Body() *Def {
	if d.kind != KindLam {
		panic(fmt.Sprintf("ir: %s is not a lambda", d))
	}
	return d.Op(0)
}

// Callee returns the jump target of an app.
func (d *Def) Callee() *Def {
	if d.kind != KindApp {
		panic(fmt.Sprintf("ir: %s is not an app", d))
	}
	return d.ops[0]
}

// Args returns the arguments of an app.
func (d *Def) Args() []*Def {
	if d.kind != KindApp {
		panic(fmt.Sprintf("ir: %s is not an app", d))
	}
	return d.ops[1:]
}

// AddFlow records that value flows into the variable d, as a promotion pass
// does for phi arguments. Cleanup keeps recorded values alive while d is.
func (d *Def) AddFlow(value *Def) {
	if d.kind != KindVar {
		panic(fmt.Sprintf("ir: flow into non-variable %s", d))
	}
	d.world.check(value)
	d.flows = append(d.flows, value)
}

// Flows returns the values recorded by AddFlow.
func (d *Def) Flows() []*Def { return d.flows }

func (d *Def) String() string {
	if d == nil {
		return "<nil>"
	}
	if d.name != "" {
		return fmt.Sprintf("%s_%d", d.name, d.gid)
	}
	if d.kind == KindLit {
		if p, ok := d.Prim(); ok && p.IsFloat() {
			return fmt.Sprintf("%g:%s_%d", d.Float(), p, d.gid)
		}
		return fmt.Sprintf("%d:%s_%d", d.Int(), d.typ.name, d.gid)
	}
	return fmt.Sprintf("%s_%d", d.kind, d.gid)
}
