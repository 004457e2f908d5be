// Package ir implements the weft term graph: a hash-consed universe of nodes
// owned by a World.
//
// # Nodes
//
// Every value, type and continuation is a *Def. Structural defs are unique
// per (kind, type, operands, flags) and immutable once built; asking for the
// same key twice yields the same pointer. Nominal defs (lambdas and
// recursive sigmas) are created empty by CreateMutable and filled exactly
// once by Set. They are the only way to close a cycle.
//
// # Folding
//
// Constructors normalize before interning. Literal operands are evaluated,
// commutative operands are ordered by GID, and undefined or error operands
// collapse to canonical results:
//
//	w.Add(w.LitInt(i32, 2), w.LitInt(i32, 3)) == w.LitInt(i32, 5)
//	w.Arith(ir.KindSDiv, x, w.Bottom(i32))    == w.Error(i32)
//	w.Arith(ir.KindAnd, x, w.Bottom(i32))     == w.Zero(i32)
//
// # Control flow
//
// Programs are in continuation-passing style. A lambda has a single operand,
// its body, which is an App of type Never. Var(lam, i) names the lambda's
// i-th parameter and keeps lam as its only operand.
//
// # Lifetime
//
// Destroy removes a node without checking for users. Cleanup restores the
// invariant that every live node only refers to live nodes by sweeping what
// the roots cannot reach.
package ir
