package ir

import (
	"errors"
	"fmt"
)

// Verify checks world invariants. Unset nominals are reported only when
// requireSet is true; during construction they are legitimate.
func Verify(w *World, requireSet bool) error {
	if w == nil {
		return nil
	}
	var errs []error
	if err := verifyOperands(w, requireSet); err != nil {
		errs = append(errs, err)
	}
	if err := verifyTable(w); err != nil {
		errs = append(errs, err)
	}
	if err := verifyRoots(w); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// verifyOperands checks that no live node refers to a destroyed one.
func verifyOperands(w *World, requireSet bool) error {
	var errs []error
	for _, d := range w.Defs() {
		if d.nominal && !d.set {
			if requireSet {
				errs = append(errs, fmt.Errorf("nominal %s is never set", d))
			}
			continue
		}
		if d.typ != nil && d.typ.dead {
			errs = append(errs, fmt.Errorf("%s has destroyed type %s", d, d.typ))
		}
		for i, op := range d.ops {
			if op == nil {
				errs = append(errs, fmt.Errorf("%s: operand %d is nil", d, i))
				continue
			}
			if op.dead {
				errs = append(errs, fmt.Errorf("%s: operand %d (%s) is destroyed", d, i, op))
			}
		}
		for _, f := range d.flows {
			if f.dead {
				errs = append(errs, fmt.Errorf("%s: flow %s is destroyed", d, f))
			}
		}
	}
	return errors.Join(errs...)
}

// verifyTable checks that every table entry is live and stored under its own key.
func verifyTable(w *World) error {
	var errs []error
	for key, d := range w.table {
		if d.dead {
			errs = append(errs, fmt.Errorf("table holds destroyed %s", d))
			continue
		}
		if makeKey(d.kind, d.typ, d.ops, d.flags) != key {
			errs = append(errs, fmt.Errorf("%s is stored under a stale key", d))
		}
		if w.defs[d.slot] != d {
			errs = append(errs, fmt.Errorf("%s is not in its arena slot %d", d, d.slot))
		}
	}
	return errors.Join(errs...)
}

// verifyRoots checks that root sets hold live nodes only.
func verifyRoots(w *World) error {
	var errs []error
	for d := range w.externals {
		if d.dead {
			errs = append(errs, fmt.Errorf("external %s is destroyed", d))
		}
	}
	for d := range w.reachable {
		if d.dead {
			errs = append(errs, fmt.Errorf("reachable root %s is destroyed", d))
		}
	}
	return errors.Join(errs...)
}
