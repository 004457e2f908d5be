package ir

import (
	"strings"
	"testing"
)

func TestVerifyCleanWorld(t *testing.T) {
	p := newProgram(t)
	if err := Verify(p.w, false); err != nil {
		t.Fatalf("fresh program: %v", err)
	}
}

func TestVerifyReportsUnsetNominals(t *testing.T) {
	p := newProgram(t)
	err := Verify(p.w, true)
	if err == nil || !strings.Contains(err.Error(), "never set") {
		t.Fatalf("expected unset nominal report, got %v", err)
	}
}

func TestVerifyReportsDanglingOperands(t *testing.T) {
	p := newProgram(t)
	p.w.Destroy(p.mainVar)
	err := Verify(p.w, false)
	if err == nil || !strings.Contains(err.Error(), "is destroyed") {
		t.Fatalf("expected dangling operand report, got %v", err)
	}
	p.w.Cleanup()
	if err := Verify(p.w, false); err == nil {
		t.Fatalf("cleanup cannot repair a body that refers to a destroyed variable")
	}
}
