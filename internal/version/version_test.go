package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColoredPlain(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	if got := Colored(); got != Version {
		t.Fatalf("Colored() = %q, want %q", got, Version)
	}
}

func TestStringIncludesMetadata(t *testing.T) {
	origNoColor, origCommit, origDate := color.NoColor, GitCommit, BuildDate
	defer func() {
		color.NoColor, GitCommit, BuildDate = origNoColor, origCommit, origDate
	}()
	color.NoColor = true
	GitCommit = "abc123"
	BuildDate = "2026-01-15T10:30:00Z"

	want := "weft " + Version + " (abc123) built 2026-01-15T10:30:00Z"
	if got := String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestColoredMalformedVersion(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "snapshot"
	if got := Colored(); got != "snapshot" {
		t.Fatalf("Colored() = %q", got)
	}
}
