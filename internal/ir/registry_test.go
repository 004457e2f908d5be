package ir

import "testing"

func TestMangleRoundTrip(t *testing.T) {
	for _, ns := range []string{"core", "mem", "a", "_a9Z", "longname"} {
		bits, err := Mangle(ns)
		if err != nil {
			t.Fatalf("mangle %q: %v", ns, err)
		}
		if bits&0xffff != 0 {
			t.Fatalf("mangle %q leaked into the tag bits: %#x", ns, bits)
		}
		if got := Demangle(bits); got != ns {
			t.Fatalf("demangle(mangle(%q)) = %q", ns, got)
		}
	}
}

func TestMangleRejects(t *testing.T) {
	for _, ns := range []string{"", "ninechars", "a-b", "é"} {
		if _, err := Mangle(ns); err == nil {
			t.Fatalf("mangle %q: expected error", ns)
		}
	}
}

func TestAnnexFlags(t *testing.T) {
	a := Annex{Namespace: "core", Tag: 3, Sub: 7}
	flags, err := a.Flags()
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if got := Unpack(flags); got != a {
		t.Fatalf("unpack: got %+v, want %+v", got, a)
	}
	if a.String() != "%core.3.7" {
		t.Fatalf("unexpected string %q", a.String())
	}
}

func TestRegistryTags(t *testing.T) {
	r := NewRegistry()
	add, err := r.Tag("core", "add")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	sub, _ := r.Tag("core", "sub")
	again, _ := r.Tag("core", "add")
	if add != 0 || sub != 1 || again != add {
		t.Fatalf("unexpected tags add=%d sub=%d again=%d", add, sub, again)
	}
	composed, _ := r.Tag("core", "caf\u00e9")
	decomposed, _ := r.Tag("core", "cafe\u0301")
	if composed != decomposed {
		t.Fatalf("names must be compared after NFC normalisation")
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("core", 1, 0, "neg", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register("core", 1, 0, "other", nil); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
}

func TestAxiomNormalizer(t *testing.T) {
	r := NewRegistry()
	neg := func(w *World, typ *Def, args []*Def, _ uint64) *Def {
		if len(args) == 1 && args[0].IsLit() {
			return w.LitInt(typ, -args[0].Int())
		}
		return nil
	}
	flags, err := r.Register("core", 1, 0, "neg", neg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if name, ok := r.Name(flags); !ok || name != "neg" {
		t.Fatalf("name lookup: %q %v", name, ok)
	}

	w := New(r)
	i32 := w.Builtins().I32
	if got := w.Axiom(flags, i32, w.LitInt(i32, 5)); got != w.LitInt(i32, -5) {
		t.Fatalf("normalizer not applied: %s", got)
	}
	_, v := params(w, 1)
	a := w.Axiom(flags, i32, v[0])
	if a.Kind() != KindAxiom || a != w.Axiom(flags, i32, v[0]) {
		t.Fatalf("unfolded axiom must be hash-consed, got %s", a)
	}
	if got := Unpack(a.Flags()); got.Namespace != "core" || got.Tag != 1 {
		t.Fatalf("axiom flags decode to %+v", got)
	}
	if entries := r.Entries(); len(entries) != 1 {
		t.Fatalf("expected one entry, got %v", entries)
	}
}
