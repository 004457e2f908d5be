package ir

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Normalizer folds an axiom application. Returning nil keeps the node as is.
type Normalizer func(w *World, typ *Def, args []*Def, flags uint64) *Def

// Annex identifies a registered operator: namespace, tag and sub-tag packed
// into a node's flags.
type Annex struct {
	Namespace string
	Tag       uint8
	Sub       uint8
}

const (
	maxNamespaceLen = 8
	annexNSShift    = 16
)

var (
	errEmptyNamespace = errors.New("empty namespace")
	errLongNamespace  = errors.New("namespace longer than 8 characters")
)

// Mangle packs a namespace name into the top 48 bits of a flags word.
func Mangle(ns string) (uint64, error) {
	ns = norm.NFC.String(ns)
	if ns == "" {
		return 0, errEmptyNamespace
	}
	if len(ns) > maxNamespaceLen {
		return 0, fmt.Errorf("%q: %w", ns, errLongNamespace)
	}
	var bits uint64
	for i := 0; i < maxNamespaceLen; i++ {
		bits <<= 6
		if i >= len(ns) {
			continue
		}
		c, ok := encodeNSChar(ns[i])
		if !ok {
			return 0, fmt.Errorf("%q: invalid character %q", ns, ns[i])
		}
		bits |= c
	}
	return bits << annexNSShift, nil
}

// Demangle recovers the namespace name from a flags word.
func Demangle(flags uint64) string {
	bits := flags >> annexNSShift
	var sb strings.Builder
	for i := maxNamespaceLen - 1; i >= 0; i-- {
		c := (bits >> (6 * uint(i))) & 0x3f
		if c == 0 {
			break
		}
		sb.WriteByte(decodeNSChar(c))
	}
	return sb.String()
}

func encodeNSChar(c byte) (uint64, bool) {
	switch {
	case c == '_':
		return 1, true
	case c >= 'a' && c <= 'z':
		return 2 + uint64(c-'a'), true
	case c >= 'A' && c <= 'Z':
		return 28 + uint64(c-'A'), true
	case c >= '0' && c <= '9':
		return 54 + uint64(c-'0'), true
	default:
		return 0, false
	}
}

func decodeNSChar(c uint64) byte {
	switch {
	case c == 1:
		return '_'
	case c < 28:
		return byte('a' + c - 2)
	case c < 54:
		return byte('A' + c - 28)
	default:
		return byte('0' + c - 54)
	}
}

// Flags packs an annex into a node's flags word.
func (a Annex) Flags() (uint64, error) {
	ns, err := Mangle(a.Namespace)
	if err != nil {
		return 0, err
	}
	return ns | uint64(a.Tag)<<8 | uint64(a.Sub), nil
}

// Unpack splits a flags word into its annex parts.
func Unpack(flags uint64) Annex {
	return Annex{
		Namespace: Demangle(flags),
		Tag:       uint8(flags >> 8), //nolint:gosec // masked by truncation
		Sub:       uint8(flags),      //nolint:gosec // masked by truncation
	}
}

func (a Annex) String() string {
	return fmt.Sprintf("%%%s.%d.%d", a.Namespace, a.Tag, a.Sub)
}

type registration struct {
	name string
	norm Normalizer
}

// Registry maps annex flags to normalizers. It may be shared by several
// worlds; registration after worlds start using it is safe but must not race
// with the same flags being registered twice.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint64]registration
	tags    map[string]map[string]uint8
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[uint64]registration),
		tags:    make(map[string]map[string]uint8),
	}
}

// Register binds fn to (ns, tag, sub) and returns the packed flags. fn may be
// nil for axioms that never fold.
func (r *Registry) Register(ns string, tag, sub uint8, name string, fn Normalizer) (uint64, error) {
	flags, err := Annex{Namespace: ns, Tag: tag, Sub: sub}.Flags()
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[flags]; ok {
		return 0, fmt.Errorf("register %s: %s already bound to %q", name, Unpack(flags), prev.name)
	}
	r.entries[flags] = registration{name: norm.NFC.String(name), norm: fn}
	return flags, nil
}

// Tag returns the tag assigned to name within ns, allocating the next free
// one when name is new.
func (r *Registry) Tag(ns, name string) (uint8, error) {
	ns = norm.NFC.String(ns)
	name = norm.NFC.String(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	names := r.tags[ns]
	if names == nil {
		names = make(map[string]uint8)
		r.tags[ns] = names
	}
	if tag, ok := names[name]; ok {
		return tag, nil
	}
	if len(names) > 0xff {
		return 0, fmt.Errorf("namespace %s: out of tags", ns)
	}
	tag := uint8(len(names)) //nolint:gosec // bounded above
	names[name] = tag
	return tag, nil
}

// Normalizer returns the normalizer bound to flags.
func (r *Registry) Normalizer(flags uint64) (Normalizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[flags]
	if !ok || e.norm == nil {
		return nil, false
	}
	return e.norm, true
}

// Name returns the registered name of flags, if any.
func (r *Registry) Name(flags uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[flags]
	return e.name, ok
}

// Entries lists registered annexes in flag order.
func (r *Registry) Entries() []Annex {
	r.mu.RLock()
	keys := make([]uint64, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Annex, len(keys))
	for i, k := range keys {
		out[i] = Unpack(k)
	}
	return out
}
