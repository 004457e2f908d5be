// Package domtree computes dominator and post-dominator trees over the
// control flow graph of a scope.
//
// The construction is the iterative algorithm of Cooper, Harvey and Kennedy:
// nodes are numbered in post order, the root dominates itself, and every
// other node repeatedly intersects the dominators of its already processed
// predecessors until no immediate dominator changes.
package domtree

import (
	"fmt"

	"fortio.org/safecast"

	"weft/internal/ir"
	"weft/internal/scope"
)

const undefined = -1

// Tree is a dominator tree. Node indices are int32 post-order numbers, so
// the root has the highest index.
type Tree struct {
	post     bool
	nodes    []*ir.Def
	index    map[*ir.Def]int32
	idom     []int32
	children [][]*ir.Def
	depth    []int
}

// Build computes the dominator tree of s rooted at its entry. It panics if a
// nominal of the scope cannot be reached from the entry.
func Build(s *scope.Scope) *Tree {
	return build(s, s.Entry(), s.Succs, s.Preds, false)
}

// BuildPost computes the post-dominator tree rooted at exit by running the
// same algorithm on reversed edges. Every nominal must reach exit.
func BuildPost(s *scope.Scope, exit *ir.Def) *Tree {
	return build(s, exit, s.Preds, s.Succs, true)
}

func build(s *scope.Scope, root *ir.Def, succs, preds func(*ir.Def) []*ir.Def, post bool) *Tree {
	if !s.Contains(root) || !root.IsNominal() {
		panic(fmt.Sprintf("domtree: root %s is not a nominal of the scope", root))
	}
	t := &Tree{post: post, index: make(map[*ir.Def]int32)}
	t.number(root, succs)

	want := len(s.PostOrder())
	if len(t.nodes) != want {
		for _, n := range s.PostOrder() {
			if _, ok := t.index[n]; !ok {
				if post {
					panic(fmt.Sprintf("domtree: %s cannot reach exit %s", n, root))
				}
				panic(fmt.Sprintf("domtree: %s is unreachable from entry %s", n, root))
			}
		}
	}

	r := t.index[root]
	t.idom = make([]int32, len(t.nodes))
	for i := range t.idom {
		t.idom[i] = undefined
	}
	t.idom[r] = r

	for changed := true; changed; {
		changed = false
		// reverse post order, root excluded
		for i := r - 1; i >= 0; i-- {
			n := t.nodes[i]
			dom := int32(undefined)
			for _, p := range preds(n) {
				pi, ok := t.index[p]
				if !ok || t.idom[pi] == undefined {
					continue
				}
				if dom == undefined {
					dom = pi
				} else {
					dom = t.intersect(pi, dom)
				}
			}
			if dom != undefined && t.idom[i] != dom {
				t.idom[i] = dom
				changed = true
			}
		}
	}

	t.children = make([][]*ir.Def, len(t.nodes))
	t.depth = make([]int, len(t.nodes))
	// parents have higher post numbers than their children
	for i := r - 1; i >= 0; i-- {
		p := t.idom[i]
		t.children[p] = append(t.children[p], t.nodes[i])
		t.depth[i] = t.depth[p] + 1
	}
	return t
}

// number assigns post-order numbers by depth-first search from root.
func (t *Tree) number(root *ir.Def, succs func(*ir.Def) []*ir.Def) {
	visited := make(map[*ir.Def]bool)
	var visit func(n *ir.Def)
	visit = func(n *ir.Def) {
		visited[n] = true
		for _, m := range succs(n) {
			if !visited[m] {
				visit(m)
			}
		}
		i, err := safecast.Conv[int32](len(t.nodes))
		if err != nil {
			panic(fmt.Errorf("domtree: too many nodes: %w", err))
		}
		t.index[n] = i
		t.nodes = append(t.nodes, n)
	}
	visit(root)
}

// intersect walks both dominator chains upwards until they meet.
func (t *Tree) intersect(a, b int32) int32 {
	for a != b {
		for a < b {
			a = t.idom[a]
		}
		for b < a {
			b = t.idom[b]
		}
	}
	return a
}

func (t *Tree) mustIndex(n *ir.Def) int32 {
	i, ok := t.index[n]
	if !ok {
		panic(fmt.Sprintf("domtree: %s is not in the tree", n))
	}
	return i
}

// IsPost reports whether t is a post-dominator tree.
func (t *Tree) IsPost() bool { return t.post }

// Root returns the entry (or the exit for post-dominator trees).
func (t *Tree) Root() *ir.Def { return t.nodes[len(t.nodes)-1] }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Contains reports whether n is a node of the tree.
func (t *Tree) Contains(n *ir.Def) bool {
	_, ok := t.index[n]
	return ok
}

// Idom returns the immediate dominator of n. The root is its own idom.
func (t *Tree) Idom(n *ir.Def) *ir.Def {
	return t.nodes[t.idom[t.mustIndex(n)]]
}

// Children returns the nodes n immediately dominates.
func (t *Tree) Children(n *ir.Def) []*ir.Def {
	return t.children[t.mustIndex(n)]
}

// Depth returns the distance of n from the root.
func (t *Tree) Depth(n *ir.Def) int {
	return t.depth[t.mustIndex(n)]
}

// MaxDepth returns the depth of the deepest node.
func (t *Tree) MaxDepth() int {
	m := 0
	for _, d := range t.depth {
		m = max(m, d)
	}
	return m
}

// Dominates reports whether every path from the root to b passes through a.
// Every node dominates itself.
func (t *Tree) Dominates(a, b *ir.Def) bool {
	ai, bi := t.mustIndex(a), t.mustIndex(b)
	for t.depth[bi] > t.depth[ai] {
		bi = t.idom[bi]
	}
	return ai == bi
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *Tree) StrictlyDominates(a, b *ir.Def) bool {
	return a != b && t.Dominates(a, b)
}

// LCA returns the nearest common dominator of a and b.
func (t *Tree) LCA(a, b *ir.Def) *ir.Def {
	return t.nodes[t.intersect(t.mustIndex(a), t.mustIndex(b))]
}
