// Package kdtree implements a 2-dimensional KD-tree over geographic records.
//
// Even depths split on latitude, odd depths on longitude. A Tree is not safe
// for concurrent mutation; callers serialize writes (see core.GeoStore).
package kdtree

import (
	"fmt"
	"math"

	"geokd/pkg/common"
)

// Node owns its children exclusively.
type Node struct {
	Value common.Record
	Left  *Node
	Right *Node
}

// Tree is a KD-tree root holder. The zero value is an empty tree.
type Tree struct {
	root *Node
	size int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// FromRoot wraps an existing node graph, e.g. one decoded from a document.
func FromRoot(root *Node) *Tree {
	return &Tree{root: root, size: countNodes(root)}
}

func countNodes(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + countNodes(n.Left) + countNodes(n.Right)
}

func (t *Tree) Root() *Node { return t.root }

func (t *Tree) Len() int { return t.size }

func (t *Tree) Empty() bool { return t.root == nil }

// Type identifies the index implementation.
func (t *Tree) Type() string { return "KD-Tree" }

// Height is the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	return height(t.root)
}

func height(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + max(height(n.Left), height(n.Right))
}

// Clear releases the whole node graph. Clearing an empty tree is a no-op.
func (t *Tree) Clear() {
	t.root = nil
	t.size = 0
}

// Dump returns all records in pre-order (node, left, right).
func (t *Tree) Dump() []common.Record {
	out := make([]common.Record, 0, t.size)
	return dump(t.root, out)
}

func dump(n *Node, out []common.Record) []common.Record {
	if n == nil {
		return out
	}
	out = append(out, n.Value)
	out = dump(n.Left, out)
	return dump(n.Right, out)
}

// Walk visits nodes in pre-order until fn returns false.
func (t *Tree) Walk(fn func(depth int, n *Node) bool) {
	walk(t.root, 0, fn)
}

func walk(n *Node, depth int, fn func(int, *Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(depth, n) {
		return false
	}
	if !walk(n.Left, depth+1, fn) {
		return false
	}
	return walk(n.Right, depth+1, fn)
}

// InvariantError reports a node that sits on the wrong side of an ancestor.
type InvariantError struct {
	Record   common.Record
	Ancestor common.Record
	Axis     common.Axis
	Depth    int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("kd invariant violated at depth %d: %v is on the wrong %s side of %v",
		e.Depth, e.Record, e.Axis, e.Ancestor)
}

// bounds carries, per axis, the tightest ancestor limits seen on the path.
type bounds struct {
	lo, hi     [2]float64
	loBy, hiBy [2]*Node
}

// Validate checks the alternating-axis partition property of every node
// against every ancestor: left descendants <= ancestor <= right descendants.
func (t *Tree) Validate() error {
	b := bounds{
		lo: [2]float64{math.Inf(-1), math.Inf(-1)},
		hi: [2]float64{math.Inf(1), math.Inf(1)},
	}
	return validate(t.root, 0, b)
}

func validate(n *Node, depth int, b bounds) error {
	if n == nil {
		return nil
	}
	for _, ax := range []common.Axis{common.AxisLat, common.AxisLon} {
		v := n.Value.Coord(ax)
		if v < b.lo[ax] {
			return &InvariantError{Record: n.Value, Ancestor: b.loBy[ax].Value, Axis: ax, Depth: depth}
		}
		if v > b.hi[ax] {
			return &InvariantError{Record: n.Value, Ancestor: b.hiBy[ax].Value, Axis: ax, Depth: depth}
		}
	}

	axis := common.AxisAt(depth)
	split := n.Value.Coord(axis)

	left := b
	if split < left.hi[axis] {
		left.hi[axis], left.hiBy[axis] = split, n
	}
	if err := validate(n.Left, depth+1, left); err != nil {
		return err
	}

	right := b
	if split > right.lo[axis] {
		right.lo[axis], right.loBy[axis] = split, n
	}
	return validate(n.Right, depth+1, right)
}
