package kdtree

import (
	"cmp"
	"slices"

	"geokd/pkg/common"
)

// Build constructs a balanced tree from records. The input slice is copied,
// so the caller's ordering is left untouched. Empty input yields an empty tree.
func Build(records []common.Record) *Tree {
	if len(records) == 0 {
		return New()
	}
	dataset := slices.Clone(records)
	return &Tree{
		root: build(dataset, 0, len(dataset)-1, 0),
		size: len(dataset),
	}
}

// build uses inclusive bounds [lo, hi] on both sides of the recursion.
func build(dataset []common.Record, lo, hi, depth int) *Node {
	if lo > hi {
		return nil
	}
	axis := common.AxisAt(depth)
	// 稳定排序：同轴坐标相等时保持原有顺序
	slices.SortStableFunc(dataset[lo:hi+1], func(a, b common.Record) int {
		return cmp.Compare(a.Coord(axis), b.Coord(axis))
	})
	mid := lo + (hi-lo)/2

	return &Node{
		Value: dataset[mid],
		Left:  build(dataset, lo, mid-1, depth+1),
		Right: build(dataset, mid+1, hi, depth+1),
	}
}

// InsertRaw places rec as a new leaf without rebalancing. Strictly smaller
// coordinates on the active axis go left, everything else goes right.
func (t *Tree) InsertRaw(rec common.Record) {
	link := &t.root
	for depth := 0; *link != nil; depth++ {
		n := *link
		axis := common.AxisAt(depth)
		if rec.Coord(axis) < n.Value.Coord(axis) {
			link = &n.Left
		} else {
			link = &n.Right
		}
	}
	*link = &Node{Value: rec}
	t.size++
}

// InsertBalanced appends rec to the current contents and rebuilds the tree.
func (t *Tree) InsertBalanced(rec common.Record) {
	t.Merge([]common.Record{rec})
}

// Merge appends records to the current contents and rebuilds once.
func (t *Tree) Merge(records []common.Record) {
	dataset := t.Dump()
	dataset = append(dataset, records...)
	rebuilt := Build(dataset)
	t.root, t.size = rebuilt.root, rebuilt.size
}
