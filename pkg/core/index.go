package core

import (
	"geokd/pkg/common"
	"geokd/pkg/core/kdtree"
)

// Index 抽象接口，屏蔽 KD-Tree 与线性扫描的差异
type Index interface {
	Nearest(target common.Record) (common.Record, float64, bool)
	Range(rect common.Rect) []common.Record
	Len() int
	Type() string // "KD-Tree", "Linear"
}

var (
	_ Index = (*kdtree.Tree)(nil)
	_ Index = LinearIndex(nil)
)

// LinearIndex 暴力扫描，用作基准对照与正确性参照
type LinearIndex []common.Record

func (li LinearIndex) Nearest(target common.Record) (common.Record, float64, bool) {
	var (
		best     common.Record
		bestDist float64
		found    bool
	)
	for _, rec := range li {
		d := common.Distance(rec, target)
		if !found || d < bestDist {
			best, bestDist, found = rec, d, true
		}
	}
	return best, bestDist, found
}

func (li LinearIndex) Range(rect common.Rect) []common.Record {
	out := make([]common.Record, 0)
	for _, rec := range li {
		if rect.Contains(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (li LinearIndex) Len() int { return len(li) }

func (li LinearIndex) Type() string { return "Linear" }
