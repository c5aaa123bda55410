package kdtree

import (
	"math"

	"geokd/pkg/common"
)

// crossFunc decides whether the far subtree of a split can still hold a
// closer record, given the signed gap between split and target on axis.
type crossFunc func(axis common.Axis, gap, best float64) bool

// planarCross compares the squared degree gap with the best distance in km.
// Not an admissible bound for haversine near the poles or the antimeridian,
// so Nearest is approximate there.
func planarCross(_ common.Axis, gap, best float64) bool {
	return gap*gap < best
}

// geodesicCross prunes only latitude splits, where R*|dLat| is a true
// lower bound on the great-circle distance to anything across the split.
func geodesicCross(axis common.Axis, gap, best float64) bool {
	if axis == common.AxisLon {
		return true
	}
	return common.LatGapKm(gap) < best
}

type nnSearch struct {
	target   common.Record
	best     common.Record
	bestDist float64
	found    bool
	cross    crossFunc
}

func (s *nnSearch) visit(n *Node, depth int) {
	if n == nil {
		return
	}

	// a NaN coordinate is never a candidate and never prunes
	d := common.Distance(n.Value, s.target)
	if !math.IsNaN(d) && (!s.found || d < s.bestDist) {
		s.best, s.bestDist, s.found = n.Value, d, true
	}
	if s.bestDist == 0 {
		return
	}

	axis := common.AxisAt(depth)
	gap := n.Value.Coord(axis) - s.target.Coord(axis)
	near, far := n.Right, n.Left
	if gap > 0 {
		near, far = n.Left, n.Right
	}

	s.visit(near, depth+1)
	if s.bestDist == 0 || (s.found && !math.IsNaN(gap) && !s.cross(axis, gap, s.bestDist)) {
		return
	}
	s.visit(far, depth+1)
}

// Nearest returns the closest record to target by haversine distance (km).
// Pruning uses the squared axis gap in degrees, which matches the reference
// behaviour but may miss the true nearest near the poles or the antimeridian.
// ok is false on an empty tree or when no record has finite coordinates.
func (t *Tree) Nearest(target common.Record) (rec common.Record, dist float64, ok bool) {
	return t.nearest(target, planarCross)
}

// NearestExact is Nearest with a sound geodesic pruning bound.
func (t *Tree) NearestExact(target common.Record) (rec common.Record, dist float64, ok bool) {
	return t.nearest(target, geodesicCross)
}

func (t *Tree) nearest(target common.Record, cross crossFunc) (common.Record, float64, bool) {
	s := &nnSearch{target: target, cross: cross}
	s.visit(t.root, 0)
	return s.best, s.bestDist, s.found
}

// Range returns every record inside the closed rectangle, in pre-order.
func (t *Tree) Range(rect common.Rect) []common.Record {
	out := make([]common.Record, 0)
	return rangeSearch(t.root, rect, 0, out)
}

func rangeSearch(n *Node, rect common.Rect, depth int, out []common.Record) []common.Record {
	if n == nil {
		return out
	}
	if rect.Contains(n.Value) {
		out = append(out, n.Value)
	}
	axis := common.AxisAt(depth)
	v := n.Value.Coord(axis)
	// 非严格比较：相等坐标可能分布在分割点两侧
	if v >= rect.Min(axis) {
		out = rangeSearch(n.Left, rect, depth+1, out)
	}
	if v <= rect.Max(axis) {
		out = rangeSearch(n.Right, rect, depth+1, out)
	}
	return out
}
