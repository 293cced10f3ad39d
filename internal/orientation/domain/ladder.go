package domain

import (
	"fmt"
	"sort"
)

// Ladder is a rule's ordered set of ranges, ascending by lower limit with a
// nil lower first. Match resolution is first-ascending-match, which keeps
// behavior deterministic even for legacy data that was saved before range
// validation existed.
type Ladder []*OrientationLadder

// NewLadder sorts the ranges into matching order.
func NewLadder(rungs []*OrientationLadder) Ladder {
	sorted := make(Ladder, len(rungs))
	copy(sorted, rungs)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].LowerLimit, sorted[j].LowerLimit
		if li == nil && lj == nil {
			return sorted[i].LadderOrder < sorted[j].LadderOrder
		}
		if li == nil {
			return true
		}
		if lj == nil {
			return false
		}
		if *li != *lj {
			return *li < *lj
		}
		return sorted[i].LadderOrder < sorted[j].LadderOrder
	})
	return sorted
}

// Match returns the first range containing ratio, scanning in ascending
// order. A range [lower, upper) contains ratio when lower <= ratio (nil
// lower is -inf) and ratio < upper (nil upper is +inf).
func (l Ladder) Match(ratio float64) (*OrientationLadder, bool) {
	for _, rung := range l {
		if rung == nil {
			continue
		}
		if rung.LowerLimit != nil && ratio < *rung.LowerLimit {
			continue
		}
		if rung.UpperLimit != nil && ratio >= *rung.UpperLimit {
			continue
		}
		return rung, true
	}
	return nil, false
}

// Validate rejects ladders whose ranges overlap, leave gaps, or are
// individually empty. Ranges must partition a contiguous span of the real
// line: sorted ascending, each upper equal to the next lower.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("ladder has no ranges")
	}

	for i, rung := range l {
		if rung.LowerLimit != nil && rung.UpperLimit != nil && *rung.LowerLimit >= *rung.UpperLimit {
			return fmt.Errorf("ladder range %d is empty: [%v, %v)", i, *rung.LowerLimit, *rung.UpperLimit)
		}
	}

	for i := 1; i < len(l); i++ {
		prev, curr := l[i-1], l[i]
		if prev.UpperLimit == nil {
			return fmt.Errorf("ladder range %d is unreachable: previous upper bound is open", i)
		}
		if curr.LowerLimit == nil {
			return fmt.Errorf("ladder range %d overlaps: lower bound is open", i)
		}
		if *curr.LowerLimit < *prev.UpperLimit {
			return fmt.Errorf("ladder ranges %d and %d overlap at %v", i-1, i, *curr.LowerLimit)
		}
		if *curr.LowerLimit > *prev.UpperLimit {
			return fmt.Errorf("ladder ranges %d and %d leave a gap between %v and %v", i-1, i, *prev.UpperLimit, *curr.LowerLimit)
		}
	}

	return nil
}
