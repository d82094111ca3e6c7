// Package labels holds the workflow label catalog and the pure
// operations every other component must go through instead of comparing
// label strings inline. Keeping these in one place is what keeps the
// capture, draft and webhook code paths from drifting apart.
package labels

// Default workflow labels in priority order. Index 0 is the highest
// priority: when a thread ends up carrying more than one workflow label
// the earliest entry in this list wins.
var DefaultPriority = []string{
	"intake",
	"needs-response",
	"needs-review",
	"drafted",
}

// Set is a closed, ordered catalog of workflow labels. Labels are data,
// not code: nothing in here special-cases a particular label name.
type Set struct {
	order []string
	rank  map[string]int
}

// NewSet builds a catalog from a priority-ordered label list. An empty
// list falls back to DefaultPriority.
func NewSet(priority []string) *Set {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	order := make([]string, len(priority))
	copy(order, priority)
	rank := make(map[string]int, len(order))
	for i, l := range order {
		if _, seen := rank[l]; !seen {
			rank[l] = i
		}
	}
	return &Set{order: order, rank: rank}
}

// Priority returns the catalog in priority order.
func (s *Set) Priority() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// IsWorkflowLabel reports whether label belongs to the closed set.
// Unrecognized strings are simply not workflow labels.
func (s *Set) IsWorkflowLabel(label string) bool {
	_, ok := s.rank[label]
	return ok
}

// WorkflowLabels filters folders down to workflow labels, preserving
// input order. Empty input yields empty output.
func (s *Set) WorkflowLabels(folders []string) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		if s.IsWorkflowLabel(f) {
			out = append(out, f)
		}
	}
	return out
}

// RemoveWorkflowLabels strips every workflow label from folders except
// keep, when keep is non-empty and currently present. A keep value that
// is absent is never added; non-workflow entries pass through
// untouched. Idempotent: applying it twice equals applying it once.
func (s *Set) RemoveWorkflowLabels(folders []string, keep string) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		if !s.IsWorkflowLabel(f) || f == keep {
			out = append(out, f)
		}
	}
	return out
}

// HighestPriority resolves a label list carrying zero or more workflow
// labels to the single authoritative one: the present label with the
// lowest rank in the canonical priority order. Non-workflow entries are
// ignored. Returns "" when no workflow label is present.
//
// This is the dedup rule that makes concurrent label writers safe to
// observe: a reader never needs to know which writer won, only the
// priority order.
func (s *Set) HighestPriority(folders []string) string {
	best := ""
	bestRank := len(s.order)
	for _, f := range folders {
		if r, ok := s.rank[f]; ok && r < bestRank {
			best = f
			bestRank = r
		}
	}
	return best
}
