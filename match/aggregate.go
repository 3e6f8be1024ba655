package match

import (
	"slices"
	"strings"

	"github.com/poiesic/mentormatch/core"
)

// Aggregator accumulates ranked lists into Borda-style scores.
// The i-th neighbor of a list (1-indexed) adds i points to its subject; a
// subject absent from a list gets nothing from it. Lower totals are better.
// An Aggregator is not safe for concurrent use.
type Aggregator struct {
	scores       map[string]int
	contributing map[string][]string
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		scores:       make(map[string]int),
		contributing: make(map[string][]string),
	}
}

// Add scores one list. A subject listed more than once in the same list
// is scored at its first position only.
func (a *Aggregator) Add(list core.RankedList) {
	seen := make(map[string]struct{}, len(list.Neighbors))
	rank := 0
	for _, n := range list.Neighbors {
		if _, dup := seen[n.SubjectID]; dup {
			continue
		}
		seen[n.SubjectID] = struct{}{}
		rank++
		a.scores[n.SubjectID] += rank
		if !slices.Contains(a.contributing[n.SubjectID], list.Attribute) {
			a.contributing[n.SubjectID] = append(a.contributing[n.SubjectID], list.Attribute)
		}
	}
}

// Len returns the number of distinct subjects scored so far.
func (a *Aggregator) Len() int {
	return len(a.scores)
}

// Results returns the scored subjects by ascending score, ties broken by
// subject id. A limit <= 0 returns every subject.
func (a *Aggregator) Results(limit int) []core.MatchResult {
	results := make([]core.MatchResult, 0, len(a.scores))
	for subject, score := range a.scores {
		attrs := slices.Clone(a.contributing[subject])
		slices.Sort(attrs)
		results = append(results, core.MatchResult{
			SubjectID:              subject,
			Score:                  score,
			ContributingAttributes: attrs,
		})
	}

	slices.SortFunc(results, func(x, y core.MatchResult) int {
		if x.Score != y.Score {
			return x.Score - y.Score
		}
		return strings.Compare(x.SubjectID, y.SubjectID)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Aggregate merges lists into a single ranking truncated to limit.
func Aggregate(lists []core.RankedList, limit int) []core.MatchResult {
	agg := NewAggregator()
	for _, list := range lists {
		agg.Add(list)
	}
	return agg.Results(limit)
}
