package core

// EligibilityFilter decides whether a subject may appear in search results.
// Implementations must be safe for concurrent use.
type EligibilityFilter interface {
	IsEligible(subjectID string) bool
}

// EligibilityFunc adapts a plain function to EligibilityFilter.
type EligibilityFunc func(subjectID string) bool

// IsEligible calls f(subjectID).
func (f EligibilityFunc) IsEligible(subjectID string) bool {
	return f(subjectID)
}

// AllowAll is the filter used when the caller supplies none.
var AllowAll EligibilityFilter = EligibilityFunc(func(string) bool { return true })

// AllOf returns a filter that admits a subject only when every non-nil
// filter admits it.
func AllOf(filters ...EligibilityFilter) EligibilityFilter {
	active := make([]EligibilityFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	return EligibilityFunc(func(subjectID string) bool {
		for _, f := range active {
			if !f.IsEligible(subjectID) {
				return false
			}
		}
		return true
	})
}

// Excluding wraps filter so the given subjects are never eligible.
// A nil filter admits everyone else.
func Excluding(filter EligibilityFilter, subjectIDs ...string) EligibilityFilter {
	excluded := make(map[string]struct{}, len(subjectIDs))
	for _, id := range subjectIDs {
		excluded[id] = struct{}{}
	}
	return EligibilityFunc(func(subjectID string) bool {
		if _, ok := excluded[subjectID]; ok {
			return false
		}
		return filter == nil || filter.IsEligible(subjectID)
	})
}
