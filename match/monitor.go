package match

import "github.com/poiesic/mentormatch/core"

// MatchMonitor provides hooks to observe a FindMatches call.
// Implement this interface to trace which lists fed the final ranking.
type MatchMonitor interface {
	Start(searcherID string, criteria core.SearchCriteria)
	AfterSearcherAttributes(names []string)
	AfterCriteriaEmbedding(fields []string)
	ListCompleted(list core.RankedList, searched string)
	ListFailed(attribute string, err error)
	Degraded(err error)
	Finish(results []core.MatchResult)
}

// noopMonitor is a no-op implementation of MatchMonitor
type noopMonitor struct{}

var _ MatchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ core.SearchCriteria)     {}
func (n *noopMonitor) AfterSearcherAttributes(_ []string)        {}
func (n *noopMonitor) AfterCriteriaEmbedding(_ []string)         {}
func (n *noopMonitor) ListCompleted(_ core.RankedList, _ string) {}
func (n *noopMonitor) ListFailed(_ string, _ error)              {}
func (n *noopMonitor) Degraded(_ error)                          {}
func (n *noopMonitor) Finish(_ []core.MatchResult)               {}
