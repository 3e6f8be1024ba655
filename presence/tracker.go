package presence

import (
	"slices"
	"sync"
	"time"

	"github.com/poiesic/mentormatch/core"
)

// Tracker records which subjects are currently online.
// It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]time.Time
}

var _ core.EligibilityFilter = (*Tracker)(nil)

// NewTracker creates a tracker with nobody online.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]time.Time)}
}

// SetOnline marks subjectID online. Marking an online subject again
// refreshes its timestamp.
func (t *Tracker) SetOnline(subjectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online[subjectID] = time.Now()
}

// SetOffline marks subjectID offline.
func (t *Tracker) SetOffline(subjectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.online, subjectID)
}

// IsOnline reports whether subjectID is online.
func (t *Tracker) IsOnline(subjectID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[subjectID]
	return ok
}

// Since returns when subjectID last came online.
func (t *Tracker) Since(subjectID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.online[subjectID]
	return at, ok
}

// Online returns the online subjects, sorted.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// IsEligible admits online subjects only.
func (t *Tracker) IsEligible(subjectID string) bool {
	return t.IsOnline(subjectID)
}
