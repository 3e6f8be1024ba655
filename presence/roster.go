package presence

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/mentormatch/core"
	"gopkg.in/yaml.v3"
)

// Roster is an allow-list of subjects, such as approved and active mentors.
// It is safe for concurrent use.
type Roster struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

var _ core.EligibilityFilter = (*Roster)(nil)

// NewRoster creates a roster holding subjectIDs.
func NewRoster(subjectIDs ...string) *Roster {
	r := &Roster{members: make(map[string]struct{}, len(subjectIDs))}
	for _, id := range subjectIDs {
		r.members[id] = struct{}{}
	}
	return r
}

// LoadRoster reads subject ids from a file. The file is either a YAML list
// or plain text with one id per line; blank lines and lines starting with
// '#' are ignored.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ids, err := parseRoster(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewRoster(ids...), nil
}

func parseRoster(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("-")) || bytes.HasPrefix(trimmed, []byte("[")) {
		var ids []string
		if err := yaml.Unmarshal(trimmed, &ids); err != nil {
			return nil, fmt.Errorf("failed to decode roster: %w", err)
		}
		return ids, nil
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

// Add admits subjectID.
func (r *Roster) Add(subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[subjectID] = struct{}{}
}

// Remove revokes subjectID.
func (r *Roster) Remove(subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, subjectID)
}

// Contains reports whether subjectID is on the roster.
func (r *Roster) Contains(subjectID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[subjectID]
	return ok
}

// Members returns the roster, sorted.
func (r *Roster) Members() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// IsEligible admits roster members only.
func (r *Roster) IsEligible(subjectID string) bool {
	return r.Contains(subjectID)
}
