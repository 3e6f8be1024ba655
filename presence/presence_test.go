package presence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/poiesic/mentormatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	tracker := NewTracker()
	assert.False(t, tracker.IsOnline("m1"))
	assert.Empty(t, tracker.Online())

	tracker.SetOnline("m2")
	tracker.SetOnline("m1")
	assert.True(t, tracker.IsOnline("m1"))
	assert.True(t, tracker.IsEligible("m2"))
	assert.Equal(t, []string{"m1", "m2"}, tracker.Online())

	since, ok := tracker.Since("m1")
	assert.True(t, ok)
	assert.False(t, since.IsZero())

	tracker.SetOffline("m1")
	tracker.SetOffline("unknown")
	assert.False(t, tracker.IsOnline("m1"))
	assert.False(t, tracker.IsEligible("m1"))
	assert.Equal(t, []string{"m2"}, tracker.Online())
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("m%d", i)
			tracker.SetOnline(id)
			tracker.IsOnline(id)
			tracker.Online()
			if i%2 == 0 {
				tracker.SetOffline(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, tracker.Online(), 10)
}

func TestRoster(t *testing.T) {
	roster := NewRoster("m1", "m2")
	assert.True(t, roster.IsEligible("m1"))
	assert.False(t, roster.IsEligible("m3"))

	roster.Add("m3")
	roster.Remove("m1")
	assert.Equal(t, []string{"m2", "m3"}, roster.Members())
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"plain text", "# approved mentors\nm1\n\n  m2  \n", []string{"m1", "m2"}},
		{"yaml list", "- m3\n- m1\n", []string{"m1", "m3"}},
		{"flow list", `["a", "b"]`, []string{"a", "b"}},
		{"empty", "", []string{}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, fmt.Sprintf("roster%d", i))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			roster, err := LoadRoster(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, roster.Members())
		})
	}

	_, err := LoadRoster(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestComposedFilters(t *testing.T) {
	tracker := NewTracker()
	roster := NewRoster("m1", "m2")
	tracker.SetOnline("m2")
	tracker.SetOnline("m3")

	filter := core.AllOf(roster, tracker)
	assert.False(t, filter.IsEligible("m1"), "approved but offline")
	assert.True(t, filter.IsEligible("m2"))
	assert.False(t, filter.IsEligible("m3"), "online but not approved")
}
