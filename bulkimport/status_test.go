package bulkimport

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatus_Lifecycle(t *testing.T) {
	status := NewMemoryStatus()

	_, ok := status.Status("job")
	assert.False(t, ok)

	status.Start("job", 10)
	got, ok := status.Status("job")
	require.True(t, ok)
	assert.Equal(t, JobRunning, got.State)
	assert.Equal(t, 10, got.Total)
	assert.False(t, got.StartedAt.IsZero())

	status.Advance("job", 4)
	status.Advance("job", 20)
	got, _ = status.Status("job")
	assert.Equal(t, 10, got.Done)

	status.Finish("job", nil)
	got, _ = status.Status("job")
	assert.Equal(t, JobCompleted, got.State)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestMemoryStatus_Failed(t *testing.T) {
	status := NewMemoryStatus()
	status.Start("job", 3)
	status.Finish("job", errors.New("store closed"))

	got, ok := status.Status("job")
	require.True(t, ok)
	assert.Equal(t, JobFailed, got.State)
	assert.Equal(t, "store closed", got.Err)
}

func TestMemoryStatus_UnknownJobIgnored(t *testing.T) {
	status := NewMemoryStatus()
	status.Advance("missing", 1)
	status.Finish("missing", nil)
	_, ok := status.Status("missing")
	assert.False(t, ok)
}

func TestMemoryStatus_Concurrent(t *testing.T) {
	status := NewMemoryStatus()
	status.Start("job", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				status.Advance("job", 1)
				status.Status("job")
			}
		}()
	}
	wg.Wait()

	got, _ := status.Status("job")
	assert.Equal(t, 1000, got.Done)
}
