package bulkimport

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single updating progress line for an import job.
type ProgressTracker struct {
	writer         io.Writer
	reportInterval int
	jobID          string
	total          int
	current        int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

var _ StatusTracker = (*ProgressTracker)(nil)

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// reportInterval: report progress every N profiles
func NewProgressTracker(writer io.Writer, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		reportInterval: reportInterval,
	}
}

// Start begins tracking the job.
func (p *ProgressTracker) Start(jobID string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobID = jobID
	p.total = total
	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Advance records n more processed profiles.
func (p *ProgressTracker) Advance(jobID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || jobID != p.jobID {
		return
	}

	p.current = min(p.current+n, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints the final progress line. On failure the line shows how far
// the job got; on success it shows the total.
func (p *ProgressTracker) Finish(jobID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || jobID != p.jobID {
		return
	}

	if err == nil {
		p.current = p.total
	}
	p.report()
	if err != nil {
		fmt.Fprintf(p.writer, " - failed: %v", err)
	}
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	rate := float64(p.current) / time.Since(p.startTime).Seconds()

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rImported: %d/%d (%.1f%%) - %.1f profiles/s",
		p.current, p.total, percentage, rate)
}
