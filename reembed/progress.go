package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/hybridrag/core"
)

// ProgressTracker writes a single self-overwriting progress line while
// chunks are re-embedded. It is safe for concurrent use.
type ProgressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	interval int

	done      int
	lastID    core.ID
	reported  int
	startTime time.Time
	started   bool
}

// NewProgressTracker reports to w every interval chunks out of total.
func NewProgressTracker(w io.Writer, total, interval int) *ProgressTracker {
	return &ProgressTracker{w: w, total: total, interval: max(interval, 1)}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startTime = time.Now()
	p.started = true
	p.done, p.reported, p.lastID = 0, 0, 0
}

// Update records that done chunks, ending at lastID, have new vectors.
func (p *ProgressTracker) Update(done int, lastID core.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.done = min(done, p.total)
	p.lastID = lastID
	if p.done-p.reported >= p.interval {
		p.report()
		p.reported = p.done
	}
}

// Finish prints the final line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.done = p.total
	p.report()
	fmt.Fprintln(p.w)
}

// Current returns the number of chunks recorded so far.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report must be called with mu held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		rate = float64(p.done) / elapsed
	}
	percent := 0.0
	if p.total > 0 {
		percent = float64(p.done) / float64(p.total) * 100
	}
	fmt.Fprintf(p.w, "\rProgress: %d/%d chunks (%.1f%%) - %.1f chunks/s - last chunk %d",
		p.done, p.total, percent, rate, p.lastID)
}
