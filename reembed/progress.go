package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports backfill progress to a writer at a fixed record
// interval.
type ProgressTracker struct {
	mu       sync.Mutex
	out      io.Writer
	total    int
	interval int
	done     int
	nextAt   int
	began    time.Time
}

// NewProgressTracker creates a tracker over total records, reporting every
// interval records. Output typically goes to os.Stderr.
func NewProgressTracker(out io.Writer, total, interval int) *ProgressTracker {
	return &ProgressTracker{out: out, total: total, interval: interval}
}

// Start resets the tracker and begins timing.
func (t *ProgressTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.began = time.Now()
	t.done = 0
	t.nextAt = t.interval
}

// Update records that done records have been processed so far.
func (t *ProgressTracker) Update(done int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.began.IsZero() {
		return
	}
	if done > t.total {
		done = t.total
	}
	t.done = done
	if t.done >= t.nextAt {
		t.emit()
		t.nextAt = t.done + t.interval
	}
}

// Finish reports final progress and terminates the progress line.
func (t *ProgressTracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.began.IsZero() {
		return
	}
	t.done = t.total
	t.emit()
	fmt.Fprintln(t.out)
}

// Elapsed returns the time since Start.
func (t *ProgressTracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.began.IsZero() {
		return 0
	}
	return time.Since(t.began)
}

// emit writes one progress line. Caller holds the lock.
func (t *ProgressTracker) emit() {
	rate := 0.0
	if elapsed := time.Since(t.began).Seconds(); elapsed > 0 {
		rate = float64(t.done) / elapsed
	}
	pct := 0.0
	if t.total > 0 {
		pct = 100 * float64(t.done) / float64(t.total)
	}
	fmt.Fprintf(t.out, "\rProgress: %d/%d (%.1f%%) - %.1f records/s", t.done, t.total, pct, rate)
}
