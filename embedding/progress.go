package embedding

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ShardProgress is a point-in-time view of an embed run.
type ShardProgress struct {
	Shards  int // shards in the plan
	Done    int // shards embedded and persisted
	Skipped int // shards reused from the cache
	Failed  int // shards that returned an error

	Records  int // records in the plan
	Settled  int // records in done or skipped shards
	Embedded int // records sent to the provider and persisted
}

// Remaining returns the number of shards not yet accounted for.
func (p ShardProgress) Remaining() int {
	return p.Shards - p.Done - p.Skipped - p.Failed
}

// ProgressTracker counts shard outcomes during the embed phase and writes a
// one-line report every reportInterval settled records.
type ProgressTracker struct {
	mu             sync.Mutex
	writer         io.Writer
	reportInterval int
	lastReported   int
	state          ShardProgress
	startTime      time.Time
	started        bool
}

// NewProgressTracker creates a tracker for a plan of shards holding records
// records in total. A nil writer discards reports.
func NewProgressTracker(writer io.Writer, shards, records, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		reportInterval: reportInterval,
		state:          ShardProgress{Shards: shards, Records: records},
	}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.lastReported = 0
	p.state = ShardProgress{Shards: p.state.Shards, Records: p.state.Records}
}

// ShardDone records a shard of rows records that was embedded and persisted.
func (p *ProgressTracker) ShardDone(rows int) {
	p.observe(func(s *ShardProgress) {
		s.Done++
		s.Settled += rows
		s.Embedded += rows
	})
}

// ShardSkipped records a shard of rows records reused from the cache.
func (p *ProgressTracker) ShardSkipped(rows int) {
	p.observe(func(s *ShardProgress) {
		s.Skipped++
		s.Settled += rows
	})
}

// ShardFailed records a shard that will need another run.
func (p *ProgressTracker) ShardFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.state.Failed++
	p.report()
}

func (p *ProgressTracker) observe(update func(*ShardProgress)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	update(&p.state)
	if p.state.Settled-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.state.Settled
	}
}

// Snapshot returns the current counters.
func (p *ProgressTracker) Snapshot() ShardProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Finish writes a final report and ends the line. It reports what happened,
// so a run with failed shards never shows as complete.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
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

// report must be called with the lock held. The rate counts only records
// that went to the provider.
func (p *ProgressTracker) report() {
	s := p.state
	rate := 0.0
	if secs := time.Since(p.startTime).Seconds(); secs > 0 {
		rate = float64(s.Embedded) / secs
	}
	fmt.Fprintf(p.writer, "\rShards: %d/%d (embedded %d, skipped %d, failed %d) - records %d/%d - %.1f records/s",
		s.Done+s.Skipped, s.Shards, s.Done, s.Skipped, s.Failed, s.Settled, s.Records, rate)
}
