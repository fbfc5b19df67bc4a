package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Status represents the current migration status
type Status struct {
	TotalRecords     int64
	ProcessedRecords int64
	Batches          int64
	FailedBatches    int64
	StartTime        time.Time
	LastUpdateTime   time.Time
	CurrentSpeed     float64 // records/second over the recent window
	AverageSpeed     float64 // records/second since start
	ETA              time.Duration
}

// Tracker tracks migration progress
type Tracker struct {
	mu           sync.RWMutex
	status       Status
	speedSamples []speedSample
	maxSamples   int
	window       time.Duration
	now          func() time.Time
}

type speedSample struct {
	timestamp time.Time
	records   int64
}

// NewTracker creates a new progress tracker
func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *Tracker {
	start := now()
	return &Tracker{
		status: Status{
			StartTime:      start,
			LastUpdateTime: start,
		},
		speedSamples: make([]speedSample, 0, 60),
		maxSamples:   60,
		window:       5 * time.Second,
		now:          now,
	}
}

// SetTotal sets the number of records selected for the run
func (t *Tracker) SetTotal(records int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.TotalRecords = records
}

// AddProcessed records a committed batch of n records
func (t *Tracker) AddProcessed(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Batches++
	t.status.ProcessedRecords += n
	t.updateSpeed(n)
}

// AddFailed records a failed batch
func (t *Tracker) AddFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.FailedBatches++
	t.status.LastUpdateTime = t.now()
}

// updateSpeed updates the speed calculation (must be called with lock held)
func (t *Tracker) updateSpeed(records int64) {
	now := t.now()

	t.speedSamples = append(t.speedSamples, speedSample{
		timestamp: now,
		records:   records,
	})
	if len(t.speedSamples) > t.maxSamples {
		t.speedSamples = t.speedSamples[1:]
	}

	t.calculateCurrentSpeed(now)
	t.calculateAverageSpeed(now)
	t.calculateETA()

	t.status.LastUpdateTime = now
}

// calculateCurrentSpeed calculates current speed based on samples inside the window
func (t *Tracker) calculateCurrentSpeed(now time.Time) {
	if len(t.speedSamples) < 2 {
		t.status.CurrentSpeed = 0
		return
	}

	cutoff := now.Add(-t.window)
	var recent int64
	var first *speedSample

	for i := len(t.speedSamples) - 1; i >= 0; i-- {
		sample := &t.speedSamples[i]
		if sample.timestamp.Before(cutoff) {
			break
		}
		recent += sample.records
		first = sample
	}

	if first != nil {
		if d := now.Sub(first.timestamp); d > 0 {
			t.status.CurrentSpeed = float64(recent) / d.Seconds()
		}
	}
}

// calculateAverageSpeed calculates average speed since start
func (t *Tracker) calculateAverageSpeed(now time.Time) {
	elapsed := now.Sub(t.status.StartTime)
	if elapsed > 0 {
		t.status.AverageSpeed = float64(t.status.ProcessedRecords) / elapsed.Seconds()
	}
}

// calculateETA calculates estimated time to completion
func (t *Tracker) calculateETA() {
	if t.status.TotalRecords == 0 || t.status.AverageSpeed == 0 {
		t.status.ETA = 0
		return
	}

	remaining := t.status.TotalRecords - t.status.ProcessedRecords
	if remaining <= 0 {
		t.status.ETA = 0
		return
	}

	etaSeconds := float64(remaining) / t.status.AverageSpeed
	t.status.ETA = time.Duration(etaSeconds) * time.Second
}

// GetStatus returns the current status (thread-safe)
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.status
}

// GetProgressPercent returns the progress percentage
func (t *Tracker) GetProgressPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status.TotalRecords == 0 {
		return 0
	}

	return float64(t.status.ProcessedRecords) / float64(t.status.TotalRecords) * 100
}

// FormatSpeed formats a records/second rate
func FormatSpeed(recordsPerSecond float64) string {
	return humanize.CommafWithDigits(recordsPerSecond, 1) + " rec/s"
}

// FormatCount formats a record count with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatDuration formats duration in human readable format
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "calculating..."
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
