package migration

import "time"

// Sink receives run metrics. It is owned by the caller.
type Sink interface {
	AddProcessed(n int)
	IncErrors()
	SetSpeed(recordsPerSecond float64)
	ObserveBatchDuration(d time.Duration)
	SetTotal(n int)
}

// NopSink discards all metrics
type NopSink struct{}

func (NopSink) AddProcessed(int)                   {}
func (NopSink) IncErrors()                         {}
func (NopSink) SetSpeed(float64)                   {}
func (NopSink) ObserveBatchDuration(time.Duration) {}
func (NopSink) SetTotal(int)                       {}
