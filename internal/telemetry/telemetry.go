// Package telemetry provides injected counters for the report cache.
package telemetry

import "time"

// Recorder captures report cache events.
type Recorder interface {
	IncCacheHit()
	IncCacheMiss()
	IncLoadStarted()
	ObserveLoadDuration(duration time.Duration)
	IncStaleDiscarded()
	IncAccountFailure(tab string)
	IncPrefetch(status string) // status: "stored", "skipped", "cancelled"
}

type NoopRecorder struct{}

func NewNoop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) IncCacheHit()                      {}
func (NoopRecorder) IncCacheMiss()                     {}
func (NoopRecorder) IncLoadStarted()                   {}
func (NoopRecorder) ObserveLoadDuration(time.Duration) {}
func (NoopRecorder) IncStaleDiscarded()                {}
func (NoopRecorder) IncAccountFailure(string)          {}
func (NoopRecorder) IncPrefetch(string)                {}
