package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a copy of the in-memory counters.
type Snapshot struct {
	CacheHits           uint64
	CacheMisses         uint64
	LoadsStarted        uint64
	LoadDurationCount   uint64
	LoadDurationTotalNs int64
	StaleDiscarded      uint64
	AccountFailures     map[string]uint64
	Prefetches          map[string]uint64
}

// InMemoryRecorder keeps counters in memory, mostly for tests.
type InMemoryRecorder struct {
	cacheHits           uint64
	cacheMisses         uint64
	loadsStarted        uint64
	loadDurationCount   uint64
	loadDurationTotalNs int64
	staleDiscarded      uint64

	mu              sync.Mutex
	accountFailures map[string]uint64
	prefetches      map[string]uint64
}

func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		accountFailures: map[string]uint64{},
		prefetches:      map[string]uint64{},
	}
}

func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	failures := make(map[string]uint64, len(m.accountFailures))
	for key, value := range m.accountFailures {
		failures[key] = value
	}
	prefetches := make(map[string]uint64, len(m.prefetches))
	for key, value := range m.prefetches {
		prefetches[key] = value
	}
	m.mu.Unlock()

	return Snapshot{
		CacheHits:           atomic.LoadUint64(&m.cacheHits),
		CacheMisses:         atomic.LoadUint64(&m.cacheMisses),
		LoadsStarted:        atomic.LoadUint64(&m.loadsStarted),
		LoadDurationCount:   atomic.LoadUint64(&m.loadDurationCount),
		LoadDurationTotalNs: atomic.LoadInt64(&m.loadDurationTotalNs),
		StaleDiscarded:      atomic.LoadUint64(&m.staleDiscarded),
		AccountFailures:     failures,
		Prefetches:          prefetches,
	}
}

func (m *InMemoryRecorder) IncCacheHit() {
	atomic.AddUint64(&m.cacheHits, 1)
}

func (m *InMemoryRecorder) IncCacheMiss() {
	atomic.AddUint64(&m.cacheMisses, 1)
}

func (m *InMemoryRecorder) IncLoadStarted() {
	atomic.AddUint64(&m.loadsStarted, 1)
}

func (m *InMemoryRecorder) ObserveLoadDuration(duration time.Duration) {
	atomic.AddUint64(&m.loadDurationCount, 1)
	atomic.AddInt64(&m.loadDurationTotalNs, duration.Nanoseconds())
}

func (m *InMemoryRecorder) IncStaleDiscarded() {
	atomic.AddUint64(&m.staleDiscarded, 1)
}

func (m *InMemoryRecorder) IncAccountFailure(tab string) {
	m.mu.Lock()
	m.accountFailures[tab]++
	m.mu.Unlock()
}

func (m *InMemoryRecorder) IncPrefetch(status string) {
	m.mu.Lock()
	m.prefetches[status]++
	m.mu.Unlock()
}
