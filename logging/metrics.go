package logging

import "sync"

// Metrics keeps coarse server counters and gauges for the diagnostics
// endpoint. Writes come from simulation and network goroutines alike, so
// the maps stay behind a mutex.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]uint64
	gauges   map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]uint64),
		gauges:   make(map[string]uint64),
	}
}

// TelemetryAdd increments a counter by delta.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	m.counters[key] += delta
	m.mu.Unlock()
}

// TelemetryStore sets a gauge to the provided value.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	m.gauges[key] = value
	m.mu.Unlock()
}

// TelemetrySnapshot copies counters and gauges into one flat map.
func (m *Metrics) TelemetrySnapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]uint64, len(m.counters)+len(m.gauges))
	for k, v := range m.counters {
		snapshot[k] = v
	}
	for k, v := range m.gauges {
		snapshot[k] = v
	}
	return snapshot
}
