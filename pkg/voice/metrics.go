package voice

import (
	"sync"
	"time"
)

// Metrics tracks how long each phase of an interaction took.
type Metrics struct {
	Listen  time.Duration `json:"listen"`  // StartRecording through transcript
	Process time.Duration `json:"process"` // classification or fallback
	Speak   time.Duration `json:"speak"`   // synthesis and playback
	Total   time.Duration `json:"total"`
}

// MetricsCollector keeps the phase timings of recent interactions.
// It is goroutine-safe.
type MetricsCollector struct {
	mu       sync.Mutex
	last     Metrics
	history  []Metrics
	capacity int

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a collector that averages over the last capacity interactions.
func NewMetricsCollector(capacity int) *MetricsCollector {
	if capacity < 1 {
		capacity = 100
	}
	return &MetricsCollector{
		history:  make([]Metrics, 0, capacity),
		capacity: capacity,
	}
}

// OnUpdate sets a callback that fires after every Record.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Record archives the timings of one interaction.
func (m *MetricsCollector) Record(metrics Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = metrics
	m.history = append(m.history, metrics)
	if len(m.history) > m.capacity {
		m.history = m.history[1:]
	}
	if m.onUpdate != nil {
		go m.onUpdate(metrics)
	}
}

// Last returns the most recent timings.
func (m *MetricsCollector) Last() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Count returns how many interactions are in the averaging window.
func (m *MetricsCollector) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Average returns the mean timings over the window.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.Listen += h.Listen
		avg.Process += h.Process
		avg.Speak += h.Speak
		avg.Total += h.Total
	}

	n := time.Duration(len(m.history))
	avg.Listen /= n
	avg.Process /= n
	avg.Speak /= n
	avg.Total /= n

	return avg
}

// FormatLatency returns a one-line summary of the timings.
func (m Metrics) FormatLatency() string {
	return formatDuration(m.Listen) + " LISTEN | " +
		formatDuration(m.Process) + " PROCESS | " +
		formatDuration(m.Speak) + " SPEAK | " +
		formatDuration(m.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
