package performance

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Histogram range: 1 microsecond to 1 hour, 3 significant figures.
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// Metrics is the shared aggregate all workers record into. Record and
// RecordConnectionError are the only mutators; CalculateResults snapshots.
//
// # Thread Safety
//
// Every operation takes the single mutex. Workers contend on it, which is
// acceptable at the request rates this tool targets; the lock is held only
// for counter updates, never across I/O.
type Metrics struct {
	mu sync.Mutex

	startTime        time.Time
	durations        []time.Duration
	statusCodes      map[int]int
	totalRequests    int
	errorCount       int
	connectionErrors int
	bytesSent        int64
	bytesReceived    int64

	// Per-step latency histograms for the detailed breakdown.
	stepHists map[string]*hdrhistogram.Histogram
	stepOrder []string
}

// NewMetrics creates an empty aggregate. The start time is taken here, before
// any warmup, so elapsed-time rates cover the whole run.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime:   time.Now(),
		statusCodes: make(map[int]int),
		stepHists:   make(map[string]*hdrhistogram.Histogram),
	}
}

// Record adds one completed request.
func (m *Metrics) Record(step string, duration time.Duration, status int, bytesSent, bytesReceived int64, isError bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.durations = append(m.durations, duration)
	m.statusCodes[status]++
	m.bytesSent += bytesSent
	m.bytesReceived += bytesReceived
	if isError {
		m.errorCount++
	}

	if step != "" {
		m.recordStepLocked(step, duration)
	}
}

// RecordConnectionError adds one request that never produced a response.
// Connection errors count toward both the total and the error count.
func (m *Metrics) RecordConnectionError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.errorCount++
	m.connectionErrors++
}

func (m *Metrics) recordStepLocked(step string, duration time.Duration) {
	hist, ok := m.stepHists[step]
	if !ok {
		hist = hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
		m.stepHists[step] = hist
		m.stepOrder = append(m.stepOrder, step)
	}

	micros := duration.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}
	hist.RecordValue(micros)
}

// Millis is a duration that marshals as integer milliseconds.
type Millis time.Duration

func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(m).Milliseconds())
}

// Duration returns the underlying duration.
func (m Millis) Duration() time.Duration { return time.Duration(m) }

// StepStats is the per-step latency breakdown.
type StepStats struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Mean  Millis `json:"mean_ms"`
	P50   Millis `json:"p50_ms"`
	P95   Millis `json:"p95_ms"`
	P99   Millis `json:"p99_ms"`
}

// Results is one metrics snapshot. Percentiles come from the raw duration
// samples: the sorted slice indexed at floor(len x p/100), no interpolation.
type Results struct {
	TotalRequests      int         `json:"total_requests"`
	SuccessfulRequests int         `json:"successful_requests"`
	FailedRequests     int         `json:"failed_requests"`
	ConnectionErrors   int         `json:"connection_errors"`
	SuccessRate        float64     `json:"success_rate"`
	RequestsPerSecond  float64     `json:"requests_per_second"`
	Elapsed            Millis      `json:"elapsed_ms"`
	AvgResponseTime    Millis      `json:"avg_response_time_ms"`
	MinResponseTime    Millis      `json:"min_response_time_ms"`
	MaxResponseTime    Millis      `json:"max_response_time_ms"`
	P50                Millis      `json:"p50_ms"`
	P90                Millis      `json:"p90_ms"`
	P95                Millis      `json:"p95_ms"`
	P99                Millis      `json:"p99_ms"`
	BytesSent          int64       `json:"bytes_sent"`
	BytesReceived      int64       `json:"bytes_received"`
	StatusCodes        map[int]int `json:"status_codes"`
	Steps              []StepStats `json:"steps,omitempty"`
}

// CalculateResults snapshots the aggregate. Safe to call while workers are
// still recording; later snapshots supersede earlier ones.
func (m *Metrics) CalculateResults() Results {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := time.Since(m.startTime)
	results := Results{
		TotalRequests:      m.totalRequests,
		SuccessfulRequests: m.totalRequests - m.errorCount,
		FailedRequests:     m.errorCount,
		ConnectionErrors:   m.connectionErrors,
		Elapsed:            Millis(elapsed),
		BytesSent:          m.bytesSent,
		BytesReceived:      m.bytesReceived,
		StatusCodes:        make(map[int]int, len(m.statusCodes)),
	}
	for code, count := range m.statusCodes {
		results.StatusCodes[code] = count
	}

	if m.totalRequests > 0 {
		results.SuccessRate = float64(m.totalRequests-m.errorCount) / float64(m.totalRequests)
	}
	// Throughput is only meaningful once at least one request completed;
	// a sample-less snapshot (nothing but connection errors) reports 0.
	if seconds := elapsed.Seconds(); seconds > 0 && len(m.durations) > 0 {
		results.RequestsPerSecond = float64(m.totalRequests) / seconds
	}

	if len(m.durations) > 0 {
		sorted := make([]time.Duration, len(m.durations))
		copy(sorted, m.durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, d := range sorted {
			sum += d
		}
		results.AvgResponseTime = Millis(sum / time.Duration(len(sorted)))
		results.MinResponseTime = Millis(sorted[0])
		results.MaxResponseTime = Millis(sorted[len(sorted)-1])
		results.P50 = Millis(percentile(sorted, 50))
		results.P90 = Millis(percentile(sorted, 90))
		results.P95 = Millis(percentile(sorted, 95))
		results.P99 = Millis(percentile(sorted, 99))
	}

	for _, name := range m.stepOrder {
		hist := m.stepHists[name]
		results.Steps = append(results.Steps, StepStats{
			Name:  name,
			Count: hist.TotalCount(),
			Mean:  Millis(time.Duration(hist.Mean()) * time.Microsecond),
			P50:   Millis(time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond),
			P95:   Millis(time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond),
			P99:   Millis(time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond),
		})
	}

	return results
}

// percentile indexes the sorted samples at floor(len x p/100). This is the
// exact algorithm, not an interpolating one: p99 of 3 samples is sorted[2].
func percentile(sorted []time.Duration, p int) time.Duration {
	index := len(sorted) * p / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
