package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("disabled metrics report enabled")
	}
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics recorded a count")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatal("disabled snapshot not empty")
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)
	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics report enabled")
	}
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics returned nonzero")
	}
}

func TestMetricsCountersConcurrent(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginSuccess); got != workers*perWorker {
		t.Fatalf("counter = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricLoginLatency, 3*time.Millisecond)
	m.Observe(MetricLoginLatency, 40*time.Millisecond)
	m.Observe(MetricLoginLatency, 2*time.Second)
	// Non-histogram ids are ignored.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets, ok := snap.Histograms[MetricLoginLatency]
	if !ok {
		t.Fatal("latency histogram missing from snapshot")
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("bucket layout = %v", buckets)
	}
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 3 {
		t.Fatalf("total samples = %d, want 3", total)
	}
}

func TestBucketIndexBounds(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{750 * time.Millisecond, 7},
		{10 * time.Second, 7},
	}
	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Errorf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
