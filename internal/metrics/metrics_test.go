package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func delta(t *testing.T, collector prometheus.Collector, observe func()) float64 {
	t.Helper()

	before := testutil.ToFloat64(collector)
	observe()
	after := testutil.ToFloat64(collector)
	return after - before
}

func TestEsploraClientRecords(t *testing.T) {
	m := NewEsploraClient("https://blockstream.info/api")
	start := time.Now().Add(-time.Second)

	if inc := delta(t, esploraRequestsTotal.WithLabelValues("get_tip_hash", "https://blockstream.info/api", "success"), func() {
		m.Observe("get_tip_hash", nil, start)
	}); inc != 1 {
		t.Fatalf("expected success counter increment, got %v", inc)
	}

	if inc := delta(t, esploraRequestsTotal.WithLabelValues("broadcast", "https://blockstream.info/api", "error"), func() {
		m.Observe("broadcast", errors.New("boom"), start)
	}); inc != 1 {
		t.Fatalf("expected error counter increment, got %v", inc)
	}

	m.Observe("get_fee_estimates", nil, start)
}

func TestEsploraClientEmptyEndpoint(t *testing.T) {
	m := NewEsploraClient("")
	start := time.Now()

	if inc := delta(t, esploraRequestsTotal.WithLabelValues("get_tip_height", "unknown", "success"), func() {
		m.Observe("get_tip_height", nil, start)
	}); inc != 1 {
		t.Fatalf("expected unknown-endpoint counter increment, got %v", inc)
	}
}
