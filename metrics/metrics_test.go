package metrics

import "testing"

func gather(t *testing.T, p *Prometheus, name string) bool {
	t.Helper()
	families, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return true
		}
	}
	return false
}

func TestNewRegistersAllCollectors(t *testing.T) {
	p := New()
	// A Vec collector appears in Gather only once it has at least one
	// label combination, so give each of the three Vecs one observation.
	p.ObserveCompileLatency("query", 0)
	p.IncCompileError("VALIDATION_ERROR")
	p.ObserveEndpointLatency("query", "ok", 0)
	for _, name := range []string{
		"gqlsparql_compile_duration_seconds",
		"gqlsparql_compile_errors_total",
		"gqlsparql_endpoint_duration_seconds",
		"gqlsparql_cache_hits_total",
		"gqlsparql_cache_misses_total",
	} {
		if !gather(t, p, name) {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestObserveCompileLatencyRecordsByOperation(t *testing.T) {
	p := New()
	p.ObserveCompileLatency("mutation", 0.02)

	families, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "gqlsparql_compile_duration_seconds" {
			continue
		}
		if len(mf.Metric) != 1 {
			t.Fatalf("expected one label combination, got %d", len(mf.Metric))
		}
		if got := mf.Metric[0].Histogram.GetSampleCount(); got != 1 {
			t.Errorf("sample count = %d, want 1", got)
		}
	}
}

func TestIncCompileErrorIncrementsByCode(t *testing.T) {
	p := New()
	p.IncCompileError("VALIDATION_ERROR")
	p.IncCompileError("VALIDATION_ERROR")
	p.IncCompileError("CONVERSION_ERROR")

	families, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != "gqlsparql_compile_errors_total" {
			continue
		}
		for _, m := range mf.Metric {
			total += m.Counter.GetValue()
		}
	}
	if total != 3 {
		t.Errorf("total compile errors = %v, want 3", total)
	}
}

func TestCacheHitMissCounters(t *testing.T) {
	p := New()
	p.IncCacheHit()
	p.IncCacheHit()
	p.IncCacheMiss()

	families, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.Metric {
			counts[mf.GetName()] += m.Counter.GetValue()
		}
	}
	if counts["gqlsparql_cache_hits_total"] != 2 {
		t.Errorf("cache hits = %v, want 2", counts["gqlsparql_cache_hits_total"])
	}
	if counts["gqlsparql_cache_misses_total"] != 1 {
		t.Errorf("cache misses = %v, want 1", counts["gqlsparql_cache_misses_total"])
	}
}
