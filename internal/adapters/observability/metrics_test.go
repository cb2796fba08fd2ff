package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hotel_search/internal/adapters/observability"
)

func scrape(t *testing.T) string {
	t.Helper()
	mh := observability.MetricsHandler(observability.InitRegistry())
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	return string(body)
}

func TestMetricsRegistryAndHandler(t *testing.T) {
	// record one sample so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)

	if out := scrape(t); !strings.Contains(out, "stays_http_requests_total") {
		t.Fatalf("expected stays_http_requests_total in output")
	}
}

func TestObserveStage(t *testing.T) {
	observability.ObserveStage("geo", "narrowed", 3*time.Millisecond)
	observability.ObserveStage("amenities", "short_circuit", 0)

	out := scrape(t)
	if !strings.Contains(out, `stays_search_stage_outcomes_total{outcome="narrowed",stage="geo"} `) {
		t.Fatalf("missing geo outcome:\n%s", out)
	}
	if !strings.Contains(out, `stays_search_stage_outcomes_total{outcome="short_circuit",stage="amenities"} `) {
		t.Fatalf("missing short_circuit outcome")
	}
	if !strings.Contains(out, `stays_search_stage_duration_seconds_count{stage="geo"} `) {
		t.Fatalf("missing geo duration")
	}
	if strings.Contains(out, `stays_search_stage_duration_seconds_count{stage="amenities"}`) {
		t.Fatalf("short-circuited stages record no duration")
	}
}
