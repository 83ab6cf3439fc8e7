package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleMetricsDisabledReturnsNotFound(t *testing.T) {
	t.Setenv("ENABLE_INTERNAL_STATS", "0")

	handler := handleMetrics(newHub())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandleMetricsEnabledExposesGauges(t *testing.T) {
	t.Setenv("ENABLE_INTERNAL_STATS", "1")

	handler := handleMetrics(newHub())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "serenada_active_clients") {
		t.Fatalf("expected serenada_active_clients in metrics output, got:\n%s", body)
	}
	if !strings.Contains(body, "serenada_join_latency_milliseconds_bucket") {
		t.Fatalf("expected join latency histogram in metrics output")
	}
}
