package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/works/abc/chunk": "/v1/works/{work_id}/chunk",
		"/v1/works/abc":       "/v1/works/abc",
		"/v1/search":          "/v1/search",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPServerMetricsRecordsRetrieval(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/works/w1/chunk", nil))

	m.RecordRetrieval("api", "search", "dense_only", "hybrid_error", 3, 10*time.Millisecond)
	m.RecordDegradedAnswer("api")
	m.RecordChunkRequest("api", errors.New("nats down"))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`passages_http_requests_total{method="POST",path="/v1/works/{work_id}/chunk",service="api",status="202"} 1`,
		`passages_retrieval_requests_total{endpoint="search",mode="dense_only",service="api"} 1`,
		`passages_retrieval_fallback_total{reason="hybrid_error",service="api"} 1`,
		`passages_answer_degraded_total{service="api"} 1`,
		`passages_chunk_requests_total{service="api",status="error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s\n%s", want, body)
		}
	}
}

func TestWorkerMetricsFinishDocument(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartDocument()
	m.FinishDocument("worker", "ok", 2, 7, time.Second, nil)
	m.StartDocument()
	m.FinishDocument("worker", "ok", 0, 0, time.Second, errors.New("boom"))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`passages_worker_documents_total{service="worker",status="ok"} 1`,
		`passages_worker_documents_total{service="worker",status="error"} 1`,
		`passages_worker_chunks_emitted_total{level="child",service="worker"} 7`,
		`passages_worker_chunks_emitted_total{level="parent",service="worker"} 2`,
		`passages_worker_documents_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s\n%s", want, body)
		}
	}
}
