package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/passage-assistant/internal/config"
	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
	"github.com/kirillkom/passage-assistant/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
)

type Router struct {
	cfg      config.Config
	searcher ports.PassageSearcher
	answerer ports.QuestionAnswerer
	chunks   ports.ChunkRequester
	metrics  *metrics.HTTPServerMetrics
}

// NewRouter accepts a nil chunk requester when no queue is configured and nil
// metrics when they are not exported.
func NewRouter(
	cfg config.Config,
	searcher ports.PassageSearcher,
	answerer ports.QuestionAnswerer,
	chunks ports.ChunkRequester,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		searcher: searcher,
		answerer: answerer,
		chunks:   chunks,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/search", rt.search)
	api.HandleFunc("POST /v1/answer", rt.answer)
	api.HandleFunc("POST /v1/works/{id}/chunk", rt.requestChunk)

	var limited http.Handler = api
	limited = backpressureMiddleware(limited, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	limited = rateLimitMiddleware(limited, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = corsMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query  string `json:"query"`
	K      int    `json:"k"`
	WorkID string `json:"work_id"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.searcher.Search(r.Context(), req.Query, req.K, domain.SearchFilter{WorkID: req.WorkID})
	if err != nil {
		rt.writeError(w, r, "search", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(serviceName, "search", string(result.Mode), result.FallbackReason, len(result.Passages), time.Since(start))
	}
	slog.Info("rag_search",
		"request_id", requestIDFromContext(r.Context()),
		"used_mode", string(result.Mode),
		"fallback_reason", result.FallbackReason,
		"results", len(result.Passages),
	)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(r.Context(), req.Query, req.K, domain.SearchFilter{WorkID: req.WorkID})
	if err != nil {
		rt.writeError(w, r, "answer", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(serviceName, "answer", string(answer.UsedMode), answer.FallbackReason, len(answer.ContextPreview), time.Since(start))
		if answer.Degraded {
			rt.metrics.RecordDegradedAnswer(serviceName)
		}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) requestChunk(w http.ResponseWriter, r *http.Request) {
	workID := strings.TrimSpace(r.PathValue("id"))
	if workID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "work id is required"})
		return
	}
	if rt.chunks == nil {
		rt.writeError(w, r, "request chunk", domain.WrapError(domain.ErrUnavailable, "request chunk", errors.New("chunk queue is not configured")))
		return
	}

	err := rt.chunks.RequestChunk(r.Context(), workID)
	if rt.metrics != nil {
		rt.metrics.RecordChunkRequest(serviceName, err)
	}
	if err != nil {
		rt.writeError(w, r, "request chunk", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"work_id": workID, "status": "queued"})
}

func (rt *Router) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return req, false
	}
	if req.K == 0 {
		req.K = rt.cfg.RAGTopK
	}
	if req.K < 0 || (rt.cfg.RAGMaxTopK > 0 && req.K > rt.cfg.RAGMaxTopK) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "k is out of range"})
		return req, false
	}
	req.WorkID = strings.TrimSpace(req.WorkID)
	return req, true
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	requestID := requestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_error", "request_id", requestID, "operation", operation, "status", status, "kind", domain.KindName(err), "error", err)
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message, "request_id": requestID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
