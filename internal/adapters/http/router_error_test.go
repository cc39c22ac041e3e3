package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kirillkom/passage-assistant/internal/config"
	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "search", errors.New("bad")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrNotFound, "find", errors.New("missing")), http.StatusNotFound},
		{fmt.Errorf("dense search: %w", domain.WrapError(domain.ErrTemporary, "qdrant", errors.New("503"))), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrUnavailable, "chunk", errors.New("no queue")), http.StatusServiceUnavailable},
		{fmt.Errorf("embed query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAnswerMapsDomainInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		config.Config{RAGTopK: 5},
		&searcherFake{},
		&answererFake{err: domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("bad query"))},
		nil,
		nil,
	).Handler()

	res := postJSON(handler, "/v1/answer", `{"query":"test"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchHidesInternalErrors(t *testing.T) {
	handler := NewRouter(
		config.Config{RAGTopK: 5},
		&searcherFake{err: errors.New("dense search: dial tcp 10.0.0.7:6333: connection refused")},
		&answererFake{},
		nil,
		nil,
	).Handler()

	res := postJSON(handler, "/v1/search", `{"query":"test"}`)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal error" || body["request_id"] == "" {
		t.Fatalf("unexpected error body %v", body)
	}
}
