package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	minPrefetch = 20
)

// pointNamespace derives deterministic point ids from child ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:passage-assistant:child"))

type Options struct {
	Timeout            time.Duration
	PrefetchMultiplier int
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	prefetch   int
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

func NewWithOptions(baseURL, collection string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	prefetch := options.PrefetchMultiplier
	if prefetch <= 0 {
		prefetch = 3
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		prefetch:   prefetch,
		executor:   options.ResilienceExecutor,
	}
}

// PointID is the UUIDv5 of a child id, so re-indexing a work overwrites its
// points instead of duplicating them.
func PointID(childID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(childID)).String()
}

func (c *Client) IndexChildren(ctx context.Context, children []domain.ChildChunk, vectors [][]float32) error {
	if len(children) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(children) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("children/vectors mismatch: %d/%d", len(children), len(vectors)))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(children))
	for i, child := range children {
		vector := map[string]any{denseVectorName: vectors[i]}
		if sparse := encodeSparseDocument(child.Text, child.WorkTitle); !sparse.empty() {
			vector[sparseVectorName] = sparse
		}
		points = append(points, point{
			ID:     PointID(child.ID),
			Vector: vector,
			Payload: map[string]any{
				"child_id":     child.ID,
				"parent_id":    child.ParentID,
				"work_id":      child.WorkID,
				"author":       child.Author,
				"work_title":   child.WorkTitle,
				"paragraph_id": child.ParagraphID,
				"text":         child.Text,
				"source_url":   child.SourceURL,
				"lang":         child.Lang,
				"hash":         child.Hash,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	err := c.executor.Execute(ctx, "qdrant.upsert", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("qdrant upsert", err, resilience.ClassifyHTTPError)
}

// PruneWork deletes the work's points whose child id is not in keep. A
// missing collection has nothing to prune.
func (c *Client) PruneWork(ctx context.Context, workID string, keep []string) error {
	if strings.TrimSpace(workID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant prune", fmt.Errorf("empty work id"))
	}
	filter := buildFilter(domain.SearchFilter{WorkID: workID})
	if len(keep) > 0 {
		ids := make([]string, len(keep))
		for i, id := range keep {
			ids[i] = PointID(id)
		}
		filter["must_not"] = []map[string]any{{"has_id": ids}}
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	err := c.executor.Execute(ctx, "qdrant.prune", func(ctx context.Context) error {
		err := c.doJSON(ctx, http.MethodPost, url, map[string]any{"filter": filter}, nil, "prune")
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("qdrant prune", err, resilience.ClassifyHTTPError)
}

func (c *Client) DenseSearch(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Passage, error) {
	reqBody := map[string]any{
		"query":        queryVector,
		"using":        denseVectorName,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	var out []domain.Passage
	err := c.executor.Execute(ctx, "qdrant.dense_search", func(ctx context.Context) error {
		var err error
		out, err = c.query(ctx, reqBody, "dense search")
		return err
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("qdrant dense search", err, resilience.ClassifyHTTPError)
	}
	return out, nil
}

// HybridSearch prefetches dense and sparse candidates and lets Qdrant fuse
// them with RRF. The executor runs it once; the caller owns the fallback.
func (c *Client) HybridSearch(
	ctx context.Context,
	queryVector []float32,
	queryText string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Passage, error) {
	sparse := encodeSparseQuery(queryText)
	if sparse.empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "qdrant hybrid search", fmt.Errorf("query has no sparse terms"))
	}

	prefetchLimit := limit * c.prefetch
	if prefetchLimit < minPrefetch {
		prefetchLimit = minPrefetch
	}
	f := buildFilter(filter)
	dense := map[string]any{"query": queryVector, "using": denseVectorName, "limit": prefetchLimit}
	lexical := map[string]any{"query": sparse, "using": sparseVectorName, "limit": prefetchLimit}
	reqBody := map[string]any{
		"prefetch":     []map[string]any{dense, lexical},
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        limit,
		"with_payload": true,
	}
	if f != nil {
		dense["filter"] = f
		lexical["filter"] = f
		reqBody["filter"] = f
	}

	var out []domain.Passage
	err := c.executor.Execute(ctx, resilience.HybridSearchOperation, func(ctx context.Context) error {
		var err error
		out, err = c.query(ctx, reqBody, "hybrid search")
		return err
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("qdrant hybrid search", err, resilience.ClassifyHTTPError)
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, reqBody map[string]any, operation string) ([]domain.Passage, error) {
	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	var queryResp struct {
		Result struct {
			Points []struct {
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &queryResp, operation); err != nil {
		return nil, err
	}

	out := make([]domain.Passage, 0, len(queryResp.Result.Points))
	for _, p := range queryResp.Result.Points {
		out = append(out, domain.Passage{
			ID:          getStringPayload(p.Payload, "child_id"),
			ParentID:    getStringPayload(p.Payload, "parent_id"),
			WorkID:      getStringPayload(p.Payload, "work_id"),
			WorkTitle:   getStringPayload(p.Payload, "work_title"),
			ParagraphID: getStringPayload(p.Payload, "paragraph_id"),
			Text:        getStringPayload(p.Payload, "text"),
			SourceURL:   getStringPayload(p.Payload, "source_url"),
			Score:       p.Score,
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		// Qdrant applies corpus IDF to the stored saturated term weights,
		// which makes the sparse leg BM25.
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{"modifier": "idf"},
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.executor.Execute(ctx, "qdrant.ensure_collection", func(ctx context.Context) error {
		err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
		// 409 means the collection already exists.
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return nil
		}
		return err
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return resilience.WrapTemporary("qdrant ensure collection", err, resilience.ClassifyHTTPError)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func buildFilter(filter domain.SearchFilter) map[string]any {
	if filter.WorkID == "" {
		return nil
	}
	return map[string]any{
		"must": []map[string]any{
			{
				"key": "work_id",
				"match": map[string]any{
					"value": filter.WorkID,
				},
			},
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
