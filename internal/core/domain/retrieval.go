package domain

type RetrievalMode string

const (
	RetrievalModeHybridRRF RetrievalMode = "hybrid_rrf"
	RetrievalModeDenseOnly RetrievalMode = "dense_only"
)

// Fallback reasons recorded when the hybrid path was not used.
const (
	FallbackCapabilityAbsent = "capability_absent"
	FallbackHybridDisabled   = "hybrid_disabled"
	FallbackHybridError      = "hybrid_error"
)

type SearchFilter struct {
	WorkID string
}

// Candidate is a scored retrieval row scoped to a single query.
type Candidate struct {
	ID     string         `json:"id"`
	Text   string         `json:"text"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields,omitempty"`
}

// DenseScore reads the dense score either from Score (key "score" or empty)
// or from a numeric entry of Fields.
func (c Candidate) DenseScore(key string) float64 {
	if key == "" || key == "score" {
		return c.Score
	}
	switch v := c.Fields[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// RankedItem is one entry of a ranked list; rank is derived from Score order.
type RankedItem struct {
	ID    string
	Score float64
}

type RankedList []RankedItem

// FusedScores maps candidate id to its fused score.
type FusedScores map[string]float64

// Passage is a retrieved child chunk as returned to callers.
type Passage struct {
	ID          string  `json:"id"`
	ParentID    string  `json:"parent_id,omitempty"`
	WorkID      string  `json:"work_id"`
	WorkTitle   string  `json:"work_title,omitempty"`
	ParagraphID string  `json:"paragraph_id,omitempty"`
	Text        string  `json:"text"`
	SourceURL   string  `json:"source_url,omitempty"`
	Score       float64 `json:"score"`
}

// SearchResult tags retrieved passages with the mode that produced them.
type SearchResult struct {
	Mode           RetrievalMode `json:"used_mode"`
	Passages       []Passage     `json:"results"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	LocalFusion    bool          `json:"local_fusion,omitempty"`
}

type Citation struct {
	WorkID      string `json:"work_id"`
	WorkTitle   string `json:"work_title"`
	ParagraphID string `json:"paragraph_id,omitempty"`
	SourceURL   string `json:"source_url"`
}

type Answer struct {
	Text           string        `json:"answer"`
	Citations      []Citation    `json:"citations"`
	ContextPreview []string      `json:"context_preview"`
	UsedMode       RetrievalMode `json:"used_mode"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	Degraded       bool          `json:"degraded,omitempty"`
}

// AnswerContext is what the generator receives for one query.
type AnswerContext struct {
	Query         string
	Disclaimer    string
	SystemHint    string
	Passages      []Passage
	ParentContext []string
}
