package domain

// BlockKind is the structural role of an extracted text block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockQuote     BlockKind = "quote"
	BlockListItem  BlockKind = "list_item"
)

// Block is one qualifying element of a normalized document, in document order.
type Block struct {
	Kind      BlockKind `json:"kind"`
	Level     int       `json:"level,omitempty"`
	AnchorID  string    `json:"anchor_id,omitempty"`
	Text      string    `json:"text"`
	SourceURL string    `json:"source_url,omitempty"`
}

func (b Block) IsHeading() bool {
	return b.Kind == BlockHeading
}

// ChildChunk is a fine-grained retrieval unit. ParentID is assigned once the
// owning parent group is closed.
type ChildChunk struct {
	ID          string `json:"id"`
	ParentID    string `json:"parent_id"`
	WorkID      string `json:"work_id"`
	Author      string `json:"author"`
	WorkTitle   string `json:"work_title"`
	SectionID   string `json:"section_id"`
	ParagraphID string `json:"paragraph_id"`
	Text        string `json:"text"`
	SourceURL   string `json:"source_url"`
	Lang        string `json:"lang"`
	Hash        string `json:"hash"`
}

// ParentChunk is a coarse aggregation of consecutive children used for
// context expansion.
type ParentChunk struct {
	ID     string `json:"id"`
	WorkID string `json:"work_id"`
	Text   string `json:"text"`
	Hash   string `json:"hash"`
}

// WorkMeta carries the manifest fields copied onto every child of a work.
type WorkMeta struct {
	WorkID    string
	Author    string
	WorkTitle string
	Lang      string
}

// Hierarchy is the chunked form of one work.
type Hierarchy struct {
	WorkID   string
	Parents  []ParentChunk
	Children []ChildChunk
}
