package search

import (
	"strings"

	"lattice/api/internal/block"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	Variant  string `json:"variant"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	ParentID string `json:"parentId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterVariant string // empty = all variants
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push blocks into a search index.
type Indexer interface {
	IndexBlock(rec BlockRecord) error
	DeleteBlock(id string) error
}

// BlockRecord is the data we index for a block.
type BlockRecord struct {
	ID       string `json:"id"`
	Variant  string `json:"variant"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

// RecordFromBlock flattens a block's searchable text fields into an index
// record. Variants keep their primary text in different data keys, so we
// probe the common ones.
func RecordFromBlock(b *block.Block) BlockRecord {
	rec := BlockRecord{
		ID:       b.ID,
		Variant:  string(b.Variant),
		ParentID: b.ParentID,
	}
	rec.Title = textField(b.Data, "title", "name", "label")
	rec.Content = textField(b.Data, "content", "text", "code", "question", "description", "url")
	if rec.Title == "" && rec.Content != "" {
		rec.Title = snippet(rec.Content, 60)
	}
	return rec
}

func textField(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := data[key].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
