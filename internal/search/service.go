package search

import (
	"log"

	"lattice/api/internal/block"
)

// Service is the facade that tries Meilisearch first and falls back to an
// in-memory scan over the block engine.
type Service struct {
	meili  *Meili
	engine *block.Engine
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, engine *block.Engine) *Service {
	return &Service{meili: meili, engine: engine}
}

// Search tries Meilisearch if healthy, otherwise scans the engine.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "meilisearch"}
		}
		log.Printf("search: meilisearch error, falling back to engine scan: %v", err)
	}
	return s.scanEngine(q)
}

func (s *Service) scanEngine(q Query) Response {
	opts := block.SearchOptions{
		QueryOptions: block.QueryOptions{Variant: block.Variant(q.FilterVariant)},
		Text:         q.Text,
		Offset:       q.Offset,
		Limit:        q.Limit,
	}
	blocks := s.engine.Search(opts)
	results := make([]Result, 0, len(blocks))
	for _, b := range blocks {
		rec := RecordFromBlock(b)
		results = append(results, Result{
			ID:       rec.ID,
			Variant:  rec.Variant,
			Title:    rec.Title,
			Snippet:  snippet(rec.Content, 160),
			ParentID: rec.ParentID,
		})
	}
	return Response{Results: results, Total: len(results), Query: q.Text, Source: "engine"}
}

// IndexBlock indexes a block (fire-and-forget to Meilisearch).
func (s *Service) IndexBlock(b *block.Block) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := RecordFromBlock(b)
	go func() {
		if err := s.meili.IndexBlock(rec); err != nil {
			log.Printf("search: index block %s: %v", rec.ID, err)
		}
	}()
}

// DeleteBlock removes a block from the search index (fire-and-forget).
func (s *Service) DeleteBlock(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteBlock(id); err != nil {
			log.Printf("search: delete block %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes every block in the engine into Meilisearch. Called after
// hydration and after snapshot imports.
func (s *Service) ReindexAll() {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	blocks := s.engine.Query(block.QueryOptions{})
	records := make([]BlockRecord, 0, len(blocks))
	for _, b := range blocks {
		records = append(records, RecordFromBlock(b))
	}
	if err := s.meili.IndexBlocks(records); err != nil {
		log.Printf("search: reindex blocks: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
