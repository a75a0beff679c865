package export

import (
	"fmt"
	"html/template"
	"time"

	"lattice/api/internal/block"
)

// Service renders block subtrees from the engine into downloadable formats.
type Service struct {
	engine *block.Engine
}

// NewService creates a new export service
func NewService(engine *block.Engine) *Service {
	return &Service{engine: engine}
}

// Export generates an export of the block subtree in the requested format.
func (s *Service) Export(req Request) (*Result, error) {
	root := s.engine.Get(req.BlockID)
	if root == nil {
		return nil, fmt.Errorf("%w: block %s", ErrContentUnavailable, req.BlockID)
	}

	contentHTML := BlockToHTML(root, s.engine.Get)

	title := titleOf(root)
	html, err := RenderDocumentHTML(TemplateData{
		Title:       title,
		ContentHTML: template.HTML(contentHTML),
		Author:      req.Author,
		ExportedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, title)
	case FormatDOCX:
		return exportDOCX(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func titleOf(b *block.Block) string {
	for _, key := range []string{"title", "content"} {
		if value, ok := b.Data[key].(string); ok && value != "" {
			return value
		}
	}
	return string(b.Variant)
}
