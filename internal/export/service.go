package export

import (
	"context"
	"fmt"
)

// DataStore defines the data access the exporter needs.
type DataStore interface {
	GetPRDInfo(ctx context.Context, id string) (PRDInfo, error)
	GetSections(ctx context.Context, id string) ([]SectionInfo, error)
	ListComments(ctx context.Context, prdID string) ([]CommentInfo, error)
}

// Service provides PRD export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	info, err := s.store.GetPRDInfo(ctx, req.PRDID)
	if err != nil {
		return nil, fmt.Errorf("get prd: %w", err)
	}
	sections, err := s.store.GetSections(ctx, req.PRDID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	var comments []CommentInfo
	if req.IncludeComments {
		comments, err = s.store.ListComments(ctx, req.PRDID)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
	}

	switch req.Format {
	case FormatMarkdown:
		return exportMarkdown(info, sections, comments)
	case FormatPDF:
		html, err := RenderPRDHTML(TemplateData{
			Info:     info,
			Sections: sections,
			Comments: comments,
		})
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, info.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
