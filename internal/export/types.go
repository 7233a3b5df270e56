// Package export renders a PRD to downloadable Markdown or PDF.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	PRDID           string
	Format          Format
	IncludeComments bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// PRDInfo holds the PRD metadata rendered into the header of an export.
type PRDInfo struct {
	ID        string
	Title     string
	Summary   string
	Status    string
	TeamName  string
	Author    string
	UpdatedAt time.Time
}

// SectionInfo is one content section in export order.
type SectionInfo struct {
	Name string
	Body string
}

// CommentInfo holds a durable comment included in an export appendix.
type CommentInfo struct {
	Author   string
	Section  string
	Content  string
	Resolved bool
}

var (
	// ErrContentUnavailable indicates PRD content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
