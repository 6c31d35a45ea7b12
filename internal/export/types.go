// Package export renders a document's comment report as PDF or DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	DocumentID      string
	Format          Format
	IncludeVersions bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// DocumentInfo holds the document metadata shown in the report header.
type DocumentInfo struct {
	ID             string
	Name           string
	ProjectID      string
	ContentType    string
	CurrentVersion int
	UpdatedBy      string
	UpdatedAt      time.Time
}

// ProjectInfo holds project metadata
type ProjectInfo struct {
	ID   string
	Name string
}

// CommentInfo holds one comment for the report. BodyHTML carries the
// mention-highlighted rendering of the body.
type CommentInfo struct {
	AuthorName string
	BodyHTML   string
	Page       *int
	CreatedAt  time.Time
}

// VersionInfo holds one row of the version history table.
type VersionInfo struct {
	Version    int
	UploadedBy string
	SizeBytes  int64
	Note       string
	CreatedAt  time.Time
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
