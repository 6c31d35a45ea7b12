package export

import (
	"context"
	"fmt"
	"html/template"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetDocumentInfo(ctx context.Context, documentID string) (DocumentInfo, error)
	GetProjectInfo(ctx context.Context, projectID string) (ProjectInfo, error)
	ListCommentInfos(ctx context.Context, documentID string) ([]CommentInfo, error)
	ListVersionInfos(ctx context.Context, documentID string) ([]VersionInfo, error)
}

// Service produces comment reports for documents.
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a comment report in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	docInfo, err := s.store.GetDocumentInfo(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	projectInfo, err := s.store.GetProjectInfo(ctx, docInfo.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	comments, err := s.store.ListCommentInfos(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	data := TemplateData{
		DocumentName: docInfo.Name,
		ProjectName:  projectInfo.Name,
		UpdatedBy:    docInfo.UpdatedBy,
		UpdatedAt:    docInfo.UpdatedAt,
		Version:      docInfo.CurrentVersion,
		Comments:     make([]TemplateComment, 0, len(comments)),
	}
	for _, c := range comments {
		tc := TemplateComment{
			Author:    c.AuthorName,
			BodyHTML:  template.HTML(c.BodyHTML),
			CreatedAt: c.CreatedAt,
		}
		if c.Page != nil {
			tc.Page = *c.Page
		}
		data.Comments = append(data.Comments, tc)
	}

	if req.IncludeVersions {
		versions, err := s.store.ListVersionInfos(ctx, req.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		for _, v := range versions {
			data.Versions = append(data.Versions, TemplateVersion{
				Version:    v.Version,
				UploadedBy: v.UploadedBy,
				SizeBytes:  v.SizeBytes,
				Note:       v.Note,
				CreatedAt:  v.CreatedAt,
			})
		}
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, docInfo.Name)
	case FormatDOCX:
		return exportDOCX(html, docInfo.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
