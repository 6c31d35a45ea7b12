package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/joshua0006/architect-hub-sub005/internal/export"
)

// exportDataStore adapts the app's store to the export package.
type exportDataStore struct {
	store dataStore
}

func (e exportDataStore) GetDocumentInfo(ctx context.Context, documentID string) (export.DocumentInfo, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return export.DocumentInfo{}, err
	}
	return export.DocumentInfo{
		ID:             doc.ID,
		Name:           doc.Name,
		ProjectID:      doc.ProjectID,
		ContentType:    doc.ContentType,
		CurrentVersion: doc.CurrentVersion,
		UpdatedBy:      doc.UpdatedBy,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func (e exportDataStore) GetProjectInfo(ctx context.Context, projectID string) (export.ProjectInfo, error) {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return export.ProjectInfo{}, err
	}
	return export.ProjectInfo{ID: project.ID, Name: project.Name}, nil
}

func (e exportDataStore) ListCommentInfos(ctx context.Context, documentID string) ([]export.CommentInfo, error) {
	comments, err := e.store.ListComments(ctx, documentID)
	if err != nil {
		return nil, err
	}
	infos := make([]export.CommentInfo, 0, len(comments))
	for _, c := range comments {
		infos = append(infos, export.CommentInfo{
			AuthorName: c.AuthorName,
			BodyHTML:   c.BodyHTML,
			Page:       c.Page,
			CreatedAt:  c.CreatedAt,
		})
	}
	return infos, nil
}

func (e exportDataStore) ListVersionInfos(ctx context.Context, documentID string) ([]export.VersionInfo, error) {
	versions, err := e.store.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	infos := make([]export.VersionInfo, 0, len(versions))
	for _, v := range versions {
		infos = append(infos, export.VersionInfo{
			Version:    v.Version,
			UploadedBy: v.UploadedBy,
			SizeBytes:  v.SizeBytes,
			Note:       v.Note,
			CreatedAt:  v.CreatedAt,
		})
	}
	return infos, nil
}

// ExportCommentReport renders a document's comment report as PDF or DOCX.
func (s *Service) ExportCommentReport(ctx context.Context, session Session, projectID, documentID, format string, includeVersions bool) (*export.Result, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}

	exportFormat := export.Format(format)
	if exportFormat != export.FormatPDF && exportFormat != export.FormatDOCX {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
	}

	svc := export.NewService(exportDataStore{store: s.store})
	result, err := svc.Export(ctx, export.Request{
		DocumentID:      documentID,
		Format:          exportFormat,
		IncludeVersions: includeVersions,
	})
	if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export renderer is not available on this host", nil)
	}
	return result, err
}
