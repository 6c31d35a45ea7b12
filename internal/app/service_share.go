package app

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/blob"
	"github.com/joshua0006/architect-hub-sub005/internal/store"
	"github.com/joshua0006/architect-hub-sub005/internal/util"
	"golang.org/x/crypto/bcrypt"
)

func shareLinkPayload(link store.ShareLink, baseURL string) map[string]any {
	payload := map[string]any{
		"id":          link.ID,
		"token":       link.Token,
		"url":         baseURL + "/share/" + link.Token,
		"projectId":   link.ProjectID,
		"folderId":    link.FolderID,
		"role":        link.Role,
		"protected":   link.PasswordHash != nil,
		"accessCount": link.AccessCount,
		"revoked":     link.RevokedAt != nil,
		"createdAt":   link.CreatedAt.Format(time.RFC3339),
	}
	if link.ExpiresAt != nil {
		payload["expiresAt"] = link.ExpiresAt.Format(time.RFC3339)
	}
	return payload
}

func (s *Service) CreateShareLink(ctx context.Context, session Session, projectID, folderID, role, password string, expiresInHours int) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	if role != "view" && role != "upload" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be view or upload", nil)
	}

	link := store.ShareLink{
		ID:        util.NewID("shl"),
		Token:     util.NewID("") + util.NewID(""),
		ProjectID: projectID,
		Role:      role,
		CreatedBy: session.UserID,
	}
	if folder := strings.TrimSpace(folderID); folder != "" {
		parentFolder, err := s.store.GetFolder(ctx, folder)
		if err != nil {
			return nil, err
		}
		if parentFolder.ProjectID != projectID {
			return nil, sql.ErrNoRows
		}
		link.FolderID = &parentFolder.ID
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}
	if expiresInHours > 0 {
		expires := time.Now().Add(time.Duration(expiresInHours) * time.Hour)
		link.ExpiresAt = &expires
	}

	if err := s.store.InsertShareLink(ctx, link); err != nil {
		return nil, err
	}
	return shareLinkPayload(link, s.cfg.BaseURL), nil
}

func (s *Service) ListShareLinks(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	links, err := s.store.ListShareLinks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(links))
	for _, link := range links {
		items = append(items, shareLinkPayload(link, s.cfg.BaseURL))
	}
	return items, nil
}

func (s *Service) RevokeShareLink(ctx context.Context, session Session, projectID, linkID string) error {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return err
	}
	links, err := s.store.ListShareLinks(ctx, projectID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if link.ID == linkID {
			return s.store.RevokeShareLink(ctx, linkID)
		}
	}
	return sql.ErrNoRows
}

// resolveShareLink validates the token, expiry, revocation and password.
// It is the gate for every unauthenticated /share request.
func (s *Service) resolveShareLink(ctx context.Context, token, password string) (store.ShareLink, error) {
	link, err := s.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return store.ShareLink{}, err
	}
	if link.RevokedAt != nil {
		return store.ShareLink{}, domainError(http.StatusGone, "LINK_REVOKED", "This link has been revoked", nil)
	}
	if link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt) {
		return store.ShareLink{}, domainError(http.StatusGone, "LINK_EXPIRED", "This link has expired", nil)
	}
	if link.PasswordHash != nil {
		if password == "" {
			return store.ShareLink{}, domainError(http.StatusUnauthorized, "PASSWORD_REQUIRED", "This link requires a password", nil)
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)) != nil {
			return store.ShareLink{}, domainError(http.StatusUnauthorized, "PASSWORD_INVALID", "Wrong password", nil)
		}
	}
	return link, nil
}

// OpenShareLink resolves a token for a guest. View links include the scoped
// document listing; upload links only describe the drop target.
func (s *Service) OpenShareLink(ctx context.Context, token, password string) (map[string]any, error) {
	link, err := s.resolveShareLink(ctx, token, password)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchShareLink(ctx, link.ID); err != nil {
		log.Printf("app: touch share link %s: %v", link.ID, err)
	}

	project, err := s.store.GetProject(ctx, link.ProjectID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"projectName": project.Name,
		"role":        link.Role,
	}
	if link.FolderID != nil {
		folder, err := s.store.GetFolder(ctx, *link.FolderID)
		if err != nil {
			return nil, err
		}
		payload["folderName"] = folder.Name
	}
	if link.Role != "view" {
		return payload, nil
	}

	documents, err := s.store.ListDocumentsByFolder(ctx, link.ProjectID, link.FolderID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(documents))
	for _, doc := range documents {
		item := documentPayload(doc)
		if s.blob != nil {
			v, err := s.store.GetVersion(ctx, doc.ID, doc.CurrentVersion)
			if err == nil {
				if url, err := s.blob.PresignedDownload(ctx, v.ObjectKey, doc.Name, 15*time.Minute); err == nil {
					item["downloadUrl"] = url
				}
			}
		}
		items = append(items, item)
	}
	payload["documents"] = items
	return payload, nil
}

// ShareUpload registers a guest upload through an upload-scoped link and
// returns the presigned PUT. The uploader is recorded as the link itself.
func (s *Service) ShareUpload(ctx context.Context, token, password, name, contentType string, sizeBytes int64) (map[string]any, error) {
	link, err := s.resolveShareLink(ctx, token, password)
	if err != nil {
		return nil, err
	}
	if link.Role != "upload" {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "This link does not allow uploads", nil)
	}
	if s.blob == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	doc := store.Document{
		ID:             util.NewID("doc"),
		ProjectID:      link.ProjectID,
		FolderID:       link.FolderID,
		Name:           name,
		ContentType:    contentType,
		SizeBytes:      sizeBytes,
		CurrentVersion: 1,
		UpdatedBy:      "guest:" + link.ID,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	objectKey := blob.VersionKey(link.ProjectID, doc.ID, 1)
	if err := s.store.InsertVersion(ctx, store.DocumentVersion{
		ID:          util.NewID("ver"),
		DocumentID:  doc.ID,
		Version:     1,
		ObjectKey:   objectKey,
		SizeBytes:   sizeBytes,
		ContentType: contentType,
		UploadedBy:  "guest:" + link.ID,
	}); err != nil {
		return nil, err
	}
	if err := s.store.TouchShareLink(ctx, link.ID); err != nil {
		log.Printf("app: touch share link %s: %v", link.ID, err)
	}

	uploadURL, err := s.blob.PresignedUpload(ctx, objectKey, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"documentId": doc.ID,
		"uploadUrl":  uploadURL,
	}, nil
}
