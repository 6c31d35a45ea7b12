package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/auth"
	"github.com/joshua0006/architect-hub-sub005/internal/authpw"
	"github.com/joshua0006/architect-hub-sub005/internal/rbac"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	segments := splitPath(r.URL.Path)

	// Public share links resolve before any session checks.
	if len(segments) >= 2 && segments[0] == "share" {
		s.handleShare(w, r, segments[1:])
		return
	}

	if len(segments) < 2 || segments[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	rest := segments[1:]

	switch {
	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "ready":
		s.handleReady(w, r)
		return
	}

	if rest[0] == "auth" {
		s.handleAuth(w, r, rest[1:])
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	switch rest[0] {
	case "me":
		if r.Method == http.MethodGet && len(rest) == 1 {
			writeJSON(w, http.StatusOK, map[string]any{
				"userId":   session.UserID,
				"userName": session.UserName,
				"email":    session.Email,
				"role":     session.Role,
			})
			return
		}
	case "summary":
		if r.Method == http.MethodGet && len(rest) == 1 {
			s.handleSummary(w, r, session)
			return
		}
	case "search":
		if r.Method == http.MethodGet && len(rest) == 1 {
			s.handleSearch(w, r, session)
			return
		}
	case "notifications":
		s.handleNotifications(w, r, session, rest[1:])
		return
	case "projects":
		s.handleProjects(w, r, session, rest[1:])
		return
	case "admin":
		s.handleAdmin(w, r, session, rest[1:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"db": "ok"}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		checks["db"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"checks": checks})
}

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	switch {
	case len(rest) == 1 && rest[0] == "signup":
		s.handleAuthSignUp(w, r)
	case len(rest) == 1 && rest[0] == "signin":
		s.handleAuthSignIn(w, r)
	case len(rest) == 1 && rest[0] == "verify-email":
		s.handleAuthVerifyEmail(w, r)
	case len(rest) == 1 && rest[0] == "refresh":
		s.handleAuthRefresh(w, r)
	case len(rest) == 1 && rest[0] == "logout":
		s.handleAuthLogout(w, r)
	case len(rest) == 2 && rest[0] == "password-reset" && rest[1] == "request":
		s.handleAuthRequestReset(w, r)
	case len(rest) == 2 && rest[0] == "password-reset" && rest[1] == "confirm":
		s.handleAuthResetPassword(w, r)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// ---- share links (unauthenticated) ----

func sharePassword(r *http.Request) string {
	if password := r.Header.Get("X-Share-Password"); password != "" {
		return password
	}
	return r.URL.Query().Get("password")
}

func (s *HTTPServer) handleShare(w http.ResponseWriter, r *http.Request, rest []string) {
	token := rest[0]
	switch {
	case r.Method == http.MethodGet && len(rest) == 1:
		payload, err := s.service.OpenShareLink(r.Context(), token, sharePassword(r))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "upload":
		var body struct {
			Name        string `json:"name"`
			ContentType string `json:"contentType"`
			SizeBytes   int64  `json:"sizeBytes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.ShareUpload(r.Context(), token, sharePassword(r), body.Name, body.ContentType, body.SizeBytes)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// ---- projects and everything under them ----

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.requireAction(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListProjects(r.Context(), session)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"projects": items})
		case http.MethodPost:
			if !s.requireAction(w, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateProject(r.Context(), session, body.Name, body.Description)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	projectID := rest[0]
	rest = rest[1:]

	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.GetProjectTree(r.Context(), session, projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	switch rest[0] {
	case "members":
		s.handleMembers(w, r, session, projectID, rest[1:])
	case "folders":
		s.handleFolders(w, r, session, projectID, rest[1:])
	case "documents":
		s.handleDocuments(w, r, session, projectID, rest[1:])
	case "share-links":
		s.handleShareLinks(w, r, session, projectID, rest[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMembers(w http.ResponseWriter, r *http.Request, session Session, projectID string, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListProjectMembers(r.Context(), session, projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": items})
	case r.Method == http.MethodPost && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionManage) {
			return
		}
		var body struct {
			UserID string `json:"userId"`
			Role   string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.GrantMembership(r.Context(), session, projectID, body.UserID, body.Role); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
	case r.Method == http.MethodDelete && len(rest) == 1:
		if !s.requireAction(w, session, rbac.ActionManage) {
			return
		}
		if err := s.service.RevokeMembership(r.Context(), projectID, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleFolders(w http.ResponseWriter, r *http.Request, session Session, projectID string, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			Name     string `json:"name"`
			ParentID string `json:"parentId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateFolder(r.Context(), session, projectID, body.ParentID, body.Name)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case r.Method == http.MethodPatch && len(rest) == 1:
		if !s.requireAction(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.RenameFolder(r.Context(), session, projectID, rest[0], body.Name); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
	case r.Method == http.MethodDelete && len(rest) == 1:
		if !s.requireAction(w, session, rbac.ActionWrite) {
			return
		}
		if err := s.service.DeleteFolder(r.Context(), session, projectID, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, session Session, projectID string, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		if !s.requireAction(w, session, rbac.ActionUpload) {
			return
		}
		var body struct {
			Name        string `json:"name"`
			FolderID    string `json:"folderId"`
			ContentType string `json:"contentType"`
			SizeBytes   int64  `json:"sizeBytes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateDocument(r.Context(), session, projectID, body.FolderID, body.Name, body.ContentType, body.SizeBytes)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	documentID := rest[0]
	rest = rest[1:]

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPatch:
			if !s.requireAction(w, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.RenameDocument(r.Context(), session, projectID, documentID, body.Name); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
		case http.MethodDelete:
			if !s.requireAction(w, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.DeleteDocument(r.Context(), session, projectID, documentID); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "versions":
		s.handleVersions(w, r, session, projectID, documentID, rest[1:])
	case "download":
		if r.Method != http.MethodGet || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		version, _ := strconv.Atoi(r.URL.Query().Get("version"))
		payload, err := s.service.DownloadURL(r.Context(), session, projectID, documentID, version)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case "comments":
		s.handleComments(w, r, session, projectID, documentID, rest[1:])
	case "export":
		if r.Method != http.MethodGet || len(rest) != 1 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		s.handleExport(w, r, session, projectID, documentID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleVersions(w http.ResponseWriter, r *http.Request, session Session, projectID, documentID string, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListVersions(r.Context(), session, projectID, documentID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": items})
	case r.Method == http.MethodPost && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionUpload) {
			return
		}
		var body struct {
			ContentType string `json:"contentType"`
			SizeBytes   int64  `json:"sizeBytes"`
			Note        string `json:"note"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UploadVersion(r.Context(), session, projectID, documentID, body.ContentType, body.Note, body.SizeBytes)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "restore":
		if !s.requireAction(w, session, rbac.ActionWrite) {
			return
		}
		version, err := strconv.Atoi(rest[0])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid version number", nil)
			return
		}
		payload, err := s.service.RestoreVersion(r.Context(), session, projectID, documentID, version)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, session Session, projectID, documentID string, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListComments(r.Context(), session, projectID, documentID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": items})
	case r.Method == http.MethodPost && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionComment) {
			return
		}
		var body struct {
			Body   string `json:"body"`
			Page   *int   `json:"page"`
			Anchor string `json:"anchor"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateComment(r.Context(), session, projectID, documentID, body.Body, body.Anchor, body.Page)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case r.Method == http.MethodPatch && len(rest) == 1:
		if !s.requireAction(w, session, rbac.ActionComment) {
			return
		}
		var body struct {
			Body string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.EditComment(r.Context(), session, projectID, documentID, rest[0], body.Body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case r.Method == http.MethodDelete && len(rest) == 1:
		if !s.requireAction(w, session, rbac.ActionComment) {
			return
		}
		if err := s.service.DeleteComment(r.Context(), session, projectID, documentID, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, projectID, documentID string) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}
	includeVersions := r.URL.Query().Get("versions") == "1"

	result, err := s.service.ExportCommentReport(r.Context(), session, projectID, documentID, format, includeVersions)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleShareLinks(w http.ResponseWriter, r *http.Request, session Session, projectID string, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionWrite) {
			return
		}
		items, err := s.service.ListShareLinks(r.Context(), session, projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shareLinks": items})
	case r.Method == http.MethodPost && len(rest) == 0:
		if !s.requireAction(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			FolderID       string `json:"folderId"`
			Role           string `json:"role"`
			Password       string `json:"password"`
			ExpiresInHours int    `json:"expiresInHours"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateShareLink(r.Context(), session, projectID, body.FolderID, body.Role, body.Password, body.ExpiresInHours)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case r.Method == http.MethodDelete && len(rest) == 1:
		if !s.requireAction(w, session, rbac.ActionWrite) {
			return
		}
		if err := s.service.RevokeShareLink(r.Context(), session, projectID, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		unreadOnly := r.URL.Query().Get("unread") == "1"
		items, err := s.service.ListNotifications(r.Context(), session, unreadOnly)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "read-all":
		if err := s.service.MarkAllNotificationsRead(r.Context(), session); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "read":
		if err := s.service.MarkNotificationRead(r.Context(), session, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if !s.requireAction(w, session, rbac.ActionManage) {
		return
	}
	switch {
	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "users":
		items, err := s.service.AdminListUsers(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": items})
	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "users":
		var body struct {
			DisplayName string `json:"displayName"`
			Email       string `json:"email"`
			Password    string `json:"password"`
			Role        string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AdminCreateUser(r.Context(), body.DisplayName, body.Email, body.Password, body.Role)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case r.Method == http.MethodPatch && len(rest) == 3 && rest[0] == "users" && rest[2] == "role":
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.AdminUpdateUserRole(r.Context(), session, rest[1], body.Role); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case r.Method == http.MethodPost && len(rest) == 3 && rest[0] == "users" && rest[2] == "deactivate":
		if err := s.service.AdminSetUserDeactivated(r.Context(), session, rest[1], true); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	case r.Method == http.MethodPost && len(rest) == 3 && rest[0] == "users" && rest[2] == "reactivate":
		if err := s.service.AdminSetUserDeactivated(r.Context(), session, rest[1], false); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reactivated"})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	if !s.requireAction(w, session, rbac.ActionRead) {
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response, err := s.service.Search(r.Context(), session, query.Get("q"), query.Get("type"), query.Get("project"), limit, offset)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request, session Session) {
	if !s.requireAction(w, session, rbac.ActionRead) {
		return
	}
	payload, err := s.service.Summary(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// ---- session plumbing ----

func (s *HTTPServer) requireAction(w http.ResponseWriter, session Session, action rbac.Action) bool {
	if !s.service.Can(session.Role, action) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
		return false
	}
	return true
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Share-Password")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// ---- auth handlers ----

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := authSvc.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		return
	}

	response := map[string]any{
		"userId":  resp.UserID,
		"message": "Please check your email to verify your account",
	}
	// Without SMTP the verification token surfaces in the response so local
	// setups can complete the flow.
	if !s.service.SMTPConfigured() {
		response["devVerificationToken"] = resp.VerificationToken
		response["message"] = "Account created. Verify your email to continue."
	}

	writeJSON(w, http.StatusCreated, response)
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := authSvc.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	if resp.RequiresVerify {
		writeError(w, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil)
		return
	}

	session, err := s.service.CreateSession(r.Context(), resp.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}

	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "refreshToken is required", nil)
		return
	}

	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.Logout(r.Context(), session, body.RefreshToken); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	if err := authSvc.VerifyEmail(r.Context(), body.Token); err != nil {
		writeError(w, http.StatusBadRequest, "VERIFICATION_FAILED", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

func (s *HTTPServer) handleAuthRequestReset(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	token, _ := authSvc.RequestPasswordReset(r.Context(), body.Email)

	response := map[string]any{
		"message": "If an account exists, a reset email has been sent",
	}
	if !s.service.SMTPConfigured() && token != "" {
		response["devResetToken"] = token
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleAuthResetPassword(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	if err := authSvc.ResetPassword(r.Context(), authpw.ResetPasswordRequest{
		Token:       body.Token,
		NewPassword: body.NewPassword,
	}); err != nil {
		writeError(w, http.StatusBadRequest, "RESET_FAILED", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}
