package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/auth"
	"github.com/joshua0006/architect-hub-sub005/internal/authpw"
	"github.com/joshua0006/architect-hub-sub005/internal/blob"
	"github.com/joshua0006/architect-hub-sub005/internal/config"
	"github.com/joshua0006/architect-hub-sub005/internal/email"
	"github.com/joshua0006/architect-hub-sub005/internal/rbac"
	"github.com/joshua0006/architect-hub-sub005/internal/search"
	"github.com/joshua0006/architect-hub-sub005/internal/store"
	"github.com/joshua0006/architect-hub-sub005/internal/util"
	"golang.org/x/crypto/bcrypt"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the Postgres surface the service needs. Tests supply a fake.
type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	ListActiveUsers(context.Context) ([]store.User, error)
	UpdateUserRole(context.Context, string, string) error
	SetUserDeactivated(context.Context, string, bool) error

	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjects(context.Context) ([]store.Project, error)
	ListProjectsForUser(context.Context, string) ([]store.Project, error)
	UpsertMembership(context.Context, store.ProjectMembership) error
	DeleteMembership(context.Context, string, string) error
	GetMembershipRole(context.Context, string, string) (string, error)
	ListMemberships(context.Context, string) ([]store.ProjectMembership, error)

	InsertFolder(context.Context, store.Folder) error
	GetFolder(context.Context, string) (store.Folder, error)
	ListFolders(context.Context, string) ([]store.Folder, error)
	RenameFolder(context.Context, string, string) error
	DeleteFolder(context.Context, string) error
	FolderChildCount(context.Context, string) (int, error)

	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	ListDocumentsByProject(context.Context, string) ([]store.Document, error)
	ListDocumentsByFolder(context.Context, string, *string) ([]store.Document, error)
	UpdateDocumentHead(context.Context, string, int, int64, string, string) error
	RenameDocument(context.Context, string, string, string) error
	DeleteDocument(context.Context, string) error
	InsertVersion(context.Context, store.DocumentVersion) error
	ListVersions(context.Context, string) ([]store.DocumentVersion, error)
	GetVersion(context.Context, string, int) (store.DocumentVersion, error)

	InsertComment(context.Context, store.Comment) error
	UpdateComment(context.Context, string, string, string) error
	DeleteComment(context.Context, string) error
	GetComment(context.Context, string) (store.Comment, error)
	ListComments(context.Context, string) ([]store.Comment, error)
	ReplaceCommentMentions(context.Context, string, []string) error
	ListCommentMentions(context.Context, string) ([]string, error)

	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string, bool) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string) error
	MarkAllNotificationsRead(context.Context, string) error

	InsertShareLink(context.Context, store.ShareLink) error
	GetShareLinkByToken(context.Context, string) (store.ShareLink, error)
	ListShareLinks(context.Context, string) ([]store.ShareLink, error)
	RevokeShareLink(context.Context, string) error
	TouchShareLink(context.Context, string) error

	SummaryCounts(context.Context) (int, int, int, error)
}

// refreshStore keeps refresh tokens. Redis when configured, Postgres otherwise.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// blobStore is the object-storage surface the service needs.
type blobStore interface {
	PresignedDownload(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
	PresignedUpload(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	IndexComment(c search.CommentRecord)
	DeleteDocument(id string)
	DeleteComment(id string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	blob     blobStore
	search   searchService
	email    *email.Service
	authPW   *authpw.Service
}

type Options struct {
	Sessions refreshStore
	Blob     *blob.Service
	Search   *search.Service
	Email    *email.Service
	AuthPW   *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, opts Options) *Service {
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		email:  opts.Email,
		authPW: opts.AuthPW,
	}
	if opts.Sessions != nil {
		s.sessions = opts.Sessions
	} else {
		s.sessions = dataStore
	}
	if opts.Blob != nil {
		s.blob = opts.Blob
	}
	if opts.Search != nil {
		s.search = opts.Search
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authPW
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// Bootstrap seeds an admin account and a sample project on an empty database.
func (s *Service) Bootstrap(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("change-me-now"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     "Hub Admin",
		Email:           "admin@architect-hub.local",
		PasswordHash:    string(hash),
		Role:            string(rbac.RoleAdmin),
		IsEmailVerified: true,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return err
	}
	log.Printf("app: seeded admin user %s (password must be rotated)", admin.Email)

	project := store.Project{
		ID:          util.NewID("prj"),
		Name:        "Sample Project",
		Description: "Starter project. Rename or delete it once real projects exist.",
		CreatedBy:   admin.ID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return err
	}
	if err := s.store.UpsertMembership(ctx, store.ProjectMembership{
		ProjectID: project.ID,
		UserID:    admin.ID,
		Role:      string(rbac.RoleAdmin),
		GrantedBy: admin.ID,
	}); err != nil {
		return err
	}
	for _, name := range []string{"Drawings", "Site Photos", "Contracts"} {
		if err := s.store.InsertFolder(ctx, store.Folder{
			ID:        util.NewID("fld"),
			ProjectID: project.ID,
			Name:      name,
			CreatedBy: admin.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ---- sessions ----

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session backend may carry only the user ID. Load the current row so
	// role changes and deactivation take effect on rotation.
	fresh, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	if fresh.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}
	return s.issueSession(ctx, fresh)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// canAccessProject reports whether the session may act on the project.
// Admins and staff have org-wide access; everyone else needs a membership.
func (s *Service) canAccessProject(ctx context.Context, session Session, projectID string) (bool, error) {
	role := rbac.Normalize(session.Role)
	if role == rbac.RoleAdmin || role == rbac.RoleStaff {
		return true, nil
	}
	memberRole, err := s.store.GetMembershipRole(ctx, projectID, session.UserID)
	if err != nil {
		return false, err
	}
	return memberRole != "", nil
}

func (s *Service) requireProjectAccess(ctx context.Context, session Session, projectID string) error {
	ok, err := s.canAccessProject(ctx, session, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusForbidden, "FORBIDDEN", "No access to this project", nil)
	}
	return nil
}

// ---- projects & folders ----

func (s *Service) ListProjects(ctx context.Context, session Session) ([]map[string]any, error) {
	var (
		projects []store.Project
		err      error
	)
	role := rbac.Normalize(session.Role)
	if role == rbac.RoleAdmin || role == rbac.RoleStaff {
		projects, err = s.store.ListProjects(ctx)
	} else {
		projects, err = s.store.ListProjectsForUser(ctx, session.UserID)
	}
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectPayload(project))
	}
	return items, nil
}

func projectPayload(p store.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"createdBy":   p.CreatedBy,
		"createdAt":   p.CreatedAt.Format(time.RFC3339),
		"updatedAt":   p.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Service) CreateProject(ctx context.Context, session Session, name, description string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	project := store.Project{
		ID:          util.NewID("prj"),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	if err := s.store.UpsertMembership(ctx, store.ProjectMembership{
		ProjectID: project.ID,
		UserID:    session.UserID,
		Role:      session.Role,
		GrantedBy: session.UserID,
	}); err != nil {
		return nil, err
	}
	return projectPayload(project), nil
}

// GetProjectTree returns the project with its folder tree, documents attached
// to the folder that holds them. Root documents hang off "documents".
func (s *Service) GetProjectTree(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	folders, err := s.store.ListFolders(ctx, projectID)
	if err != nil {
		return nil, err
	}
	documents, err := s.store.ListDocumentsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	docsByFolder := make(map[string][]map[string]any)
	rootDocs := make([]map[string]any, 0)
	for _, doc := range documents {
		payload := documentPayload(doc)
		if doc.FolderID == nil {
			rootDocs = append(rootDocs, payload)
			continue
		}
		docsByFolder[*doc.FolderID] = append(docsByFolder[*doc.FolderID], payload)
	}

	childFolders := make(map[string][]store.Folder)
	rootFolders := make([]store.Folder, 0)
	for _, folder := range folders {
		if folder.ParentID == nil {
			rootFolders = append(rootFolders, folder)
			continue
		}
		childFolders[*folder.ParentID] = append(childFolders[*folder.ParentID], folder)
	}

	var buildNode func(f store.Folder) map[string]any
	buildNode = func(f store.Folder) map[string]any {
		children := make([]map[string]any, 0)
		for _, child := range childFolders[f.ID] {
			children = append(children, buildNode(child))
		}
		docs := docsByFolder[f.ID]
		if docs == nil {
			docs = []map[string]any{}
		}
		return map[string]any{
			"id":        f.ID,
			"name":      f.Name,
			"children":  children,
			"documents": docs,
		}
	}

	tree := make([]map[string]any, 0, len(rootFolders))
	for _, folder := range rootFolders {
		tree = append(tree, buildNode(folder))
	}

	payload := projectPayload(project)
	payload["folders"] = tree
	payload["documents"] = rootDocs
	return payload, nil
}

func (s *Service) CreateFolder(ctx context.Context, session Session, projectID, parentID, name string) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	folder := store.Folder{
		ID:        util.NewID("fld"),
		ProjectID: projectID,
		Name:      name,
		CreatedBy: session.UserID,
	}
	if parent := strings.TrimSpace(parentID); parent != "" {
		parentFolder, err := s.store.GetFolder(ctx, parent)
		if err != nil {
			return nil, err
		}
		if parentFolder.ProjectID != projectID {
			return nil, sql.ErrNoRows
		}
		folder.ParentID = &parentFolder.ID
	}
	if err := s.store.InsertFolder(ctx, folder); err != nil {
		return nil, err
	}
	return map[string]any{"id": folder.ID, "name": folder.Name, "parentId": folder.ParentID}, nil
}

func (s *Service) RenameFolder(ctx context.Context, session Session, projectID, folderID, name string) error {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return err
	}
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.ProjectID != projectID {
		return sql.ErrNoRows
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	return s.store.RenameFolder(ctx, folderID, name)
}

func (s *Service) DeleteFolder(ctx context.Context, session Session, projectID, folderID string) error {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return err
	}
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.ProjectID != projectID {
		return sql.ErrNoRows
	}
	count, err := s.store.FolderChildCount(ctx, folderID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domainError(http.StatusConflict, "FOLDER_NOT_EMPTY", "Folder still contains items", map[string]any{"count": count})
	}
	return s.store.DeleteFolder(ctx, folderID)
}

// ---- documents & versions ----

func documentPayload(d store.Document) map[string]any {
	return map[string]any{
		"id":             d.ID,
		"projectId":      d.ProjectID,
		"folderId":       d.FolderID,
		"name":           d.Name,
		"contentType":    d.ContentType,
		"sizeBytes":      d.SizeBytes,
		"currentVersion": d.CurrentVersion,
		"updatedBy":      d.UpdatedBy,
		"updatedAt":      d.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateDocument registers metadata and the v1 version row, then hands back a
// presigned PUT URL. The binary goes straight to object storage.
func (s *Service) CreateDocument(ctx context.Context, session Session, projectID, folderID, name, contentType string, sizeBytes int64) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
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
		ProjectID:      projectID,
		Name:           name,
		ContentType:    contentType,
		SizeBytes:      sizeBytes,
		CurrentVersion: 1,
		UpdatedBy:      session.UserID,
	}
	if folder := strings.TrimSpace(folderID); folder != "" {
		parentFolder, err := s.store.GetFolder(ctx, folder)
		if err != nil {
			return nil, err
		}
		if parentFolder.ProjectID != projectID {
			return nil, sql.ErrNoRows
		}
		doc.FolderID = &parentFolder.ID
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	objectKey := blob.VersionKey(projectID, doc.ID, 1)
	if err := s.store.InsertVersion(ctx, store.DocumentVersion{
		ID:          util.NewID("ver"),
		DocumentID:  doc.ID,
		Version:     1,
		ObjectKey:   objectKey,
		SizeBytes:   sizeBytes,
		ContentType: contentType,
		UploadedBy:  session.UserID,
	}); err != nil {
		return nil, err
	}

	uploadURL, err := s.blob.PresignedUpload(ctx, objectKey, 15*time.Minute)
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexDocument(search.DocumentRecord{
			ID: doc.ID, Name: doc.Name, ContentType: doc.ContentType, ProjectID: projectID,
		})
	}

	payload := documentPayload(doc)
	payload["uploadUrl"] = uploadURL
	return payload, nil
}

// UploadVersion creates the next version row and bumps the document head.
func (s *Service) UploadVersion(ctx context.Context, session Session, projectID, documentID, contentType, note string, sizeBytes int64) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	if s.blob == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured", nil)
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}

	nextVersion := doc.CurrentVersion + 1
	objectKey := blob.VersionKey(projectID, documentID, nextVersion)
	if err := s.store.InsertVersion(ctx, store.DocumentVersion{
		ID:          util.NewID("ver"),
		DocumentID:  documentID,
		Version:     nextVersion,
		ObjectKey:   objectKey,
		SizeBytes:   sizeBytes,
		ContentType: contentType,
		UploadedBy:  session.UserID,
		Note:        strings.TrimSpace(note),
	}); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDocumentHead(ctx, documentID, nextVersion, sizeBytes, contentType, session.UserID); err != nil {
		return nil, err
	}

	uploadURL, err := s.blob.PresignedUpload(ctx, objectKey, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"documentId": documentID,
		"version":    nextVersion,
		"uploadUrl":  uploadURL,
	}, nil
}

func (s *Service) ListVersions(ctx context.Context, session Session, projectID, documentID string) ([]map[string]any, error) {
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
	versions, err := s.store.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, map[string]any{
			"version":     v.Version,
			"sizeBytes":   v.SizeBytes,
			"contentType": v.ContentType,
			"uploadedBy":  v.UploadedBy,
			"note":        v.Note,
			"createdAt":   v.CreatedAt.Format(time.RFC3339),
			"isCurrent":   v.Version == doc.CurrentVersion,
		})
	}
	return items, nil
}

// RestoreVersion promotes an old version as a new head version. The object is
// not copied; the new version row points at the old object key.
func (s *Service) RestoreVersion(ctx context.Context, session Session, projectID, documentID string, version int) (map[string]any, error) {
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
	if version == doc.CurrentVersion {
		return nil, domainError(http.StatusConflict, "ALREADY_CURRENT", "Version is already current", nil)
	}
	old, err := s.store.GetVersion(ctx, documentID, version)
	if err != nil {
		return nil, err
	}

	nextVersion := doc.CurrentVersion + 1
	if err := s.store.InsertVersion(ctx, store.DocumentVersion{
		ID:          util.NewID("ver"),
		DocumentID:  documentID,
		Version:     nextVersion,
		ObjectKey:   old.ObjectKey,
		SizeBytes:   old.SizeBytes,
		ContentType: old.ContentType,
		UploadedBy:  session.UserID,
		Note:        fmt.Sprintf("restored from v%d", version),
	}); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDocumentHead(ctx, documentID, nextVersion, old.SizeBytes, old.ContentType, session.UserID); err != nil {
		return nil, err
	}
	return map[string]any{
		"documentId":   documentID,
		"version":      nextVersion,
		"restoredFrom": version,
	}, nil
}

// DownloadURL returns a presigned GET for the requested version, or the
// current head when version is 0.
func (s *Service) DownloadURL(ctx context.Context, session Session, projectID, documentID string, version int) (map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	if s.blob == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured", nil)
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}
	if version == 0 {
		version = doc.CurrentVersion
	}
	v, err := s.store.GetVersion(ctx, documentID, version)
	if err != nil {
		return nil, err
	}
	url, err := s.blob.PresignedDownload(ctx, v.ObjectKey, doc.Name, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url, "version": version}, nil
}

func (s *Service) RenameDocument(ctx context.Context, session Session, projectID, documentID, name string) error {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.ProjectID != projectID {
		return sql.ErrNoRows
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.store.RenameDocument(ctx, documentID, name, session.UserID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.IndexDocument(search.DocumentRecord{
			ID: documentID, Name: name, ContentType: doc.ContentType, ProjectID: projectID,
		})
	}
	return nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, projectID, documentID string) error {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.ProjectID != projectID {
		return sql.ErrNoRows
	}
	versions, err := s.store.ListVersions(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if s.blob != nil {
		for _, v := range versions {
			if err := s.blob.Delete(ctx, v.ObjectKey); err != nil {
				log.Printf("app: delete object %s: %v", v.ObjectKey, err)
			}
		}
	}
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	return nil
}

// ---- search & summary ----

func (s *Service) Search(ctx context.Context, session Session, text, filterType, projectID string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	q := search.Query{
		Text:       text,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	}
	if projectID != "" {
		if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
			return search.Response{}, err
		}
		q.FilterProjectID = projectID
	} else {
		role := rbac.Normalize(session.Role)
		if role != rbac.RoleAdmin && role != rbac.RoleStaff {
			projects, err := s.store.ListProjectsForUser(ctx, session.UserID)
			if err != nil {
				return search.Response{}, err
			}
			ids := make([]string, 0, len(projects))
			for _, p := range projects {
				ids = append(ids, p.ID)
			}
			q.ProjectIDs = ids
		}
	}
	return s.search.Search(q), nil
}

func (s *Service) Summary(ctx context.Context) (map[string]any, error) {
	projects, documents, comments, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"projects":  projects,
		"documents": documents,
		"comments":  comments,
	}, nil
}
