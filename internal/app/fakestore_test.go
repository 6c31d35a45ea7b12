package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/store"
)

// fakeStore is an in-memory dataStore for service and HTTP tests. It also
// satisfies authpw.UserStore and the refreshStore interface so one fake can
// back the whole stack.
type fakeStore struct {
	mu sync.Mutex

	users           map[string]store.User
	projects        map[string]store.Project
	memberships     map[string]store.ProjectMembership
	folders         map[string]store.Folder
	documents       map[string]store.Document
	versions        map[string][]store.DocumentVersion
	comments        map[string]store.Comment
	commentMentions map[string][]string
	notifications   map[string]store.Notification
	shareLinks      map[string]store.ShareLink
	refresh         map[string]refreshRecord
	revokedJTIs     map[string]bool
	verifications   map[string]string
	resets          map[string]resetRecord

	pingErr            error
	listActiveUsersErr error
}

type refreshRecord struct {
	userID    string
	expiresAt time.Time
}

type resetRecord struct {
	userID    string
	expiresAt time.Time
	used      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:           make(map[string]store.User),
		projects:        make(map[string]store.Project),
		memberships:     make(map[string]store.ProjectMembership),
		folders:         make(map[string]store.Folder),
		documents:       make(map[string]store.Document),
		versions:        make(map[string][]store.DocumentVersion),
		comments:        make(map[string]store.Comment),
		commentMentions: make(map[string][]string),
		notifications:   make(map[string]store.Notification),
		shareLinks:      make(map[string]store.ShareLink),
		refresh:         make(map[string]refreshRecord),
		revokedJTIs:     make(map[string]bool),
		verifications:   make(map[string]string),
		resets:          make(map[string]resetRecord),
	}
}

func membershipKey(projectID, userID string) string {
	return projectID + "|" + userID
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

// ---- users ----

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]store.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeStore) ListActiveUsers(ctx context.Context) ([]store.User, error) {
	if f.listActiveUsersErr != nil {
		return nil, f.listActiveUsersErr
	}
	users, _ := f.ListUsers(ctx)
	active := make([]store.User, 0, len(users))
	for _, user := range users {
		if user.DeactivatedAt == nil {
			active = append(active, user)
		}
	}
	return active, nil
}

func (f *fakeStore) UpdateUserRole(ctx context.Context, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = role
	f.users[userID] = user
	return nil
}

func (f *fakeStore) SetUserDeactivated(ctx context.Context, userID string, deactivated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if deactivated {
		now := time.Now()
		user.DeactivatedAt = &now
	} else {
		user.DeactivatedAt = nil
	}
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications[token] = userID
	return nil
}

func (f *fakeStore) VerifyUserEmail(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.verifications[token]
	if !ok {
		return sql.ErrNoRows
	}
	user := f.users[userID]
	user.IsEmailVerified = true
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = resetRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset, ok := f.resets[token]
	if !ok || reset.used || time.Now().After(reset.expiresAt) {
		return "", errors.New("invalid or expired token")
	}
	return reset.userID, nil
}

func (f *fakeStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset := f.resets[token]
	reset.used = true
	f.resets[token] = reset
	return nil
}

// ---- refresh sessions & token revocation ----

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = refreshRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	record, ok := f.refresh[tokenHash]
	f.mu.Unlock()
	if !ok || time.Now().After(record.expiresAt) {
		return store.User{}, sql.ErrNoRows
	}
	return f.GetUserByID(ctx, record.userID)
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedJTIs[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokedJTIs[jti], nil
}

// ---- projects & memberships ----

func (f *fakeStore) InsertProject(ctx context.Context, project store.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	f.projects[project.ID] = project
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.projects[projectID]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return project, nil
}

func (f *fakeStore) ListProjects(ctx context.Context) ([]store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	projects := make([]store.Project, 0, len(f.projects))
	for _, project := range f.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (f *fakeStore) ListProjectsForUser(ctx context.Context, userID string) ([]store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	projects := make([]store.Project, 0)
	for _, m := range f.memberships {
		if m.UserID == userID {
			if project, ok := f.projects[m.ProjectID]; ok {
				projects = append(projects, project)
			}
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (f *fakeStore) UpsertMembership(ctx context.Context, m store.ProjectMembership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.GrantedAt = time.Now()
	f.memberships[membershipKey(m.ProjectID, m.UserID)] = m
	return nil
}

func (f *fakeStore) DeleteMembership(ctx context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.memberships, membershipKey(projectID, userID))
	return nil
}

func (f *fakeStore) GetMembershipRole(ctx context.Context, projectID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memberships[membershipKey(projectID, userID)]; ok {
		return m.Role, nil
	}
	return "", nil
}

func (f *fakeStore) ListMemberships(ctx context.Context, projectID string) ([]store.ProjectMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]store.ProjectMembership, 0)
	for _, m := range f.memberships {
		if m.ProjectID == projectID {
			if user, ok := f.users[m.UserID]; ok {
				m.UserName = user.DisplayName
				m.UserEmail = user.Email
			}
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

// ---- folders ----

func (f *fakeStore) InsertFolder(ctx context.Context, folder store.Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder.CreatedAt = time.Now()
	f.folders[folder.ID] = folder
	return nil
}

func (f *fakeStore) GetFolder(ctx context.Context, folderID string) (store.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok {
		return store.Folder{}, sql.ErrNoRows
	}
	return folder, nil
}

func (f *fakeStore) ListFolders(ctx context.Context, projectID string) ([]store.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folders := make([]store.Folder, 0)
	for _, folder := range f.folders {
		if folder.ProjectID == projectID {
			folders = append(folders, folder)
		}
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

func (f *fakeStore) RenameFolder(ctx context.Context, folderID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok {
		return sql.ErrNoRows
	}
	folder.Name = name
	f.folders[folderID] = folder
	return nil
}

func (f *fakeStore) DeleteFolder(ctx context.Context, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.folders, folderID)
	return nil
}

func (f *fakeStore) FolderChildCount(ctx context.Context, folderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, folder := range f.folders {
		if folder.ParentID != nil && *folder.ParentID == folderID {
			count++
		}
	}
	for _, doc := range f.documents {
		if doc.FolderID != nil && *doc.FolderID == folderID {
			count++
		}
	}
	return count, nil
}

// ---- documents & versions ----

func (f *fakeStore) InsertDocument(ctx context.Context, doc store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	f.documents[doc.ID] = doc
	return nil
}

func (f *fakeStore) GetDocument(ctx context.Context, documentID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return doc, nil
}

func (f *fakeStore) ListDocumentsByProject(ctx context.Context, projectID string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := make([]store.Document, 0)
	for _, doc := range f.documents {
		if doc.ProjectID == projectID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (f *fakeStore) ListDocumentsByFolder(ctx context.Context, projectID string, folderID *string) ([]store.Document, error) {
	docs, _ := f.ListDocumentsByProject(ctx, projectID)
	filtered := make([]store.Document, 0)
	for _, doc := range docs {
		switch {
		case folderID == nil && doc.FolderID == nil:
			filtered = append(filtered, doc)
		case folderID != nil && doc.FolderID != nil && *doc.FolderID == *folderID:
			filtered = append(filtered, doc)
		}
	}
	return filtered, nil
}

func (f *fakeStore) UpdateDocumentHead(ctx context.Context, documentID string, version int, sizeBytes int64, contentType, updatedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return sql.ErrNoRows
	}
	doc.CurrentVersion = version
	doc.SizeBytes = sizeBytes
	doc.ContentType = contentType
	doc.UpdatedBy = updatedBy
	doc.UpdatedAt = time.Now()
	f.documents[documentID] = doc
	return nil
}

func (f *fakeStore) RenameDocument(ctx context.Context, documentID, name, updatedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return sql.ErrNoRows
	}
	doc.Name = name
	doc.UpdatedBy = updatedBy
	f.documents[documentID] = doc
	return nil
}

func (f *fakeStore) DeleteDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.documents, documentID)
	delete(f.versions, documentID)
	return nil
}

func (f *fakeStore) InsertVersion(ctx context.Context, v store.DocumentVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.CreatedAt = time.Now()
	f.versions[v.DocumentID] = append(f.versions[v.DocumentID], v)
	return nil
}

func (f *fakeStore) ListVersions(ctx context.Context, documentID string) ([]store.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := append([]store.DocumentVersion(nil), f.versions[documentID]...)
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version > versions[j].Version })
	return versions, nil
}

func (f *fakeStore) GetVersion(ctx context.Context, documentID string, version int) (store.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions[documentID] {
		if v.Version == version {
			return v, nil
		}
	}
	return store.DocumentVersion{}, sql.ErrNoRows
}

// ---- comments, mentions, notifications ----

func (f *fakeStore) InsertComment(ctx context.Context, c store.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.comments[c.ID] = c
	return nil
}

func (f *fakeStore) UpdateComment(ctx context.Context, commentID, body, bodyHTML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[commentID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Body = body
	c.BodyHTML = bodyHTML
	c.UpdatedAt = time.Now()
	f.comments[commentID] = c
	return nil
}

func (f *fakeStore) DeleteComment(ctx context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.comments, commentID)
	delete(f.commentMentions, commentID)
	return nil
}

func (f *fakeStore) GetComment(ctx context.Context, commentID string) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[commentID]
	if !ok {
		return store.Comment{}, sql.ErrNoRows
	}
	if user, ok := f.users[c.AuthorID]; ok {
		c.AuthorName = user.DisplayName
	}
	return c, nil
}

func (f *fakeStore) ListComments(ctx context.Context, documentID string) ([]store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comments := make([]store.Comment, 0)
	for _, c := range f.comments {
		if c.DocumentID == documentID {
			if user, ok := f.users[c.AuthorID]; ok {
				c.AuthorName = user.DisplayName
			}
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (f *fakeStore) ReplaceCommentMentions(ctx context.Context, commentID string, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentMentions[commentID] = append([]string(nil), userIDs...)
	return nil
}

func (f *fakeStore) ListCommentMentions(ctx context.Context, commentID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commentMentions[commentID]...), nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n store.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.CreatedAt = time.Now()
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	notifications := make([]store.Notification, 0)
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		notifications = append(notifications, n)
	}
	sort.Slice(notifications, func(i, j int) bool { return notifications[i].ID < notifications[j].ID })
	return notifications, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[notificationID]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	now := time.Now()
	n.ReadAt = &now
	f.notifications[notificationID] = n
	return nil
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for id, n := range f.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &now
			f.notifications[id] = n
		}
	}
	return nil
}

// ---- share links ----

func (f *fakeStore) InsertShareLink(ctx context.Context, link store.ShareLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link.CreatedAt = time.Now()
	f.shareLinks[link.ID] = link
	return nil
}

func (f *fakeStore) GetShareLinkByToken(ctx context.Context, token string) (store.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.shareLinks {
		if link.Token == token {
			return link, nil
		}
	}
	return store.ShareLink{}, sql.ErrNoRows
}

func (f *fakeStore) ListShareLinks(ctx context.Context, projectID string) ([]store.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	links := make([]store.ShareLink, 0)
	for _, link := range f.shareLinks {
		if link.ProjectID == projectID {
			links = append(links, link)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

func (f *fakeStore) RevokeShareLink(ctx context.Context, linkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.shareLinks[linkID]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	link.RevokedAt = &now
	f.shareLinks[linkID] = link
	return nil
}

func (f *fakeStore) TouchShareLink(ctx context.Context, linkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.shareLinks[linkID]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	link.AccessCount++
	link.LastAccessedAt = &now
	f.shareLinks[linkID] = link
	return nil
}

func (f *fakeStore) SummaryCounts(ctx context.Context) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects), len(f.documents), len(f.comments), nil
}

// fakeBlob records presign and delete calls without talking to storage.
type fakeBlob struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeBlob) PresignedDownload(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://blob.test/get/%s", key), nil
}

func (f *fakeBlob) PresignedUpload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://blob.test/put/%s", key), nil
}

func (f *fakeBlob) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}
