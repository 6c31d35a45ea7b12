package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

const userColumns = `id, display_name, email, password_hash, role, is_email_verified,
	verification_token, verification_expires_at, deactivated_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role,
		&user.IsEmailVerified, &user.VerificationToken, &user.VerificationExpiresAt,
		&user.DeactivatedAt, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// ListActiveUsers returns the mention directory: every non-deactivated user.
func (s *PostgresStore) ListActiveUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE deactivated_at IS NULL ORDER BY display_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1`, userID, role)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetUserDeactivated(ctx context.Context, userID string, deactivated bool) error {
	query := `UPDATE users SET deactivated_at=NOW(), updated_at=NOW() WHERE id=$1`
	if !deactivated {
		query = `UPDATE users SET deactivated_at=NULL, updated_at=NOW() WHERE id=$1`
	}
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("set user deactivated: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ---- sessions ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
			AND u.deactivated_at IS NULL
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---- projects ----

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, created_by)
		VALUES ($1, $2, $3, $4)
	`, project.ID, project.Name, project.Description, project.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var project Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_by, created_at, updated_at FROM projects WHERE id=$1
	`, projectID).Scan(&project.ID, &project.Name, &project.Description, &project.CreatedBy, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	return s.queryProjects(ctx, `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM projects ORDER BY name
	`)
}

func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	return s.queryProjects(ctx, `
		SELECT p.id, p.name, p.description, p.created_by, p.created_at, p.updated_at
		FROM projects p
		JOIN project_memberships pm ON pm.project_id = p.id
		WHERE pm.user_id = $1
		ORDER BY p.name
	`, userID)
}

func (s *PostgresStore) queryProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var project Project
		if err := rows.Scan(&project.ID, &project.Name, &project.Description, &project.CreatedBy, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func (s *PostgresStore) UpsertMembership(ctx context.Context, m ProjectMembership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_memberships (project_id, user_id, role, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role=EXCLUDED.role, granted_by=EXCLUDED.granted_by, granted_at=NOW()
	`, m.ProjectID, m.UserID, m.Role, m.GrantedBy)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMembership(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_memberships WHERE project_id=$1 AND user_id=$2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMembershipRole(ctx context.Context, projectID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM project_memberships WHERE project_id=$1 AND user_id=$2
	`, projectID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read membership role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, projectID string) ([]ProjectMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pm.project_id, pm.user_id, pm.role, pm.granted_by, pm.granted_at, u.display_name, u.email
		FROM project_memberships pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY u.display_name
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]ProjectMembership, 0)
	for rows.Next() {
		var m ProjectMembership
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.GrantedBy, &m.GrantedAt, &m.UserName, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

// ---- folders ----

func (s *PostgresStore) InsertFolder(ctx context.Context, folder Folder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, project_id, parent_id, name, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, folder.ID, folder.ProjectID, folder.ParentID, folder.Name, folder.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, folderID string) (Folder, error) {
	var folder Folder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, parent_id, name, created_by, created_at FROM folders WHERE id=$1
	`, folderID).Scan(&folder.ID, &folder.ProjectID, &folder.ParentID, &folder.Name, &folder.CreatedBy, &folder.CreatedAt)
	if err != nil {
		return Folder{}, err
	}
	return folder, nil
}

func (s *PostgresStore) ListFolders(ctx context.Context, projectID string) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, parent_id, name, created_by, created_at
		FROM folders WHERE project_id=$1 ORDER BY name
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := make([]Folder, 0)
	for rows.Next() {
		var folder Folder
		if err := rows.Scan(&folder.ID, &folder.ProjectID, &folder.ParentID, &folder.Name, &folder.CreatedBy, &folder.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

func (s *PostgresStore) RenameFolder(ctx context.Context, folderID, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE folders SET name=$2 WHERE id=$1`, folderID, name)
	if err != nil {
		return fmt.Errorf("rename folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteFolder(ctx context.Context, folderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id=$1`, folderID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}

// FolderChildCount returns how many subfolders and documents a folder holds.
func (s *PostgresStore) FolderChildCount(ctx context.Context, folderID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM folders WHERE parent_id=$1)
			 + (SELECT COUNT(*) FROM documents WHERE folder_id=$1)
	`, folderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("folder child count: %w", err)
	}
	return count, nil
}

// ---- documents & versions ----

const documentColumns = `id, project_id, folder_id, name, content_type, size_bytes, current_version, updated_by, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.ProjectID, &doc.FolderID, &doc.Name, &doc.ContentType,
		&doc.SizeBytes, &doc.CurrentVersion, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, folder_id, name, content_type, size_bytes, current_version, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, doc.ID, doc.ProjectID, doc.FolderID, doc.Name, doc.ContentType, doc.SizeBytes, doc.CurrentVersion, doc.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) ListDocumentsByProject(ctx context.Context, projectID string) ([]Document, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE project_id=$1 ORDER BY name
	`, projectID)
}

func (s *PostgresStore) ListDocumentsByFolder(ctx context.Context, projectID string, folderID *string) ([]Document, error) {
	if folderID == nil {
		return s.queryDocuments(ctx, `
			SELECT `+documentColumns+` FROM documents WHERE project_id=$1 AND folder_id IS NULL ORDER BY name
		`, projectID)
	}
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE project_id=$1 AND folder_id=$2 ORDER BY name
	`, projectID, *folderID)
}

func (s *PostgresStore) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	documents := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return documents, nil
}

// UpdateDocumentHead bumps the document to a new current version.
func (s *PostgresStore) UpdateDocumentHead(ctx context.Context, documentID string, version int, sizeBytes int64, contentType, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET current_version=$2, size_bytes=$3, content_type=$4, updated_by=$5, updated_at=NOW()
		WHERE id=$1
	`, documentID, version, sizeBytes, contentType, updatedBy)
	if err != nil {
		return fmt.Errorf("update document head: %w", err)
	}
	return nil
}

func (s *PostgresStore) RenameDocument(ctx context.Context, documentID, name, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET name=$2, updated_by=$3, updated_at=NOW() WHERE id=$1
	`, documentID, name, updatedBy)
	if err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertVersion(ctx context.Context, v DocumentVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_versions (id, document_id, version, object_key, size_bytes, content_type, uploaded_by, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.ID, v.DocumentID, v.Version, v.ObjectKey, v.SizeBytes, v.ContentType, v.UploadedBy, v.Note)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, documentID string) ([]DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, version, object_key, size_bytes, content_type, uploaded_by, note, created_at
		FROM document_versions WHERE document_id=$1 ORDER BY version DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := make([]DocumentVersion, 0)
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Version, &v.ObjectKey, &v.SizeBytes, &v.ContentType, &v.UploadedBy, &v.Note, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, documentID string, version int) (DocumentVersion, error) {
	var v DocumentVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, version, object_key, size_bytes, content_type, uploaded_by, note, created_at
		FROM document_versions WHERE document_id=$1 AND version=$2
	`, documentID, version).Scan(&v.ID, &v.DocumentID, &v.Version, &v.ObjectKey, &v.SizeBytes, &v.ContentType, &v.UploadedBy, &v.Note, &v.CreatedAt)
	if err != nil {
		return DocumentVersion{}, err
	}
	return v, nil
}

// ---- comments & mentions ----

func (s *PostgresStore) InsertComment(ctx context.Context, c Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, document_id, author_id, body, body_html, page, anchor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.DocumentID, c.AuthorID, c.Body, c.BodyHTML, c.Page, c.Anchor)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, body, bodyHTML string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE comments SET body=$2, body_html=$3, updated_at=NOW() WHERE id=$1
	`, commentID, body, bodyHTML)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var c Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.document_id, c.author_id, u.display_name, c.body, c.body_html, c.page, c.anchor, c.created_at, c.updated_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id=$1
	`, commentID).Scan(&c.ID, &c.DocumentID, &c.AuthorID, &c.AuthorName, &c.Body, &c.BodyHTML, &c.Page, &c.Anchor, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, documentID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.author_id, u.display_name, c.body, c.body_html, c.page, c.anchor, c.created_at, c.updated_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.document_id=$1
		ORDER BY c.created_at
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.AuthorID, &c.AuthorName, &c.Body, &c.BodyHTML, &c.Page, &c.Anchor, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// ReplaceCommentMentions rewrites the mention set for a comment. Used on both
// create and edit, so the stored set always mirrors the latest body.
func (s *PostgresStore) ReplaceCommentMentions(ctx context.Context, commentID string, userIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mentions tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comment_mentions WHERE comment_id=$1`, commentID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear mentions: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comment_mentions (comment_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, commentID, userID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert mention: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mentions: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCommentMentions(ctx context.Context, commentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM comment_mentions WHERE comment_id=$1 ORDER BY user_id
	`, commentID)
	if err != nil {
		return nil, fmt.Errorf("list comment mentions: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return ids, nil
}

// ---- notifications ----

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, actor_name, kind, comment_id, document_id, preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.UserID, n.ActorName, n.Kind, n.CommentID, n.DocumentID, n.Preview)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	query := `
		SELECT id, user_id, actor_name, kind, comment_id, document_id, preview, read_at, created_at
		FROM notifications WHERE user_id=$1
	`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorName, &n.Kind, &n.CommentID, &n.DocumentID, &n.Preview, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=NOW() WHERE id=$1 AND user_id=$2 AND read_at IS NULL
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND read_at IS NULL
	`, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// ---- share links ----

func (s *PostgresStore) InsertShareLink(ctx context.Context, link ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (id, token, project_id, folder_id, role, password_hash, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, link.ID, link.Token, link.ProjectID, link.FolderID, link.Role, link.PasswordHash, link.ExpiresAt, link.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error) {
	var link ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, project_id, folder_id, role, password_hash, expires_at, access_count, last_accessed_at, created_by, created_at, revoked_at
		FROM share_links WHERE token=$1
	`, token).Scan(&link.ID, &link.Token, &link.ProjectID, &link.FolderID, &link.Role, &link.PasswordHash,
		&link.ExpiresAt, &link.AccessCount, &link.LastAccessedAt, &link.CreatedBy, &link.CreatedAt, &link.RevokedAt)
	if err != nil {
		return ShareLink{}, err
	}
	return link, nil
}

func (s *PostgresStore) ListShareLinks(ctx context.Context, projectID string) ([]ShareLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, project_id, folder_id, role, password_hash, expires_at, access_count, last_accessed_at, created_by, created_at, revoked_at
		FROM share_links WHERE project_id=$1 ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	defer rows.Close()

	links := make([]ShareLink, 0)
	for rows.Next() {
		var link ShareLink
		if err := rows.Scan(&link.ID, &link.Token, &link.ProjectID, &link.FolderID, &link.Role, &link.PasswordHash,
			&link.ExpiresAt, &link.AccessCount, &link.LastAccessedAt, &link.CreatedBy, &link.CreatedAt, &link.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan share link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share links: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) RevokeShareLink(ctx context.Context, linkID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE share_links SET revoked_at=NOW() WHERE id=$1`, linkID)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	return nil
}

// TouchShareLink records one access of the link.
func (s *PostgresStore) TouchShareLink(ctx context.Context, linkID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE share_links SET access_count=access_count+1, last_accessed_at=NOW() WHERE id=$1
	`, linkID)
	if err != nil {
		return fmt.Errorf("touch share link: %w", err)
	}
	return nil
}

// ---- summary ----

// SummaryCounts reports project, document, and open comment totals for the
// dashboard endpoint.
func (s *PostgresStore) SummaryCounts(ctx context.Context) (int, int, int, error) {
	var projects, documents, comments int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM projects),
			   (SELECT COUNT(*) FROM documents),
			   (SELECT COUNT(*) FROM comments)
	`).Scan(&projects, &documents, &comments)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("summary counts: %w", err)
	}
	return projects, documents, comments, nil
}
