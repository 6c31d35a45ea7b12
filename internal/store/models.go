package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Project struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProjectMembership struct {
	ProjectID string
	UserID    string
	Role      string
	GrantedBy string
	GrantedAt time.Time
	// Joined fields for API responses
	UserName  string
	UserEmail string
}

type Folder struct {
	ID        string
	ProjectID string
	ParentID  *string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// FolderTreeNode is a folder with its children, as returned by the
// project browse endpoint.
type FolderTreeNode struct {
	Folder
	Children  []FolderTreeNode
	Documents []Document
}

type Document struct {
	ID             string
	ProjectID      string
	FolderID       *string
	Name           string
	ContentType    string
	SizeBytes      int64
	CurrentVersion int
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DocumentVersion struct {
	ID          string
	DocumentID  string
	Version     int
	ObjectKey   string
	SizeBytes   int64
	ContentType string
	UploadedBy  string
	Note        string
	CreatedAt   time.Time
}

type Comment struct {
	ID         string
	DocumentID string
	AuthorID   string
	AuthorName string
	Body       string
	BodyHTML   string
	// Optional annotation anchor: page number plus a serialized region on it.
	Page      *int
	Anchor    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID         string
	UserID     string
	ActorName  string
	Kind       string
	CommentID  string
	DocumentID string
	Preview    string
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// ShareLink grants scoped, unauthenticated access to a project folder,
// either for viewing or for guest uploads.
type ShareLink struct {
	ID             string
	Token          string
	ProjectID      string
	FolderID       *string
	Role           string // 'view' or 'upload'
	PasswordHash   *string
	ExpiresAt      *time.Time
	AccessCount    int
	LastAccessedAt *time.Time
	CreatedBy      string
	CreatedAt      time.Time
	RevokedAt      *time.Time
}
