package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/store"
	"github.com/joshua0006/architect-hub-sub005/internal/util"
)

func TestShareLinkPasswordFlow(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newTestService(fs)
	staff := seedUser(fs, "Staff", "staff@example.com", "staff")
	project := seedProject(fs, "Tower", staff.ID)

	payload, err := svc.CreateShareLink(ctx, sessionFor(staff), project.ID, "", "view", "hunter22", 0)
	if err != nil {
		t.Fatalf("create share link: %v", err)
	}
	token := payload["token"].(string)
	if payload["protected"] != true {
		t.Fatal("expected link to be marked protected")
	}

	if _, err := svc.OpenShareLink(ctx, token, ""); err == nil {
		t.Fatal("expected password to be required")
	} else if code := domainCode(t, err); code != "PASSWORD_REQUIRED" {
		t.Fatalf("expected PASSWORD_REQUIRED, got %s", code)
	}

	if _, err := svc.OpenShareLink(ctx, token, "wrong"); err == nil {
		t.Fatal("expected wrong password to fail")
	} else if code := domainCode(t, err); code != "PASSWORD_INVALID" {
		t.Fatalf("expected PASSWORD_INVALID, got %s", code)
	}

	opened, err := svc.OpenShareLink(ctx, token, "hunter22")
	if err != nil {
		t.Fatalf("open with password: %v", err)
	}
	if opened["projectName"] != "Tower" || opened["role"] != "view" {
		t.Fatalf("unexpected payload: %v", opened)
	}

	link, _ := fs.GetShareLinkByToken(ctx, token)
	if link.AccessCount != 1 {
		t.Fatalf("expected access count 1, got %d", link.AccessCount)
	}
}

func TestShareLinkExpiryAndRevocation(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newTestService(fs)
	staff := seedUser(fs, "Staff", "staff@example.com", "staff")
	project := seedProject(fs, "Tower", staff.ID)

	expired := time.Now().Add(-time.Hour)
	expiredLink := store.ShareLink{
		ID: util.NewID("shl"), Token: "expired-token", ProjectID: project.ID,
		Role: "view", CreatedBy: staff.ID, ExpiresAt: &expired,
	}
	_ = fs.InsertShareLink(ctx, expiredLink)
	if _, err := svc.OpenShareLink(ctx, "expired-token", ""); err == nil {
		t.Fatal("expected expired link to fail")
	} else if code := domainCode(t, err); code != "LINK_EXPIRED" {
		t.Fatalf("expected LINK_EXPIRED, got %s", code)
	}

	payload, err := svc.CreateShareLink(ctx, sessionFor(staff), project.ID, "", "view", "", 24)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.RevokeShareLink(ctx, sessionFor(staff), project.ID, payload["id"].(string)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.OpenShareLink(ctx, payload["token"].(string), ""); err == nil {
		t.Fatal("expected revoked link to fail")
	} else if code := domainCode(t, err); code != "LINK_REVOKED" {
		t.Fatalf("expected LINK_REVOKED, got %s", code)
	}
}

func TestShareUploadCreatesDocument(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newTestService(fs)
	staff := seedUser(fs, "Staff", "staff@example.com", "staff")
	project := seedProject(fs, "Tower", staff.ID)

	folder, err := svc.CreateFolder(ctx, sessionFor(staff), project.ID, "", "Site Photos")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	folderID := folder["id"].(string)

	payload, err := svc.CreateShareLink(ctx, sessionFor(staff), project.ID, folderID, "upload", "", 0)
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	token := payload["token"].(string)

	result, err := svc.ShareUpload(ctx, token, "", "crane.jpg", "image/jpeg", 2048)
	if err != nil {
		t.Fatalf("share upload: %v", err)
	}
	if !strings.HasPrefix(result["uploadUrl"].(string), "https://blob.test/put/") {
		t.Fatalf("expected presigned PUT URL, got %v", result["uploadUrl"])
	}

	doc, err := fs.GetDocument(ctx, result["documentId"].(string))
	if err != nil {
		t.Fatalf("document not created: %v", err)
	}
	if doc.FolderID == nil || *doc.FolderID != folderID {
		t.Fatalf("expected document scoped to link folder, got %+v", doc.FolderID)
	}
	if !strings.HasPrefix(doc.UpdatedBy, "guest:") {
		t.Fatalf("expected guest attribution, got %q", doc.UpdatedBy)
	}
}

func TestShareUploadRejectedOnViewLink(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newTestService(fs)
	staff := seedUser(fs, "Staff", "staff@example.com", "staff")
	project := seedProject(fs, "Tower", staff.ID)

	payload, err := svc.CreateShareLink(ctx, sessionFor(staff), project.ID, "", "view", "", 0)
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if _, err := svc.ShareUpload(ctx, payload["token"].(string), "", "x.jpg", "image/jpeg", 1); err == nil {
		t.Fatal("expected upload on view link to fail")
	} else if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
}

func TestViewShareLinkListsScopedDocuments(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newTestService(fs)
	staff := seedUser(fs, "Staff", "staff@example.com", "staff")
	project := seedProject(fs, "Tower", staff.ID)

	folder, _ := svc.CreateFolder(ctx, sessionFor(staff), project.ID, "", "Contracts")
	folderID := folder["id"].(string)
	if _, err := svc.CreateDocument(ctx, sessionFor(staff), project.ID, folderID, "contract.pdf", "application/pdf", 100); err != nil {
		t.Fatalf("create doc in folder: %v", err)
	}
	if _, err := svc.CreateDocument(ctx, sessionFor(staff), project.ID, "", "root.pdf", "application/pdf", 100); err != nil {
		t.Fatalf("create root doc: %v", err)
	}

	payload, _ := svc.CreateShareLink(ctx, sessionFor(staff), project.ID, folderID, "view", "", 0)
	opened, err := svc.OpenShareLink(ctx, payload["token"].(string), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	docs := opened["documents"].([]map[string]any)
	if len(docs) != 1 || docs[0]["name"] != "contract.pdf" {
		t.Fatalf("expected only the scoped document, got %v", docs)
	}
	if _, ok := docs[0]["downloadUrl"]; !ok {
		t.Fatal("expected presigned download URL on view link documents")
	}
}
