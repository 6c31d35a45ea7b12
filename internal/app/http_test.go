package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joshua0006/architect-hub-sub005/internal/authpw"
)

func newTestServer(fs *fakeStore) *HTTPServer {
	svc := newTestService(fs)
	svc.authPW = authpw.NewService(fs)
	return NewHTTPServer(svc, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, decoded
}

func TestHealthAndReady(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(fs)
	handler := server.Handler()

	rr, body := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rr.Code, body)
	}

	rr, body = doJSON(t, handler, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("ready = %d %v", rr.Code, body)
	}
	checks := body["checks"].(map[string]any)
	if checks["db"] != "ok" {
		t.Fatalf("expected db ok, got %v", checks)
	}

	fs.pingErr = errors.New("connection refused")
	rr, body = doJSON(t, handler, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when db is down, got %d", rr.Code)
	}
	checks = body["checks"].(map[string]any)
	if checks["db"] != "connection refused" {
		t.Fatalf("expected db error in checks, got %v", checks)
	}
	fs.pingErr = nil
}

func TestOptionsAndCORS(t *testing.T) {
	server := newTestServer(newFakeStore())
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for OPTIONS, got %d", rr.Code)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("expected CORS origin *, got %q", origin)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request ID header")
	}
}

func TestSignUpVerifySignInFlow(t *testing.T) {
	fs := newFakeStore()
	server := newTestServer(fs)
	handler := server.Handler()

	rr, body := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "ann@example.com", "password": "password123", "displayName": "Ann Chen",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup = %d %v", rr.Code, body)
	}
	// SMTP is not configured in tests, so the token rides in the response.
	devToken, _ := body["devVerificationToken"].(string)
	if devToken == "" {
		t.Fatalf("expected dev verification token, got %v", body)
	}

	rr, body = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email": "ann@example.com", "password": "password123",
	})
	if rr.Code != http.StatusForbidden || body["code"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("expected verification gate, got %d %v", rr.Code, body)
	}

	rr, _ = doJSON(t, handler, http.MethodPost, "/api/auth/verify-email", "", map[string]any{"token": devToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("verify = %d", rr.Code)
	}

	rr, body = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email": "ann@example.com", "password": "password123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("signin = %d %v", rr.Code, body)
	}
	accessToken, _ := body["accessToken"].(string)
	refreshToken, _ := body["refreshToken"].(string)
	if accessToken == "" || refreshToken == "" {
		t.Fatalf("expected tokens, got %v", body)
	}
	if body["role"] != "client" {
		t.Fatalf("self-service accounts default to client, got %v", body["role"])
	}

	rr, body = doJSON(t, handler, http.MethodGet, "/api/me", accessToken, nil)
	if rr.Code != http.StatusOK || body["userName"] != "Ann Chen" {
		t.Fatalf("me = %d %v", rr.Code, body)
	}

	rr, body = doJSON(t, handler, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": refreshToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh = %d %v", rr.Code, body)
	}

	rr, _ = doJSON(t, handler, http.MethodPost, "/api/auth/logout", body["accessToken"].(string), map[string]any{
		"refreshToken": body["refreshToken"].(string),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("logout = %d", rr.Code)
	}
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	server := newTestServer(newFakeStore())
	handler := server.Handler()

	for _, path := range []string{"/api/projects", "/api/me", "/api/notifications", "/api/search?q=x"} {
		rr, body := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s = %d %v, want 401", path, rr.Code, body)
		}
	}
}

func TestRoleGuards(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	server := newTestServer(fs)
	handler := server.Handler()

	client := seedUser(fs, "Client", "client@example.com", "client")
	clientSession, err := server.service.CreateSession(ctx, client.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	// Clients can read but cannot create projects or touch the admin console.
	rr, _ := doJSON(t, handler, http.MethodGet, "/api/projects", clientSession.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("client list projects = %d", rr.Code)
	}
	rr, body := doJSON(t, handler, http.MethodPost, "/api/projects", clientSession.Token, map[string]any{"name": "X"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("client create project = %d %v, want 403", rr.Code, body)
	}
	rr, _ = doJSON(t, handler, http.MethodGet, "/api/admin/users", clientSession.Token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("client admin access = %d, want 403", rr.Code)
	}

	admin := seedUser(fs, "Admin", "admin@example.com", "admin")
	adminSession, _ := server.service.CreateSession(ctx, admin.ID)
	rr, body = doJSON(t, handler, http.MethodPost, "/api/projects", adminSession.Token, map[string]any{"name": "Tower"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("admin create project = %d %v", rr.Code, body)
	}
	rr, _ = doJSON(t, handler, http.MethodGet, "/api/admin/users", adminSession.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin list users = %d", rr.Code)
	}
}

func TestCommentEndpointFlow(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	server := newTestServer(fs)
	handler := server.Handler()

	seedUser(fs, "Ann Chen", "ann@example.com", "contractor")
	staff := seedUser(fs, "Staff", "staff@example.com", "staff")
	staffSession, _ := server.service.CreateSession(ctx, staff.ID)

	rr, project := doJSON(t, handler, http.MethodPost, "/api/projects", staffSession.Token, map[string]any{"name": "Tower"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create project = %d %v", rr.Code, project)
	}
	projectID := project["id"].(string)

	rr, doc := doJSON(t, handler, http.MethodPost, "/api/projects/"+projectID+"/documents", staffSession.Token, map[string]any{
		"name": "plan.pdf", "contentType": "application/pdf", "sizeBytes": 100,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create document = %d %v", rr.Code, doc)
	}
	documentID := doc["id"].(string)

	rr, comment := doJSON(t, handler, http.MethodPost,
		"/api/projects/"+projectID+"/documents/"+documentID+"/comments", staffSession.Token,
		map[string]any{"body": "review @Ann Chen", "page": 2})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create comment = %d %v", rr.Code, comment)
	}
	if html := comment["bodyHtml"].(string); !strings.Contains(html, `<span class="mention">@Ann Chen</span>`) {
		t.Fatalf("expected mention markup, got %q", html)
	}

	rr, list := doJSON(t, handler, http.MethodGet,
		"/api/projects/"+projectID+"/documents/"+documentID+"/comments", staffSession.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list comments = %d", rr.Code)
	}
	comments := list["comments"].([]any)
	if len(comments) != 1 {
		t.Fatalf("expected one comment, got %d", len(comments))
	}
}

func TestShareEndpointIsPublic(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	server := newTestServer(fs)
	handler := server.Handler()

	staff := seedUser(fs, "Staff", "staff@example.com", "staff")
	staffSession, _ := server.service.CreateSession(ctx, staff.ID)

	rr, project := doJSON(t, handler, http.MethodPost, "/api/projects", staffSession.Token, map[string]any{"name": "Tower"})
	projectID := project["id"].(string)

	rr, link := doJSON(t, handler, http.MethodPost, "/api/projects/"+projectID+"/share-links", staffSession.Token,
		map[string]any{"role": "upload"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create link = %d %v", rr.Code, link)
	}
	token := link["token"].(string)

	// No Authorization header on either call.
	rr, opened := doJSON(t, handler, http.MethodGet, "/share/"+token, "", nil)
	if rr.Code != http.StatusOK || opened["role"] != "upload" {
		t.Fatalf("open share = %d %v", rr.Code, opened)
	}

	rr, uploaded := doJSON(t, handler, http.MethodPost, "/share/"+token+"/upload", "",
		map[string]any{"name": "photo.jpg", "contentType": "image/jpeg", "sizeBytes": 500})
	if rr.Code != http.StatusCreated {
		t.Fatalf("share upload = %d %v", rr.Code, uploaded)
	}
	if uploaded["uploadUrl"] == "" {
		t.Fatal("expected presigned upload URL")
	}

	rr, _ = doJSON(t, handler, http.MethodGet, "/share/not-a-token", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown token = %d, want 404", rr.Code)
	}
}

func TestNotFoundRoutes(t *testing.T) {
	server := newTestServer(newFakeStore())
	handler := server.Handler()

	rr, _ := doJSON(t, handler, http.MethodGet, "/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
