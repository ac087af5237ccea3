package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"canopy-backend-go/internal/services"
	"canopy-backend-go/internal/storage"

	"github.com/go-chi/chi/v5"
)

// newTestServer builds a server without a database. Every request used below
// is rejected before any query runs.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return &Server{
		Tokens: services.TokenService{
			Secret:     []byte("http-test-secret"),
			Issuer:     "canopy-test",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: time.Hour,
			VerifyTTL:  time.Hour,
		},
	}
}

func signTestToken(t *testing.T, s *Server, roles ...services.Role) (access, refresh string) {
	t.Helper()
	pair, err := s.Tokens.IssuePair("11111111-1111-1111-1111-111111111111", "user@example.org", "Test User", services.RoleStrings(roles))
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return pair.AccessToken, pair.RefreshToken
}

func serve(s *Server, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)
	return resp
}

func errorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return payload.Error
}

func TestAdminRoutesRBAC(t *testing.T) {
	s := newTestServer(t)

	resp := serve(s, http.MethodGet, "/api/admin/users", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	volunteer, refresh := signTestToken(t, s, services.RoleVolunteer)
	resp = serve(s, http.MethodGet, "/api/admin/users", volunteer, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for volunteer, got %d", resp.Code)
	}

	resp = serve(s, http.MethodGet, "/api/admin/users", refresh, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token must not authorize requests, got %d", resp.Code)
	}

	resp = serve(s, http.MethodGet, "/api/admin/users", "not-a-token", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.Code)
	}
}

func TestRoleGatedRoutes(t *testing.T) {
	s := newTestServer(t)
	volunteer, _ := signTestToken(t, s, services.RoleVolunteer)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/events"},
		{http.MethodPost, "/api/sponsors/pledges"},
		{http.MethodGet, "/api/sponsors/me/report"},
		{http.MethodGet, "/api/admin/moderation/queue"},
	}
	for _, tc := range cases {
		resp := serve(s, tc.method, tc.path, volunteer, strings.NewReader(`{}`))
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestModerateRejectsUnknownKindAndDecision(t *testing.T) {
	s := newTestServer(t)
	admin, _ := signTestToken(t, s, services.RoleAdmin)

	resp := serve(s, http.MethodPost, "/api/admin/moderation/widgets/abc", admin, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", resp.Code)
	}
	if got := errorMessage(t, resp); got != "Unknown moderation target" {
		t.Fatalf("unexpected message %q", got)
	}

	resp = serve(s, http.MethodPost, "/api/admin/moderation/media/abc?decision=maybe", admin, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown decision, got %d", resp.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	resp := serve(s, http.MethodPost, "/api/auth/register", "", nil)
	if resp.Code != http.StatusBadRequest || errorMessage(t, resp) != "Request body is required" {
		t.Fatalf("empty body: got %d %s", resp.Code, resp.Body.String())
	}

	resp = serve(s, http.MethodPost, "/api/auth/register", "", strings.NewReader(`{"name":"Ana","email":"nope","password":"longenough"}`))
	if got := errorMessage(t, resp); resp.Code != http.StatusBadRequest || got != "email must be a valid email" {
		t.Fatalf("bad email: got %d %q", resp.Code, got)
	}

	resp = serve(s, http.MethodPost, "/api/auth/register", "", strings.NewReader(`{"name":"Ana","email":"ana@example.org","password":"short"}`))
	if got := errorMessage(t, resp); resp.Code != http.StatusBadRequest || got != "password must be at least 8" {
		t.Fatalf("short password: got %d %q", resp.Code, got)
	}

	resp = serve(s, http.MethodPost, "/api/auth/register", "", strings.NewReader(`{"name":"Ana","email":"ana@example.org","password":"longenough","confirmPassword":"different"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("mismatched confirmation: got %d", resp.Code)
	}

	resp = serve(s, http.MethodPost, "/api/auth/register", "", strings.NewReader(`{"name":`))
	if got := errorMessage(t, resp); resp.Code != http.StatusBadRequest || got != "Invalid payload" {
		t.Fatalf("broken json: got %d %q", resp.Code, got)
	}
}

func TestActivitySocketRequiresAdminToken(t *testing.T) {
	s := newTestServer(t)

	resp := serve(s, http.MethodGet, "/ws/activity", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	volunteer, _ := signTestToken(t, s, services.RoleVolunteer)
	resp = serve(s, http.MethodGet, "/ws/activity?token="+volunteer, "", nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for volunteer, got %d", resp.Code)
	}
}

func TestMediaContentServesLocalFiles(t *testing.T) {
	s := newTestServer(t)

	resp := serve(s, http.MethodGet, "/api/media/content/events/x/a.png", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without local store, got %d", resp.Code)
	}

	local, err := storage.NewLocalStore(t.TempDir(), "/api/media/content")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	if _, err := local.Put(context.Background(), "events/e1/note.txt", strings.NewReader("hello"), "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.Local = local
	s.Store = local

	resp = serve(s, http.MethodGet, "/api/media/content/events/e1/note.txt", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "hello" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected content type %q", resp.Header().Get("Content-Type"))
	}

	resp = serve(s, http.MethodGet, "/api/media/content/events/e1/missing.txt", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing object, got %d", resp.Code)
	}
}

func TestWriteServiceErrorMapping(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	resp := httptest.NewRecorder()
	writeServiceError(resp, req, services.ErrConflict("Event is full"))
	if resp.Code != http.StatusConflict || errorMessage(t, resp) != "Event is full" {
		t.Fatalf("service error: got %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	writeServiceError(resp, req, errors.New("connection reset"))
	if resp.Code != http.StatusInternalServerError || errorMessage(t, resp) != "Internal server error" {
		t.Fatalf("plain error: got %d %s", resp.Code, resp.Body.String())
	}
}

func TestMiddlewareRequestIDAndRecovery(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestLogger)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("request id not echoed: %q", resp.Header().Get("X-Request-ID"))
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-ID") == "" {
		t.Fatal("generated request id missing")
	}
}

func TestPageParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?page=3&pageSize=500", nil)
	page, size, offset := pageParams(req, 20)
	if page != 3 || size != 100 || offset != 200 {
		t.Fatalf("got page=%d size=%d offset=%d", page, size, offset)
	}
	req = httptest.NewRequest(http.MethodGet, "/x?page=-1", nil)
	page, size, offset = pageParams(req, 20)
	if page != 1 || size != 20 || offset != 0 {
		t.Fatalf("defaults: got page=%d size=%d offset=%d", page, size, offset)
	}
}

func TestFormListSplitsValues(t *testing.T) {
	var body bytes.Buffer
	body.WriteString("--b\r\nContent-Disposition: form-data; name=\"sponsorIds\"\r\n\r\na, b\r\n")
	body.WriteString("--b\r\nContent-Disposition: form-data; name=\"sponsorIds\"\r\n\r\nc\r\n--b--\r\n")
	req := httptest.NewRequest(http.MethodPost, "/x", &body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := formList(req, "sponsorIds")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestDecodeAttendanceAcceptsEmptyChunkedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	got, err := decodeAttendance(req)
	if err != nil {
		t.Fatalf("empty chunked body: %v", err)
	}
	if got.UserID != "" || got.MinutesOverride != nil {
		t.Fatalf("expected zero request, got %+v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"minutesOverride":45}`))
	req.ContentLength = -1
	got, err = decodeAttendance(req)
	if err != nil || got.MinutesOverride == nil || *got.MinutesOverride != 45 {
		t.Fatalf("chunked body: got %+v err=%v", got, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"minutes`))
	if _, err := decodeAttendance(req); err == nil {
		t.Fatal("broken json must be rejected")
	}
}

func TestSponsorSessionGrantsPledgeAccess(t *testing.T) {
	s := newTestServer(t)
	actor := services.Actor{
		ID:    "11111111-1111-1111-1111-111111111111",
		Email: "user@example.org",
		Name:  "Test User",
		Roles: []string{string(services.RoleVolunteer)},
	}
	pair, err := sponsorSession(s.Tokens, actor)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := s.Tokens.Parse(context.Background(), pair.AccessToken, services.TokenAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !services.AuthorizeRoles(claims.Roles, services.RoleSponsor) || !services.AuthorizeRoles(claims.Roles, services.RoleVolunteer) {
		t.Fatalf("expected volunteer and sponsor roles, got %v", claims.Roles)
	}
	if len(actor.Roles) != 1 {
		t.Fatalf("actor roles mutated: %v", actor.Roles)
	}

	resp := serve(s, http.MethodPost, "/api/sponsors/pledges", pair.AccessToken, strings.NewReader(`{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected validation error past the role gate, got %d %s", resp.Code, resp.Body.String())
	}
}
