package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memoryRevoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]time.Time{}
	}
	m.revoked[jti] = until
	return nil
}

func (m *memoryRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func testTokens(revoker Revoker) TokenService {
	return TokenService{
		Secret:     []byte("test-secret"),
		Issuer:     "canopy-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		VerifyTTL:  time.Hour,
		Revoker:    revoker,
	}
}

func TestPasswordHashing(t *testing.T) {
	tokens := testTokens(nil)
	hash, err := tokens.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if !tokens.VerifyPassword("correct horse", hash) {
		t.Fatal("password should verify")
	}
	if tokens.VerifyPassword("wrong", hash) {
		t.Fatal("wrong password must not verify")
	}
	legacy, _ := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	if !tokens.VerifyPassword("legacy-pass", string(legacy)) {
		t.Fatal("bcrypt hashes should still verify")
	}
}

func TestIssueAndParseAccessToken(t *testing.T) {
	tokens := testTokens(nil)
	pair, err := tokens.IssuePair("user-1", "ana@example.com", "Ana", []string{"volunteer", "EVENT_MANAGER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tokens.Parse(context.Background(), pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "ana@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Role != string(RoleEventManager) {
		t.Fatalf("primary role should be EVENT_MANAGER, got %s", claims.Role)
	}
	actor := claims.Actor()
	if !actor.Has(RoleVolunteer) || actor.IsAdmin() {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseRejectsWrongTypeAndIssuer(t *testing.T) {
	tokens := testTokens(nil)
	pair, _ := tokens.IssuePair("user-1", "a@example.com", "A", []string{"VOLUNTEER"})
	if _, err := tokens.Parse(context.Background(), pair.RefreshToken, TokenAccess); statusOf(t, err) != 401 {
		t.Fatal("refresh token must not pass as access")
	}
	verify, _ := tokens.CreateVerifyToken("user-1", "a@example.com")
	if _, err := tokens.Parse(context.Background(), verify, TokenRefresh); statusOf(t, err) != 401 {
		t.Fatal("verify token must not pass as refresh")
	}
	other := testTokens(nil)
	other.Issuer = "someone-else"
	if _, err := other.Parse(context.Background(), pair.AccessToken, TokenAccess); statusOf(t, err) != 401 {
		t.Fatal("issuer mismatch must fail")
	}
	if _, err := tokens.Parse(context.Background(), "garbage", TokenAccess); statusOf(t, err) != 401 {
		t.Fatal("garbage must fail")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	tokens := testTokens(nil)
	tokens.AccessTTL = -time.Minute
	pair, _ := tokens.IssuePair("user-1", "a@example.com", "A", []string{"VOLUNTEER"})
	if _, err := tokens.Parse(context.Background(), pair.AccessToken, TokenAccess); statusOf(t, err) != 401 {
		t.Fatal("expired token must fail")
	}
}

func TestRevokedTokenIsRejected(t *testing.T) {
	revoker := &memoryRevoker{}
	tokens := testTokens(revoker)
	ctx := context.Background()
	pair, _ := tokens.IssuePair("user-1", "a@example.com", "A", []string{"VOLUNTEER"})
	claims, err := tokens.Parse(ctx, pair.RefreshToken, TokenRefresh)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := tokens.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if until := revoker.revoked[claims.ID]; !until.Equal(claims.ExpiresAt.Time) {
		t.Fatalf("revocation should last until expiry, got %v", until)
	}
	if _, err := tokens.Parse(ctx, pair.RefreshToken, TokenRefresh); statusOf(t, err) != 401 {
		t.Fatal("revoked token must fail")
	}
	if _, err := tokens.Parse(ctx, pair.AccessToken, TokenAccess); err != nil {
		t.Fatalf("sibling access token stays valid: %v", err)
	}
}
