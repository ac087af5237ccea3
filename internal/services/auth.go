package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
	TokenVerify  = "verify"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Claims is the payload of every token the service issues. Access tokens carry
// the full identity; refresh and verify tokens only the subject.
type Claims struct {
	Type  string   `json:"typ"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Role  string   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts access-token claims into the caller identity used by services.
func (c *Claims) Actor() Actor {
	return Actor{ID: c.Subject, Email: c.Email, Name: c.Name, Roles: c.Roles}
}

// Revoker remembers revoked token ids until they would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenService struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	Revoker    Revoker
}

func (t TokenService) HashPassword(raw string) (string, error) {
	return hashArgon2id(raw)
}

// VerifyPassword accepts argon2id hashes and legacy bcrypt hashes.
func (t TokenService) VerifyPassword(raw, hashed string) bool {
	if strings.HasPrefix(hashed, "$argon2") {
		return verifyArgon2id(raw, hashed)
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
}

func (t TokenService) IssuePair(userID, email, name string, roles []string) (TokenPair, error) {
	normalized := NormalizeRoles(roles)
	access, exp, err := t.sign(Claims{
		Type:  TokenAccess,
		Email: email,
		Name:  name,
		Roles: RoleStrings(normalized),
		Role:  string(PrimaryRole(normalized)),
	}, userID, t.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := t.sign(Claims{Type: TokenRefresh}, userID, t.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp.Unix()}, nil
}

func (t TokenService) CreateVerifyToken(userID, email string) (string, error) {
	ttl := t.VerifyTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	signed, _, err := t.sign(Claims{Type: TokenVerify, Email: email}, userID, ttl)
	return signed, err
}

func (t TokenService) sign(claims Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    t.Issuer,
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.Secret)
	return signed, exp, err
}

// Parse validates signature, issuer, expiry and type, then consults the
// revoker. Any failure is reported as 401.
func (t TokenService) Parse(ctx context.Context, tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	}, jwt.WithIssuer(t.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized("Authentication failed")
	}
	if claims.Type != wantType || claims.Subject == "" {
		return nil, ErrUnauthorized("Authentication failed")
	}
	if t.Revoker != nil && claims.ID != "" {
		revoked, err := t.Revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrUnauthorized("Session has been revoked")
		}
	}
	return claims, nil
}

// Revoke invalidates the token's id until its expiry. Without a revoker it is
// a no-op and tokens live until they expire.
func (t TokenService) Revoke(ctx context.Context, claims *Claims) error {
	if t.Revoker == nil || claims == nil || claims.ID == "" {
		return nil
	}
	until := time.Now().UTC().Add(t.RefreshTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return t.Revoker.Revoke(ctx, claims.ID, until)
}

var defaultArgon2 = argon2Params{
	memory:      64 * 1024,
	iterations:  3,
	parallelism: 1,
	saltLength:  16,
	keyLength:   32,
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  int
	keyLength   int
}

func hashArgon2id(raw string) (string, error) {
	p := defaultArgon2
	salt := make([]byte, p.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(raw), salt, p.iterations, p.memory, p.parallelism, uint32(p.keyLength))
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.iterations, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func verifyArgon2id(raw, encoded string) bool {
	p, salt, hash, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(raw), salt, p.iterations, p.memory, p.parallelism, uint32(p.keyLength))
	return subtle.ConstantTimeCompare(hash, key) == 1
}

func decodeArgon2id(encoded string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argon2Params{}, nil, nil, errors.New("invalid hash format")
	}
	var p argon2Params
	for _, kv := range strings.Split(parts[3], ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return argon2Params{}, nil, nil, err
		}
		switch key {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.iterations = uint32(n)
		case "p":
			p.parallelism = uint8(n)
		}
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, err
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Params{}, nil, nil, err
	}
	p.saltLength = len(salt)
	p.keyLength = len(hash)
	return p, salt, hash, nil
}
