package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"canopy-backend-go/internal/db"
	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/notify"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, password_hash, roles, role, is_active, email_verified_at,
       last_login_at, last_seen_at, created_at, updated_at`

const minPasswordLength = 8

// selfServiceRoles are the roles a user may pick at registration.
var selfServiceRoles = []Role{RoleVolunteer, RoleEventManager, RoleSponsor}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func Register(ctx context.Context, database *sqlx.DB, tokens TokenService, input RegisterInput) (models.User, []Effect, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" {
		return models.User{}, nil, ErrBadRequest("Name and email are required")
	}
	if len(input.Password) < minPasswordLength {
		return models.User{}, nil, ErrBadRequest(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	role := RoleVolunteer
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := ParseRole(input.Role)
		if !ok || !containsRole(selfServiceRoles, parsed) {
			return models.User{}, nil, ErrBadRequest("Invalid role")
		}
		role = parsed
	}
	hash, err := tokens.HashPassword(input.Password)
	if err != nil {
		return models.User{}, nil, err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = database.ExecContext(ctx, `
INSERT INTO users (id, name, email, password_hash, roles, role, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7,$7)
`, id, name, email, hash, pq.StringArray{string(role)}, string(role), now)
	if isUniqueViolation(err) {
		return models.User{}, nil, ErrConflict("An account with this email already exists")
	}
	if err != nil {
		return models.User{}, nil, WrapError(err, "create user")
	}
	user, err := GetUser(ctx, database, id)
	if err != nil {
		return models.User{}, nil, err
	}
	effects := []Effect{activityEffect("user.registered", "USER", id, id, now, map[string]interface{}{"role": string(role)})}
	verify, err := tokens.CreateVerifyToken(id, email)
	if err != nil {
		return user, effects, nil
	}
	effects = appendEffects(effects, emailEffect(email,
		"Welcome to Canopy",
		"Confirm your email",
		[]string{
			"Hi " + name + ",",
			"Thanks for joining Canopy. Confirm your email address to finish setting up your account.",
		},
		&notify.CTA{Label: "Verify email", URL: "/verify-email?token=" + url.QueryEscape(verify)}))
	return user, effects, nil
}

func VerifyEmail(ctx context.Context, database *sqlx.DB, tokens TokenService, token string) (models.User, error) {
	claims, err := tokens.Parse(ctx, token, TokenVerify)
	if err != nil {
		return models.User{}, ErrBadRequest("Verification link is invalid or expired")
	}
	user, err := GetUser(ctx, database, claims.Subject)
	if err != nil {
		return models.User{}, err
	}
	if !strings.EqualFold(user.Email, claims.Email) {
		return models.User{}, ErrBadRequest("Verification link is invalid or expired")
	}
	if _, err := database.ExecContext(ctx, `
UPDATE users SET email_verified_at = $2, updated_at = $2
WHERE id = $1 AND email_verified_at IS NULL
`, user.ID, time.Now().UTC()); err != nil {
		return models.User{}, err
	}
	return GetUser(ctx, database, user.ID)
}

func Login(ctx context.Context, database *sqlx.DB, tokens TokenService, email, password string) (models.User, TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, TokenPair{}, ErrBadRequest("Email and password are required")
	}
	var user models.User
	err := database.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, TokenPair{}, ErrUnauthorized("Authentication failed")
	}
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	if !tokens.VerifyPassword(password, user.PasswordHash) {
		return models.User{}, TokenPair{}, ErrUnauthorized("Authentication failed")
	}
	if !user.IsActive {
		return models.User{}, TokenPair{}, ErrForbidden("Account is deactivated")
	}
	pair, err := tokens.IssuePair(user.ID, user.Email, user.Name, user.Roles)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	_ = SetLastLogin(ctx, database, user.ID)
	return user, pair, nil
}

// RefreshSession rotates a refresh token: the presented one is revoked and a
// new pair is issued with the user's current roles.
func RefreshSession(ctx context.Context, database *sqlx.DB, tokens TokenService, refreshToken string) (models.User, TokenPair, error) {
	claims, err := tokens.Parse(ctx, refreshToken, TokenRefresh)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	user, err := GetUser(ctx, database, claims.Subject)
	if err != nil {
		if svcErr, ok := AsServiceError(err); ok && svcErr.Status == 404 {
			return models.User{}, TokenPair{}, ErrUnauthorized("Authentication failed")
		}
		return models.User{}, TokenPair{}, err
	}
	if !user.IsActive {
		return models.User{}, TokenPair{}, ErrForbidden("Account is deactivated")
	}
	if err := tokens.Revoke(ctx, claims); err != nil {
		return models.User{}, TokenPair{}, WrapError(err, "revoke refresh token")
	}
	pair, err := tokens.IssuePair(user.ID, user.Email, user.Name, user.Roles)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Logout revokes the access token in use and, when supplied, the refresh token.
func Logout(ctx context.Context, tokens TokenService, access *Claims, refreshToken string) error {
	if err := tokens.Revoke(ctx, access); err != nil {
		return WrapError(err, "revoke access token")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	refresh, err := tokens.Parse(ctx, refreshToken, TokenRefresh)
	if err != nil {
		return nil
	}
	if refresh.Subject != access.Subject {
		return ErrForbidden("Refresh token belongs to another user")
	}
	if err := tokens.Revoke(ctx, refresh); err != nil {
		return WrapError(err, "revoke refresh token")
	}
	return nil
}

func GetUser(ctx context.Context, q sqlx.QueryerContext, userID string) (models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return models.User{}, ErrNotFound("User not found")
	}
	var user models.User
	err := sqlx.GetContext(ctx, q, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound("User not found")
	}
	return user, err
}

func UpdateProfile(ctx context.Context, database *sqlx.DB, userID, name string) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, ErrBadRequest("Name is required")
	}
	res, err := database.ExecContext(ctx, `UPDATE users SET name = $2, updated_at = $3 WHERE id = $1`, userID, name, time.Now().UTC())
	if err != nil {
		return models.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, ErrNotFound("User not found")
	}
	return GetUser(ctx, database, userID)
}

func ChangePassword(ctx context.Context, database *sqlx.DB, tokens TokenService, userID, current, next string) error {
	user, err := GetUser(ctx, database, userID)
	if err != nil {
		return err
	}
	if !tokens.VerifyPassword(current, user.PasswordHash) {
		return ErrBadRequest("Current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return ErrBadRequest(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	hash, err := tokens.HashPassword(next)
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, hash, time.Now().UTC())
	return err
}

// DeactivateSelf soft-deletes the caller's account. Users are never removed.
func DeactivateSelf(ctx context.Context, database *sqlx.DB, actor Actor) error {
	_, _, err := setUserActive(ctx, database, actor, actor.ID, false, "USER_DEACTIVATED_SELF")
	return err
}

type UserFilter struct {
	Search string
	Role   string
	Active *bool
	Limit  int
	Offset int
}

func ListUsers(ctx context.Context, database *sqlx.DB, filter UserFilter) ([]models.User, int, error) {
	where := []string{}
	args := []interface{}{}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		where = append(where, fmt.Sprintf("(lower(email) LIKE $%[1]d OR lower(name) LIKE $%[1]d)", len(args)))
	}
	if filter.Role != "" {
		role, ok := ParseRole(filter.Role)
		if !ok {
			return nil, 0, ErrBadRequest("Invalid role")
		}
		args = append(args, string(role))
		where = append(where, fmt.Sprintf("$%d = ANY(roles)", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := database.GetContext(ctx, &total, `SELECT count(*) FROM users`+clause, args...); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, maxInt(filter.Offset, 0))
	users := []models.User{}
	err := database.SelectContext(ctx, &users, fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, clause, len(args)-1, len(args)), args...)
	return users, total, err
}

// SetUserRoles replaces a user's role set. The set is normalized and must not
// end up empty; the primary role is recomputed from it.
func SetUserRoles(ctx context.Context, database *sqlx.DB, actor Actor, userID string, raw []string) (models.User, []Effect, error) {
	if !actor.IsAdmin() {
		return models.User{}, nil, ErrForbidden("Only admins can change roles")
	}
	roles := NormalizeRoles(raw)
	if len(roles) == 0 {
		return models.User{}, nil, ErrBadRequest("At least one valid role is required")
	}
	if userID == actor.ID && !containsRole(roles, RoleAdmin) {
		return models.User{}, nil, ErrBadRequest("You cannot remove your own admin role")
	}
	now := time.Now().UTC()
	var after models.User
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		before, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET roles = $2, role = $3, updated_at = $4 WHERE id = $1`,
			userID, pq.StringArray(RoleStrings(roles)), string(PrimaryRole(roles)), now); err != nil {
			return err
		}
		after, err = GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: actor.ID,
			Action:  "USER_ROLES_UPDATED",
			Before:  userSnapshot(before),
			After:   userSnapshot(after),
		}, now)
	})
	if err != nil {
		return models.User{}, nil, err
	}
	effects := []Effect{activityEffect("user.roles_updated", "USER", userID, actor.ID, now,
		map[string]interface{}{"roles": []string(after.Roles)})}
	return after, effects, nil
}

func SetUserActive(ctx context.Context, database *sqlx.DB, actor Actor, userID string, active bool) (models.User, []Effect, error) {
	if !actor.IsAdmin() {
		return models.User{}, nil, ErrForbidden("Only admins can change account status")
	}
	if userID == actor.ID && !active {
		return models.User{}, nil, ErrBadRequest("You cannot deactivate your own account here")
	}
	action := "USER_DEACTIVATED"
	if active {
		action = "USER_ACTIVATED"
	}
	return setUserActive(ctx, database, actor, userID, active, action)
}

func setUserActive(ctx context.Context, database *sqlx.DB, actor Actor, userID string, active bool, action string) (models.User, []Effect, error) {
	now := time.Now().UTC()
	var after models.User
	changed := false
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		before, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		after = before
		if before.IsActive == active {
			return nil
		}
		changed = true
		if _, err := tx.ExecContext(ctx, `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`, userID, active, now); err != nil {
			return err
		}
		after.IsActive = active
		after.UpdatedAt = now
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: actor.ID,
			Action:  action,
			Before:  userSnapshot(before),
			After:   userSnapshot(after),
		}, now)
	})
	if err != nil || !changed {
		return after, nil, err
	}
	return after, []Effect{activityEffect("user."+strings.ToLower(strings.TrimPrefix(action, "USER_")), "USER", userID, actor.ID, now, nil)}, nil
}

func lockUser(ctx context.Context, tx *sqlx.Tx, userID string) (models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return models.User{}, ErrNotFound("User not found")
	}
	var user models.User
	err := tx.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound("User not found")
	}
	return user, err
}

func userSnapshot(user models.User) UserSnapshot {
	return UserSnapshot{
		ID:       user.ID,
		Email:    user.Email,
		Roles:    append([]string(nil), user.Roles...),
		Role:     user.Role,
		IsActive: user.IsActive,
	}
}

// grantRole adds role to the user's set inside tx, recomputing the primary role.
func grantRole(ctx context.Context, tx *sqlx.Tx, userID string, role Role, now time.Time) error {
	user, err := lockUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	roles := NormalizeRoles(append([]string(user.Roles), string(role)))
	if len(roles) == len(NormalizeRoles(user.Roles)) {
		return nil
	}
	_, err = tx.ExecContext(ctx, `UPDATE users SET roles = $2, role = $3, updated_at = $4 WHERE id = $1`,
		userID, pq.StringArray(RoleStrings(roles)), string(PrimaryRole(roles)), now)
	return err
}

func TouchLastSeen(ctx context.Context, database *sqlx.DB, userID string) error {
	_, err := database.ExecContext(ctx, `UPDATE users SET last_seen_at = $1 WHERE id = $2`, time.Now().UTC(), userID)
	return err
}

func SetLastLogin(ctx context.Context, database *sqlx.DB, userID string) error {
	now := time.Now().UTC()
	_, err := database.ExecContext(ctx, `UPDATE users SET last_login_at = $1, last_seen_at = $1 WHERE id = $2`, now, userID)
	return err
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func containsRole(roles []Role, role Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
