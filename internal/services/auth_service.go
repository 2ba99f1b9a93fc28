// Package services – AuthService
//
// This file implements the AuthService: password login issuing a signed JWT
// session, session verification for the auth middleware, and lifecycle of
// long-lived API tokens that act as a cookie alternative for integrations.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

// Principal identifies an authenticated caller.
type Principal struct {
	UserID string
	OrgID  string
}

// AuthService verifies credentials and issues sessions and API tokens.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Secret signs session JWTs (HS256).
	Secret []byte
	// SessionTTL bounds session lifetime.
	SessionTTL time.Duration
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{DB: db, Secret: []byte(secret), SessionTTL: ttl}
}

// Register creates an account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, orgID, name, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		OrgID:        orgID,
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the password and returns a signed session JWT plus the user.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": u.ID,
		"org": u.OrgID,
		"iat": now.Unix(),
		"exp": now.Add(s.SessionTTL).Unix(),
	})
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, u, nil
}

// ParseSession validates a session JWT and extracts its principal.
func (s *AuthService) ParseSession(tokenStr string) (*Principal, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	org, _ := claims["org"].(string)
	if sub == "" {
		return nil, ErrInvalidCredentials
	}
	return &Principal{UserID: sub, OrgID: org}, nil
}

// IssueAPIToken mints an active bearer token for the user.
func (s *AuthService) IssueAPIToken(ctx context.Context, userID string) (*domain.Token, error) {
	return repo.CreateToken(ctx, s.DB, userID, uuid.NewString()+uuid.NewString())
}

// ResolveAPIToken maps a bearer token to its principal. Inactive and unknown
// tokens fail identically.
func (s *AuthService) ResolveAPIToken(ctx context.Context, raw string) (*Principal, error) {
	tok, err := repo.GetActiveToken(ctx, s.DB, raw)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	u, err := repo.GetUser(ctx, s.DB, tok.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Principal{UserID: u.ID, OrgID: u.OrgID}, nil
}

// RevokeAPIToken deactivates a bearer token.
func (s *AuthService) RevokeAPIToken(ctx context.Context, raw string) error {
	return repo.DeactivateToken(ctx, s.DB, raw)
}
