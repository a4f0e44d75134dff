package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nexuslabs/nexus-auth/internal/account"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims represents the claims carried by a session token
type TokenClaims struct {
	AccountID string    `json:"account_id"` // UUID stored as string in token
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService defines the interface for session token creation and
// validation. Implementations include PasetoService (PASETO v4.local) and
// JWTService (HS256).
type TokenService interface {
	CreateToken(accountID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// AccountStore defines the credential-store operations the orchestrator
// depends on. Implemented by account.Repository.
type AccountStore interface {
	Create(ctx context.Context, email, passwordHash string) (*account.Account, error)
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	SetResetCode(ctx context.Context, email, code string, expiry time.Time) error
	ConsumeResetCode(ctx context.Context, email, code, newPasswordHash string) (*account.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ClearResetCode(ctx context.Context, id uuid.UUID) error
}

// Notifier delivers a one-time reset code to the account's registered
// address. Implemented by email.Service.
type Notifier interface {
	SendResetCode(ctx context.Context, toEmail, code string) error
}
