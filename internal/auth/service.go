package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexuslabs/nexus-auth/internal/account"
	"github.com/nexuslabs/nexus-auth/internal/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrInvalidOldPassword = errors.New("old password is incorrect")
	ErrInvalidOTP         = errors.New("invalid or expired one-time code")
	ErrDeliveryFailed     = errors.New("failed to deliver one-time code")
)

const minPasswordLen = 6

// LoginResult carries the issued session token and the authenticated account
type LoginResult struct {
	Token   string
	Account *account.Account
}

// Service orchestrates the signup, login, password-reset, change-password
// and profile flows over the credential store, hasher, token service and
// notifier.
type Service struct {
	store         AccountStore
	tokenService  TokenService
	notifier      Notifier
	logger        *logging.Logger
	tokenDuration time.Duration
	otpDuration   time.Duration
}

func NewService(
	store AccountStore,
	tokenService TokenService,
	notifier Notifier,
	logger *logging.Logger,
	tokenDuration time.Duration,
	otpDuration time.Duration,
) *Service {
	return &Service{
		store:         store,
		tokenService:  tokenService,
		notifier:      notifier,
		logger:        logger,
		tokenDuration: tokenDuration,
		otpDuration:   otpDuration,
	}
}

// normalizeEmail fixes the case policy for the whole system: emails are
// compared lowercased, so the store only ever sees the canonical form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmailFormat
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < minPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}

// Signup creates a new account. No session token is issued; the caller
// logs in separately.
func (s *Service) Signup(ctx context.Context, email, password string) (*account.Account, error) {
	email = normalizeEmail(email)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newAccount, err := s.store.Create(ctx, email, passwordHash)
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			return nil, account.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return newAccount, nil
}

// Login authenticates an account and issues a session token. A missing
// account and a wrong password yield the same error so the response does
// not leak which one failed.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)

	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !VerifyPassword(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenService.CreateToken(existing.ID, existing.Email, s.tokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &LoginResult{Token: token, Account: existing}, nil
}

// RequestReset generates a one-time code, persists it with its expiry
// (overwriting any prior pending code) and delivers it via the notifier.
// The reset state is persisted before delivery is attempted, so a failed
// delivery can be retried safely by re-requesting.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	if _, err := s.store.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.ErrNotFound
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	code, err := GenerateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate one-time code: %w", err)
	}

	expiry := time.Now().Add(s.otpDuration)
	if err := s.store.SetResetCode(ctx, email, code, expiry); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	if err := s.notifier.SendResetCode(ctx, email, code); err != nil {
		s.logger.Warn("failed to deliver reset code", "email", email, "error", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return nil
}

// VerifyReset consumes a pending one-time code and swaps in the new
// password. Matching and clearing happen in one store operation, so a code
// can never be replayed.
func (s *Service) VerifyReset(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := s.store.ConsumeResetCode(ctx, email, code, passwordHash); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("failed to consume reset code: %w", err)
	}

	return nil
}

// ChangePassword replaces the password of an authenticated account after
// re-verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	existing, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.ErrNotFound
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	if !VerifyPassword(existing.PasswordHash, oldPassword) {
		return ErrInvalidOldPassword
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, existing.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Any pending reset code was issued against the old password; revoke it
	if err := s.store.ClearResetCode(ctx, existing.ID); err != nil && !errors.Is(err, account.ErrNotFound) {
		s.logger.Warn("failed to clear pending reset code", "account_id", existing.ID)
	}

	return nil
}

// GetProfile returns the account behind a verified session token. The
// account may have been deleted since the token was issued.
func (s *Service) GetProfile(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	existing, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return existing, nil
}
