package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nexuslabs/nexus-auth/internal/account"
	"github.com/nexuslabs/nexus-auth/internal/logging"
)

// memStore is an in-memory AccountStore used to exercise the orchestrator
// without a database. Reset-code consumption is atomic under the mutex,
// mirroring the SQL row update of the real repository.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*account.Account // keyed by email
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*account.Account)}
}

func (s *memStore) Create(_ context.Context, email, passwordHash string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; ok {
		return nil, account.ErrDuplicateEmail
	}

	acc := &account.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.accounts[email] = acc

	cp := *acc
	return &cp, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ID == id {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (s *memStore) SetResetCode(_ context.Context, email, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok {
		return account.ErrNotFound
	}
	acc.ResetCode = &code
	acc.ResetExpiry = &expiry
	return nil
}

func (s *memStore) ConsumeResetCode(_ context.Context, email, code, newPasswordHash string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok || acc.ResetCode == nil || acc.ResetExpiry == nil {
		return nil, account.ErrNotFound
	}
	if *acc.ResetCode != code || !acc.ResetExpiry.After(time.Now()) {
		return nil, account.ErrNotFound
	}

	acc.PasswordHash = newPasswordHash
	acc.ResetCode = nil
	acc.ResetExpiry = nil

	cp := *acc
	return &cp, nil
}

func (s *memStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ID == id {
			acc.PasswordHash = passwordHash
			return nil
		}
	}
	return account.ErrNotFound
}

func (s *memStore) ClearResetCode(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ID == id {
			acc.ResetCode = nil
			acc.ResetExpiry = nil
			return nil
		}
	}
	return account.ErrNotFound
}

// expireResetCode pushes a pending code's expiry into the past, simulating
// a clock skip beyond the validity window.
func (s *memStore) expireResetCode(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[email]; ok && acc.ResetExpiry != nil {
		past := time.Now().Add(-time.Second)
		acc.ResetExpiry = &past
	}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string // codes, in delivery order
	to   []string
	fail error
}

func (n *fakeNotifier) SendResetCode(_ context.Context, toEmail, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail != nil {
		return n.fail
	}
	n.to = append(n.to, toEmail)
	n.sent = append(n.sent, code)
	return nil
}

func (n *fakeNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1]
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeNotifier) {
	t.Helper()

	tokens, err := NewPasetoService(testSymmetricKey)
	require.NoError(t, err)

	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, tokens, notifier, logging.NewLogger(true), time.Hour, 5*time.Minute)
	return svc, store, notifier
}

func TestService_SignupThenLogin(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", acc.Email)
	require.NotEqual(t, uuid.Nil, acc.ID)

	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, acc.ID, result.Account.ID)

	// Token claims must match the account
	claims, err := svc.tokenService.VerifyToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, acc.ID.String(), claims.AccountID)
	require.Equal(t, "a@x.com", claims.Email)
}

func TestService_SignupValidation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"empty email", "", "secret1", ErrEmailRequired},
		{"bad email format", "not-an-email", "secret1", ErrInvalidEmailFormat},
		{"empty password", "a@x.com", "", ErrPasswordRequired},
		{"short password", "a@x.com", "12345", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_SignupDuplicate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "a@x.com", "secret2")
	require.ErrorIs(t, err, account.ErrDuplicateEmail)
}

func TestService_EmailCaseNormalized(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Signup(ctx, "Alice@X.COM", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", acc.Email)

	// Different casing resolves to the same account
	_, err = svc.Signup(ctx, "alice@x.com", "secret1")
	require.ErrorIs(t, err, account.ErrDuplicateEmail)

	_, err = svc.Login(ctx, "ALICE@x.com", "secret1")
	require.NoError(t, err)
}

func TestService_LoginErrorsIndistinguishable(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// Wrong password and unknown email yield the same error kind
	_, wrongPwErr := svc.Login(ctx, "a@x.com", "wrong-password")
	_, noAccountErr := svc.Login(ctx, "nobody@x.com", "secret1")

	require.ErrorIs(t, wrongPwErr, ErrInvalidCredentials)
	require.ErrorIs(t, noAccountErr, ErrInvalidCredentials)
	require.Equal(t, wrongPwErr, noAccountErr)
}

func TestService_ResetLifecycle(t *testing.T) {
	t.Parallel()

	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))

	code := notifier.lastCode()
	require.Len(t, code, 6)

	require.NoError(t, svc.VerifyReset(ctx, "a@x.com", code, "secret2"))

	// New password works, old one does not
	_, err = svc.Login(ctx, "a@x.com", "secret2")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// The code is single-use
	err = svc.VerifyReset(ctx, "a@x.com", code, "secret3")
	require.ErrorIs(t, err, ErrInvalidOTP)
}

func TestService_ResetUnknownAccount(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	err := svc.RequestReset(context.Background(), "nobody@x.com")
	require.ErrorIs(t, err, account.ErrNotFound)
}

func TestService_ResetCodeExpires(t *testing.T) {
	t.Parallel()

	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))

	code := notifier.lastCode()
	store.expireResetCode("a@x.com")

	// Even a matching code fails once the window has passed
	err = svc.VerifyReset(ctx, "a@x.com", code, "secret2")
	require.ErrorIs(t, err, ErrInvalidOTP)
}

func TestService_ResetRequestOverwritesPendingCode(t *testing.T) {
	t.Parallel()

	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	first := notifier.lastCode()

	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	second := notifier.lastCode()

	if first != second {
		// The earlier code is no longer pending
		err = svc.VerifyReset(ctx, "a@x.com", first, "secret2")
		require.ErrorIs(t, err, ErrInvalidOTP)
	}

	require.NoError(t, svc.VerifyReset(ctx, "a@x.com", second, "secret2"))
}

func TestService_ResetDeliveryFailure(t *testing.T) {
	t.Parallel()

	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	notifier.fail = errors.New("smtp connection refused")

	err = svc.RequestReset(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrDeliveryFailed)

	// The reset state was persisted before the send, so re-requesting
	// after the transport recovers simply overwrites it
	acc, err := store.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, acc.ResetCode)
	require.NotNil(t, acc.ResetExpiry)
}

func TestService_ChangePassword(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// Wrong old password
	err = svc.ChangePassword(ctx, acc.ID, "wrong", "secret2")
	require.ErrorIs(t, err, ErrInvalidOldPassword)

	// Correct old password
	require.NoError(t, svc.ChangePassword(ctx, acc.ID, "secret1", "secret2"))

	_, err = svc.Login(ctx, "a@x.com", "secret2")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_ConcurrentDuplicateSignup(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Signup(ctx, "a@x.com", "secret1")
		}()
	}
	wg.Wait()

	// Exactly one signup wins, the rest see the duplicate error
	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, account.ErrDuplicateEmail)
	}
	require.Equal(t, 1, created)

	_, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
}

func TestService_ConcurrentVerifyReset(t *testing.T) {
	t.Parallel()

	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	code := notifier.lastCode()

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = svc.VerifyReset(ctx, "a@x.com", code, "secret2")
		}()
	}
	wg.Wait()

	// The code is single-use: one consume succeeds, replays fail
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidOTP)
	}
	require.Equal(t, 1, succeeded)

	_, err = svc.Login(ctx, "a@x.com", "secret2")
	require.NoError(t, err)
}

func TestService_ChangePasswordRevokesPendingReset(t *testing.T) {
	t.Parallel()

	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	code := notifier.lastCode()
	require.Len(t, code, 6)

	require.NoError(t, svc.ChangePassword(ctx, acc.ID, "secret1", "secret2"))

	// The code issued against the old password is no longer usable
	err = svc.VerifyReset(ctx, "a@x.com", code, "secret3")
	require.ErrorIs(t, err, ErrInvalidOTP)

	_, err = svc.Login(ctx, "a@x.com", "secret2")
	require.NoError(t, err)
}

func TestService_GetProfile(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Signup(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	profile, err := svc.GetProfile(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, acc.ID, profile.ID)
	require.Equal(t, "a@x.com", profile.Email)

	_, err = svc.GetProfile(ctx, uuid.New())
	require.ErrorIs(t, err, account.ErrNotFound)
}
