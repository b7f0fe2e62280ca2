package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quicksend/quicksend/internal/config"
	"github.com/google/uuid"
)

func TestRegisterSuccess(t *testing.T) {
	store := newMemoryStore()
	cfg := config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}

	service := NewService(store, cfg)
	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})

	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if result.User.PasswordHash != "" {
		t.Fatalf("expected password hash to be stripped from response")
	}

	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued")
	}

	if len(store.users) != 1 {
		t.Fatalf("expected user stored; got %d", len(store.users))
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newMemoryStore()
	cfg := config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}

	service := NewService(store, cfg)
	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("initial registration returned error: %v", err)
	}

	_, err = service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "AnotherPass2!",
	})

	if err == nil || err != ErrEmailAlreadyExists {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestRegisterProvisionsStorageProfile(t *testing.T) {
	store := newMemoryStore()
	provisioner := &fakeProvisioner{}
	cfg := config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}

	service := NewService(store, cfg)
	service.UseProfileProvisioner(provisioner)

	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if len(provisioner.provisioned) != 1 {
		t.Fatalf("expected exactly one profile provisioned, got %d", len(provisioner.provisioned))
	}
	if provisioner.provisioned[0] != result.User.ID {
		t.Fatalf("profile provisioned for %s, want %s", provisioner.provisioned[0], result.User.ID)
	}
}

func TestRegisterFailsWhenProvisioningFails(t *testing.T) {
	store := newMemoryStore()
	provisioner := &fakeProvisioner{err: errors.New("profiles unavailable")}
	cfg := config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}

	service := NewService(store, cfg)
	service.UseProfileProvisioner(provisioner)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err == nil {
		t.Fatalf("expected registration to fail when the storage profile cannot be provisioned")
	}

	// Token issuance must not happen for an account without a profile.
	if len(store.refreshTokens) != 0 {
		t.Fatalf("expected no tokens issued, got %d", len(store.refreshTokens))
	}
}

func TestLogin(t *testing.T) {
	store := newMemoryStore()
	cfg := config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}

	service := NewService(store, cfg)
	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	result, err := service.Login(context.Background(), LoginInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})

	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	if result.Tokens.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if result.Tokens.RefreshToken == "" {
		t.Fatalf("expected refresh token")
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	store := newMemoryStore()
	cfg := config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}

	service := NewService(store, cfg)
	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	_, err = service.Login(context.Background(), LoginInput{
		Email:    "user@example.com",
		Password: "WrongPass",
	})

	if err == nil || err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	store := newMemoryStore()
	cfg := config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}

	service := NewService(store, cfg)
	result, err := service.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if len(store.refreshTokens) != 1 {
		t.Fatalf("expected one stored refresh token, got %d", len(store.refreshTokens))
	}

	err = service.Logout(context.Background(), result.User.ID, result.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("logout returned error: %v", err)
	}
	if len(store.refreshTokens) != 0 {
		t.Fatalf("expected refresh token revoked, %d remain", len(store.refreshTokens))
	}

	if err := service.Logout(context.Background(), result.User.ID, ""); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for empty refresh token, got %v", err)
	}
}

// memoryStore implements userStore for tests.
type memoryStore struct {
	users         map[string]User
	refreshTokens map[string]time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:         make(map[string]User),
		refreshTokens: make(map[string]time.Time),
	}
}

func (m *memoryStore) CreateUser(ctx context.Context, email, passwordHash string, displayName *string) (User, error) {
	if _, ok := m.users[email]; ok {
		return User{}, ErrEmailAlreadyExists
	}
	user := User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[email] = user
	return user, nil
}

func (m *memoryStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	user, ok := m.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memoryStore) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.refreshTokens[tokenHash] = expiresAt
	return nil
}

func (m *memoryStore) RevokeToken(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	delete(m.refreshTokens, tokenHash)
	return nil
}

// fakeProvisioner implements profileProvisioner for tests.
type fakeProvisioner struct {
	provisioned []uuid.UUID
	err         error
}

func (f *fakeProvisioner) Provision(ctx context.Context, ownerID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.provisioned = append(f.provisioned, ownerID)
	return nil
}
