package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nestline/hub-server/internal/store"
)

type memUsers struct {
	nextID int64
	byName map[string]*store.User
}

func newMemUsers() *memUsers {
	return &memUsers{byName: make(map[string]*store.User)}
}

func (m *memUsers) CreateUser(_ context.Context, username, displayName, passwordHash string) (*store.User, error) {
	m.nextID++
	user := &store.User{
		ID:           m.nextID,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.byName[username] = user
	return user, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	for _, user := range m.byName {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	user, ok := m.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

type memSettings struct {
	hidden map[int64]bool
}

func (m *memSettings) GetSettings(_ context.Context, userID int64) (*store.Settings, error) {
	return &store.Settings{UserID: userID, ShowOnlineStatus: !m.hidden[userID]}, nil
}

func (m *memSettings) SetShowOnlineStatus(_ context.Context, userID int64, show bool) error {
	m.hidden[userID] = !show
	return nil
}

func newTestService() (*Service, *memUsers, *memSettings) {
	users := newMemUsers()
	settings := &memSettings{hidden: make(map[int64]bool)}
	cfg := &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "nestline",
		Audience: "nestline-clients",
		TTL:      time.Hour,
	}
	return NewService(users, settings, cfg), users, settings
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "Alice", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = svc.Register(ctx, "alice", "", "secret123")
	require.ErrorIs(t, err, ErrUserExists)

	token, err = svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "al", "", "secret123")
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.Register(ctx, "alice", "", "123")
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestValidateCredential(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "Alice", "secret123")
	require.NoError(t, err)

	identity, err := svc.ValidateCredential(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "alice", identity.Username)
	require.Equal(t, "Alice", identity.DisplayName)
	require.NotZero(t, identity.UserID)

	_, err = svc.ValidateCredential(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateCredentialUnknownUser(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "", "secret123")
	require.NoError(t, err)

	// Token still valid but the user is gone.
	delete(users.byName, "alice")

	_, err = svc.ValidateCredential(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateCredentialDisplayNameFallback(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	token, err := svc.Register(ctx, "bob", "", "secret123")
	require.NoError(t, err)

	identity, err := svc.ValidateCredential(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "bob", identity.DisplayName)
}

func TestShowOnlineStatus(t *testing.T) {
	svc, _, settings := newTestService()
	ctx := context.Background()

	show, err := svc.ShowOnlineStatus(ctx, 1)
	require.NoError(t, err)
	require.True(t, show)

	settings.hidden[1] = true
	show, err = svc.ShowOnlineStatus(ctx, 1)
	require.NoError(t, err)
	require.False(t, show)
}

func TestExpiredToken(t *testing.T) {
	users := newMemUsers()
	settings := &memSettings{hidden: make(map[int64]bool)}
	cfg := &JWTConfig{
		Secret: []byte("test-secret"),
		TTL:    -time.Minute,
	}
	svc := NewService(users, settings, cfg)

	token, err := svc.Register(context.Background(), "alice", "", "secret123")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}
