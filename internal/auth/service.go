package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nestline/hub-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidToken is returned when a bearer token fails validation or
	// does not resolve to a known user.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is a user as resolved from a validated credential.
type Identity struct {
	UserID      int64
	Username    string
	DisplayName string
}

// Service provides authentication operations. It issues tokens for the REST
// surface and validates the opaque bearer credentials presented over the
// realtime socket.
type Service struct {
	users     store.UserStore
	settings  store.SettingsStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(users store.UserStore, settings store.SettingsStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		users:     users,
		settings:  settings,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, username, displayName, password string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return "", ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = username
	}

	existing, err := s.users.GetUserByUsername(ctx, username)
	if err == nil && existing != nil {
		return "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, displayName, hashedPassword)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// ValidateCredential validates a bearer token presented over the socket and
// resolves the identity it belongs to.
func (s *Service) ValidateCredential(ctx context.Context, token string) (Identity, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	user, err := s.users.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}

	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.Username
	}

	return Identity{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: displayName,
	}, nil
}

// ShowOnlineStatus reports whether the user allows their presence to be seen
// by others. Users without an explicit preference are visible.
func (s *Service) ShowOnlineStatus(ctx context.Context, userID int64) (bool, error) {
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	return settings.ShowOnlineStatus, nil
}
