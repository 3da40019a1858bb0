package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskledger/core/internal/domain/entities"
	"github.com/taskledger/core/internal/infrastructure/config"
	"github.com/taskledger/core/internal/infrastructure/logger"
	"github.com/taskledger/core/internal/ports"
)

// dummyHash is compared against when a login names an unknown user, so the
// request costs a bcrypt verification either way and response timing does
// not reveal whether the account exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService handles registration, login and session resolution.
type AuthService struct {
	userRepo    ports.UserRepository
	sessionRepo ports.SessionRepository
	sessionCfg  config.SessionConfig
	logger      *logger.Logger
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService creates a new auth service
func NewAuthService(userRepo ports.UserRepository, sessionRepo ports.SessionRepository, sessionCfg config.SessionConfig, logger *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sessionCfg:  sessionCfg,
		logger:      logger,
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*entities.User, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, entities.ErrInvalidInput
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, entities.ErrDuplicateUser) {
			return nil, entities.ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered successfully", "username", user.Username)

	return &entities.User{Username: user.Username}, nil
}

// Login verifies credentials and establishes a new session, returning the
// opaque session token. Unknown usernames and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (string, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return "", entities.ErrInvalidInput
	}

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			// Burn a comparison anyway; see dummyHash.
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(req.Password))
			s.logger.Warn("Login attempt with unknown username", "username", req.Username)
			return "", entities.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("Login attempt with invalid password", "username", req.Username)
		return "", entities.ErrInvalidCredentials
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(s.sessionCfg.TTL)
	if err := s.sessionRepo.Create(ctx, user.Username, token, expiresAt); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("User logged in successfully", "username", user.Username)

	return token, nil
}

// Logout destroys the session behind the given token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessionRepo.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ResolveSession maps a session token to the current account record. The
// session stores only the username; the user is re-read from storage here so
// a live session never serves a stale copy of the account.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*entities.User, error) {
	sess, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, entities.ErrUnauthorized
	}

	if sess.IsExpired() {
		_ = s.sessionRepo.Delete(ctx, token)
		return nil, entities.ErrSessionExpired
	}

	user, err := s.userRepo.GetByUsername(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			// The account is gone; the session has nothing to resolve to.
			_ = s.sessionRepo.Delete(ctx, token)
			return nil, entities.ErrUnauthorized
		}
		// Storage failure: the session is still valid, so keep it and let
		// the caller report the error instead of logging the user out.
		return nil, fmt.Errorf("failed to look up session user: %w", err)
	}

	return user, nil
}
