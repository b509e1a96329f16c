package service

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/auth"
)

// AdminAuthService checks the single admin account from the config file and
// issues session tokens.
//
//	AuthHandler (HTTP) → AdminAuthService → PasswordService (bcrypt)
//	                                      ↘ TokenService (JWT)
type AdminAuthService struct {
	config    ConfigSource
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAdminAuthService(cfg ConfigSource, tokens *auth.TokenService, passwords *auth.PasswordService, logger *slog.Logger) *AdminAuthService {
	return &AdminAuthService{
		config:    cfg,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Login returns a signed session token for valid credentials. Wrong username
// and wrong password produce the same error.
func (s *AdminAuthService) Login(ctx context.Context, username, password string) (string, error) {
	admin := s.config.Get().Admin
	if admin.PasswordHash == "" {
		return "", apperror.NotConfigured("admin password hash is not configured")
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(admin.Username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := s.passwords.Verify(admin.PasswordHash, password)
	if !userOK || passErr != nil {
		s.logger.WarnContext(ctx, "admin login failed", slog.String("username", username))
		return "", apperror.Unauthorized("invalid username or password")
	}

	token, err := s.tokens.Generate(admin.Username)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "admin logged in", slog.String("username", username))
	return token, nil
}

// ValidateToken returns the admin username a session token was issued to.
func (s *AdminAuthService) ValidateToken(token string) (string, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return "", apperror.Unauthorized("invalid session")
	}
	return subject, nil
}
