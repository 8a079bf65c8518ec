package restclient

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// CredentialStore holds the persisted bearer token for the upstream API.
type CredentialStore interface {
	Token() (string, bool)
	Set(token string) error
	Clear()
}

var errMissingCredentialPath = errors.New("restclient: credential path is required")

// FileCredentialStore persists the bearer token in a single file. Tokens
// that carry a JWT expiry claim are declined once expired; opaque tokens
// pass through untouched.
type FileCredentialStore struct {
	path   string
	clock  func() time.Time
	logger *zap.Logger
}

// NewFileCredentialStore constructs a store writing to the given path.
func NewFileCredentialStore(path string, logger *zap.Logger) (*FileCredentialStore, error) {
	if path == "" {
		return nil, errMissingCredentialPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCredentialStore{path: path, clock: time.Now, logger: logger}, nil
}

// Token returns the stored bearer token, if present and not expired.
func (s *FileCredentialStore) Token() (string, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", false
	}
	if s.expired(token) {
		s.logger.Info("stored bearer token expired")
		s.Clear()
		return "", false
	}
	return token, true
}

// Set persists the bearer token.
func (s *FileCredentialStore) Set(token string) error {
	return os.WriteFile(s.path, []byte(token), 0o600)
}

// Clear removes the persisted token.
func (s *FileCredentialStore) Clear() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("credential clear failed", zap.Error(err))
	}
}

func (s *FileCredentialStore) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(s.clock())
}
