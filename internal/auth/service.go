package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials rejects unknown, inactive or mismatched keys. The
// message never distinguishes the three cases.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service wraps API key authentication.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates a bearer key of the form "<client_id>.<secret>".
func (s *Service) Authenticate(ctx context.Context, key string) (*APIClient, error) {
	clientID, secret, ok := strings.Cut(key, ".")
	if !ok || clientID == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !client.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return client, nil
}

// HashSecret produces the stored bcrypt hash for a freshly minted secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
