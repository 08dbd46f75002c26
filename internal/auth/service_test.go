package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	clients map[string]*APIClient
}

func (r *stubRepo) FindByID(_ context.Context, id string) (*APIClient, error) {
	client, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return client, nil
}

func newTestService(t *testing.T, secret string, active bool) *Service {
	t.Helper()
	hash, err := HashSecret(secret)
	require.NoError(t, err)
	repo := &stubRepo{clients: map[string]*APIClient{
		"bot": {ID: "bot", Name: "Telegram Bot", SecretHash: hash, IsActive: active},
	}}
	return NewService(repo)
}

func TestAuthenticateValidKey(t *testing.T) {
	svc := newTestService(t, "s3cret", true)

	client, err := svc.Authenticate(context.Background(), "bot.s3cret")
	require.NoError(t, err)
	require.Equal(t, "Telegram Bot", client.Name)
}

func TestAuthenticateRejections(t *testing.T) {
	svc := newTestService(t, "s3cret", true)
	ctx := context.Background()

	for _, key := range []string{"", "bot", "bot.", ".s3cret", "bot.wrong", "ghost.s3cret"} {
		_, err := svc.Authenticate(ctx, key)
		require.ErrorIs(t, err, ErrInvalidCredentials, "key %q", key)
	}
}

func TestAuthenticateInactiveClient(t *testing.T) {
	svc := newTestService(t, "s3cret", false)

	_, err := svc.Authenticate(context.Background(), "bot.s3cret")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
