// Package auth authenticates API clients by bearer key. Keys take the form
// "<client_id>.<secret>"; only the bcrypt hash of the secret is stored.
package auth

import "time"

// APIClient represents a service credential allowed to call the API.
type APIClient struct {
	ID         string
	Name       string
	SecretHash string
	IsActive   bool
	CreatedAt  time.Time
}
