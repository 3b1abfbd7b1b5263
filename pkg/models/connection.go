package models

import "time"

// Connection links a user to a third-party service account. The runner reads
// tokens from it but never mutates them; refresh is handled elsewhere.
type Connection struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id" validate:"required"`
	Service      string     `json:"service" validate:"required"`
	AccessToken  string     `json:"access_token"`
	RefreshToken *string    `json:"refresh_token,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	// RateLimitRemaining is a hint from the provider's last response, kept so
	// jobs can back off before hitting a hard limit.
	RateLimitRemaining *int      `json:"rate_limit_remaining,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Expired reports whether the access token expiry has passed.
func (c *Connection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
