package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

func (p *Persistence) ConnectionByID(ctx context.Context, id string) (*models.Connection, error) {
	query := `
		SELECT
			id
		  , user_id
		  , service
		  , access_token
		  , refresh_token
		  , scopes
		  , expires_at
		  , rate_limit_remaining
		  , created_at
		  , updated_at
		FROM connections
		WHERE id = $1
	`

	var connection models.Connection

	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&connection.ID, &connection.UserID, &connection.Service,
		&connection.AccessToken, &connection.RefreshToken,
		pq.Array(&connection.Scopes), &connection.ExpiresAt,
		&connection.RateLimitRemaining, &connection.CreatedAt, &connection.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrConnectionNotFound
		}

		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}

	return &connection, nil
}

func (p *Persistence) SaveConnection(ctx context.Context, connection *models.Connection) error {
	now := time.Now().UTC()
	if connection.CreatedAt.IsZero() {
		connection.CreatedAt = now
	}

	connection.UpdatedAt = now

	query := `
		INSERT INTO connections (id, user_id, service, access_token, refresh_token, scopes, expires_at, rate_limit_remaining, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id
		  , service = EXCLUDED.service
		  , access_token = EXCLUDED.access_token
		  , refresh_token = EXCLUDED.refresh_token
		  , scopes = EXCLUDED.scopes
		  , expires_at = EXCLUDED.expires_at
		  , rate_limit_remaining = EXCLUDED.rate_limit_remaining
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.ExecContext(ctx, query,
		connection.ID, connection.UserID, connection.Service,
		connection.AccessToken, connection.RefreshToken,
		pq.Array(connection.Scopes), connection.ExpiresAt,
		connection.RateLimitRemaining, connection.CreatedAt, connection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save connection %s: %w", connection.ID, err)
	}

	return nil
}
