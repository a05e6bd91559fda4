package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"careervision/internal/types"
)

// SessionRepository resolves bearer-token sessions. Tokens are stored as
// SHA-256 hashes; the raw token never touches the database.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository backed by the given
// database connection (pool or transaction).
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByTokenHash retrieves a session together with the owning user's email.
// Returns ErrCodeAuthTokenInvalid if no session holds the hash; expiry is
// the caller's concern.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, string, error) {
	var (
		s     types.Session
		email string
	)
	err := r.db.QueryRow(ctx,
		`SELECT s.id, s.user_id, s.token_hash, s.expires_at, s.last_activity_at, s.created_at, u.email
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = $1`,
		tokenHash,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.LastActivityAt, &s.CreatedAt, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "unknown session token", nil)
		}
		return nil, "", types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve session", err)
	}
	return &s, email, nil
}

// TouchActivity bumps last_activity_at. Best effort: a failed touch never
// blocks the request it was recorded for.
func (r *SessionRepository) TouchActivity(ctx context.Context, sessionID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET last_activity_at = NOW() WHERE id = $1`,
		sessionID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to touch session activity", err)
	}
	return nil
}
