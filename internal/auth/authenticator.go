// Package auth resolves bearer session tokens into request identities for
// the CareerVision entitlement service. The identity provider owns login
// and signup; this service only validates the sessions it issues.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"careervision/internal/types"
)

// SessionRepo defines the data access the authenticator needs.
type SessionRepo interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, string, error)
	TouchActivity(ctx context.Context, sessionID string) error
}

// SessionAuthenticator implements core.Authenticator over hashed session
// tokens. Tokens are compared by SHA-256 digest so a database dump never
// exposes a usable credential.
type SessionAuthenticator struct {
	sessions SessionRepo
	clock    types.Clock
	logger   *slog.Logger
}

// NewSessionAuthenticator creates an authenticator over the given session
// repository.
func NewSessionAuthenticator(sessions SessionRepo, clock types.Clock, logger *slog.Logger) *SessionAuthenticator {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionAuthenticator{sessions: sessions, clock: clock, logger: logger}
}

// HashToken returns the hex SHA-256 digest under which a raw token is
// stored and looked up.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ResolveToken validates a raw bearer token and returns the identity it
// authenticates.
//
// An unknown token yields ErrCodeAuthTokenInvalid; a known but lapsed
// session yields ErrCodeAuthSessionExpired so clients can distinguish
// "sign in again" from "bad credential".
func (a *SessionAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Identity, error) {
	session, email, err := a.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}

	if !a.clock.Now().Before(session.ExpiresAt) {
		return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
	}

	// Best effort; an activity write failure must not fail the request.
	if err := a.sessions.TouchActivity(ctx, session.ID); err != nil {
		a.logger.Warn("failed to record session activity",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}

	return &types.Identity{UserID: session.UserID, Email: email}, nil
}
