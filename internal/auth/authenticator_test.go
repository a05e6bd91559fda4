package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"careervision/internal/types"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, string, error) {
	args := m.Called(ctx, tokenHash)
	if s := args.Get(0); s != nil {
		return s.(*types.Session), args.String(1), args.Error(2)
	}
	return nil, args.String(1), args.Error(2)
}

func (m *mockSessionRepo) TouchActivity(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func liveSession() *types.Session {
	return &types.Session{
		ID:        "sess_1",
		UserID:    "u1",
		TokenHash: HashToken("tok_raw"),
		ExpiresAt: testNow.Add(time.Hour),
	}
}

func TestResolveToken_Valid(t *testing.T) {
	repo := new(mockSessionRepo)
	a := NewSessionAuthenticator(repo, fixedClock{now: testNow}, nil)

	repo.On("GetByTokenHash", mock.Anything, HashToken("tok_raw")).
		Return(liveSession(), "u1@example.com", nil)
	repo.On("TouchActivity", mock.Anything, "sess_1").Return(nil)

	identity, err := a.ResolveToken(context.Background(), "tok_raw")
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "u1@example.com", identity.Email)
	repo.AssertExpectations(t)
}

func TestResolveToken_UnknownToken(t *testing.T) {
	repo := new(mockSessionRepo)
	a := NewSessionAuthenticator(repo, fixedClock{now: testNow}, nil)

	repo.On("GetByTokenHash", mock.Anything, mock.Anything).
		Return(nil, "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "unknown session token", nil))

	_, err := a.ResolveToken(context.Background(), "tok_bogus")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestResolveToken_ExpiredSession(t *testing.T) {
	repo := new(mockSessionRepo)
	a := NewSessionAuthenticator(repo, fixedClock{now: testNow}, nil)

	expired := liveSession()
	expired.ExpiresAt = testNow.Add(-time.Minute)
	repo.On("GetByTokenHash", mock.Anything, mock.Anything).
		Return(expired, "u1@example.com", nil)

	_, err := a.ResolveToken(context.Background(), "tok_raw")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeAuthSessionExpired, appErr.Code)
}

func TestResolveToken_ExpiryBoundary(t *testing.T) {
	repo := new(mockSessionRepo)
	a := NewSessionAuthenticator(repo, fixedClock{now: testNow}, nil)

	// A session expiring exactly now is already expired.
	boundary := liveSession()
	boundary.ExpiresAt = testNow
	repo.On("GetByTokenHash", mock.Anything, mock.Anything).
		Return(boundary, "u1@example.com", nil)

	_, err := a.ResolveToken(context.Background(), "tok_raw")
	require.Error(t, err)
}

func TestResolveToken_TouchFailureIgnored(t *testing.T) {
	repo := new(mockSessionRepo)
	a := NewSessionAuthenticator(repo, fixedClock{now: testNow}, nil)

	repo.On("GetByTokenHash", mock.Anything, mock.Anything).
		Return(liveSession(), "u1@example.com", nil)
	repo.On("TouchActivity", mock.Anything, "sess_1").
		Return(errors.New("write timeout"))

	identity, err := a.ResolveToken(context.Background(), "tok_raw")
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
