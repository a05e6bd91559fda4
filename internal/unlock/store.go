// Package unlock implements the pre-release access gate: a shared static code
// grants a time-boxed unlock recorded as a single absolute expiry instant in a
// durable local file. The grant survives restarts and lapses exactly when the
// stored instant passes, never by counting elapsed runtime.
package unlock

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"careervision/internal/types"
)

// sweepInterval is how often the background sweeper re-checks the stored
// expiry against the clock. One second keeps the observable lag between the
// expiry instant and the state flip below a second.
const sweepInterval = time.Second

// Store owns the unlock grant state. All reads and writes of the grant go
// through the Store; the backing file is never consulted after initialization
// except to persist changes.
type Store struct {
	path     string
	code     string
	duration time.Duration
	clock    types.Clock
	logger   *slog.Logger

	mu    sync.Mutex
	grant types.UnlockGrant // zero when locked

	// onChange is invoked (outside the lock) whenever the unlocked state
	// flips, with the new state. Optional.
	onChange func(unlocked bool)

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithChangeListener registers a callback invoked whenever the unlocked
// state flips.
func WithChangeListener(fn func(unlocked bool)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// NewStore creates the unlock store, restores any persisted grant, purges it
// immediately if already lapsed, and starts the background sweeper.
//
// A corrupt or unparseable persisted value is treated as no grant and removed.
func NewStore(path, code string, duration time.Duration, clock types.Clock, logger *slog.Logger, opts ...Option) (*Store, error) {
	if clock == nil {
		clock = types.RealClock{}
	}

	s := &Store{
		path:     path,
		code:     code,
		duration: duration,
		clock:    clock,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.restore()

	go s.sweep()

	return s, nil
}

// restore loads the persisted expiry. Lapsed or corrupt values are purged so
// a restart never resurrects a stale grant.
func (s *Store) restore() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("unlock state unreadable, treating as locked",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		s.logger.Warn("unlock state corrupt, removing",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		s.removeFile()
		return
	}

	expiry := time.UnixMilli(millis).UTC()
	if !s.clock.Now().Before(expiry) {
		s.removeFile()
		return
	}

	s.mu.Lock()
	// The file stores only the expiry; the issue instant is recovered from
	// the fixed grant duration.
	s.grant = types.UnlockGrant{IssuedAt: expiry.Add(-s.duration), ExpiresAt: expiry}
	s.mu.Unlock()

	s.logger.Info("unlock grant restored",
		slog.Time("expires_at", expiry),
	)
}

// UnlockWithCode validates the submitted code and, on success, grants access
// until now plus the configured duration. A repeated unlock while already
// unlocked simply extends the grant from the current instant.
//
// An incorrect code returns an AppError with code "unlock_code_invalid" and
// leaves the state unchanged. Comparison is exact: no trimming, no case
// folding.
func (s *Store) UnlockWithCode(code string) error {
	if code != s.code {
		return types.NewAppError(types.ErrCodeUnlockCodeInvalid, "incorrect unlock code", nil)
	}

	now := s.clock.Now()
	expiry := now.Add(s.duration)

	s.mu.Lock()
	wasUnlocked := s.unlockedLocked(now)
	s.grant = types.UnlockGrant{IssuedAt: now, ExpiresAt: expiry}
	s.mu.Unlock()

	if err := s.persist(expiry); err != nil {
		// The in-memory grant stands for this process lifetime; only
		// durability across restarts is lost.
		s.logger.Error("failed to persist unlock grant",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("unlock granted",
		slog.Time("expires_at", expiry),
	)

	if !wasUnlocked {
		s.notify(true)
	}
	return nil
}

// Unlocked reports whether a live grant exists at this instant. A grant is
// live strictly before its expiry instant, not at it.
func (s *Store) Unlocked() bool {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlockedLocked(now)
}

// ExpiresAt returns the expiry of the current grant, or false when locked.
func (s *Store) ExpiresAt() (time.Time, bool) {
	grant, ok := s.Grant()
	return grant.ExpiresAt, ok
}

// Grant returns a snapshot of the live grant, or false when locked.
func (s *Store) Grant() (types.UnlockGrant, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unlockedLocked(now) {
		return types.UnlockGrant{}, false
	}
	return s.grant, true
}

// Revoke clears any grant immediately, regardless of its expiry.
func (s *Store) Revoke() {
	s.mu.Lock()
	had := !s.grant.ExpiresAt.IsZero()
	s.grant = types.UnlockGrant{}
	s.mu.Unlock()

	s.removeFile()

	if had {
		s.logger.Info("unlock grant revoked")
		s.notify(false)
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// sweep flips the state to locked once the stored expiry passes. It runs
// until Close.
func (s *Store) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.expireIfLapsed()
		}
	}
}

// expireIfLapsed clears a grant whose expiry instant has passed.
func (s *Store) expireIfLapsed() {
	now := s.clock.Now()

	s.mu.Lock()
	lapsed := !s.grant.ExpiresAt.IsZero() && !s.grant.ValidAt(now)
	if lapsed {
		s.grant = types.UnlockGrant{}
	}
	s.mu.Unlock()

	if !lapsed {
		return
	}

	s.removeFile()
	s.logger.Info("unlock grant expired")
	s.notify(false)
}

// unlockedLocked reports grant liveness. Caller holds s.mu.
func (s *Store) unlockedLocked(now time.Time) bool {
	return !s.grant.ExpiresAt.IsZero() && s.grant.ValidAt(now)
}

// persist writes the expiry as a decimal millisecond-epoch string.
func (s *Store) persist(expiry time.Time) error {
	return os.WriteFile(s.path, []byte(strconv.FormatInt(expiry.UnixMilli(), 10)), 0o600)
}

// removeFile best-effort deletes the state file.
func (s *Store) removeFile() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove unlock state file",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
	}
}

// notify invokes the change listener outside the lock.
func (s *Store) notify(unlocked bool) {
	if s.onChange != nil {
		s.onChange(unlocked)
	}
}
