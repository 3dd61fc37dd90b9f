package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/observability"
	"github.com/noah-isme/situated-learning/internal/workflow"
)

// ErrSessionNotFound indicates the session id is unknown or was closed.
var ErrSessionNotFound = errors.New("session not found")

// SessionFactory builds a fresh workflow session.
type SessionFactory func() *workflow.Session

// SessionService owns the open workflow sessions.
type SessionService interface {
	Open(ctx context.Context) (*workflow.Session, error)
	Get(id string) (*workflow.Session, error)
	Close(id string) error
	Count() int
	Sweep() int
	Run(ctx context.Context, interval time.Duration)
}

// SessionOption customises the session registry.
type SessionOption func(*sessionService)

// WithIdleTTL closes sessions nobody has touched for ttl. Zero disables the sweep.
func WithIdleTTL(ttl time.Duration) SessionOption {
	return func(s *sessionService) {
		s.idleTTL = ttl
	}
}

// WithClock replaces time.Now for idle bookkeeping.
func WithClock(now func() time.Time) SessionOption {
	return func(s *sessionService) {
		s.now = now
	}
}

type trackedSession struct {
	session     *workflow.Session
	lastTouched time.Time
}

type sessionService struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	factory  SessionFactory
	idleTTL  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSessionService builds an in-memory session registry.
func NewSessionService(factory SessionFactory, logger zerolog.Logger, opts ...SessionOption) SessionService {
	s := &sessionService{
		sessions: make(map[string]*trackedSession),
		factory:  factory,
		now:      time.Now,
		logger:   logger.With().Str("component", "session_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session and loads the course catalogue into it. A catalogue
// failure leaves the session open with the error surfaced in its snapshot.
func (s *sessionService) Open(ctx context.Context) (*workflow.Session, error) {
	session := s.factory()
	if session == nil {
		return nil, errors.New("session factory returned nil")
	}

	s.mu.Lock()
	s.sessions[session.ID()] = &trackedSession{session: session, lastTouched: s.now()}
	count := len(s.sessions)
	s.mu.Unlock()

	observability.ActiveSessions().Set(float64(count))
	s.logger.Info().Str("session_id", session.ID()).Int("open_sessions", count).Msg("session opened")

	if err := session.LoadCourses(ctx); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID()).Msg("failed to load courses for new session")
	}

	return session, nil
}

// Get returns the session and marks it as recently used.
func (s *sessionService) Get(id string) (*workflow.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	tracked.lastTouched = s.now()
	return tracked.session, nil
}

func (s *sessionService) Close(id string) error {
	s.mu.Lock()
	tracked, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	tracked.session.Close()
	observability.ActiveSessions().Set(float64(count))
	s.logger.Info().Str("session_id", id).Int("open_sessions", count).Msg("session closed")
	return nil
}

func (s *sessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many it
// closed. Sessions with an action in flight are left alone.
func (s *sessionService) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}

	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var expired []*trackedSession
	for id, tracked := range s.sessions {
		if !tracked.lastTouched.Before(cutoff) || tracked.session.Snapshot().Busy {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, tracked)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	for _, tracked := range expired {
		tracked.session.Close()
		s.logger.Info().Str("session_id", tracked.session.ID()).Msg("idle session expired")
	}
	observability.ActiveSessions().Set(float64(count))
	s.logger.Info().Int("expired", len(expired)).Int("open_sessions", count).Msg("session sweep finished")
	return len(expired)
}

// Run sweeps on every tick until ctx is cancelled.
func (s *sessionService) Run(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
