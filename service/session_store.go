package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardform-service/controller"
	"cardform-service/logging"
	"cardform-service/models"
	"cardform-service/monitoring"
)

// ErrSessionNotFound is returned for unknown or evicted sessions
var ErrSessionNotFound = errors.New("form session not found")

// Session is one browser tab's form
type Session struct {
	ID         string
	Controller *controller.Controller

	form     *controller.MemoryForm
	mu       sync.Mutex
	lastSeen time.Time
}

// Snapshot returns the current view of the form.
func (s *Session) Snapshot() models.FormSnapshot {
	var snap models.FormSnapshot
	s.Controller.Inspect(func(state models.FormState) {
		snap = s.form.Snapshot(state)
	})
	snap.SessionID = s.ID
	return snap
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore keeps form sessions in memory
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     controller.Options
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions share opts. Sessions idle for
// longer than ttl are removed by Run.
func NewSessionStore(opts controller.Options, ttl time.Duration) *SessionStore {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		opts:     opts,
		ttl:      ttl,
		now:      now,
	}
}

// Create starts a new form session.
func (s *SessionStore) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	form := controller.NewMemoryForm()

	opts := s.opts
	opts.Name = id
	ctrl, err := controller.New(form.Elements(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create form controller: %w", err)
	}

	sess := &Session{
		ID:         id,
		Controller: ctrl,
		form:       form,
		lastSeen:   s.now(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	monitoring.ActiveSessions.Add(ctx, 1)
	logging.Debug("Form session created", zap.String("session_id", id))
	return sess, nil
}

// Get returns a live session and marks it as used.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	sess.touch(s.now())
	return sess, nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evict removes sessions idle for longer than the store TTL and returns how
// many were removed. Sessions with a submission in flight are kept.
func (s *SessionStore) Evict(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if sess.idleSince(now) <= s.ttl {
			continue
		}
		if sess.Controller.State() == models.StateSubmitting {
			continue
		}
		stale = append(stale, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Controller.Close()
	}
	if len(stale) > 0 {
		monitoring.ActiveSessions.Add(ctx, -int64(len(stale)))
		logging.Info("Evicted idle form sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run evicts idle sessions every interval until ctx is done. A non-positive
// interval disables eviction.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		logging.Warn("Session eviction disabled", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict(ctx)
		}
	}
}

// Close shuts down every session.
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Close()
	}
}
