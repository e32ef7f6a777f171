package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"literature-flow/domain/config"

	"go.uber.org/zap"
)

type sessionEntry struct {
	ready    chan struct{}
	session  *MapSession
	err      error
	lastUsed time.Time
}

// SessionRegistry keeps one map session per project, created on first use.
// Sessions are opened outside the registry lock so a slow project load never
// holds up other projects.
type SessionRegistry struct {
	mu       sync.Mutex
	deps     SessionDeps
	sessions map[string]*sessionEntry
	logger   *zap.Logger
	now      func() time.Time

	stopIdle chan struct{}
	idleDone chan struct{}
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry(deps SessionDeps) *SessionRegistry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		deps:     deps,
		sessions: make(map[string]*sessionEntry),
		logger:   logger.Named("sessions"),
		now:      time.Now,
	}
}

// Get returns the project's session, opening it if needed
func (r *SessionRegistry) Get(ctx context.Context, projectID string) (*MapSession, error) {
	s, _, err := r.get(ctx, projectID)
	return s, err
}

// OpenView returns the project's session with its graph rebuilt from the
// store, as happens whenever the project view is opened
func (r *SessionRegistry) OpenView(ctx context.Context, projectID string) (*MapSession, error) {
	s, fresh, err := r.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		s.Reload(ctx)
	}
	return s, nil
}

// get reports whether this call opened the session
func (r *SessionRegistry) get(ctx context.Context, projectID string) (*MapSession, bool, error) {
	r.mu.Lock()
	e, ok := r.sessions[projectID]
	if !ok {
		e = &sessionEntry{ready: make(chan struct{}), lastUsed: r.now()}
		r.sessions[projectID] = e
	}
	deps := r.deps
	r.mu.Unlock()

	if !ok {
		r.open(ctx, projectID, e, deps)
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if e.err != nil {
		return nil, false, e.err
	}

	r.mu.Lock()
	e.lastUsed = r.now()
	r.mu.Unlock()
	return e.session, !ok, nil
}

func (r *SessionRegistry) open(ctx context.Context, projectID string, e *sessionEntry, deps SessionDeps) {
	defer close(e.ready)

	// other callers wait on this load, so it must not die with the first request
	ctx = context.WithoutCancel(ctx)

	s, err := NewMapSession(projectID, deps)
	if err == nil {
		if err = s.Open(ctx); err != nil {
			_ = s.Close(ctx)
		}
	}
	if err != nil {
		e.err = err
		r.mu.Lock()
		if r.sessions[projectID] == e {
			delete(r.sessions, projectID)
		}
		r.mu.Unlock()
		return
	}
	e.session = s
	r.logger.Info("Opened map session", zap.String("projectID", projectID))
}

// Evict closes and forgets a project's session so the next Get reloads it
func (r *SessionRegistry) Evict(ctx context.Context, projectID string) error {
	r.mu.Lock()
	e, ok := r.sessions[projectID]
	delete(r.sessions, projectID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return closeEntry(ctx, e)
}

// EvictIdle closes every session unused for at least maxIdle and returns how
// many were closed
func (r *SessionRegistry) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	var idle []*sessionEntry
	r.mu.Lock()
	for id, e := range r.sessions {
		select {
		case <-e.ready:
		default:
			continue
		}
		if !e.lastUsed.After(cutoff) {
			idle = append(idle, e)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		if err := closeEntry(ctx, e); err != nil {
			r.logger.Warn("Idle session did not drain", zap.String("projectID", e.session.ProjectID()), zap.Error(err))
		}
	}
	if len(idle) > 0 {
		r.logger.Info("Closed idle map sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// StartIdleEviction closes sessions unused for maxIdle, checking every
// maxIdle/2. It stops when the registry is closed.
func (r *SessionRegistry) StartIdleEviction(maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	r.mu.Lock()
	if r.stopIdle != nil {
		r.mu.Unlock()
		return
	}
	r.stopIdle = make(chan struct{})
	r.idleDone = make(chan struct{})
	stop, done := r.stopIdle, r.idleDone
	r.mu.Unlock()

	timeout := r.deps.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(maxIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
				r.EvictIdle(ctx, maxIdle)
				cancel()
			}
		}
	}()
}

// UpdateLayoutConfig swaps the layout settings used by sessions opened from now on
func (r *SessionRegistry) UpdateLayoutConfig(cfg *config.LayoutConfig) {
	if cfg == nil {
		return
	}
	if err := cfg.Validate(); err != nil {
		r.logger.Warn("Ignoring invalid layout config", zap.Error(err))
		return
	}
	r.mu.Lock()
	r.deps.Layout = cfg
	r.mu.Unlock()
	r.logger.Info("Layout config updated")
}

// Len returns the number of open sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops idle eviction and drains every session's background writes
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	entries := r.sessions
	r.sessions = make(map[string]*sessionEntry)
	stop, done := r.stopIdle, r.idleDone
	r.stopIdle, r.idleDone = nil, nil
	r.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	var errs []error
	for _, e := range entries {
		if err := closeEntry(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeEntry(ctx context.Context, e *sessionEntry) error {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if e.session == nil {
		return nil
	}
	return e.session.Close(ctx)
}
