package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/miradorstack/mirador-yield/internal/utils"
)

// Manager serialises access to each session and persists changes only when
// the caller's function succeeds.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	sync.Mutex
	refs int
}

// NewManager wraps store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*entryLock),
	}
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.now()
}

// With runs fn against session id, creating it on first use. Changes made by
// fn are saved only if fn returns nil.
func (m *Manager) With(ctx context.Context, id string, fn func(*Session) error) error {
	return m.run(ctx, id, true, fn)
}

// View runs fn against an existing session without creating one. Changes are
// saved as with With.
func (m *Manager) View(ctx context.Context, id string, fn func(*Session) error) error {
	return m.run(ctx, id, false, fn)
}

// Ping checks the store when it has a remote backend.
func (m *Manager) Ping(ctx context.Context) error {
	if p, ok := m.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// End deletes session id.
func (m *Manager) End(ctx context.Context, id string) error {
	const op = "session.end"
	id, err := checkID(op, id)
	if err != nil {
		return err
	}
	unlock := m.lock(id)
	defer unlock()

	if _, err := m.store.Load(ctx, id); err != nil {
		if errors.Is(err, ErrNoSession) {
			return utils.NotFound(op, "session %q not found", id)
		}
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Debug("session ended", slog.String("session_id", id))
	return nil
}

func (m *Manager) run(ctx context.Context, id string, create bool, fn func(*Session) error) error {
	const op = "session.with"
	id, err := checkID(op, id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.Load(ctx, id)
	switch {
	case errors.Is(err, ErrNoSession) && create:
		s = New(id, m.now())
		m.logger.Debug("session created", slog.String("session_id", id))
	case errors.Is(err, ErrNoSession):
		return utils.NotFound(op, "session %q not found", id)
	case err != nil:
		return err
	}

	if err := fn(s); err != nil {
		return err
	}
	s.UpdatedAt = m.now()
	return m.store.Save(ctx, s)
}

func checkID(op, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", utils.InvalidInput(op, "session_id is required")
	}
	return id, nil
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &entryLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}
