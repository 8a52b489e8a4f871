// Package session holds the process-wide authentication state the rest of
// the app gates on. One Manager owns the in-memory session and is the only
// writer to the token store.
package session

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/wattrack/go-auth-client/tokenstore"
)

// ErrNotInitialized means Login or Logout was called before Initialize
// completed. Initialize must reach a terminal status first.
var ErrNotInitialized = errors.New("session manager not initialized")

// Subscriber receives state changes after each committed transition.
type Subscriber func(Status, *Session)

// Manager is the single authority on whether a user is logged in. It
// restores the session from the token store at startup and commits or
// clears it on login/logout. Operations serialize, so the final state
// always reflects the last completed call.
type Manager struct {
	store tokenstore.Repo
	log   zerolog.Logger

	lock        sync.Mutex
	notifyLock  sync.Mutex
	status      Status
	session     *Session
	initialized bool
	subscribers map[int]Subscriber
	nextSubID   int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a logger. The default logger discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// New creates a Manager backed by the given token store. The manager
// starts in StatusLoading until Initialize runs.
func New(store tokenstore.Repo, options ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[session.New] token store is required")
	}

	manager := &Manager{
		store:       store,
		log:         zerolog.Nop(),
		status:      StatusLoading,
		subscribers: map[int]Subscriber{},
	}

	for _, opt := range options {
		opt(manager)
	}

	return manager, nil
}

// Initialize restores the session from the token store. A stored token
// yields StatusAuthenticated, absence yields StatusUnauthenticated. A
// storage fault also yields StatusUnauthenticated — the app fails open to
// the login screen rather than hanging on startup — but the fault is
// logged. Calling Initialize again is a no-op.
func (m *Manager) Initialize() error {
	m.lock.Lock()
	if m.initialized {
		m.lock.Unlock()
		return nil
	}

	token, ok, err := m.store.Get()
	switch {
	case err != nil:
		m.log.Error().Err(err).Msg("token store unreadable at startup, treating as unauthenticated")
		m.status = StatusUnauthenticated
		m.session = nil
	case ok:
		m.status = StatusAuthenticated
		m.session = &Session{Token: token, Profile: profileFromToken(token)}
	default:
		m.status = StatusUnauthenticated
		m.session = nil
	}
	m.initialized = true

	m.notifyLocked()
	return nil
}

// Login persists the token, then flips the in-memory state to
// authenticated. Persistence comes first so a crash in between never
// leaves memory claiming a session that has no backing token. profile may
// be nil; JWT-shaped tokens then contribute display claims if they carry
// any.
func (m *Manager) Login(token string, profile *Profile) error {
	m.lock.Lock()
	if !m.initialized {
		m.lock.Unlock()
		return ErrNotInitialized
	}

	if err := m.store.Save(token); err != nil {
		m.lock.Unlock()
		return errors.Wrap(err, "[Manager.Login] persisting token")
	}

	if profile == nil {
		profile = profileFromToken(token)
	}
	m.status = StatusAuthenticated
	m.session = &Session{Token: token, Profile: profile}

	m.notifyLocked()
	return nil
}

// Logout removes the persisted token, then clears the in-memory session.
// Logging out with no stored token succeeds. A storage fault leaves the
// state untouched so memory never claims "logged out" while a token is
// still on disk.
func (m *Manager) Logout() error {
	m.lock.Lock()
	if !m.initialized {
		m.lock.Unlock()
		return ErrNotInitialized
	}

	if err := m.store.Remove(); err != nil {
		m.lock.Unlock()
		return errors.Wrap(err, "[Manager.Logout] removing token")
	}

	m.status = StatusUnauthenticated
	m.session = nil

	m.notifyLocked()
	return nil
}

// Current returns the status and, when authenticated, the session.
func (m *Manager) Current() (Status, *Session) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.status, m.session
}

// Subscribe registers fn for state changes and returns an unsubscribe
// function. Notifications arrive in commit order, outside the state lock.
func (m *Manager) Subscribe(fn Subscriber) func() {
	m.lock.Lock()
	defer m.lock.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.subscribers, id)
	}
}

// notifyLocked is called with m.lock held and releases it. Taking
// notifyLock before releasing the state lock keeps notifications in commit
// order. Subscribers may read manager state but must trigger further
// login/logout asynchronously.
func (m *Manager) notifyLocked() {
	status := m.status
	session := m.session
	subs := make([]Subscriber, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}

	m.notifyLock.Lock()
	m.lock.Unlock()
	defer m.notifyLock.Unlock()

	for _, fn := range subs {
		fn(status, session)
	}
}
