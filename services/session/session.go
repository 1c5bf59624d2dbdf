package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrRevoked = errors.New("session: token revoked or expired")

// Session is the signed-in identity a request acts for. It is passed
// explicitly to every workflow call.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type EventType string

const (
	EventSignedIn                 EventType = "signed_in"
	EventSignedOut                EventType = "signed_out"
	EventPersonaCreated           EventType = "persona_created"
	EventPersonaVisibilityChanged EventType = "persona_visibility_changed"
	EventPersonaDeleted           EventType = "persona_deleted"
)

type Event struct {
	Type   EventType      `json:"type"`
	UserID string         `json:"user_id"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}

// Listener is notified of session transitions and persona changes.
// OnEvent runs synchronously on the publishing goroutine and must not block.
type Listener interface {
	OnEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Ledger keeps track of issued tokens.
type Ledger interface {
	Store(ctx context.Context, userID, token string, expiresAt time.Time) error
	Exists(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
}

// Manager starts, resumes and ends sessions and fans events out to listeners.
type Manager struct {
	tokens *TokenIssuer
	ledger Ledger
	now    func() time.Time

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func NewManager(tokens *TokenIssuer, ledger Ledger) *Manager {
	return &Manager{
		tokens:    tokens,
		ledger:    ledger,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function that removes it.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Publish stamps e and delivers it to every listener.
func (m *Manager) Publish(e Event) {
	if e.At.IsZero() {
		e.At = m.now().UTC()
	}
	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		l.OnEvent(e)
	}
}

// Start signs userID in.
func (m *Manager) Start(ctx context.Context, userID, email string) (*Session, error) {
	token, exp, err := m.tokens.Issue(userID, email)
	if err != nil {
		return nil, err
	}
	if err := m.ledger.Store(ctx, userID, token, exp); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s := &Session{UserID: userID, Email: email, Token: token, ExpiresAt: exp}
	m.Publish(Event{Type: EventSignedIn, UserID: userID})
	return s, nil
}

// Resume validates a bearer token against its signature and the ledger.
func (m *Manager) Resume(ctx context.Context, token string) (*Session, error) {
	s, err := m.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	ok, err := m.ledger.Exists(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if !ok {
		return nil, ErrRevoked
	}
	return s, nil
}

// End revokes s.
func (m *Manager) End(ctx context.Context, s *Session) error {
	if err := m.ledger.Revoke(ctx, s.Token); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	m.Publish(Event{Type: EventSignedOut, UserID: s.UserID})
	return nil
}

// LogListener writes every event to logger.
func LogListener(logger *zap.Logger) Listener {
	return ListenerFunc(func(e Event) {
		logger.Info("session event",
			zap.String("type", string(e.Type)),
			zap.String("user_id", e.UserID),
			zap.Any("data", e.Data))
	})
}

type contextKey struct{}

// WithContext attaches s to ctx; used by the HTTP middleware only.
func WithContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
