package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lovechat-ai/lovechat/internal/media"
	"github.com/lovechat-ai/lovechat/internal/observability"
	"github.com/lovechat-ai/lovechat/internal/persona"
	"github.com/lovechat-ai/lovechat/internal/protocol"
	"github.com/lovechat-ai/lovechat/internal/settings"
	"github.com/lovechat-ai/lovechat/internal/store"
	"github.com/lovechat-ai/lovechat/internal/supabase"
)

var (
	ErrNotFound       = errors.New("call attempt not found")
	ErrMissingUser    = errors.New("an authenticated user is required")
	ErrMissingPersona = errors.New("a persona is required")
	ErrActiveCall     = errors.New("user already has an active call attempt")
)

// Attempt binds a controller to its cancellation scope. One websocket may
// attach to it; the janitor can cancel it regardless.
type Attempt struct {
	ID   string
	ctrl *Controller

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	attached bool
}

// Attach claims the attempt for a single connection and runs the controller
// loop until it finishes.
func (a *Attempt) Attach(inbound <-chan protocol.ClientControl, outbound chan<- any) error {
	a.mu.Lock()
	if a.attached {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.attached = true
	a.mu.Unlock()

	return a.ctrl.Run(a.ctx, inbound, outbound)
}

func (a *Attempt) Snapshot() Snapshot { return a.ctrl.Snapshot() }

// Cancel force-terminates the attempt; the run loop tears down on its way out.
func (a *Attempt) Cancel() { a.cancel() }

// ManagerDeps are the shared collaborators handed to every attempt.
type ManagerDeps struct {
	Conversations ConversationClient
	NewTransport  func() media.Transport
	Records       store.Store
	Metrics       *observability.Metrics
	BudgetSeconds int
	TickInterval  time.Duration
}

// Manager owns the registry of call attempts. At most one active attempt per
// user; a new attempt requires the previous one to be finished.
type Manager struct {
	mu                sync.RWMutex
	attempts          map[string]*Attempt
	attemptByUser     map[string]string
	deps              ManagerDeps
	inactivityTimeout time.Duration
	onExpire          func(Snapshot)
}

func NewManager(deps ManagerDeps, inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 5 * time.Minute
	}
	return &Manager{
		attempts:          make(map[string]*Attempt),
		attemptByUser:     make(map[string]string),
		deps:              deps,
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a new attempt. A persona and an authenticated user must be
// present or the whole flow is aborted before any resource is touched.
func (m *Manager) Create(user supabase.User, p persona.Persona, userSettings settings.Settings) (*Attempt, error) {
	if user.ID == "" {
		return nil, ErrMissingUser
	}
	if p.ID == "" {
		return nil, ErrMissingPersona
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.attemptByUser[user.ID]; ok {
		if existing, ok := m.attempts[existingID]; ok && !existing.ctrl.Finished() {
			return nil, ErrActiveCall
		}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	a := &Attempt{
		ID: id,
		ctrl: NewController(Options{
			CallID:        id,
			User:          user,
			Persona:       p,
			Settings:      userSettings,
			BudgetSeconds: m.deps.BudgetSeconds,
			Conversations: m.deps.Conversations,
			NewTransport:  m.deps.NewTransport,
			Records:       m.deps.Records,
			Metrics:       m.deps.Metrics,
			TickInterval:  m.deps.TickInterval,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
	m.attempts[id] = a
	m.attemptByUser[user.ID] = id
	return a, nil
}

func (m *Manager) Get(id string) (*Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// End cancels an attempt and removes it from the registry.
func (m *Manager) End(id string) (Snapshot, error) {
	m.mu.Lock()
	a, ok := m.attempts[id]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, ErrNotFound
	}
	delete(m.attempts, id)
	snap := a.Snapshot()
	if cur, ok := m.attemptByUser[snap.UserID]; ok && cur == id {
		delete(m.attemptByUser, snap.UserID)
	}
	m.mu.Unlock()

	a.Cancel()
	return snap, nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.attempts {
		if !a.ctrl.Finished() {
			count++
		}
	}
	return count
}

// StartJanitor expires abandoned attempts and collects finished ones.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	now := time.Now().UTC()
	var expired []*Attempt

	m.mu.Lock()
	for id, a := range m.attempts {
		if a.ctrl.Finished() {
			delete(m.attempts, id)
			snap := a.ctrl.Snapshot()
			if cur, ok := m.attemptByUser[snap.UserID]; ok && cur == id {
				delete(m.attemptByUser, snap.UserID)
			}
			continue
		}
		if now.Sub(a.ctrl.LastActivityAt()) < m.inactivityTimeout {
			continue
		}
		delete(m.attempts, id)
		snap := a.ctrl.Snapshot()
		if cur, ok := m.attemptByUser[snap.UserID]; ok && cur == id {
			delete(m.attemptByUser, snap.UserID)
		}
		expired = append(expired, a)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, a := range expired {
		a.Cancel()
		if hook != nil {
			hook(a.Snapshot())
		}
	}
}
