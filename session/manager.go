package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/chain"
)

// Manager owns the active Session. Switching signers is structural: the old
// session's goroutines stop and every piece of per-account state (cache,
// dedupe set, actions, activity, cooldowns) is rebuilt from scratch for the
// new account.
type Manager struct {
	deps   Deps
	logger zerolog.Logger

	mu      sync.RWMutex
	current *Session
}

// NewManager creates a Manager with no active session.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "session_manager").Logger(),
	}
}

// Switch replaces the active session with a fresh one for the signer. The
// previous session is fully stopped before the new one starts.
func (m *Manager) Switch(ctx context.Context, signer chain.Signer) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.logger.Info().
			Str("from", m.current.Account().Hex()).
			Str("to", signer.Address().Hex()).
			Msg("switching account")
		m.current.Stop()
		m.current = nil
	}

	next := New(m.deps, signer)
	if err := next.Start(ctx); err != nil {
		next.Stop()
		return nil, err
	}
	m.current = next
	return next, nil
}

// Current returns the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Close stops the active session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Stop()
		m.current = nil
	}
}
