package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prepdesk/prepdesk/internal/attempt"
	"github.com/prepdesk/prepdesk/internal/autosave"
	"github.com/prepdesk/prepdesk/internal/content"
	"github.com/prepdesk/prepdesk/internal/syncx"
)

// Manager owns the live runtimes, one per (user, test). Opening a session
// runs the resume protocol; closing flushes and tears down the timers.
type Manager struct {
	loader  content.Loader
	store   attempt.Store
	backups *autosave.BackupCache
	events  *syncx.EventRepo

	interval time.Duration
	debounce time.Duration

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	rt    *Runtime
	coord *autosave.Coordinator
	stop  chan struct{}
}

func NewManager(loader content.Loader, store attempt.Store, backups *autosave.BackupCache, events *syncx.EventRepo, interval, debounce time.Duration) *Manager {
	return &Manager{
		loader:   loader,
		store:    store,
		backups:  backups,
		events:   events,
		interval: interval,
		debounce: debounce,
		sessions: map[string]*liveSession{},
	}
}

func sessionKey(userID, testID string) string { return userID + "|" + testID }

// Open returns the live runtime for (user, test), creating and resuming it if
// needed. A content or attempt load failure blocks the open; there is no
// fallback to fabricated state.
func (m *Manager) Open(ctx context.Context, userID, testID string) (*Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(userID, testID)
	if s, ok := m.sessions[key]; ok {
		return s.rt, nil
	}

	def, err := m.loader.LoadTestDefinition(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load test definition: %w", err)
	}

	rt := NewRuntime(def, userID, m.store, m.events)
	out, err := autosave.Resume(ctx, m.store, m.backups, userID, testID)
	if err != nil {
		return nil, err
	}
	switch out.Kind {
	case autosave.OutcomeHydrated:
		rt.Hydrate(out.AttemptID, out.StateJSON, out.Answers, out.Completed)
	case autosave.OutcomeFresh:
		if out.AttemptID != "" {
			rt.Hydrate(out.AttemptID, nil, out.Answers, false)
			rt.SeedCompleted(out.CompletedModuleIDs)
		}
	}

	coord := autosave.NewCoordinator(m.store, m.backups, userID, testID, rt, m.interval, m.debounce)
	rt.SetOnChange(coord.Notify)
	coord.Start()

	s := &liveSession{rt: rt, coord: coord, stop: make(chan struct{})}
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				rt.Tick()
			case <-s.stop:
				return
			}
		}
	}()

	m.sessions[key] = s
	return rt, nil
}

// Get returns an already-open runtime without side effects.
func (m *Manager) Get(userID, testID string) (*Runtime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey(userID, testID)]
	if !ok {
		return nil, false
	}
	return s.rt, true
}

// Close tears a session down: stops its ticker, cancels pending autosaves and
// performs the close-time flush.
func (m *Manager) Close(ctx context.Context, userID, testID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionKey(userID, testID)]
	if ok {
		delete(m.sessions, sessionKey(userID, testID))
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	close(s.stop)
	s.coord.Stop(ctx)
}

// CloseAll flushes every live session, used on graceful shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*liveSession{}
	m.mu.Unlock()
	for _, s := range sessions {
		close(s.stop)
		s.coord.Stop(ctx)
	}
}
