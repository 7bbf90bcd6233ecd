package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jwebster45206/turn-engine/pkg/session"
	"github.com/jwebster45206/turn-engine/pkg/state"
)

// MemoryStore keeps sessions in process memory as encoded JSON, so loads
// never share pointers with earlier saves. Used for tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string][]byte
	init      session.Initializer
	pingError error
	saveError error
	saves     int
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store using session.New for new sessions.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		init:     session.New,
	}
}

// WithInitializer sets how Create builds a starting snapshot.
func (m *MemoryStore) WithInitializer(fn session.Initializer) *MemoryStore {
	if fn != nil {
		m.init = fn
	}
	return m
}

// SetPingError configures Ping to fail with err.
func (m *MemoryStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures Save to fail with err. nil restores normal saves.
func (m *MemoryStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, scenarioID string) (string, error) {
	sess := m.init(scenarioID)
	sess.SessionKey = session.NewKey()

	data, err := json.Marshal(sess)
	if err != nil {
		return "", Failure("create", sess.SessionKey, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.SessionKey] = data
	return sess.SessionKey, nil
}

func (m *MemoryStore) Save(ctx context.Context, key string, player *state.PlayerState, world *state.WorldState, sceneID string, turnCount int) error {
	if player == nil || world == nil {
		return Failure("save", key, errors.New("player and world state are required"))
	}
	if err := ctx.Err(); err != nil {
		return Failure("save", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return Failure("save", key, m.saveError)
	}

	now := time.Now().UTC()
	sess := &session.Session{SessionKey: key, CreatedAt: now}
	if prev, ok := m.sessions[key]; ok {
		var old session.Session
		if err := json.Unmarshal(prev, &old); err == nil {
			sess.ScenarioID = old.ScenarioID
			sess.CreatedAt = old.CreatedAt
		}
	}
	sess.PlayerState = player
	sess.WorldState = world
	sess.CurrentSceneID = sceneID
	sess.TurnCount = turnCount
	sess.UpdatedAt = now
	sess.LastPlayedAt = now

	data, err := json.Marshal(sess)
	if err != nil {
		return Failure("save", key, err)
	}
	m.sessions[key] = data
	m.saves++
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, key string) (*session.Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, NotFound(key)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, Failure("load", key, err)
	}
	if err := sess.Validate(); err != nil {
		return nil, Failure("load", key, err)
	}
	return &sess, nil
}
