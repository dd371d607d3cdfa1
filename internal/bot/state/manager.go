package state

import (
	"sync"
	"time"
)

// Conversation states
const (
	None                       = "none"
	WaitingForGlucose          = "waiting_for_glucose"
	WaitingForNightscoutURL    = "waiting_for_nightscout_url"
	WaitingForNightscoutSecret = "waiting_for_nightscout_secret"
)

// Temp data keys
const (
	KeyNightscoutURL = "nightscout_url"
)

// StateManager tracks the conversation state of each chat user
type StateManager interface {
	SetUserState(userID int64, state string)
	GetUserState(userID int64) string
	ClearUserState(userID int64)
	SetTempData(userID int64, key string, value any)
	GetTempData(userID int64, key string) (any, bool)
	ClearTempData(userID int64)
}

type session struct {
	state   string
	data    map[string]any
	touched time.Time
}

// Manager keeps conversations in memory. A session untouched for longer than
// ttl is forgotten, matching the key expiry of RedisManager.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*session
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &Manager{
		sessions: make(map[int64]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// lookup returns the live session for userID, dropping it if expired.
// Callers hold m.mu.
func (m *Manager) lookup(userID int64, create bool) *session {
	now := m.now()
	s, ok := m.sessions[userID]
	if ok && now.Sub(s.touched) > m.ttl {
		delete(m.sessions, userID)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		s = &session{state: None}
		m.sessions[userID] = s
	}
	s.touched = now
	return s
}

// prune removes a session that no longer carries anything
func (m *Manager) prune(userID int64, s *session) {
	if s.state == None && len(s.data) == 0 {
		delete(m.sessions, userID)
	}
}

func (m *Manager) SetUserState(userID int64, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookup(userID, true).state = state
}

func (m *Manager) GetUserState(userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.lookup(userID, false); s != nil {
		return s.state
	}
	return None
}

func (m *Manager) ClearUserState(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.lookup(userID, false); s != nil {
		s.state = None
		m.prune(userID, s)
	}
}

func (m *Manager) SetTempData(userID int64, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.lookup(userID, true)
	if s.data == nil {
		s.data = make(map[string]any)
	}
	s.data[key] = value
}

func (m *Manager) GetTempData(userID int64, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.lookup(userID, false)
	if s == nil {
		return nil, false
	}
	v, ok := s.data[key]
	return v, ok
}

func (m *Manager) ClearTempData(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.lookup(userID, false); s != nil {
		s.data = nil
		m.prune(userID, s)
	}
}

// Len reports the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := m.now()
	for id, s := range m.sessions {
		if now.Sub(s.touched) > m.ttl {
			delete(m.sessions, id)
			continue
		}
		n++
	}
	return n
}
