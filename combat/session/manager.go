package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"rpgserver/combat/dice"
	"rpgserver/combat/engine"
)

// Manager owns every CombatSession, keyed by GM session id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*CombatSession
	// GMのユーザーIDごとのアクティブセッション
	active map[uint]string

	opts      Options
	store     CharacterStore
	pub       Publisher
	logger    *zap.Logger
	newSource func() (dice.Source, error)
	now       func() time.Time

	// 自由ロール用の乱数源
	rollMu  sync.Mutex
	rollSrc dice.Source
}

// Option は Manager のテスト用差し替え
type Option func(*Manager)

func WithSourceFactory(f func() (dice.Source, error)) Option {
	return func(m *Manager) { m.newSource = f }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(opts Options, store CharacterStore, pub Publisher, logger *zap.Logger, options ...Option) (*Manager, error) {
	m := &Manager{
		sessions: make(map[string]*CombatSession),
		active:   make(map[uint]string),
		opts:     opts,
		store:    store,
		pub:      pub,
		logger:   logger,
		newSource: func() (dice.Source, error) {
			return dice.NewSource()
		},
		now: time.Now,
	}
	for _, o := range options {
		o(m)
	}
	src, err := m.newSource()
	if err != nil {
		return nil, fmt.Errorf("failed to seed dice: %w", err)
	}
	m.rollSrc = src
	return m, nil
}

// GetOrCreate は初回アクセス時にセッションを作る
func (m *Manager) GetOrCreate(sessionID string) (*CombatSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is empty", engine.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}
	src, err := m.newSource()
	if err != nil {
		return nil, fmt.Errorf("failed to seed dice: %w", err)
	}
	s := newCombatSession(sessionID, src, m.opts, m.store, m.pub, m.logger, m.now)
	m.sessions[sessionID] = s
	m.logger.Info("Combat session created", zap.String("sessionID", sessionID))
	return s, nil
}

func (m *Manager) Get(sessionID string) (*CombatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Close はセッションを破棄し、ルームのクライアントを解放する
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		s.markClosed()
		m.removeLocked(sessionID)
	}
	m.mu.Unlock()

	if ok {
		m.closed(sessionID)
	}
	return ok
}

// removeLocked は m.mu を保持して呼ぶ
func (m *Manager) removeLocked(sessionID string) {
	delete(m.sessions, sessionID)
	for gm, id := range m.active {
		if id == sessionID {
			delete(m.active, gm)
		}
	}
}

func (m *Manager) closed(sessionID string) {
	m.pub.CloseSession(sessionID)
	m.logger.Info("Combat session closed", zap.String("sessionID", sessionID))
}

// SetActive はGMが操作中のセッションを切り替え、必要ならセッションを作る
func (m *Manager) SetActive(gmUserID uint, sessionID string) (*CombatSession, error) {
	s, err := m.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.active[gmUserID] = sessionID
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) ActiveSession(gmUserID uint) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[gmUserID]
	return id, ok
}

// SweepIdle closes sessions with no command for ttl. A session whose combat is still active
// is kept. The idle check and the removal happen under both locks, so a command either lands
// before the check or is rejected with ErrSessionClosed.
func (m *Manager) SweepIdle(ttl time.Duration) []string {
	cutoff := m.now().Add(-ttl)

	var closed []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if !s.closeIfIdle(cutoff) {
			continue
		}
		m.removeLocked(id)
		closed = append(closed, id)
	}
	m.mu.Unlock()

	sort.Strings(closed)
	for _, id := range closed {
		m.closed(id)
	}
	return closed
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Roll はセッションに属さない自由ロール。0の閾値は設定値を使う
func (m *Manager) Roll(poolSize, successThreshold, explosionThreshold int) (dice.Result, error) {
	if successThreshold == 0 {
		successThreshold = m.opts.Roll.SuccessThreshold
	}
	if explosionThreshold == 0 {
		explosionThreshold = m.opts.Roll.ExplosionThreshold
	}
	m.rollMu.Lock()
	defer m.rollMu.Unlock()
	return dice.RollPool(m.rollSrc, poolSize, successThreshold, explosionThreshold)
}
