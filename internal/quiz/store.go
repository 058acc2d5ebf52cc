package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store keeps session state between requests. Implementations must make
// Lock exclusive per session id.
type Store interface {
	Get(ctx context.Context, sessionID string) (State, error)
	Save(ctx context.Context, st State) error
	Delete(ctx context.Context, sessionID string) error
	// Lock serializes actions on one session. The returned func releases it.
	Lock(ctx context.Context, sessionID string) (func() error, error)
}

const lockRetryInterval = 25 * time.Millisecond

// unlockScript only deletes the lock if we still own it.
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisStore holds ephemeral session state in Redis with atomic locks.
type RedisStore struct {
	redis   *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	logger  zerolog.Logger
}

// NewRedisStore creates a store backed by Redis. Sessions expire after ttl
// of inactivity.
func NewRedisStore(client *redis.Client, ttl, lockTTL time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		redis:   client,
		ttl:     ttl,
		lockTTL: lockTTL,
		logger:  logger.With().Str("component", "session_store").Logger(),
	}
}

func sessionKey(id string) string { return fmt.Sprintf("quiz:session:%s", id) }
func lockKey(id string) string    { return fmt.Sprintf("quiz:session:lock:%s", id) }

// Get loads a session. Missing or expired sessions return ErrSessionNotFound.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (State, error) {
	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return State{}, ErrSessionNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("get session: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("discarding corrupted session")
		return State{}, ErrSessionNotFound
	}
	return st, nil
}

// Save writes the session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(st.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete drops a session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, sessionKey(sessionID)).Err()
}

// Lock acquires the session lock with SET NX, retrying until ctx expires.
// The lock itself expires after lockTTL so a crashed holder cannot wedge
// the session.
func (s *RedisStore) Lock(ctx context.Context, sessionID string) (func() error, error) {
	key := lockKey(sessionID)
	lockValue := uuid.New().String()

	for {
		if ctx.Err() != nil {
			return nil, ErrSessionBusy
		}
		acquired, err := s.redis.SetNX(ctx, key, lockValue, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrSessionBusy
		case <-time.After(lockRetryInterval):
		}
	}

	unlock := func() error {
		return unlockScript.Run(context.Background(), s.redis, []string{key}, lockValue).Err()
	}
	return unlock, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// memoryLock is a per-session mutex. refs counts the holder and the waiters
// so the entry can be dropped once nobody uses it.
type memoryLock struct {
	ch   chan struct{}
	refs int
}

// MemoryStore keeps sessions in process. It suits a single instance and tests.
// Expired sessions are swept on Save, at most once per ttl.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]memoryEntry
	locks     map[string]*memoryLock
	ttl       time.Duration
	nextSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates an in-process store. A zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]*memoryLock),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok {
		return State{}, ErrSessionNotFound
	}
	if e.expired(m.now()) {
		delete(m.sessions, sessionID)
		return State{}, ErrSessionNotFound
	}
	return e.state.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	e := memoryEntry{state: st.clone()}
	if m.ttl > 0 {
		e.expiresAt = now.Add(m.ttl)
	}
	m.sessions[st.SessionID] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Lock(ctx context.Context, sessionID string) (func() error, error) {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(sessionID, l)
		return nil, ErrSessionBusy
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-l.ch
			m.release(sessionID, l)
		})
		return nil
	}, nil
}

func (m *MemoryStore) release(sessionID string, l *memoryLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.refs--; l.refs == 0 {
		delete(m.locks, sessionID)
	}
}

// sweep drops expired sessions. Callers hold m.mu.
func (m *MemoryStore) sweep(now time.Time) {
	if m.ttl <= 0 || now.Before(m.nextSweep) {
		return
	}
	for id, e := range m.sessions {
		if e.expired(now) {
			delete(m.sessions, id)
		}
	}
	m.nextSweep = now.Add(m.ttl)
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
