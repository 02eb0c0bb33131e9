package runtimes

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrExpiredSession is returned when a session id references a Runtime that
// has been closed or evicted. A closed id is permanently unresolvable and is
// never silently recreated.
var ErrExpiredSession = errors.New("session has expired or was closed")

// Store is the process-wide registry of live Runtimes.
type Store struct {
	instantiator Instantiator
	strategy     ExpirationStrategy

	mu       sync.RWMutex
	runtimes map[string]*Runtime
}

// NewStore creates a Store. A nil instantiator defaults to NopInstantiator
// and a nil strategy to Explicit.
func NewStore(instantiator Instantiator, strategy ExpirationStrategy) *Store {
	if instantiator == nil {
		instantiator = NopInstantiator
	}
	if strategy == nil {
		strategy = Explicit{}
	}
	return &Store{
		instantiator: instantiator,
		strategy:     strategy,
		runtimes:     make(map[string]*Runtime),
	}
}

// Create mints a fresh Runtime with a new session id.
func (s *Store) Create() *Runtime {
	rt := newRuntime(uuid.NewString(), s.instantiator)

	s.mu.Lock()
	s.runtimes[rt.id] = rt
	s.mu.Unlock()

	slog.Debug("created runtime", "session_id", rt.id)
	return rt
}

// Get returns the live Runtime for the given session id, checking the
// expiration strategy lazily. Unknown and expired ids fail with
// ErrExpiredSession.
func (s *Store) Get(id string) (*Runtime, error) {
	s.mu.RLock()
	rt, ok := s.runtimes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrExpiredSession
	}

	if s.strategy.Expired(rt.LastActivity(), time.Now()) {
		s.Close(id)
		return nil, ErrExpiredSession
	}
	return rt, nil
}

// GetOrCreate returns the live Runtime for id, or mints a fresh one if id is
// empty. A non-empty id that is not live fails with ErrExpiredSession rather
// than recreating the session.
func (s *Store) GetOrCreate(id string) (*Runtime, error) {
	if id == "" {
		return s.Create(), nil
	}
	return s.Get(id)
}

// Touch refreshes the last-activity timestamp of the given Runtime, if live.
func (s *Store) Touch(id string) {
	s.mu.RLock()
	rt, ok := s.runtimes[id]
	s.mu.RUnlock()
	if ok {
		rt.Touch()
	}
}

// Close removes the Runtime immediately. Close is idempotent and never
// affects unrelated Runtimes.
func (s *Store) Close(id string) {
	s.mu.Lock()
	_, ok := s.runtimes[id]
	delete(s.runtimes, id)
	s.mu.Unlock()

	if ok {
		slog.Debug("closed runtime", "session_id", id)
	}
}

// CloseAll removes every live Runtime.
func (s *Store) CloseAll() {
	s.mu.Lock()
	n := len(s.runtimes)
	s.runtimes = make(map[string]*Runtime)
	s.mu.Unlock()

	if n > 0 {
		slog.Debug("closed all runtimes", "count", n)
	}
}

// Len returns the number of live Runtimes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runtimes)
}

// Strategy returns the expiration strategy this store was built with.
func (s *Store) Strategy() ExpirationStrategy {
	return s.strategy
}

// Instantiate constructs a fresh, uncached instance of the given unit. Used
// for independent interactions that run outside any session.
func (s *Store) Instantiate(unitName string) (any, error) {
	return s.instantiator.Create(unitName)
}

// StartSweeper runs a background goroutine that proactively evicts expired
// Runtimes at the given interval. The returned function stops it.
func (s *Store) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.RLock()
	var expired []string
	for id, rt := range s.runtimes {
		if s.strategy.Expired(rt.LastActivity(), now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		s.Close(id)
	}
	if len(expired) > 0 {
		slog.Debug("swept expired runtimes", "count", len(expired))
	}
}
