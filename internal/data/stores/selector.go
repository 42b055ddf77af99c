package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/rs/zerolog"
)

// SelectorOptions configures backend selection.
type SelectorOptions struct {
	// Reachable is the connection-manager's view of whether the durable
	// backend can be reached. Nil means "assume reachable" and let the
	// ping decide.
	Reachable func(ctx context.Context) bool

	// OpenDurable constructs the durable store. The returned closer is
	// invoked on Reset. Required unless Reachable always reports false.
	OpenDurable func(ctx context.Context) (task.Store, func() error, error)

	Logger zerolog.Logger
}

// Selector decides once which task.Store backend to use and hands back
// that same instance thereafter. If the durable backend is unreachable,
// fails to open, or fails its liveness ping, the selector downgrades to
// the in-memory store: degraded availability beats failing hard.
//
// Selection never returns an error; every probe failure is absorbed and
// logged as a warning.
type Selector struct {
	mu     sync.Mutex
	opts   SelectorOptions
	store  task.Store
	closer func() error
}

// NewSelector creates a selector. No probing happens until the first
// Store call.
func NewSelector(opts SelectorOptions) *Selector {
	return &Selector{opts: opts}
}

// Store returns the selected backend, probing and memoizing on first use.
func (s *Selector) Store(ctx context.Context) task.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		s.store, s.closer = s.selectBackend(ctx)
	}
	return s.store
}

// Durable reports whether the selected backend is the durable one.
// Selects first if no decision has been made yet.
func (s *Selector) Durable(ctx context.Context) bool {
	store := s.Store(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, transient := store.(*MemStore)
	return !transient
}

// Reset clears the memoized decision and closes the durable backend if
// one was open. The next Store call re-probes. Used for test isolation
// and to force a re-probe after a reconnect.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.opts.Logger.Warn().Err(err).Msg("close durable backend on reset")
		}
	}
	s.store = nil
	s.closer = nil
}

// selectBackend probes the durable backend and falls back to memory.
// Caller holds s.mu.
func (s *Selector) selectBackend(ctx context.Context) (task.Store, func() error) {
	store, closer, err := s.probeDurable(ctx)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Msg("durable backend unavailable, using in-memory store")
		return NewMemStore(), nil
	}

	s.opts.Logger.Info().Msg("using durable task store")
	return store, closer
}

// probeDurable opens and pings the durable store. Panics from the
// factory are converted to errors so selection can never blow up the
// caller.
func (s *Selector) probeDurable(ctx context.Context) (store task.Store, closer func() error, err error) {
	defer func() {
		if r := recover(); r != nil {
			store, closer = nil, nil
			err = fmt.Errorf("durable store factory panicked: %v", r)
		}
	}()

	if s.opts.Reachable != nil && !s.opts.Reachable(ctx) {
		return nil, nil, fmt.Errorf("durable backend reported unreachable")
	}
	if s.opts.OpenDurable == nil {
		return nil, nil, fmt.Errorf("no durable backend configured")
	}

	store, closer, err = s.opts.OpenDurable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open durable store: %w", err)
	}

	if err := store.Ping(ctx); err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, nil, fmt.Errorf("ping durable store: %w", err)
	}

	return store, closer, nil
}
