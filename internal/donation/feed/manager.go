// Package feed serves live, full-snapshot views of donation queries.
//
// Each Subscribe call owns one backend stream and one goroutine. Subscriptions
// never share streams or caches: two subscribers to the same filter hold two
// streams.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"feedra/internal/donation/metrics"
	"feedra/internal/donation/models"
	"feedra/internal/donation/normalize"
	"feedra/internal/donation/query"
	"feedra/internal/donation/store"
)

// Source opens live queries. Implemented by every donation store.
type Source interface {
	Listen(ctx context.Context, spec query.Spec) (store.Stream, error)
}

// Unsubscribe stops a subscription. Once it returns no further callback
// starts. Safe to call any number of times, including from inside a callback.
type Unsubscribe func()

// DataFunc receives the complete ordered result set after every change.
type DataFunc func([]models.Donation)

// ErrorFunc receives categorized failures; err is always a *Error.
type ErrorFunc func(err error)

type Manager struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	wg      sync.WaitGroup
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithClock sets the instant used for missing required timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(source Source, opts ...Option) *Manager {
	m := &Manager{
		source: source,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type subscription struct {
	key    string
	stream store.Stream
	cancel context.CancelFunc
	once   sync.Once

	// deliver is held for the whole of every callback. stop takes it after
	// setting stopped, so once stop returns no new callback can start.
	deliver    sync.Mutex
	stopped    atomic.Bool
	inCallback atomic.Bool
}

func (s *subscription) stop() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.cancel()
		s.stream.Stop()
	})
	// Called from inside a callback the lock is already held by this goroutine.
	if s.inCallback.Load() {
		return
	}
	// Wait out a callback running on another goroutine.
	s.deliver.Lock()
	s.deliver.Unlock() //nolint:staticcheck // empty section is the wait
}

// call runs fn unless the subscription has been stopped.
func (s *subscription) call(fn func()) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	if s.stopped.Load() {
		return
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	fn()
}

// Subscribe starts a live query for filter. Setup failures are reported once
// through onError and the returned Unsubscribe is a no-op. Otherwise onData is
// called with the full result set on start and after every change, in source
// order, until Unsubscribe is called or ctx ends.
func (m *Manager) Subscribe(ctx context.Context, filter models.Filter, onData DataFunc, onError ErrorFunc) Unsubscribe {
	spec, err := query.Build(filter)
	if err != nil {
		m.fail(ctx, onError, &Error{Category: CategorySetup, Message: MessageSetupFailed, Setup: true, Terminal: true, Err: err}, "")
		return func() {}
	}

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := m.source.Listen(subCtx, spec)
	if err != nil {
		cancel()
		m.fail(ctx, onError, categorizeSetup(err), spec.Key())
		return func() {}
	}

	sub := &subscription{key: spec.Key(), stream: stream, cancel: cancel}
	m.metrics.SubscriptionOpened()
	m.logger.InfoContext(ctx, "feed subscription opened", "query", sub.key)

	m.wg.Add(1)
	go m.run(subCtx, sub, onData, onError)

	return sub.stop
}

func (m *Manager) run(ctx context.Context, sub *subscription, onData DataFunc, onError ErrorFunc) {
	defer m.wg.Done()
	defer m.metrics.SubscriptionClosed()
	defer sub.stop()

	for {
		recs, err := sub.stream.Next(ctx)
		if sub.stopped.Load() {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				m.logger.InfoContext(ctx, "feed subscription closed", "query", sub.key)
				return
			}
			if errors.Is(err, store.ErrStreamClosed) {
				// The backend gave up on its own; tell the subscriber no more data follows.
				sub.call(func() {
					m.fail(ctx, onError, &Error{Category: CategoryClosed, Message: MessageStreamClosed, Terminal: true, Err: err}, sub.key)
				})
				return
			}
			fe := categorize(err)
			sub.call(func() { m.fail(ctx, onError, fe, sub.key) })
			continue
		}
		donations := normalize.Donations(recs, m.now())
		sub.call(func() {
			m.metrics.IncrementSnapshots()
			onData(donations)
		})
	}
}

func (m *Manager) fail(ctx context.Context, onError ErrorFunc, fe *Error, key string) {
	m.metrics.IncrementFeedError(string(fe.Category))
	m.logger.WarnContext(ctx, "feed subscription error",
		"query", key,
		"category", fe.Category,
		"error", fe.Err,
	)
	if onError != nil {
		onError(fe)
	}
}

// Wait blocks until every subscription goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}
