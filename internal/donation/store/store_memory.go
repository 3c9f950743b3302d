package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"feedra/internal/donation/models"
	"feedra/internal/donation/query"
	"feedra/pkg/platform/sentinel"
)

// InMemoryStore keeps donations in a map. Listeners receive a fresh snapshot
// of their query after every write, plus one on registration.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[string]models.Record
	seq       map[string]int64
	nextSeq   int64
	listeners map[int]*memoryStream
	nextID    int
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records:   make(map[string]models.Record),
		seq:       make(map[string]int64),
		listeners: make(map[int]*memoryStream),
	}
}

func (s *InMemoryStore) Create(_ context.Context, rec models.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := s.records[rec.ID]; exists {
		return "", sentinel.ErrConflict
	}
	s.nextSeq++
	s.seq[rec.ID] = s.nextSeq
	s.records[rec.ID] = rec.Clone()
	s.broadcastLocked()
	return rec.ID, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return models.Record{}, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) Query(_ context.Context, spec query.Spec) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(spec), nil
}

// UpdateFields applies a partial write. Fields not named are left untouched.
func (s *InMemoryStore) UpdateFields(_ context.Context, id string, fields models.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	fields.Apply(&rec)
	s.records[id] = rec
	s.broadcastLocked()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, id)
	delete(s.seq, id)
	s.broadcastLocked()
	return nil
}

// Listen registers a live query. The current result set is queued immediately.
func (s *InMemoryStore) Listen(_ context.Context, spec query.Spec) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stream := &memoryStream{
		store:  s,
		id:     s.nextID,
		spec:   spec,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.listeners[stream.id] = stream
	stream.push(s.queryLocked(spec))
	return stream, nil
}

// ListenerCount reports registered live queries.
func (s *InMemoryStore) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *InMemoryStore) queryLocked(spec query.Spec) []models.Record {
	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		if spec.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	sortNewestFirst(out, func(id string) int64 { return s.seq[id] })
	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out
}

func (s *InMemoryStore) broadcastLocked() {
	for _, l := range s.listeners {
		l.push(s.queryLocked(l.spec))
	}
}

func (s *InMemoryStore) removeListener(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// memoryStream holds at most one pending snapshot. A newer snapshot replaces an
// undelivered one since each is the complete result set.
type memoryStream struct {
	store  *InMemoryStore
	id     int
	spec   query.Spec
	signal chan struct{}
	done   chan struct{}

	mu         sync.Mutex
	pending    []models.Record
	hasPending bool
	stopOnce   sync.Once
}

func (m *memoryStream) push(recs []models.Record) {
	m.mu.Lock()
	m.pending = recs
	m.hasPending = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *memoryStream) Next(ctx context.Context) ([]models.Record, error) {
	for {
		select {
		case <-m.done:
			return nil, ErrStreamClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.signal:
			m.mu.Lock()
			if m.hasPending {
				recs := m.pending
				m.pending, m.hasPending = nil, false
				m.mu.Unlock()
				return recs, nil
			}
			m.mu.Unlock()
		}
	}
}

func (m *memoryStream) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.store.removeListener(m.id)
	})
}
