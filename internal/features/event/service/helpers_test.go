package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/repository"
	"giveaway-poll-backend/internal/utils/debounce"
	"giveaway-poll-backend/internal/utils/random"
)

var t0 = time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryPersister struct {
	mu   sync.Mutex
	doc  *repository.Document
	fail atomic.Bool
}

func (p *memoryPersister) Load(context.Context) (*repository.Document, error) {
	return repository.NewDocument(), nil
}

func (p *memoryPersister) Save(_ context.Context, doc *repository.Document) error {
	if p.fail.Load() {
		return errors.New("disk full")
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

type recordingSink struct {
	mu    sync.Mutex
	views []models.View
	err   error
}

func (s *recordingSink) PostOrUpdate(_ context.Context, _ string, view models.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, view)
	return s.err
}

func (s *recordingSink) Views() []models.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.View(nil), s.views...)
}

// manualScheduler keeps the newest action per key until Flush runs them.
type manualScheduler struct {
	mu      sync.Mutex
	actions map[string]debounce.Action
}

func (m *manualScheduler) Schedule(key string, action debounce.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actions == nil {
		m.actions = map[string]debounce.Action{}
	}
	m.actions[key] = action
}

func (m *manualScheduler) Flush(ctx context.Context) error {
	m.mu.Lock()
	actions := m.actions
	m.actions = nil
	m.mu.Unlock()
	for _, a := range actions {
		if err := a(ctx); err != nil {
			return err
		}
	}
	return nil
}

type switchableSource struct {
	fail atomic.Bool
	src  random.Source
}

func (s *switchableSource) Intn(n int) (int, error) {
	if s.fail.Load() {
		return 0, errors.New("entropy exhausted")
	}
	return s.src.Intn(n)
}

type fixture struct {
	store     *repository.Store
	persister *memoryPersister
	clock     *fakeClock
	sink      *recordingSink
	views     *manualScheduler
	source    *switchableSource
	svc       *LifecycleService
}

func newFixture(t *testing.T, kind models.Kind, opts ...Option) *fixture {
	t.Helper()
	domain := "giveaways"
	if kind == models.KindPoll {
		domain = "polls"
	}
	f := &fixture{
		persister: &memoryPersister{},
		clock:     &fakeClock{now: t0},
		sink:      &recordingSink{},
		views:     &manualScheduler{},
		source:    &switchableSource{src: random.NewSeededSource(42)},
	}
	f.store = repository.NewStore(domain, kind, f.persister, zerolog.Nop())
	require.NoError(t, f.store.Open(context.Background()))

	opts = append([]Option{WithClock(f.clock.Now), WithSource(f.source)}, opts...)
	f.svc = NewLifecycleService(f.store, f.sink, f.views, zerolog.Nop(), opts...)
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) giveaway(t *testing.T, winners int) models.Key {
	t.Helper()
	e, err := f.svc.Create(context.Background(), CreateRequest{
		ScopeID:       "guild",
		Title:         "Nitro giveaway",
		Prize:         "Nitro",
		Duration:      time.Hour,
		WinnersWanted: winners,
	})
	require.NoError(t, err)
	return e.Key()
}

func (f *fixture) poll(t *testing.T) models.Key {
	t.Helper()
	e, err := f.svc.Create(context.Background(), CreateRequest{
		ScopeID:    "guild",
		SubjectRef: "msg-1",
		Title:      "Lunch?",
		Duration:   time.Hour,
		Options:    []models.Option{{ID: "A", Label: "Pizza"}, {ID: "B", Label: "Sushi"}, {ID: "C", Label: "Tacos"}},
	})
	require.NoError(t, err)
	return e.Key()
}
