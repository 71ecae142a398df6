package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	apperrors "giveaway-poll-backend/internal/common/errors"
	"giveaway-poll-backend/internal/features/event/models"
)

const lockStripes = 64

// Store is the in-memory source of truth of one event domain, written through
// to a Persister on every mutation. Mutations of the same key are serialised;
// different keys proceed concurrently.
//
// Stored events are never modified in place: a mutation replaces the pointer
// with a fresh copy. Everything handed out is a deep copy.
type Store struct {
	domain    string
	kind      models.Kind
	persister Persister
	logger    zerolog.Logger

	keyLocks [lockStripes]sync.Mutex

	mu      sync.RWMutex
	events  map[models.Key]*models.Event
	version uint64

	idMu    sync.Mutex
	counter int64

	saveMu       sync.Mutex
	savedVersion uint64

	loaded atomic.Bool
}

type snapshot struct {
	version uint64
	doc     *Document
}

// NewStore creates an empty store. Call Open to load persisted state.
func NewStore(domain string, kind models.Kind, persister Persister, logger zerolog.Logger) *Store {
	return &Store{
		domain:    domain,
		kind:      kind,
		persister: persister,
		logger:    logger.With().Str("domain", domain).Logger(),
		events:    make(map[models.Key]*models.Event),
	}
}

// Domain returns the name the store persists under, e.g. "giveaways".
func (s *Store) Domain() string { return s.domain }

// Kind returns the kind of events kept in the store.
func (s *Store) Kind() models.Kind { return s.kind }

// Loaded reports whether Open has completed.
func (s *Store) Loaded() bool { return s.loaded.Load() }

// Open replaces the in-memory state with the persisted document. The id
// counter is raised to the highest id already in use.
func (s *Store) Open(ctx context.Context) error {
	doc, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", s.domain, err)
	}
	if doc == nil {
		doc = NewDocument()
	}

	events := make(map[models.Key]*models.Event, len(doc.Events))
	counter := doc.IDCounter
	for key, e := range doc.Events {
		if e == nil {
			continue
		}
		if e.Participants == nil {
			e.Participants = make(map[string]models.Participant)
		}
		events[key] = e
		if n := idSuffix(e.ID); n > counter {
			counter = n
		}
	}

	s.mu.Lock()
	s.events = events
	s.mu.Unlock()

	s.idMu.Lock()
	s.counter = counter
	s.idMu.Unlock()

	s.loaded.Store(true)
	s.logger.Info().Int("events", len(events)).Int64("id_counter", counter).Msg("Event store loaded")
	return nil
}

func idSuffix(id string) int64 {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// GenerateID returns an id never issued before by this store, e.g. "gaw-12".
func (s *Store) GenerateID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.counter++
	return fmt.Sprintf("%s-%d", s.kind.IDPrefix(), s.counter)
}

func (s *Store) lockKey(key models.Key) *sync.Mutex {
	return &s.keyLocks[xxhash.Sum64String(string(key))%lockStripes]
}

// Get returns a copy of the event stored under key.
func (s *Store) Get(key models.Key) (*models.Event, bool) {
	s.mu.RLock()
	e, ok := s.events[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// FindByID looks an event up by id.
func (s *Store) FindByID(id string) (models.Key, *models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, e := range s.events {
		if e.ID == id {
			return key, e.Clone(), true
		}
	}
	return "", nil, false
}

// ListAll returns every event ordered by key.
func (s *Store) ListAll() []Entry {
	return s.list(func(*models.Event) bool { return true })
}

// ListByScope returns the events of one scope ordered by key.
func (s *Store) ListByScope(scopeID string) []Entry {
	return s.list(func(e *models.Event) bool { return e.ScopeID == scopeID })
}

func (s *Store) list(match func(*models.Event) bool) []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.events))
	for key, e := range s.events {
		if match(e) {
			entries = append(entries, Entry{Key: key, Event: e})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	for i := range entries {
		entries[i].Event = entries[i].Event.Clone()
	}
	return entries
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Put stores a full replacement of the event under key.
func (s *Store) Put(ctx context.Context, key models.Key, e *models.Event) error {
	l := s.lockKey(key)
	l.Lock()
	defer l.Unlock()

	return s.persist(ctx, s.commit(key, e.Clone()))
}

// Create stores a new event under its own key and fails with ErrEventExists
// if the key is taken.
func (s *Store) Create(ctx context.Context, e *models.Event) error {
	key := e.Key()
	l := s.lockKey(key)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	_, exists := s.events[key]
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrEventExists, key)
	}
	return s.persist(ctx, s.commit(key, e.Clone()))
}

// Update runs fn on a private copy of the event under key and stores the copy
// if fn returns nil. fn returning ErrSkipWrite leaves the store unchanged and
// Update returns the current event with a nil error. Any other error from fn
// is returned as is.
//
// A persistence failure is returned as a PERSISTENCE_ERROR together with the
// updated event; the in-memory change stands.
func (s *Store) Update(ctx context.Context, key models.Key, fn func(*models.Event) error) (*models.Event, error) {
	l := s.lockKey(key)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	current, ok := s.events[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, key)
	}

	work := current.Clone()
	if err := fn(work); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return current.Clone(), nil
		}
		return nil, err
	}

	err := s.persist(ctx, s.commit(key, work))
	return work.Clone(), err
}

// commit swaps the stored pointer and captures the document to save.
func (s *Store) commit(key models.Key, e *models.Event) snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[key] = e
	s.version++

	doc := &Document{Events: make(map[models.Key]*models.Event, len(s.events))}
	for k, v := range s.events {
		doc.Events[k] = v
	}
	s.idMu.Lock()
	doc.IDCounter = s.counter
	s.idMu.Unlock()

	return snapshot{version: s.version, doc: doc}
}

// persist writes snap unless a newer snapshot has already been written.
func (s *Store) persist(ctx context.Context, snap snapshot) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if snap.version <= s.savedVersion {
		return nil
	}
	if err := s.persister.Save(ctx, snap.doc); err != nil {
		s.logger.Warn().Err(err).Uint64("version", snap.version).Msg("Failed to persist event store, change kept in memory")
		return apperrors.NewPersistenceError("save "+s.domain, err)
	}
	s.savedVersion = snap.version
	return nil
}
