package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "giveaway-poll-backend/internal/common/errors"
	"giveaway-poll-backend/internal/common/validation"
	"giveaway-poll-backend/internal/features/event/eligibility"
	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/repository"
	"giveaway-poll-backend/internal/utils/random"
)

// CreateRequest describes a new event. Either EndsAt or Duration must be set;
// Duration wins when both are.
type CreateRequest struct {
	ScopeID     string
	SubjectRef  string
	HostID      string
	Title       string
	Prize       string
	Description string

	EndsAt   time.Time
	Duration time.Duration

	WinnersWanted    int
	Requirements     *models.Requirements
	EntryWeightRules *models.WeightRules
	Options          []models.Option
}

type JoinStatus string

const (
	JoinAccepted      JoinStatus = "accepted"
	JoinRejected      JoinStatus = "rejected"
	JoinAlreadyJoined JoinStatus = "already_joined"
)

// JoinResult is the outcome of a join. Warning is set when the entry was
// accepted in memory but could not be saved.
type JoinResult struct {
	Status  JoinStatus `json:"status"`
	Reason  string     `json:"reason,omitempty"`
	Weight  int        `json:"weight,omitempty"`
	Warning string     `json:"warning,omitempty"`
}

// Option configures a LifecycleService.
type Option func(*LifecycleService)

// WithClock replaces time.Now.
func WithClock(clock Clock) Option {
	return func(s *LifecycleService) { s.clock = clock }
}

// WithSource sets the random source used for winner selection.
func WithSource(src random.Source) Option {
	return func(s *LifecycleService) { s.source = src }
}

// WithMaxWinners caps winnersWanted on create.
func WithMaxWinners(n int) Option {
	return func(s *LifecycleService) {
		if n > 0 {
			s.maxWinners = n
		}
	}
}

// WithIdentity sets the provider JoinMember uses to look up attributes.
func WithIdentity(p IdentityProvider) Option {
	return func(s *LifecycleService) { s.identity = p }
}

// LifecycleService runs the state transitions of one event domain.
type LifecycleService struct {
	store    Store
	sink     NotificationSink
	views    ViewScheduler
	identity IdentityProvider
	source   random.Source
	clock    Clock
	logger   zerolog.Logger

	maxWinners int

	// notifications in flight
	wg sync.WaitGroup
}

// NewLifecycleService wires a domain's lifecycle. sink and views may be nil.
func NewLifecycleService(store Store, sink NotificationSink, views ViewScheduler, logger zerolog.Logger, opts ...Option) *LifecycleService {
	s := &LifecycleService{
		store:      store,
		sink:       sink,
		views:      views,
		source:     random.NewCryptoSource(),
		clock:      time.Now,
		logger:     logger.With().Str("domain", store.Domain()).Logger(),
		maxWinners: DefaultMaxWinners,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the kind of events this service manages.
func (s *LifecycleService) Kind() models.Kind { return s.store.Kind() }

func (s *LifecycleService) now() time.Time {
	return s.clock().UTC()
}

// Create validates req and stores a new open event.
func (s *LifecycleService) Create(ctx context.Context, req CreateRequest) (*models.Event, error) {
	now := s.now()
	e, err := s.buildEvent(req, now)
	if err != nil {
		return nil, err
	}
	e.ID = s.store.GenerateID()

	if err := s.store.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrEventExists) {
			return nil, apperrors.NewConflictError("event", fmt.Sprintf("an event is already attached to %s", e.Key()))
		}
		if apperrors.IsCode(err, apperrors.ErrCodePersistence) {
			return e, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create event")
	}

	s.logger.Info().
		Str("event_id", e.ID).
		Str("scope_id", e.ScopeID).
		Time("ends_at", e.EndsAt).
		Msg("Event created")
	return e, nil
}

func (s *LifecycleService) buildEvent(req CreateRequest, now time.Time) (*models.Event, error) {
	kind := s.store.Kind()

	scopeID := strings.TrimSpace(req.ScopeID)
	if scopeID == "" {
		return nil, apperrors.NewValidationError("scopeId", "is required")
	}
	if strings.Contains(scopeID, ":") {
		return nil, apperrors.NewValidationError("scopeId", "must not contain ':'")
	}
	if err := validation.ValidateTitle(req.Title); err != nil {
		return nil, apperrors.NewValidationError("title", err.Error())
	}
	if err := validation.ValidatePrize(req.Prize); err != nil {
		return nil, apperrors.NewValidationError("prize", err.Error())
	}
	if err := validation.ValidateDescription(req.Description); err != nil {
		return nil, apperrors.NewValidationError("description", err.Error())
	}

	endsAt := req.EndsAt.UTC()
	if req.Duration > 0 {
		endsAt = now.Add(req.Duration)
	}
	if endsAt.IsZero() {
		return nil, apperrors.NewValidationError("endsAt", "endsAt or duration is required")
	}
	if !endsAt.After(now) {
		return nil, apperrors.NewValidationError("endsAt", "must be after the creation time")
	}

	if err := req.Requirements.Validate(); err != nil {
		return nil, apperrors.NewValidationError("requirements", err.Error())
	}

	e := &models.Event{
		ScopeID:      scopeID,
		SubjectRef:   strings.TrimSpace(req.SubjectRef),
		Kind:         kind,
		Status:       models.StatusOpen,
		Title:        strings.TrimSpace(req.Title),
		Prize:        strings.TrimSpace(req.Prize),
		Description:  strings.TrimSpace(req.Description),
		HostID:       req.HostID,
		CreatedAt:    now,
		EndsAt:       endsAt,
		Requirements: req.Requirements.Clone(),
		Participants: make(map[string]models.Participant),
	}
	if e.Requirements.IsEmpty() {
		e.Requirements = nil
	}

	switch kind {
	case models.KindGiveaway:
		if len(req.Options) > 0 {
			return nil, apperrors.NewValidationError("options", "only polls have options")
		}
		winners := req.WinnersWanted
		if winners == 0 {
			winners = 1
		}
		if winners < 1 || winners > s.maxWinners {
			return nil, apperrors.NewValidationError("winnersWanted", fmt.Sprintf("must be between 1 and %d", s.maxWinners))
		}
		if err := req.EntryWeightRules.Validate(); err != nil {
			return nil, apperrors.NewValidationError("entryWeightRules", err.Error())
		}
		e.WinnersWanted = winners
		e.EntryWeightRules = req.EntryWeightRules.Clone()

	case models.KindPoll:
		if req.EntryWeightRules != nil {
			return nil, apperrors.NewValidationError("entryWeightRules", "only giveaways have entry weights")
		}
		options, err := validateOptions(req.Options)
		if err != nil {
			return nil, err
		}
		e.Options = options
	}
	return e, nil
}

func validateOptions(options []models.Option) ([]models.Option, error) {
	if len(options) < validation.MinPollOptions || len(options) > validation.MaxPollOptions {
		return nil, apperrors.NewValidationError("options",
			fmt.Sprintf("a poll needs between %d and %d options", validation.MinPollOptions, validation.MaxPollOptions))
	}
	seen := make(map[string]bool, len(options))
	out := make([]models.Option, 0, len(options))
	for _, o := range options {
		id, label := strings.TrimSpace(o.ID), strings.TrimSpace(o.Label)
		if err := validation.ValidateOption(id, label); err != nil {
			return nil, apperrors.NewValidationError("options", err.Error())
		}
		if seen[id] {
			return nil, apperrors.NewValidationError("options", fmt.Sprintf("duplicate option id %s", id))
		}
		seen[id] = true
		out = append(out, models.Option{ID: id, Label: label})
	}
	return out, nil
}

// Join adds a participant. For polls optionID names the chosen option;
// giveaways ignore it. Rejections and duplicate joins are reported in the
// result, not as errors.
func (s *LifecycleService) Join(ctx context.Context, key models.Key, participantID string, attrs models.Attributes, optionID string) (JoinResult, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return JoinResult{}, apperrors.NewValidationError("participantId", "is required")
	}

	var result JoinResult
	now := s.now()
	_, err := s.store.Update(ctx, key, func(e *models.Event) error {
		switch {
		case e.IsClosed():
			result = JoinResult{Status: JoinRejected, Reason: "event is closed"}
			return repository.ErrSkipWrite
		case e.IsPaused():
			result = JoinResult{Status: JoinRejected, Reason: "event is paused"}
			return repository.ErrSkipWrite
		}
		if e.HasParticipant(participantID) {
			result = JoinResult{Status: JoinAlreadyJoined, Weight: e.Participants[participantID].Weight}
			return repository.ErrSkipWrite
		}

		p := models.Participant{Weight: 1, JoinedAt: now}
		if e.Kind == models.KindPoll {
			if !e.HasOption(optionID) {
				return apperrors.NewValidationError("optionId", fmt.Sprintf("unknown option %q", optionID))
			}
			p.OptionID = optionID
		}

		if check := eligibility.Check(attrs, e.Requirements); !check.Passed {
			result = JoinResult{Status: JoinRejected, Reason: check.Reason}
			return repository.ErrSkipWrite
		}
		if e.Kind == models.KindGiveaway {
			p.Weight = eligibility.ComputeWeight(attrs, e.EntryWeightRules, eligibility.DefaultBaseWeight)
		}

		e.Participants[participantID] = p
		e.Touch(now)
		result = JoinResult{Status: JoinAccepted, Weight: p.Weight}
		return nil
	})
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodePersistence) {
			return JoinResult{}, s.translate(err, key)
		}
		result.Warning = err.Error()
	}

	if result.Status == JoinAccepted {
		s.logger.Debug().Str("key", key.String()).Str("participant_id", participantID).Int("weight", result.Weight).Msg("Participant joined")
		s.scheduleRefresh(key)
	}
	return result, err
}

// JoinMember looks the participant's attributes up through the identity
// provider and joins. The lookup is skipped for events without requirements
// or weight rules.
func (s *LifecycleService) JoinMember(ctx context.Context, key models.Key, participantID, optionID string) (JoinResult, error) {
	e, ok := s.store.Get(key)
	if !ok {
		return JoinResult{}, apperrors.NewNotFoundError("event", key.String())
	}

	var attrs models.Attributes
	if s.identity != nil && (!e.Requirements.IsEmpty() || e.EntryWeightRules != nil) {
		var err error
		attrs, err = s.identity.AttributesOf(ctx, e.ScopeID, participantID)
		if err != nil {
			return JoinResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to look up participant")
		}
	}
	return s.Join(ctx, key, participantID, attrs, optionID)
}

// Leave removes a participant from an open event.
func (s *LifecycleService) Leave(ctx context.Context, key models.Key, participantID string) error {
	now := s.now()
	_, err := s.store.Update(ctx, key, func(e *models.Event) error {
		if !e.IsOpen() {
			return apperrors.NewInvalidStateError(e.ID, string(e.Status), "leave")
		}
		if !e.HasParticipant(participantID) {
			return apperrors.NewNotFoundError("participant", participantID)
		}
		delete(e.Participants, participantID)
		e.Touch(now)
		return nil
	})
	if err != nil && !apperrors.IsCode(err, apperrors.ErrCodePersistence) {
		return s.translate(err, key)
	}
	s.scheduleRefresh(key)
	return err
}

// Pause stops accepting entries until Resume.
func (s *LifecycleService) Pause(ctx context.Context, key models.Key) (*models.Event, error) {
	return s.transition(ctx, key, "pause", models.StatusOpen, models.StatusPaused)
}

// Resume reopens a paused event. An event resumed after its end time is
// closed by the next expiry check.
func (s *LifecycleService) Resume(ctx context.Context, key models.Key) (*models.Event, error) {
	return s.transition(ctx, key, "resume", models.StatusPaused, models.StatusOpen)
}

func (s *LifecycleService) transition(ctx context.Context, key models.Key, operation string, from, to models.Status) (*models.Event, error) {
	now := s.now()
	e, err := s.store.Update(ctx, key, func(e *models.Event) error {
		if e.IsClosed() {
			return apperrors.NewAlreadyClosedError(e.ID)
		}
		if e.Status != from {
			return apperrors.NewInvalidStateError(e.ID, string(e.Status), operation)
		}
		e.Status = to
		e.Touch(now)
		return nil
	})
	if err != nil && !apperrors.IsCode(err, apperrors.ErrCodePersistence) {
		return nil, s.translate(err, key)
	}
	s.logger.Info().Str("key", key.String()).Str("status", string(to)).Msg("Event status changed")
	s.scheduleRefresh(key)
	return e, err
}

// AttachSubject records the message the event is rendered in. The store key
// does not change.
func (s *LifecycleService) AttachSubject(ctx context.Context, key models.Key, subjectRef string) (*models.Event, error) {
	subjectRef = strings.TrimSpace(subjectRef)
	if subjectRef == "" {
		return nil, apperrors.NewValidationError("subjectRef", "is required")
	}
	e, err := s.store.Update(ctx, key, func(e *models.Event) error {
		if e.SubjectRef == subjectRef {
			return repository.ErrSkipWrite
		}
		e.SubjectRef = subjectRef
		return nil
	})
	if err != nil && !apperrors.IsCode(err, apperrors.ErrCodePersistence) {
		return nil, s.translate(err, key)
	}
	return e, err
}

// Get returns the event under key.
func (s *LifecycleService) Get(key models.Key) (*models.Event, error) {
	e, ok := s.store.Get(key)
	if !ok {
		return nil, apperrors.NewNotFoundError("event", key.String())
	}
	return e, nil
}

// FindByID returns the event with the given id and its key.
func (s *LifecycleService) FindByID(id string) (models.Key, *models.Event, error) {
	key, e, ok := s.store.FindByID(id)
	if !ok {
		return "", nil, apperrors.NewNotFoundError("event", id)
	}
	return key, e, nil
}

// Resolve finds the key of an event in scopeID addressed by ref, which may be
// a store key suffix, a subject reference or an event id.
func (s *LifecycleService) Resolve(scopeID, ref string) (models.Key, error) {
	key := models.NewKey(scopeID, ref)
	if _, ok := s.store.Get(key); ok {
		return key, nil
	}
	for _, entry := range s.store.ListByScope(scopeID) {
		if entry.Event.SubjectRef == ref || entry.Event.ID == ref {
			return entry.Key, nil
		}
	}
	return "", apperrors.NewNotFoundError("event", key.String())
}

// ListOpen returns the open events of a scope ordered by key.
func (s *LifecycleService) ListOpen(scopeID string) []repository.Entry {
	entries := s.store.ListByScope(scopeID)
	open := entries[:0]
	for _, entry := range entries {
		if entry.Event.IsOpen() {
			open = append(open, entry)
		}
	}
	return open
}

// Wait blocks until in-flight closure notifications have returned.
func (s *LifecycleService) Wait() {
	s.wg.Wait()
}

func (s *LifecycleService) translate(err error, key models.Key) error {
	if errors.Is(err, repository.ErrEventNotFound) {
		return apperrors.NewNotFoundError("event", key.String())
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "event update failed")
}

// scheduleRefresh queues a debounced re-render of the event's live view.
func (s *LifecycleService) scheduleRefresh(key models.Key) {
	if s.views == nil || s.sink == nil {
		return
	}
	s.views.Schedule(key.String(), func(ctx context.Context) error {
		e, ok := s.store.Get(key)
		// closed events get their final view from the closure path
		if !ok || e.IsClosed() || e.SubjectRef == "" {
			return nil
		}
		return s.sink.PostOrUpdate(ctx, e.SubjectRef, models.NewView(e))
	})
}
