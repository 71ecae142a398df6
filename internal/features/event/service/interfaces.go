package service

import (
	"context"
	"time"

	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/repository"
	"giveaway-poll-backend/internal/utils/debounce"
)

// Store is the part of repository.Store the lifecycle depends on.
type Store interface {
	Kind() models.Kind
	Domain() string
	GenerateID() string
	Get(key models.Key) (*models.Event, bool)
	FindByID(id string) (models.Key, *models.Event, bool)
	ListAll() []repository.Entry
	ListByScope(scopeID string) []repository.Entry
	Create(ctx context.Context, e *models.Event) error
	Update(ctx context.Context, key models.Key, fn func(*models.Event) error) (*models.Event, error)
}

// NotificationSink publishes the rendered state of an event. Calls are best
// effort: failures are logged and never retried.
type NotificationSink interface {
	PostOrUpdate(ctx context.Context, subjectRef string, view models.View) error
}

// IdentityProvider looks up the attributes of a participant. Unknown
// attributes are left nil.
type IdentityProvider interface {
	AttributesOf(ctx context.Context, scopeID, participantID string) (models.Attributes, error)
}

// ViewScheduler coalesces view refreshes per subject.
type ViewScheduler interface {
	Schedule(key string, action debounce.Action)
}

// Clock returns the current time.
type Clock func() time.Time

// ExpirationServiceInterface closes expired events in the background.
type ExpirationServiceInterface interface {
	Start()
	Stop()
	Tick(ctx context.Context) int
}
