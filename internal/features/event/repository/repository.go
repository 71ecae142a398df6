package repository

import (
	"context"
	"errors"

	"giveaway-poll-backend/internal/features/event/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrEventExists   = errors.New("event already exists")

	// ErrSkipWrite may be returned by an Update callback to leave the stored
	// event untouched without reporting a failure.
	ErrSkipWrite = errors.New("skip write")
)

// Document is the persisted form of one event domain.
type Document struct {
	IDCounter int64                        `json:"idCounter"`
	Events    map[models.Key]*models.Event `json:"events"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Events: make(map[models.Key]*models.Event)}
}

// Persister loads and saves the whole document of a domain. Save must be
// all-or-nothing for external readers.
type Persister interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
}

// Entry is one (key, event) pair returned by list operations.
type Entry struct {
	Key   models.Key
	Event *models.Event
}
