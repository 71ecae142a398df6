package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/repository"
)

const keyPrefixDocument = "events:"

func makeDocumentKey(domain string) string {
	return keyPrefixDocument + domain + ":document"
}

// Persister keeps a domain document as one JSON string value. SET replaces
// the value as a whole, so readers never see a partial document.
type Persister struct {
	client redis.Cmdable
	key    string
	logger zerolog.Logger
}

func NewPersister(client redis.Cmdable, domain string, logger zerolog.Logger) *Persister {
	key := makeDocumentKey(domain)
	return &Persister{
		client: client,
		key:    key,
		logger: logger.With().Str("key", key).Logger(),
	}
}

// Key returns the redis key of the document.
func (p *Persister) Key() string { return p.key }

// Load returns the stored document. A missing key is an empty document, an
// unparsable value is renamed to "<key>:corrupt-<unix>" and also loads empty.
// Connection errors are returned.
func (p *Persister) Load(ctx context.Context) (*repository.Document, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			p.logger.Info().Msg("No event document yet, starting empty")
			return repository.NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to read event document: %w", err)
	}

	doc := repository.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		backup := fmt.Sprintf("%s:corrupt-%d", p.key, time.Now().Unix())
		if renameErr := p.client.Rename(ctx, p.key, backup).Err(); renameErr != nil {
			p.logger.Error().Err(renameErr).Msg("Failed to move corrupt event document aside")
		}
		p.logger.Error().Err(err).Str("backup", backup).Msg("Event document corrupt, starting empty")
		return repository.NewDocument(), nil
	}
	if doc.Events == nil {
		doc.Events = make(map[models.Key]*models.Event)
	}
	return doc, nil
}

// Save overwrites the stored document.
func (p *Persister) Save(ctx context.Context, doc *repository.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write event document: %w", err)
	}
	return nil
}
