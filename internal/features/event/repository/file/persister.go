package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/repository"
)

// Persister keeps a domain document in "<dir>/<domain>.json". Writes go to a
// temp file in the same directory which is synced and renamed over the target.
type Persister struct {
	path   string
	logger zerolog.Logger
}

func NewPersister(dir, domain string, logger zerolog.Logger) *Persister {
	return &Persister{
		path:   filepath.Join(dir, domain+".json"),
		logger: logger.With().Str("path", filepath.Join(dir, domain+".json")).Logger(),
	}
}

// Path returns the document location.
func (p *Persister) Path() string { return p.path }

// Load reads the document. A missing or unreadable file yields an empty
// document; an unparsable one is moved aside to "<path>.corrupt-<unix>" first.
func (p *Persister) Load(_ context.Context) (*repository.Document, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Info().Msg("No event document yet, starting empty")
		} else {
			p.logger.Error().Err(err).Msg("Event document unreadable, starting empty")
		}
		return repository.NewDocument(), nil
	}

	doc := repository.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", p.path, time.Now().Unix())
		if renameErr := os.Rename(p.path, backup); renameErr != nil {
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

// Save atomically replaces the document on disk.
func (p *Persister) Save(ctx context.Context, doc *repository.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}
