package identity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/utils/discord"
)

// Provider looks participant attributes up.
type Provider interface {
	AttributesOf(ctx context.Context, scopeID, participantID string) (models.Attributes, error)
}

// StaticProvider serves attributes registered with Set. Safe for concurrent use.
type StaticProvider struct {
	mu    sync.RWMutex
	attrs map[string]models.Attributes
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{attrs: make(map[string]models.Attributes)}
}

func staticKey(scopeID, participantID string) string {
	return scopeID + ":" + participantID
}

// Set replaces the attributes of a participant.
func (p *StaticProvider) Set(scopeID, participantID string, attrs models.Attributes) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attrs[staticKey(scopeID, participantID)] = attrs
}

func (p *StaticProvider) AttributesOf(_ context.Context, scopeID, participantID string) (models.Attributes, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.attrs[staticKey(scopeID, participantID)], nil
}

// SnowflakeAgeProvider fills a missing account age from the participant id,
// which for Discord users is a snowflake carrying the creation time.
type SnowflakeAgeProvider struct {
	next   Provider
	now    func() time.Time
	logger zerolog.Logger
}

func NewSnowflakeAgeProvider(next Provider, logger zerolog.Logger) *SnowflakeAgeProvider {
	return &SnowflakeAgeProvider{next: next, now: time.Now, logger: logger}
}

func (p *SnowflakeAgeProvider) AttributesOf(ctx context.Context, scopeID, participantID string) (models.Attributes, error) {
	var attrs models.Attributes
	if p.next != nil {
		var err error
		if attrs, err = p.next.AttributesOf(ctx, scopeID, participantID); err != nil {
			return attrs, err
		}
	}
	if attrs.AccountAge != nil {
		return attrs, nil
	}

	age, err := discord.AccountAge(participantID, p.now())
	if err != nil {
		p.logger.Debug().Err(err).Str("participant_id", participantID).Msg("Account age unknown")
		return attrs, nil
	}
	d := models.Duration(age)
	attrs.AccountAge = &d
	return attrs, nil
}
