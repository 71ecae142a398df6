package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"giveaway-poll-backend/internal/features/event/models"
)

const (
	DefaultStream       = "events:notifications"
	DefaultStreamMaxLen = 10000
)

// LogSink writes views to the log. Used when no bot adapter consumes them.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) PostOrUpdate(_ context.Context, subjectRef string, view models.View) error {
	s.logger.Info().
		Str("subject_ref", subjectRef).
		Str("event_id", view.EventID).
		Str("phase", string(view.Phase)).
		Int("participants", view.ParticipantCount).
		Strs("winners", view.Winners).
		Strs("ranking", view.Ranking).
		Msg("Event view")
	return nil
}

// StreamSink appends views to a redis stream read by the bot adapter, which
// edits the message named by subject_ref or posts a new one when it is empty.
type StreamSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamSink(client redis.Cmdable, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the stream name entries are appended to.
func (s *StreamSink) Stream() string { return s.stream }

func (s *StreamSink) PostOrUpdate(ctx context.Context, subjectRef string, view models.View) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":        "event_view",
			"subject_ref": subjectRef,
			"event_id":    view.EventID,
			"scope_id":    view.ScopeID,
			"phase":       string(view.Phase),
			"payload":     string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish view of %s: %w", view.EventID, err)
	}
	return nil
}

// Sink is anything that accepts event views.
type Sink interface {
	PostOrUpdate(ctx context.Context, subjectRef string, view models.View) error
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) PostOrUpdate(ctx context.Context, subjectRef string, view models.View) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.PostOrUpdate(ctx, subjectRef, view); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
