package workers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	rcache "giveaway-poll-backend/internal/cache/redis"
)

const (
	DefaultStreamKey     = "bot:events"
	DefaultConsumerGroup = "event_engine_consumers"
	DefaultConsumerName  = "event_worker_1"

	eventMessageCreated = "message_created"
	eventMemberUpdated  = "member_updated"
)

// MemberStore receives what the worker learns about members.
type MemberStore interface {
	SetProfile(ctx context.Context, scopeID, memberID string, p rcache.MemberProfile) error
	IncrActivity(ctx context.Context, scopeID, memberID string) (int64, error)
}

// StreamConfig names the stream and consumer the worker reads as.
type StreamConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
}

// ActivityWorker consumes bot events from a redis stream and keeps the
// member cache current: message_created counts activity, member_updated
// replaces roles and the account creation time.
type ActivityWorker struct {
	rdb     redis.Cmdable
	members MemberStore
	config  StreamConfig
	logger  zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewActivityWorker(rdb redis.Cmdable, members MemberStore, config StreamConfig, logger zerolog.Logger) *ActivityWorker {
	if config.Stream == "" {
		config.Stream = DefaultStreamKey
	}
	if config.Group == "" {
		config.Group = DefaultConsumerGroup
	}
	if config.Consumer == "" {
		config.Consumer = DefaultConsumerName
	}
	if config.Block <= 0 {
		config.Block = 5 * time.Second
	}
	return &ActivityWorker{rdb: rdb, members: members, config: config, logger: logger}
}

func (w *ActivityWorker) Name() string { return "activity-worker" }

// Start creates the consumer group and reads in the background until Stop.
func (w *ActivityWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.ensureGroup(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.consume(ctx)
	}()
}

// Stop cancels the read loop and waits for it to return.
func (w *ActivityWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Run reads the stream until ctx is done.
func (w *ActivityWorker) Run(ctx context.Context) {
	w.ensureGroup(ctx)
	w.consume(ctx)
}

func (w *ActivityWorker) ensureGroup(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, w.config.Stream, w.config.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		w.logger.Error().Err(err).Msg("Error creating consumer group")
	}
}

func (w *ActivityWorker) consume(ctx context.Context) {
	w.logger.Info().Str("stream", w.config.Stream).Msg("Starting Redis stream worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping Redis stream worker")
			return
		default:
		}

		entries, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.config.Group,
			Consumer: w.config.Consumer,
			Streams:  []string{w.config.Stream, ">"},
			Count:    10,
			Block:    w.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("Error reading from stream")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				w.processMessage(ctx, msg.Values)
				if err := w.rdb.XAck(ctx, w.config.Stream, w.config.Group, msg.ID).Err(); err != nil {
					w.logger.Warn().Err(err).Str("id", msg.ID).Msg("Failed to ack stream entry")
				}
			}
		}
	}
}

func (w *ActivityWorker) processMessage(ctx context.Context, values map[string]interface{}) {
	eventType, _ := values["type"].(string)
	scopeID, _ := values["scope_id"].(string)
	memberID, _ := values["member_id"].(string)
	if scopeID == "" || memberID == "" {
		w.logger.Debug().Interface("values", values).Msg("Ignoring stream entry without member")
		return
	}

	switch eventType {
	case eventMessageCreated:
		if bot, _ := values["bot"].(string); bot == "true" || bot == "1" {
			return
		}
		if _, err := w.members.IncrActivity(ctx, scopeID, memberID); err != nil {
			w.logger.Error().Err(err).Str("member_id", memberID).Msg("Failed to count activity")
		}

	case eventMemberUpdated:
		profile := rcache.MemberProfile{Roles: splitRoles(values["roles"])}
		if raw, _ := values["account_created_at"].(string); raw != "" {
			created, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				w.logger.Warn().Err(err).Str("member_id", memberID).Msg("Invalid account_created_at")
			} else {
				created = created.UTC()
				profile.AccountCreatedAt = &created
			}
		}
		if err := w.members.SetProfile(ctx, scopeID, memberID, profile); err != nil {
			w.logger.Error().Err(err).Str("member_id", memberID).Msg("Failed to store member profile")
		}
	}
}

func splitRoles(v interface{}) []string {
	s, _ := v.(string)
	roles := []string{}
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
