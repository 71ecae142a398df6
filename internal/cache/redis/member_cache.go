package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"giveaway-poll-backend/internal/features/event/models"
)

// MemberProfile is what the bot reports about a guild member.
type MemberProfile struct {
	Roles            []string   `json:"roles"`
	AccountCreatedAt *time.Time `json:"accountCreatedAt,omitempty"`
}

// MemberCache keeps member profiles and message counters per scope.
type MemberCache struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

// NewMemberCache creates the cache. A zero ttl keeps entries forever.
func NewMemberCache(client redis.Cmdable, ttl time.Duration) *MemberCache {
	return &MemberCache{client: client, ttl: ttl, now: time.Now}
}

func (c *MemberCache) keyProfile(scopeID, memberID string) string {
	return fmt.Sprintf("member:%s:%s", scopeID, memberID)
}

func (c *MemberCache) keyActivity(scopeID, memberID string) string {
	return fmt.Sprintf("member:%s:%s:activity", scopeID, memberID)
}

// SetProfile replaces the stored profile of a member.
func (c *MemberCache) SetProfile(ctx context.Context, scopeID, memberID string, p MemberProfile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keyProfile(scopeID, memberID), b, c.ttl).Err()
}

// Profile returns the stored profile, or nil if none is known.
func (c *MemberCache) Profile(ctx context.Context, scopeID, memberID string) (*MemberProfile, error) {
	v, err := c.client.Get(ctx, c.keyProfile(scopeID, memberID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var p MemberProfile
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IncrActivity counts one message of the member and returns the new total.
func (c *MemberCache) IncrActivity(ctx context.Context, scopeID, memberID string) (int64, error) {
	key := c.keyActivity(scopeID, memberID)
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if c.ttl > 0 {
		if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// AttributesOf builds eligibility attributes from the cached data. Members
// the cache has never seen have no attributes; a known member without
// counted messages has an activity of zero.
func (c *MemberCache) AttributesOf(ctx context.Context, scopeID, memberID string) (models.Attributes, error) {
	var attrs models.Attributes

	pipe := c.client.Pipeline()
	profileCmd := pipe.Get(ctx, c.keyProfile(scopeID, memberID))
	activityCmd := pipe.Get(ctx, c.keyActivity(scopeID, memberID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return attrs, err
	}

	known := false
	b, err := profileCmd.Bytes()
	switch {
	case err == nil:
		var p MemberProfile
		if err := json.Unmarshal(b, &p); err != nil {
			return attrs, fmt.Errorf("corrupt member profile: %w", err)
		}
		known = true
		attrs.Roles = p.Roles
		if p.AccountCreatedAt != nil {
			age := models.Duration(c.now().Sub(*p.AccountCreatedAt))
			attrs.AccountAge = &age
		}
	case !errors.Is(err, redis.Nil):
		return attrs, err
	}

	n, err := activityCmd.Int()
	switch {
	case err == nil:
		attrs.ActivityCount = &n
	case errors.Is(err, redis.Nil):
		if known {
			zero := 0
			attrs.ActivityCount = &zero
		}
	default:
		return attrs, err
	}
	return attrs, nil
}
