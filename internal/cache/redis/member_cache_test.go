package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *MemberCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewMemberCache(client, ttl)
}

func TestUnknownMemberHasNoAttributes(t *testing.T) {
	_, c := newCache(t, 0)
	attrs, err := c.AttributesOf(context.Background(), "guild", "ghost")
	require.NoError(t, err)
	assert.Nil(t, attrs.AccountAge)
	assert.Nil(t, attrs.ActivityCount)
	assert.Empty(t, attrs.Roles)

	p, err := c.Profile(context.Background(), "guild", "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAttributesFromProfileAndActivity(t *testing.T) {
	_, c := newCache(t, 0)
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	created := now.Add(-72 * time.Hour)
	require.NoError(t, c.SetProfile(ctx, "guild", "u1", MemberProfile{Roles: []string{"vip"}, AccountCreatedAt: &created}))

	attrs, err := c.AttributesOf(ctx, "guild", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, attrs.Roles)
	require.NotNil(t, attrs.AccountAge)
	assert.Equal(t, 72*time.Hour, attrs.AccountAge.Std())
	require.NotNil(t, attrs.ActivityCount)
	assert.Zero(t, *attrs.ActivityCount)

	for i := 0; i < 3; i++ {
		_, err := c.IncrActivity(ctx, "guild", "u1")
		require.NoError(t, err)
	}
	attrs, err = c.AttributesOf(ctx, "guild", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, *attrs.ActivityCount)

	// scopes are separate
	attrs, err = c.AttributesOf(ctx, "other", "u1")
	require.NoError(t, err)
	assert.Nil(t, attrs.ActivityCount)
}

func TestActivityOnlyMember(t *testing.T) {
	_, c := newCache(t, 0)
	ctx := context.Background()
	n, err := c.IncrActivity(ctx, "guild", "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	attrs, err := c.AttributesOf(ctx, "guild", "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, *attrs.ActivityCount)
	assert.Nil(t, attrs.AccountAge)
}

func TestTTLApplied(t *testing.T) {
	mr, c := newCache(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, c.SetProfile(ctx, "guild", "u1", MemberProfile{}))
	_, err := c.IncrActivity(ctx, "guild", "u1")
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL("member:guild:u1"))
	assert.Equal(t, time.Hour, mr.TTL("member:guild:u1:activity"))
}
