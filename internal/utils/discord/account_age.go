package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Epoch is the first millisecond of 2015, the zero point of Discord snowflakes.
const Epoch int64 = 1420070400000

const timestampShift = 22

// CreatedAt returns the creation time encoded in a Discord snowflake id.
func CreatedAt(id string) (time.Time, error) {
	sf, err := snowflake.ParseString(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snowflake %q: %w", id, err)
	}
	if sf.Int64() <= 0 {
		return time.Time{}, fmt.Errorf("invalid snowflake %q", id)
	}
	ms := sf.Int64()>>timestampShift + Epoch
	return time.UnixMilli(ms).UTC(), nil
}

// AccountAge returns how old the account behind id is at now.
func AccountAge(id string, now time.Time) (time.Duration, error) {
	created, err := CreatedAt(id)
	if err != nil {
		return 0, err
	}
	if now.Before(created) {
		return 0, nil
	}
	return now.Sub(created), nil
}
