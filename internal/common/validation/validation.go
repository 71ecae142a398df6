package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxPrizeLength       = 256
	MaxOptionLabelLength = 100
	MaxOptionIDLength    = 32

	MinTitleLength = 1

	MinPollOptions = 2
	MaxPollOptions = 10

	Day  = 24 * time.Hour
	Week = 7 * Day
)

var durationPartRegex = regexp.MustCompile(`(\d+)([wdhms])`)

// ValidateTitle checks an event title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if len(title) < MinTitleLength {
		return fmt.Errorf("title must be at least %d characters long", MinTitleLength)
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("title cannot exceed %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateDescription checks an optional description.
func ValidateDescription(description string) error {
	if len(strings.TrimSpace(description)) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return nil
}

// ValidatePrize checks an optional prize text.
func ValidatePrize(prize string) error {
	if len(strings.TrimSpace(prize)) > MaxPrizeLength {
		return fmt.Errorf("prize cannot exceed %d characters", MaxPrizeLength)
	}
	return nil
}

// ValidateOption checks a single poll option.
func ValidateOption(id, label string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("option id cannot be empty")
	}
	if len(id) > MaxOptionIDLength {
		return fmt.Errorf("option id cannot exceed %d characters", MaxOptionIDLength)
	}
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("option %s label cannot be empty", id)
	}
	if len(label) > MaxOptionLabelLength {
		return fmt.Errorf("option %s label cannot exceed %d characters", id, MaxOptionLabelLength)
	}
	return nil
}

// ParseDuration parses human durations such as "45m", "2h", "1d" or "1d12h".
// Units w, d, h, m and s may be combined; plain Go durations ("90m0s") are
// accepted too.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if !strings.ContainsAny(s, "wd") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: use formats like 45m, 2h, 1d", s)
		}
		if d < 0 {
			return 0, fmt.Errorf("invalid duration %q: must not be negative", s)
		}
		return d, nil
	}

	matches := durationPartRegex.FindAllStringSubmatchIndex(s, -1)
	var total time.Duration
	pos := 0
	for _, m := range matches {
		if m[0] != pos {
			return 0, fmt.Errorf("invalid duration %q: use formats like 45m, 2h, 1d", s)
		}
		n, err := strconv.ParseInt(s[m[2]:m[3]], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(n) * unitOf(s[m[4]:m[5]])
		pos = m[1]
	}
	if pos != len(s) {
		return 0, fmt.Errorf("invalid duration %q: use formats like 45m, 2h, 1d", s)
	}
	return total, nil
}

func unitOf(u string) time.Duration {
	switch u {
	case "w":
		return Week
	case "d":
		return Day
	case "h":
		return time.Hour
	case "m":
		return time.Minute
	default:
		return time.Second
	}
}

// FormatDuration renders a duration the way ParseDuration reads it, e.g. "1d2h".
// Sub-second precision is dropped.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	var b strings.Builder
	for _, part := range []struct {
		unit time.Duration
		name string
	}{{Day, "d"}, {time.Hour, "h"}, {time.Minute, "m"}, {time.Second, "s"}} {
		if n := d / part.unit; n > 0 {
			b.WriteString(strconv.FormatInt(int64(n), 10))
			b.WriteString(part.name)
			d -= n * part.unit
		}
	}
	return b.String()
}

// RegisterValidators adds the custom struct tags used by request DTOs.
//
//	duration: string parsable by ParseDuration with a positive value
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
}
