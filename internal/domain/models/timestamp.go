package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"TIKR/pkg/util"
)

// Timestamp is the canonical on-the-wire timestamp: epoch milliseconds.
// Older writers stored RFC3339 strings or epoch seconds; decoding accepts
// those shapes too, so normalization stays at the codec and never leaks into
// business logic.
type Timestamp struct {
	time.Time
}

// Now returns the current time as a Timestamp, at millisecond precision.
func Now() Timestamp {
	return Timestamp{time.Now().Truncate(time.Millisecond)}
}

// At wraps a time.Time.
func At(t time.Time) Timestamp {
	return Timestamp{t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(util.UnixMillis(t.Time), 10)), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" || s == "0" {
		t.Time = time.Time{}
		return nil
	}
	parsed, ok := util.ParseTimestamp(s)
	if !ok {
		return fmt.Errorf("timestamp: unrecognized shape %q", s)
	}
	t.Time = parsed
	return nil
}
