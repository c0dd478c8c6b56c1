package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimestampRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTimestamp(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimestampUnixSeconds(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTimestamp(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimestampUnixMillis(t *testing.T) {
	ms := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).UnixMilli()
	got, ok := ParseTimestamp(strconv.FormatInt(ms, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UnixMilli() != ms {
		t.Fatalf("unexpected millis %v", got.UnixMilli())
	}
}

func TestParseTimestampDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimestampDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestMillisRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	if got := FromMillis(UnixMillis(now)); !got.Equal(now) {
		t.Fatalf("round trip mismatch: %v vs %v", got, now)
	}
	if !FromMillis(0).IsZero() {
		t.Fatalf("zero millis should map to zero time")
	}
}
