package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampMarshalsToEpochMillis(t *testing.T) {
	ts := At(time.UnixMilli(1716200000123))
	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "1716200000123" {
		t.Fatalf("expected epoch millis, got %s", b)
	}
}

func TestTimestampUnmarshalAcceptedShapes(t *testing.T) {
	want := time.Date(2024, 5, 20, 10, 13, 20, 0, time.UTC)
	cases := []struct {
		name string
		in   string
	}{
		{"iso", `"2024-05-20T10:13:20Z"`},
		{"epoch seconds", `1716200000`},
		{"epoch millis", `1716200000000`},
		{"epoch seconds string", `"1716200000"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tc.in), &ts); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.in, err)
			}
			if !ts.Time.Equal(want) {
				t.Fatalf("expected %v, got %v", want, ts.Time)
			}
		})
	}
}

func TestTimestampUnmarshalZeroForms(t *testing.T) {
	for _, in := range []string{`null`, `""`, `"0"`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(in), &ts); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if !ts.IsZero() {
			t.Fatalf("expected zero time for %s, got %v", in, ts.Time)
		}
	}
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"not a time"`), &ts); err == nil {
		t.Fatalf("expected error for unparseable timestamp")
	}
}

func TestValidAt(t *testing.T) {
	now := time.Now()
	validity := 24 * time.Hour

	fresh := &PredictionRecord{LastUpdated: At(now.Add(-23 * time.Hour))}
	if !fresh.ValidAt(now, validity) {
		t.Fatalf("record inside the validity window must be valid")
	}

	stale := &PredictionRecord{LastUpdated: At(now.Add(-25 * time.Hour))}
	if stale.ValidAt(now, validity) {
		t.Fatalf("record past the validity window must be invalid")
	}

	missing := &PredictionRecord{}
	if missing.ValidAt(now, validity) {
		t.Fatalf("record without a timestamp must be invalid")
	}
}
