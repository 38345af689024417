package common

import (
	"testing"
	"time"
)

func TestMillis(t *testing.T) {
	if ToMillis(time.Time{}) != 0 {
		t.Error("zero time must map to 0")
	}
	if !FromMillis(0).IsZero() {
		t.Error("0 must map to zero time")
	}

	ts := time.Date(2024, time.June, 1, 1, 11, 0, 123000000, time.FixedZone("X", 3600))
	back := FromMillis(ToMillis(ts))
	if !back.Equal(ts) {
		t.Errorf("round trip mismatch: got %v want %v", back, ts)
	}
	if back.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", back.Location())
	}
}

func TestLimit(t *testing.T) {
	cases := []struct {
		requested, max, want int
	}{
		{0, 100, 100},
		{-1, 100, 100},
		{10, 100, 10},
		{100, 100, 100},
		{1000, 100, 100},
	}
	for _, c := range cases {
		if got := Limit(c.requested, c.max); got != c.want {
			t.Errorf("Limit(%d, %d) = %d, want %d", c.requested, c.max, got, c.want)
		}
	}
}
