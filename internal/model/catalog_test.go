package model

import (
	"testing"
	"time"
)

func TestBatch_Open(t *testing.T) {
	b := Batch{
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	ict := time.FixedZone("ICT", 7*60*60)

	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 9, 1, 3, 0, 0, 0, ict), true},
		{time.Date(2026, 8, 31, 23, 59, 0, 0, ict), false},
		{time.Date(2026, 9, 30, 23, 59, 0, 0, ict), true},
		{time.Date(2026, 10, 1, 5, 0, 0, 0, ict), false},
		{time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		if got := b.Open(tt.at); got != tt.want {
			t.Errorf("Open(%s) = %v, want %v", tt.at, got, tt.want)
		}
	}

	b.Active = false
	if b.Open(time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)) {
		t.Error("inactive batch reported open")
	}
}
