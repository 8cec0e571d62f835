package reservation

import (
	"testing"
	"time"
)

func TestSnappedAndFuture(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"valid half-hour window", now.Add(time.Hour), now.Add(time.Hour + 30*time.Minute), true},
		{"valid on-the-hour window", now.Add(2 * time.Hour), now.Add(3 * time.Hour), true},
		{"unsnapped minute", now.Add(time.Hour).Add(15 * time.Minute), now.Add(2 * time.Hour), false},
		{"window too short", now.Add(time.Hour), now.Add(time.Hour).Add(10 * time.Minute), false},
		{"start not in future", now.Add(-time.Hour), now, false},
		{"start equals now", now, now.Add(30 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnappedAndFuture(tt.start, tt.end, now); got != tt.want {
				t.Errorf("SnappedAndFuture(%v, %v) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusApproved, false},
		{StatusActive, false},
		{StatusCompleted, true},
		{StatusRejected, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
