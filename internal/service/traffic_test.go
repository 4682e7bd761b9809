package service

import (
	"errors"
	"testing"
)

func TestNewTrafficLimit(t *testing.T) {
	tests := []struct {
		name    string
		current int
		delta   int
		want    int
		wantErr bool
	}{
		{"add 100", 100, 100, 200, false},
		{"remove down to floor exactly", 100, -50, 50, false},
		{"remove below floor rejected", 50, -50, 50, true},
		{"remove from 60 below floor rejected", 60, -50, 60, true},
		{"large add", 50, 1000, 1050, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTrafficLimit(tt.current, tt.delta, 50)
			if tt.wantErr {
				if !errors.Is(err, ErrTrafficFloor) {
					t.Fatalf("NewTrafficLimit() error = %v, want ErrTrafficFloor", err)
				}
				if got != tt.current {
					t.Errorf("limit changed on rejection: got %d, want %d", got, tt.current)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTrafficLimit() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NewTrafficLimit(%d, %d) = %d, want %d", tt.current, tt.delta, got, tt.want)
			}
		})
	}
}

// Two consecutive -50 deltas from 100 GB: the first lands on the floor,
// the second must be rejected.
func TestTrafficFloorSequence(t *testing.T) {
	limit, err := NewTrafficLimit(100, -50, 50)
	if err != nil {
		t.Fatalf("first delta failed: %v", err)
	}
	if limit != 50 {
		t.Fatalf("after first delta limit = %d, want 50", limit)
	}

	limit, err = NewTrafficLimit(limit, -50, 50)
	if !errors.Is(err, ErrTrafficFloor) {
		t.Fatalf("second delta error = %v, want ErrTrafficFloor", err)
	}
	if limit != 50 {
		t.Errorf("after rejected delta limit = %d, want 50", limit)
	}
}
