package cron

import "testing"

func TestTrafficAlertLevel(t *testing.T) {
	const gb = int64(1024 * 1024 * 1024)

	tests := []struct {
		name   string
		used   int64
		limit  int64
		sent80 bool
		sent95 bool
		want   int
	}{
		{"below thresholds", 50 * gb, 100 * gb, false, false, alertNone},
		{"80 percent fresh", 80 * gb, 100 * gb, false, false, alertWarning},
		{"80 percent already sent", 85 * gb, 100 * gb, true, false, alertNone},
		{"95 percent fresh", 96 * gb, 100 * gb, false, false, alertCritical},
		{"95 percent skips straight past unsent 80", 96 * gb, 100 * gb, false, false, alertCritical},
		{"95 percent after 80 was sent", 96 * gb, 100 * gb, true, false, alertCritical},
		{"95 percent already sent", 99 * gb, 100 * gb, true, true, alertNone},
		{"over limit unsent", 120 * gb, 100 * gb, false, false, alertCritical},
		{"zero limit never alerts", 10 * gb, 0, false, false, alertNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trafficAlertLevel(tt.used, tt.limit, tt.sent80, tt.sent95)
			if got != tt.want {
				t.Errorf("trafficAlertLevel(%d, %d, %v, %v) = %d, want %d",
					tt.used, tt.limit, tt.sent80, tt.sent95, got, tt.want)
			}
		})
	}
}
