package medication

import (
	"testing"
	"time"
)

func TestOrder_ActiveExpiredDiscontinued(t *testing.T) {
	activated := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	stopped := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		order        Order
		at           time.Time
		active       bool
		expired      bool
		discontinued bool
	}{
		{
			name:   "running",
			order:  Order{DateActivated: activated, AutoExpireDate: &expires},
			at:     activated.Add(24 * time.Hour),
			active: true,
		},
		{
			name:    "past auto expire",
			order:   Order{DateActivated: activated, AutoExpireDate: &expires},
			at:      expires.Add(time.Hour),
			expired: true,
		},
		{
			name:         "stopped before expiry",
			order:        Order{DateActivated: activated, AutoExpireDate: &expires, DateStopped: &stopped},
			at:           expires.Add(time.Hour),
			discontinued: true,
		},
		{
			name:  "not yet started",
			order: Order{DateActivated: activated},
			at:    activated.Add(-time.Hour),
		},
		{
			name:  "scheduled in future",
			order: Order{DateActivated: activated, Urgency: UrgencyOnScheduledDate, ScheduledDate: &expires},
			at:    stopped,
		},
		{
			name:  "voided",
			order: Order{DateActivated: activated, Voided: true},
			at:    stopped,
		},
		{
			name:  "discontinue action",
			order: Order{DateActivated: activated, Action: ActionDiscontinue},
			at:    stopped,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.IsActive(tt.at); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.order.IsExpired(tt.at); got != tt.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expired)
			}
			if got := tt.order.IsDiscontinued(tt.at); got != tt.discontinued {
				t.Errorf("IsDiscontinued() = %v, want %v", got, tt.discontinued)
			}
		})
	}
}
