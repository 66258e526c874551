package describe

import (
	"testing"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHeadline_Fallbacks(t *testing.T) {
	withHeadline := domain.Alert{Headline: "Tornado Warning for Collin County", Event: "Tornado Warning"}
	assert.Equal(t, "Tornado Warning for Collin County", headline(withHeadline))

	withSender := domain.Alert{Event: "Tornado Warning", SenderName: "NWS Fort Worth TX"}
	assert.Equal(t, "Tornado Warning issued by NWS Fort Worth TX", headline(withSender))

	bare := domain.Alert{Event: "Tornado Warning"}
	assert.Equal(t, "Tornado Warning", headline(bare))
}

func TestArea(t *testing.T) {
	assert.Equal(t, "For Collin County", area(domain.Alert{AreaDesc: "Collin County"}))
	assert.Equal(t, "Affected area unavailable", area(domain.Alert{}))
}

func TestTiming(t *testing.T) {
	now := time.Date(2026, time.April, 3, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		alert domain.Alert
		want  string
	}{
		{"no end time", domain.Alert{}, "In effect until further notice"},
		{"already over", domain.Alert{Expires: now.Add(-time.Minute)}, "No longer in effect"},
		{"under a minute", domain.Alert{Expires: now.Add(30 * time.Second)}, "Expires in less than a minute"},
		{"relative minutes", domain.Alert{Expires: now.Add(45 * time.Minute)}, "Expires in 45 minutes"},
		{"same day", domain.Alert{Expires: now.Add(3 * time.Hour)}, "In effect until 9:00 PM UTC"},
		{"different day", domain.Alert{Expires: now.Add(20 * time.Hour)}, "In effect until Saturday 2:00 PM UTC"},
		{"ends preferred over expires", domain.Alert{Expires: now.Add(10 * time.Minute), Ends: now.Add(30 * time.Minute)}, "Expires in 30 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timing(tt.alert, now))
		})
	}
}
