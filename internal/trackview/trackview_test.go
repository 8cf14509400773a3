package trackview

import (
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStatusColor(t *testing.T) {
	cases := map[string]models.Severity{
		"Delivered":        models.SeveritySuccess,
		"In Transit":       models.SeverityInformational,
		"Processing":       models.SeverityInformational,
		"Out for Delivery": models.SeverityInformational,
		"Pending":          models.SeverityWarning,
		"Failed Delivery":  models.SeverityDanger,
		"Lost at Sea":      models.SeverityNeutral,
		"":                 models.SeverityNeutral,
	}
	for in, want := range cases {
		require.Equal(t, want, StatusColor(in), in)
	}
}

func TestDeliveryMessage(t *testing.T) {
	today := time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC)
	day := func(d int) *time.Time {
		v := time.Date(2026, 10, 14+d, 0, 30, 0, 0, time.UTC)
		return &v
	}

	require.Equal(t, MessageOverdue, DeliveryMessage(day(-3), today, "In Transit"))
	require.Equal(t, MessageToday, DeliveryMessage(day(0), today, "In Transit"))
	require.Equal(t, MessageTomorrow, DeliveryMessage(day(1), today, "In Transit"))
	require.Equal(t, "Package arrives in 5 days", DeliveryMessage(day(5), today, "Pending"))
	require.Equal(t, MessageDelivered, DeliveryMessage(day(-3), today, "Delivered"))
	require.Equal(t, MessageNoDate, DeliveryMessage(nil, today, "Pending"))
}

func TestDeliveryMessage_IgnoresTimeOfDay(t *testing.T) {
	date := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	morning := time.Date(2026, 10, 14, 0, 1, 0, 0, time.UTC)
	night := time.Date(2026, 10, 14, 23, 59, 59, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.Equal(t, MessageTomorrow, DeliveryMessage(&date, morning, ""))
		require.Equal(t, MessageTomorrow, DeliveryMessage(&date, night, ""))
	}
}

func TestDeliveryMessage_IgnoresTimeOfDayOutsideUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	date := time.Date(2026, 10, 15, 0, 0, 0, 0, est)
	morning := time.Date(2026, 10, 14, 8, 0, 0, 0, est)
	evening := time.Date(2026, 10, 14, 21, 0, 0, 0, est)

	require.Equal(t, MessageTomorrow, DeliveryMessage(&date, morning, ""))
	require.Equal(t, MessageTomorrow, DeliveryMessage(&date, evening, ""))

	late := time.Date(2026, 10, 15, 23, 30, 0, 0, est)
	require.Equal(t, MessageToday, DeliveryMessage(&date, late, ""))
}

func TestTimeline_SynthesisedWhenHistoryEmpty(t *testing.T) {
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)
	rec := &models.Tracking{
		Status:          "In Transit",
		CurrentLocation: "Hamburg",
		Comment:         "sorted",
		CreatedAt:       created,
		LastUpdated:     updated,
	}

	tl := Timeline(rec)
	require.Len(t, tl, 2)
	require.Equal(t, "In Transit", tl[0].Status)
	require.Equal(t, "Hamburg", tl[0].Location)
	require.Equal(t, "sorted", tl[0].Comment)
	require.Equal(t, updated, tl[0].At)
	require.Equal(t, ReceivedStatusText, tl[1].Status)
	require.Equal(t, created, tl[1].At)
	require.True(t, tl[1].Synthetic)
}

func TestTimeline_SortsNewestFirst(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	rec := &models.Tracking{History: []*models.HistoryEntry{
		{Status: "Pending", CreatedAt: base},
		{Status: "Delivered", CreatedAt: base.Add(2 * time.Hour)},
		{Status: "In Transit", CreatedAt: base.Add(time.Hour)},
	}}

	tl := Timeline(rec)
	require.Len(t, tl, 3)
	require.Equal(t, []string{"Delivered", "In Transit", "Pending"}, []string{tl[0].Status, tl[1].Status, tl[2].Status})
	require.Equal(t, models.SeveritySuccess, tl[0].Severity)
	require.False(t, tl[0].Synthetic)
}

func TestBuild(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	v := Build(&models.Tracking{Status: "Delivered", CreatedAt: now, LastUpdated: now}, now)
	require.Equal(t, models.SeveritySuccess, v.StatusSeverity)
	require.Equal(t, MessageDelivered, v.DeliveryMessage)
	require.Len(t, v.Timeline, 2)
}
