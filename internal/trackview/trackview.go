// Package trackview derives what a tracking page shows from a stored record.
package trackview

import (
	"fmt"
	"sort"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
)

const (
	MessageOverdue     = "Package was due for delivery"
	MessageToday       = "Package arrives today"
	MessageTomorrow    = "Package arrives tomorrow"
	MessageDelivered   = "Package delivered"
	MessageNoDate      = "Delivery date not available"
	ReceivedStatusText = "Package Received"
	receivedComment    = "Package received for shipping"
)

// StatusColor never fails: labels it does not know map to neutral.
func StatusColor(status string) models.Severity {
	s, _ := models.ParseStatus(status)
	return s.Severity()
}

// DeliveryMessage compares calendar days in UTC, so the time of day on either
// argument does not matter. A Delivered status overrides the date.
func DeliveryMessage(deliveryDate *time.Time, today time.Time, status string) string {
	if s, ok := models.ParseStatus(status); ok && s == models.StatusDelivered {
		return MessageDelivered
	}
	if deliveryDate == nil || deliveryDate.IsZero() {
		return MessageNoDate
	}
	days := daysBetween(today, *deliveryDate)
	switch {
	case days < 0:
		return MessageOverdue
	case days == 0:
		return MessageToday
	case days == 1:
		return MessageTomorrow
	default:
		return fmt.Sprintf("Package arrives in %d days", days)
	}
}

func daysBetween(from, to time.Time) int {
	a := midnight(from)
	b := midnight(to)
	return int(b.Sub(a).Hours() / 24)
}

// midnight keeps the calendar day as seen in t's own location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Entry struct {
	Status    string          `json:"status"`
	Severity  models.Severity `json:"severity"`
	Location  string          `json:"location"`
	Comment   string          `json:"comment,omitempty"`
	At        time.Time       `json:"at"`
	Synthetic bool            `json:"synthetic,omitempty"`
}

// Timeline returns history newest first. A record without history gets two
// synthetic entries: its current state at last_updated, then the receipt at created_at.
func Timeline(t *models.Tracking) []Entry {
	if t == nil {
		return nil
	}
	if len(t.History) == 0 {
		return []Entry{
			{
				Status:    t.Status,
				Severity:  StatusColor(t.Status),
				Location:  t.CurrentLocation,
				Comment:   t.Comment,
				At:        t.LastUpdated,
				Synthetic: true,
			},
			{
				Status:    ReceivedStatusText,
				Severity:  models.SeverityNeutral,
				Location:  t.ShipperAddress,
				Comment:   receivedComment,
				At:        t.CreatedAt,
				Synthetic: true,
			},
		}
	}

	out := make([]Entry, 0, len(t.History))
	for _, h := range t.History {
		if h == nil {
			continue
		}
		out = append(out, Entry{
			Status:   h.Status,
			Severity: StatusColor(h.Status),
			Location: h.Location,
			Comment:  h.Comment,
			At:       h.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out
}

// View is the public page model for one record.
type View struct {
	Tracking        *models.Tracking `json:"tracking"`
	StatusSeverity  models.Severity  `json:"status_severity"`
	DeliveryMessage string           `json:"delivery_message"`
	Timeline        []Entry          `json:"timeline"`
}

func Build(t *models.Tracking, today time.Time) View {
	return View{
		Tracking:        t,
		StatusSeverity:  StatusColor(t.Status),
		DeliveryMessage: DeliveryMessage(t.DeliveryDate, today, t.Status),
		Timeline:        Timeline(t),
	}
}
