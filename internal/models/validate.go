package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BearBump/TrackDesk/internal/apperr"
)

// Normalize trims surrounding whitespace from every text field.
func (f *TrackingFields) Normalize() {
	f.Status = strings.TrimSpace(f.Status)
	f.CurrentLocation = strings.TrimSpace(f.CurrentLocation)
	f.Destination = strings.TrimSpace(f.Destination)
	f.ShipperName = strings.TrimSpace(f.ShipperName)
	f.ShipperAddress = strings.TrimSpace(f.ShipperAddress)
	f.ReceiverName = strings.TrimSpace(f.ReceiverName)
	f.ReceiverAddress = strings.TrimSpace(f.ReceiverAddress)
	f.Comment = strings.TrimSpace(f.Comment)
}

// Validate reports every offending field at once.
func (f *TrackingFields) Validate() error {
	bad := f.problems()
	if len(bad) > 0 {
		return apperr.Validation("invalid tracking fields", bad)
	}
	return nil
}

func (f *TrackingFields) problems() map[string]string {
	bad := map[string]string{}
	if f.Status == "" {
		bad["status"] = "Status is required"
	} else if _, ok := ParseStatus(f.Status); !ok {
		bad["status"] = fmt.Sprintf("Unknown status %q", f.Status)
	}
	required := []struct {
		field, value, label string
	}{
		{"current_location", f.CurrentLocation, "Current location"},
		{"destination", f.Destination, "Destination"},
		{"shipper_name", f.ShipperName, "Shipper name"},
		{"shipper_address", f.ShipperAddress, "Shipper address"},
		{"receiver_name", f.ReceiverName, "Receiver name"},
		{"receiver_address", f.ReceiverAddress, "Receiver address"},
	}
	for _, r := range required {
		if r.value == "" {
			bad[r.field] = r.label + " is required"
		}
	}
	if f.DeliveryDate == nil || f.DeliveryDate.IsZero() {
		bad["delivery_date"] = "Delivery date is required"
	}
	return bad
}

func (in *TrackingCreateInput) Normalize() {
	in.TrackingCode = strings.TrimSpace(in.TrackingCode)
	in.TrackingFields.Normalize()
}

func (in *TrackingCreateInput) Validate() error {
	bad := in.TrackingFields.problems()
	if msg := CheckTrackingCode(in.TrackingCode); msg != "" {
		bad["tracking_code"] = msg
	}
	if len(bad) > 0 {
		return apperr.Validation("invalid tracking fields", bad)
	}
	return nil
}

// CheckTrackingCode returns a user-facing problem with code, or "" when it is acceptable.
func CheckTrackingCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Tracking code is required"
	}
	if utf8.RuneCountInString(code) < MinTrackingCodeLen {
		return fmt.Sprintf("Tracking code must be at least %d characters", MinTrackingCodeLen)
	}
	return ""
}
