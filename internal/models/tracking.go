package models

import "time"

// MinTrackingCodeLen is the shortest tracking code accepted on create and lookup.
const MinTrackingCodeLen = 6

type Tracking struct {
	ID              uint64     `json:"id"`
	TrackingCode    string     `json:"tracking_code"`
	Status          string     `json:"status"`
	CurrentLocation string     `json:"current_location"`
	Destination     string     `json:"destination"`
	DeliveryDate    *time.Time `json:"delivery_date,omitempty"`
	ShipperName     string     `json:"shipper_name"`
	ShipperAddress  string     `json:"shipper_address"`
	ReceiverName    string     `json:"receiver_name"`
	ReceiverAddress string     `json:"receiver_address"`
	Comment         string     `json:"comment"`
	LastUpdated     time.Time  `json:"last_updated"`
	CreatedAt       time.Time  `json:"created_at"`

	// History is only filled by code lookups, newest first.
	History []*HistoryEntry `json:"history,omitempty"`
}

type HistoryEntry struct {
	ID         uint64    `json:"id"`
	TrackingID uint64    `json:"tracking_id"`
	Status     string    `json:"status"`
	Location   string    `json:"location"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TrackingFields are the editable fields of a record.
type TrackingFields struct {
	Status          string     `json:"status"`
	CurrentLocation string     `json:"current_location"`
	Destination     string     `json:"destination"`
	DeliveryDate    *time.Time `json:"delivery_date"`
	ShipperName     string     `json:"shipper_name"`
	ShipperAddress  string     `json:"shipper_address"`
	ReceiverName    string     `json:"receiver_name"`
	ReceiverAddress string     `json:"receiver_address"`
	Comment         string     `json:"comment"`
}

type TrackingCreateInput struct {
	TrackingCode string `json:"tracking_code"`
	TrackingFields
}

// Fields returns the editable part of a stored record.
func (t *Tracking) Fields() TrackingFields {
	return TrackingFields{
		Status:          t.Status,
		CurrentLocation: t.CurrentLocation,
		Destination:     t.Destination,
		DeliveryDate:    t.DeliveryDate,
		ShipperName:     t.ShipperName,
		ShipperAddress:  t.ShipperAddress,
		ReceiverName:    t.ReceiverName,
		ReceiverAddress: t.ReceiverAddress,
		Comment:         t.Comment,
	}
}
