package messages

import "time"

type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// TrackingChanged is published to the tracking.changed topic after every committed write.
type TrackingChanged struct {
	Action       ChangeAction `json:"action"`
	TrackingID   uint64       `json:"tracking_id"`
	TrackingCode string       `json:"tracking_code"`
	At           time.Time    `json:"at"`
}
