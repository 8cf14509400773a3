package messages

import "time"

// AuthEvent is the wire form of an identity event. It never carries tokens.
type AuthEvent struct {
	Tag       string    `json:"tag"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
}
