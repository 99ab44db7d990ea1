// Package notification defines the notification event model shared by
// the realtime channel and the inbox.
package notification

import "time"

// Event is a single notification delivered by the server. Events are
// created server-side; the only local mutation is flipping Read.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	GroupID   string    `json:"group_id,omitempty"`
	SenderID  string    `json:"sender_id"`
	SentAt    time.Time `json:"sent_at"`
	IsGeneral bool      `json:"is_general"`
	Read      bool      `json:"read"`
}
