// Package chat holds the messaging domain model and the pure
// reconciliation logic that turns a flat polled message set into
// per-counterpart conversations.
package chat

import "time"

// Identity is a portal account as seen by the sync engine. Operator
// accounts (directors and staff) share one logical inbox; parent
// accounts do not.
type Identity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Operator    bool   `json:"is_operator"`
}

// Message is a single directed message. Once fetched it is immutable
// except for Read, which may be flipped optimistically while a scoped
// mark-read request is in flight.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender"`
	ReceiverID int64     `json:"receiver"`
	// SenderName and ReceiverName are denormalized display names
	// carried on the wire so conversations can be labeled even when the
	// counterpart is missing from the contact roster.
	SenderName   string    `json:"sender_name,omitempty"`
	ReceiverName string    `json:"receiver_name,omitempty"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
	Read         bool      `json:"is_read"`
}

// Contact is a known counterpart, possibly with zero messages so far.
type Contact struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Operator    bool   `json:"is_operator"`
	Online      bool   `json:"is_online"`
}

// MessageLess is the canonical message ordering: CreatedAt ascending,
// ties broken by ID ascending. Messages with a zero CreatedAt (a
// malformed timestamp upstream) sort after every valid timestamp so one
// corrupt record cannot wedge itself at the top of a thread.
func MessageLess(a, b Message) bool {
	az, bz := a.CreatedAt.IsZero(), b.CreatedAt.IsZero()
	if az != bz {
		return bz
	}
	if !az && !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
