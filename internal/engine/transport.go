// Package engine implements the conversation sync engine: a polling
// loop that turns the portal's flat message feed into per-counterpart
// conversation snapshots with correct read state.
package engine

import (
	"context"

	"github.com/hivedesk/hivedesk/internal/chat"
)

// RoleFilter narrows a contact roster fetch by account role.
type RoleFilter int

const (
	RoleAny RoleFilter = iota
	// RoleParent selects non-operator accounts (the parent roster).
	RoleParent
	// RoleOperator selects staff accounts sharing the institution inbox.
	RoleOperator
)

// Transport is the injected network boundary. Every call is a
// suspension point; the engine performs no I/O outside of it.
type Transport interface {
	// FetchMessages returns all messages visible to the local identity,
	// both directions.
	FetchMessages(ctx context.Context) ([]chat.Message, error)

	// FetchContacts returns known counterparties, optionally filtered
	// by role.
	FetchContacts(ctx context.Context, role RoleFilter) ([]chat.Contact, error)

	// FetchIdentity resolves the local identity. Called once at startup.
	FetchIdentity(ctx context.Context) (chat.Identity, error)

	// MarkRead marks all messages from one counterpart as read. Scoped
	// on purpose: a shared operator inbox must never mark another
	// operator's threads read as a side effect.
	MarkRead(ctx context.Context, counterpartID int64) error

	// Send delivers a message to a counterpart.
	Send(ctx context.Context, counterpartID int64, subject, body string) error
}
