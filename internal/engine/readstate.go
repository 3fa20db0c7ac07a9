package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hivedesk/hivedesk/internal/logging"
)

// ReadStateTracker decides when the active conversation's messages get
// marked read and owns the optimistic read overrides applied to the
// store between the mark-read request and server confirmation.
//
// Mark-read requests are always scoped to one counterpart. Failures are
// logged and retried on the next tick; they never surface to the user.
type ReadStateTracker struct {
	transport Transport
	store     *MessageStore
	log       zerolog.Logger

	// mu guards activeID and marked: Activate runs on the caller's
	// goroutine, Process on the loop's.
	mu       sync.Mutex
	activeID int64
	// marked holds message IDs we already asked the server to mark
	// read, keeping the optimistic flip alive across poll cycles and
	// preventing duplicate requests for the same messages.
	marked map[int64]struct{}
}

// NewReadStateTracker wires the tracker to its transport and store.
func NewReadStateTracker(transport Transport, store *MessageStore) *ReadStateTracker {
	return &ReadStateTracker{
		transport: transport,
		store:     store,
		log:       logging.Component("readstate"),
		marked:    make(map[int64]struct{}),
	}
}

// Activate records a conversation switch. Overrides scoped to the
// previous counterpart are dropped; its unread state is whatever the
// server last confirmed.
func (t *ReadStateTracker) Activate(counterpartID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeID == counterpartID {
		return
	}
	t.activeID = counterpartID
	t.marked = make(map[int64]struct{})
}

// Process runs once per tick, after a freshly fetched batch landed in
// the store and before reconciliation reads it. It issues at most one
// scoped mark-read call covering every unread message from the active
// counterpart, then applies the optimistic flips so the reconcile that
// follows already sees them as read.
//
// The store content is raw server state at this point, so overrides
// the server has since confirmed are pruned here first.
//
// The lock is released around the MarkRead network call: Activate runs
// on the UI's event goroutine and must never wait on a slow or hung
// request. A result landing after the active conversation switched is
// discarded.
func (t *ReadStateTracker) Process(ctx context.Context) {
	t.mu.Lock()
	t.pruneConfirmed()

	activeID := t.activeID
	if activeID == 0 {
		t.mu.Unlock()
		return
	}

	unread := t.store.UnreadFrom(activeID)
	pending := make([]int64, 0, len(unread))
	for _, id := range unread {
		if _, ok := t.marked[id]; !ok {
			pending = append(pending, id)
		}
	}
	t.mu.Unlock()

	var markErr error
	if len(pending) > 0 {
		markErr = t.transport.MarkRead(ctx, activeID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeID != activeID {
		// Stale: the user switched conversations while the request was
		// in flight. Activate already reset the override set.
		return
	}
	if len(pending) > 0 {
		if markErr != nil {
			// Retried next tick: the messages stay out of marked, so
			// they count as pending again.
			t.log.Warn().Err(markErr).Int64("counterpart_id", activeID).Msg("mark-read failed")
		} else {
			for _, id := range pending {
				t.marked[id] = struct{}{}
			}
			t.log.Debug().Int64("counterpart_id", activeID).Int("messages", len(pending)).Msg("marked conversation read")
		}
	}
	t.store.ApplyReadOverrides(t.marked)
}

// pruneConfirmed drops overrides for messages the latest batch already
// reports as read, so the marked set does not grow without bound over a
// long session.
func (t *ReadStateTracker) pruneConfirmed() {
	if len(t.marked) == 0 {
		return
	}
	for _, m := range t.store.Messages() {
		if m.Read {
			delete(t.marked, m.ID)
		}
	}
}
