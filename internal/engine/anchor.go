package engine

import "github.com/hivedesk/hivedesk/internal/chat"

// BottomProber reports whether the viewer is currently within the
// anchor threshold of the newest message. The presentation layer owns
// the actual measurement; the engine never sees rendering concepts.
type BottomProber interface {
	AnchoredToBottom() bool
}

// ScrollDecision is the outcome of one snapshot for the active view:
// either follow the newest message, or leave the scroll position alone
// and surface a "new messages" count instead.
type ScrollDecision struct {
	FollowNewest bool
	PendingNew   int
}

// ScrollAnchor gates auto-scroll on snapshot updates. Auto-scroll is
// only authorized when the viewer was already at the bottom before the
// update; yanking the position out from under a reading user is a
// correctness bug in a polling chat view, not a cosmetic one.
type ScrollAnchor struct {
	prober     BottomProber
	pendingNew int
}

// NewScrollAnchor builds an anchor around a bottom-probing capability.
func NewScrollAnchor(prober BottomProber) *ScrollAnchor {
	return &ScrollAnchor{prober: prober}
}

// Observe consumes one snapshot and decides what the view should do.
// Call it before re-rendering, while the probe still measures the
// pre-update position.
func (a *ScrollAnchor) Observe(snap chat.SyncSnapshot) ScrollDecision {
	if !snap.ActiveChanged || snap.ActiveDelta <= 0 {
		return ScrollDecision{PendingNew: a.pendingNew}
	}
	if a.prober != nil && a.prober.AnchoredToBottom() {
		a.pendingNew = 0
		return ScrollDecision{FollowNewest: true}
	}
	a.pendingNew += snap.ActiveDelta
	return ScrollDecision{PendingNew: a.pendingNew}
}

// Reset clears pending state, e.g. when the user switches conversation
// or jumps to the newest message themselves.
func (a *ScrollAnchor) Reset() {
	a.pendingNew = 0
}

// PendingNew returns the count of arrivals not yet scrolled into view.
func (a *ScrollAnchor) PendingNew() int {
	return a.pendingNew
}
