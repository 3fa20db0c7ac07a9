package chat

import (
	"sort"
	"strings"
)

// Conversation is a derived per-counterpart view over the raw message
// set. It is rebuilt wholesale every reconcile cycle and never mutated
// in place, so snapshots handed to the UI stay stable.
type Conversation struct {
	CounterpartID   int64
	CounterpartName string
	// Messages is ordered oldest to newest by MessageLess.
	Messages    []Message
	LastMessage *Message
	Unread      bool
	UnreadCount int
	// Online mirrors the counterpart's roster presence flag; false when
	// the counterpart is not in the roster.
	Online bool
}

// SyncSnapshot is the engine output for one poll cycle. ActiveChanged
// and ActiveDelta describe what happened to the active conversation so
// the presentation layer can make its auto-scroll decision without
// diffing snapshots itself.
type SyncSnapshot struct {
	Conversations []Conversation
	// ActiveCounterpartID is zero when no conversation is active.
	ActiveCounterpartID int64
	// ActiveChanged reports whether the active conversation's content
	// differs from the previous cycle (message count, last message id,
	// or unread count).
	ActiveChanged bool
	// ActiveDelta is the change in the active conversation's message
	// count since the previous cycle; positive means new messages.
	ActiveDelta int
}

// Conversation returns the conversation for a counterpart, or nil.
func (s *SyncSnapshot) Conversation(counterpartID int64) *Conversation {
	for i := range s.Conversations {
		if s.Conversations[i].CounterpartID == counterpartID {
			return &s.Conversations[i]
		}
	}
	return nil
}

// Active returns the active conversation, or nil when none is set or
// the active counterpart disappeared from the roster.
func (s *SyncSnapshot) Active() *Conversation {
	if s.ActiveCounterpartID == 0 {
		return nil
	}
	return s.Conversation(s.ActiveCounterpartID)
}

// UnresolvedFunc is invoked for every message dropped from grouping
// because its counterpart could not be resolved. Callers typically log.
type UnresolvedFunc func(msg Message)

// Reconcile rebuilds the full conversation set from a polled message
// batch. Messages are grouped by resolved counterpart, contacts without
// traffic become empty placeholder conversations, and the list is
// ordered most-recently-active first with placeholders trailing in
// display-name order.
//
// prev carries the previous snapshot forward so the active conversation
// and its change signal survive the rebuild. Reconcile is pure and
// never fails outright: unattributable messages are skipped via
// onUnresolved, malformed timestamps sort last within their group.
func Reconcile(msgs []Message, contacts []Contact, local Identity, prev SyncSnapshot, onUnresolved UnresolvedFunc) SyncSnapshot {
	roster := NewContactSet(contacts)
	groups := make(map[int64][]Message)
	for _, m := range msgs {
		id, err := ResolveCounterpart(m, local.ID, roster)
		if err != nil {
			if onUnresolved != nil {
				onUnresolved(m)
			}
			continue
		}
		if id == local.ID {
			// Self-addressed traffic has no counterpart thread.
			continue
		}
		groups[id] = append(groups[id], m)
	}

	convs := make([]Conversation, 0, len(groups)+len(contacts))
	for id, ms := range groups {
		sort.SliceStable(ms, func(i, j int) bool { return MessageLess(ms[i], ms[j]) })
		conv := Conversation{
			CounterpartID:   id,
			CounterpartName: counterpartName(id, ms, roster),
			Messages:        ms,
		}
		if c, ok := roster[id]; ok {
			conv.Online = c.Online
		}
		last := ms[len(ms)-1]
		conv.LastMessage = &last
		for _, m := range ms {
			if !m.Read && m.SenderID == id {
				conv.UnreadCount++
			}
		}
		conv.Unread = conv.UnreadCount > 0
		convs = append(convs, conv)
	}

	for _, c := range contacts {
		if c.ID == local.ID {
			continue
		}
		if _, ok := groups[c.ID]; ok {
			continue
		}
		convs = append(convs, Conversation{
			CounterpartID:   c.ID,
			CounterpartName: c.DisplayName,
			Online:          c.Online,
		})
	}

	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i], convs[j]
		if (a.LastMessage != nil) != (b.LastMessage != nil) {
			return a.LastMessage != nil
		}
		if a.LastMessage != nil {
			// Most recent activity first.
			return MessageLess(*b.LastMessage, *a.LastMessage)
		}
		if a.CounterpartName != b.CounterpartName {
			return a.CounterpartName < b.CounterpartName
		}
		return a.CounterpartID < b.CounterpartID
	})

	next := SyncSnapshot{
		Conversations:       convs,
		ActiveCounterpartID: prev.ActiveCounterpartID,
	}
	if prev.ActiveCounterpartID != 0 {
		cur := next.Conversation(prev.ActiveCounterpartID)
		old := prev.Conversation(prev.ActiveCounterpartID)
		switch {
		case cur == nil:
			// Active counterpart vanished from the roster; deactivate
			// rather than point at a conversation that no longer exists.
			next.ActiveCounterpartID = 0
		case old == nil:
			next.ActiveChanged = true
			next.ActiveDelta = len(cur.Messages)
		default:
			next.ActiveChanged = activeDiffers(old, cur)
			next.ActiveDelta = len(cur.Messages) - len(old.Messages)
		}
	}
	return next
}

// activeDiffers reports whether the active conversation actually
// changed between cycles: message count, last message id, or unread
// count. Equal content means the caller should keep its existing
// conversation reference and skip downstream re-rendering.
func activeDiffers(old, cur *Conversation) bool {
	if len(old.Messages) != len(cur.Messages) {
		return true
	}
	if old.UnreadCount != cur.UnreadCount {
		return true
	}
	oldLast, curLast := int64(0), int64(0)
	if old.LastMessage != nil {
		oldLast = old.LastMessage.ID
	}
	if cur.LastMessage != nil {
		curLast = cur.LastMessage.ID
	}
	return oldLast != curLast
}

// counterpartName picks a display name for a grouped conversation:
// the roster name when known, else the denormalized name carried on
// whichever message side matches the counterpart.
func counterpartName(id int64, ms []Message, roster ContactSet) string {
	if c, ok := roster[id]; ok && c.DisplayName != "" {
		return c.DisplayName
	}
	for _, m := range ms {
		if m.SenderID == id && m.SenderName != "" {
			return m.SenderName
		}
		if m.ReceiverID == id && m.ReceiverName != "" {
			return m.ReceiverName
		}
	}
	return ""
}

// FilterConversations returns the conversations whose counterpart name
// contains the query, case-insensitively. An empty query returns the
// input unchanged.
func FilterConversations(convs []Conversation, query string) []Conversation {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return convs
	}
	out := make([]Conversation, 0, len(convs))
	for _, c := range convs {
		if strings.Contains(strings.ToLower(c.CounterpartName), query) {
			out = append(out, c)
		}
	}
	return out
}
