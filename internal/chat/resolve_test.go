package chat

import (
	"errors"
	"testing"
)

func testRoster() ContactSet {
	return NewContactSet([]Contact{
		{ID: 5, DisplayName: "Anna Kowalska"},
		{ID: 6, DisplayName: "Piotr Nowak"},
		{ID: 2, DisplayName: "Maria Dyrektor", Operator: true},
	})
}

func TestResolveCounterpart_Inbound(t *testing.T) {
	msg := Message{ID: 1, SenderID: 5, ReceiverID: 1}
	got, err := ResolveCounterpart(msg, 1, testRoster())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected counterpart 5, got %d", got)
	}
}

func TestResolveCounterpart_Outbound(t *testing.T) {
	msg := Message{ID: 2, SenderID: 1, ReceiverID: 6}
	got, err := ResolveCounterpart(msg, 1, testRoster())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6 {
		t.Fatalf("expected counterpart 6, got %d", got)
	}
}

func TestResolveCounterpart_PeerOperatorReceivedFromParent(t *testing.T) {
	// Local identity is operator 1; operator 2 received a message from
	// parent 5. The thread belongs to the parent.
	msg := Message{ID: 3, SenderID: 5, ReceiverID: 2}
	got, err := ResolveCounterpart(msg, 1, testRoster())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected counterpart 5, got %d", got)
	}
}

func TestResolveCounterpart_PeerOperatorSentToParent(t *testing.T) {
	msg := Message{ID: 4, SenderID: 2, ReceiverID: 6}
	got, err := ResolveCounterpart(msg, 1, testRoster())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6 {
		t.Fatalf("expected counterpart 6, got %d", got)
	}
}

func TestResolveCounterpart_Ambiguous(t *testing.T) {
	// Neither side is local and neither side is a known non-operator.
	msg := Message{ID: 5, SenderID: 40, ReceiverID: 41}
	_, err := ResolveCounterpart(msg, 1, testRoster())
	if !errors.Is(err, ErrAmbiguousAttribution) {
		t.Fatalf("expected ErrAmbiguousAttribution, got %v", err)
	}
}
