package engine

import (
	"testing"
	"time"

	"github.com/hivedesk/hivedesk/internal/chat"
)

func TestMessageStore_ReplacesBatch(t *testing.T) {
	s := NewMessageStore()
	s.SetMessages([]chat.Message{{ID: 1, SenderID: 5, ReceiverID: 1}})
	s.SetMessages([]chat.Message{{ID: 2, SenderID: 6, ReceiverID: 1}})

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].ID != 2 {
		t.Fatalf("SetMessages must replace, not merge: %#v", msgs)
	}
}

func TestMessageStore_CopiesOut(t *testing.T) {
	s := NewMessageStore()
	s.SetMessages([]chat.Message{{ID: 1, SenderID: 5, ReceiverID: 1, Body: "hi"}})

	got := s.Messages()
	got[0].Body = "mutated"
	if s.Messages()[0].Body != "hi" {
		t.Fatalf("Messages must return a copy")
	}
}

func TestMessageStore_ReadOverridesAndUnread(t *testing.T) {
	s := NewMessageStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.SetMessages([]chat.Message{
		{ID: 1, SenderID: 5, ReceiverID: 1, CreatedAt: now},
		{ID: 2, SenderID: 5, ReceiverID: 1, CreatedAt: now.Add(time.Minute)},
		{ID: 3, SenderID: 1, ReceiverID: 5, CreatedAt: now.Add(2 * time.Minute)},
	})

	unread := s.UnreadFrom(5)
	if len(unread) != 2 {
		t.Fatalf("expected messages 1,2 unread from 5, got %v", unread)
	}

	s.ApplyReadOverrides(map[int64]struct{}{1: {}, 2: {}})
	if left := s.UnreadFrom(5); len(left) != 0 {
		t.Fatalf("overrides must flip read state, still unread: %v", left)
	}
}

func TestMessageStore_Identity(t *testing.T) {
	s := NewMessageStore()
	if _, ok := s.Identity(); ok {
		t.Fatalf("identity must start unresolved")
	}
	s.SetIdentity(chat.Identity{ID: 7, DisplayName: "Ewa"})
	id, ok := s.Identity()
	if !ok || id.ID != 7 {
		t.Fatalf("unexpected identity: %#v ok=%v", id, ok)
	}
}
