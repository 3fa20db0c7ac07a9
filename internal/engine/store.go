package engine

import (
	"sync"

	"github.com/hivedesk/hivedesk/internal/chat"
)

// MessageStore holds the most recently fetched raw message set and the
// local identity. The sync loop owns it; the read-state tracker is the
// only other writer, and only through ApplyReadOverrides.
type MessageStore struct {
	mu       sync.RWMutex
	messages []chat.Message
	identity chat.Identity
	resolved bool
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// SetIdentity records the local identity after the startup fetch.
func (s *MessageStore) SetIdentity(id chat.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.resolved = true
}

// Identity returns the local identity and whether it has been resolved.
func (s *MessageStore) Identity() (chat.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.resolved
}

// SetMessages replaces the raw message set with a freshly fetched batch.
func (s *MessageStore) SetMessages(msgs []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages[:0:0], msgs...)
}

// Messages returns a copy of the current raw message set.
func (s *MessageStore) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Message(nil), s.messages...)
}

// ApplyReadOverrides flips Read on every stored message whose ID is in
// ids. Used for optimistic read state while a scoped mark-read awaits
// server confirmation.
func (s *MessageStore) ApplyReadOverrides(ids map[int64]struct{}) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if _, ok := ids[s.messages[i].ID]; ok {
			s.messages[i].Read = true
		}
	}
}

// UnreadFrom returns the IDs of unread messages authored by the given
// counterpart.
func (s *MessageStore) UnreadFrom(counterpartID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for _, m := range s.messages {
		if m.SenderID == counterpartID && !m.Read {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
