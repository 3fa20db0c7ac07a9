package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hivedesk/hivedesk/internal/chat"
)

// stallMarkReadTransport parks the first MarkRead call until released,
// standing in for a hung portal request.
type stallMarkReadTransport struct {
	*fakeTransport
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallMarkReadTransport() *stallMarkReadTransport {
	return &stallMarkReadTransport{
		fakeTransport: newFakeTransport(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (s *stallMarkReadTransport) MarkRead(ctx context.Context, counterpartID int64) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.fakeTransport.MarkRead(ctx, counterpartID)
}

func TestReadStateTracker_ActivateNotBlockedByInFlightMarkRead(t *testing.T) {
	tr := newStallMarkReadTransport()
	store := NewMessageStore()
	store.SetIdentity(chat.Identity{ID: 1, DisplayName: "Maria", Operator: true})
	store.SetMessages([]chat.Message{
		{ID: 1, SenderID: 5, ReceiverID: 1, Body: "hi", CreatedAt: loopBase, Read: false},
	})

	tracker := NewReadStateTracker(tr, store)
	tracker.Activate(5)

	processDone := make(chan struct{})
	go func() {
		tracker.Process(context.Background())
		close(processDone)
	}()
	<-tr.started

	activated := make(chan struct{})
	go func() {
		tracker.Activate(6)
		close(activated)
	}()
	select {
	case <-activated:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Activate blocked behind an in-flight mark-read call")
	}

	close(tr.release)
	<-processDone

	// The stale result must be discarded: counterpart 5 is no longer
	// active, so its messages keep their server-reported read state.
	require.Equal(t, []int64{1}, store.UnreadFrom(5))
}

func TestSyncLoop_SetActiveNotBlockedByInFlightMarkRead(t *testing.T) {
	tr := newStallMarkReadTransport()
	tr.setMessages(chat.Message{ID: 1, SenderID: 5, ReceiverID: 1, Body: "hi", CreatedAt: loopBase, Read: false})

	loop, sub := startLoop(t, tr)
	waitSnapshot(t, sub, func(s chat.SyncSnapshot) bool {
		return s.Conversation(5) != nil
	})

	loop.SetActive(5)
	<-tr.started

	switched := make(chan struct{})
	go func() {
		loop.SetActive(6)
		close(switched)
	}()
	select {
	case <-switched:
	case <-time.After(time.Second):
		t.Fatal("SetActive blocked behind an in-flight mark-read call")
	}

	close(tr.release)
}
