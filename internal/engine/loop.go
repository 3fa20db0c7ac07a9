package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivedesk/hivedesk/internal/chat"
	"github.com/hivedesk/hivedesk/internal/logging"
)

// Loop errors.
var (
	// ErrNotRunning is returned by Stop when the loop never started.
	ErrNotRunning = errors.New("sync loop not running")
)

const defaultSubscribeBuffer = 16

// Config tunes a SyncLoop.
type Config struct {
	// PollInterval is the scheduled tick cadence. Default: 3s.
	PollInterval time.Duration

	// SubscribeBuffer is the per-subscriber channel depth. Default: 16.
	SubscribeBuffer int
}

// SyncLoop owns the polling cadence and the current SyncSnapshot. One
// loop exists per session; it is the only component that runs
// reconciliation and the only publisher of snapshots.
type SyncLoop struct {
	cfg       Config
	transport Transport
	store     *MessageStore
	tracker   *ReadStateTracker
	log       zerolog.Logger

	mu       sync.Mutex
	state    loopState
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	activeID int64
	contacts []chat.Contact
	snapshot chat.SyncSnapshot
	nextSub  int
	subs     map[int]chan chat.SyncSnapshot

	// tickc carries tick requests to the single processor goroutine.
	// Capacity one: a tick arriving while another is being processed is
	// queued, and further requests coalesce into that pending one.
	tickc chan struct{}
}

type loopState int

const (
	stateIdle loopState = iota
	stateRunning
	stateStopped
)

// NewSyncLoop builds a loop around an injected transport.
func NewSyncLoop(cfg Config, transport Transport) *SyncLoop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.SubscribeBuffer <= 0 {
		cfg.SubscribeBuffer = defaultSubscribeBuffer
	}
	store := NewMessageStore()
	return &SyncLoop{
		cfg:       cfg,
		transport: transport,
		store:     store,
		tracker:   NewReadStateTracker(transport, store),
		log:       logging.Component("syncloop"),
		subs:      make(map[int]chan chat.SyncSnapshot),
		tickc:     make(chan struct{}, 1),
	}
}

// Start launches the polling loop. Calling Start while already running
// is a no-op; the loop is typically started from a mount path that may
// re-invoke. A stopped loop cannot be restarted.
func (l *SyncLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case stateRunning:
		return nil
	case stateStopped:
		return chat.ErrStopped
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.state = stateRunning

	l.log.Info().Dur("poll_interval", l.cfg.PollInterval).Msg("sync loop starting")

	l.wg.Add(2)
	go l.schedule(runCtx)
	go l.process(runCtx)

	// First fetch happens immediately, not one interval from now.
	l.requestTick()
	return nil
}

// Stop cancels the loop. No tick fires and no snapshot is published
// after Stop returns; an in-flight fetch completing afterwards is
// discarded.
func (l *SyncLoop) Stop() error {
	l.mu.Lock()
	if l.state != stateRunning {
		state := l.state
		l.mu.Unlock()
		if state == stateStopped {
			return nil
		}
		return ErrNotRunning
	}
	l.state = stateStopped
	cancel := l.cancel
	l.mu.Unlock()

	cancel()
	l.wg.Wait()

	l.mu.Lock()
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
	l.mu.Unlock()

	l.log.Info().Msg("sync loop stopped")
	return nil
}

// Send delivers a message and kicks one immediate out-of-band tick so
// the sender sees their own message without waiting a full interval.
// A failed send is returned to the caller untouched: the UI keeps the
// typed text and the user decides whether to resend.
func (l *SyncLoop) Send(ctx context.Context, counterpartID int64, subject, body string) error {
	l.mu.Lock()
	state := l.state
	l.mu.Unlock()
	if state == stateStopped {
		return chat.ErrStopped
	}
	if _, ok := l.store.Identity(); !ok {
		// No snapshot exists before the first identity fetch, so there
		// is no counterpart a caller could legitimately address yet.
		return chat.ErrNoIdentity
	}

	if err := l.transport.Send(ctx, counterpartID, subject, body); err != nil {
		l.log.Warn().Err(err).Int64("counterpart_id", counterpartID).Msg("send failed")
		return err
	}
	l.requestTick()
	return nil
}

// SetActive switches the active conversation. The change is reflected
// in the local snapshot immediately and a tick is kicked so the scoped
// mark-read goes out promptly.
func (l *SyncLoop) SetActive(counterpartID int64) {
	l.mu.Lock()
	l.activeID = counterpartID
	l.tracker.Activate(counterpartID)
	local, ok := l.store.Identity()
	if ok {
		prev := l.snapshot
		prev.ActiveCounterpartID = counterpartID
		l.snapshot = chat.Reconcile(l.store.Messages(), l.contacts, local, prev, l.logUnresolved)
		l.publishLocked()
	}
	l.mu.Unlock()

	l.requestTick()
}

// Snapshot returns the current snapshot.
func (l *SyncLoop) Snapshot() chat.SyncSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot
}

// Subscribe registers a snapshot consumer. The returned cancel func
// unregisters it; the channel closes on Stop. Slow consumers miss
// intermediate snapshots rather than block the loop.
func (l *SyncLoop) Subscribe() (<-chan chat.SyncSnapshot, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateStopped {
		// A ranging consumer must terminate, same as subscribers that
		// existed when Stop closed their channels.
		ch := make(chan chat.SyncSnapshot)
		close(ch)
		return ch, func() {}
	}

	id := l.nextSub
	l.nextSub++
	ch := make(chan chat.SyncSnapshot, l.cfg.SubscribeBuffer)
	l.subs[id] = ch

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// schedule turns the wall-clock interval into tick requests.
func (l *SyncLoop) schedule(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.requestTick()
		}
	}
}

// process is the single consumer of tick requests: at most one
// reconciliation runs at a time, and snapshots are published in the
// order their fetches completed.
func (l *SyncLoop) process(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.tickc:
			l.tick(ctx)
		}
	}
}

// requestTick enqueues a tick. With the processor busy, one request
// stays pending and any further ones coalesce into it.
func (l *SyncLoop) requestTick() {
	select {
	case l.tickc <- struct{}{}:
	default:
	}
}

// tick runs one full poll cycle: fetch, read-state processing,
// reconcile, publish. Transport failure keeps the previous snapshot;
// stale-but-consistent beats flashing the view empty.
func (l *SyncLoop) tick(ctx context.Context) {
	local, ok := l.store.Identity()
	if !ok {
		id, err := l.transport.FetchIdentity(ctx)
		if err != nil {
			l.log.Warn().Err(err).Msg("identity fetch failed")
			return
		}
		l.store.SetIdentity(id)
		local = id
		userLog := logging.WithUser(id.ID)
		userLog.Info().Bool("operator", id.Operator).Msg("local identity resolved")
	}

	msgs, err := l.transport.FetchMessages(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("message fetch failed, keeping previous snapshot")
		return
	}

	role := RoleOperator
	if local.Operator {
		role = RoleParent
	}
	contacts, err := l.transport.FetchContacts(ctx, role)
	if err != nil {
		l.log.Warn().Err(err).Msg("contact fetch failed, keeping previous snapshot")
		return
	}

	if ctx.Err() != nil {
		// Stopped while fetching: the result is stale, drop it.
		return
	}

	l.store.SetMessages(msgs)
	l.tracker.Process(ctx)

	l.mu.Lock()
	l.contacts = append(contacts[:0:0], contacts...)
	prev := l.snapshot
	prev.ActiveCounterpartID = l.activeID
	l.snapshot = chat.Reconcile(l.store.Messages(), l.contacts, local, prev, l.logUnresolved)
	if ctx.Err() == nil {
		l.publishLocked()
	}
	l.mu.Unlock()
}

func (l *SyncLoop) publishLocked() {
	for _, ch := range l.subs {
		select {
		case ch <- l.snapshot:
		default:
		}
	}
}

func (l *SyncLoop) logUnresolved(m chat.Message) {
	l.log.Debug().
		Int64("message_id", m.ID).
		Int64("sender", m.SenderID).
		Int64("receiver", m.ReceiverID).
		Msg("dropping message with ambiguous attribution")
}
