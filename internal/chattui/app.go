// Package chattui is the terminal chat client. It renders the
// conversation list and the active thread from engine snapshots and
// feeds scroll position back into the auto-scroll decision.
package chattui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/hivedesk/hivedesk/internal/chat"
	"github.com/hivedesk/hivedesk/internal/config"
	"github.com/hivedesk/hivedesk/internal/engine"
	"github.com/hivedesk/hivedesk/internal/logging"
)

type focusArea int

const (
	focusList focusArea = iota
	focusInput
	focusSearch
)

// Config carries everything the chat screen needs beyond the loop
// itself.
type Config struct {
	TUI   config.TUIConfig
	Title string
}

func (c Config) normalize() Config {
	if strings.TrimSpace(c.Title) == "" {
		c.Title = "hivedesk"
	}
	if c.TUI.AnchorRows < 0 {
		c.TUI.AnchorRows = 0
	}
	return c
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	cfg  Config
	loop *engine.SyncLoop
	log  zerolog.Logger

	sub   <-chan chat.SyncSnapshot
	unsub func()

	snap    chat.SyncSnapshot
	visible []chat.Conversation

	focus    focusArea
	selected int
	query    string

	input   string
	sendErr error
	sending bool

	anchor   *engine.ScrollAnchor
	scrollUp int
	pending  int

	width  int
	height int
}

// NewModel wires a model to an already started loop. The model owns its
// subscription and releases it in Close.
func NewModel(loop *engine.SyncLoop, cfg Config) *Model {
	m := &Model{
		cfg:  cfg.normalize(),
		loop: loop,
		log:  logging.Component("chattui"),
	}
	m.anchor = engine.NewScrollAnchor(m)
	m.sub, m.unsub = loop.Subscribe()
	m.applySnapshot(loop.Snapshot())
	return m
}

// Run starts the loop-backed chat screen and blocks until the user
// quits.
func Run(loop *engine.SyncLoop, cfg Config) error {
	model := NewModel(loop, cfg)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m *Model) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// AnchoredToBottom reports whether the thread viewport sits within the
// configured row threshold of the newest message. The sync engine calls
// this when deciding between auto-scroll and the pending-new counter.
func (m *Model) AnchoredToBottom() bool {
	return m.scrollUp <= m.cfg.TUI.AnchorRows
}

func (m *Model) Init() tea.Cmd {
	return waitSnapshot(m.sub)
}

func (m *Model) applySnapshot(snap chat.SyncSnapshot) {
	sameActive := snap.ActiveCounterpartID != 0 &&
		snap.ActiveCounterpartID == m.snap.ActiveCounterpartID
	prevLines := 0
	if sameActive {
		prevLines = len(m.threadLines())
	}

	m.snap = snap
	decision := m.anchor.Observe(snap)
	switch {
	case decision.FollowNewest:
		m.scrollUp = 0
	case sameActive && m.scrollUp > 0:
		// Appended lines shift the bottom-relative index. Grow the
		// offset by the same amount so the reader keeps looking at the
		// rows they were reading.
		if grown := len(m.threadLines()) - prevLines; grown > 0 {
			m.scrollUp += grown
		}
	}
	m.pending = decision.PendingNew
	m.refilter()
}

func (m *Model) refilter() {
	m.visible = chat.FilterConversations(m.snap.Conversations, m.query)
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) selectedConversation() *chat.Conversation {
	if m.selected < 0 || m.selected >= len(m.visible) {
		return nil
	}
	return &m.visible[m.selected]
}

func (m *Model) jumpBottom() {
	m.scrollUp = 0
	m.pending = 0
	m.anchor.Reset()
}
