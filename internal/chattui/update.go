package chattui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hivedesk/hivedesk/internal/chat"
)

const sendTimeout = 10 * time.Second

// defaultSubject mirrors the subject the web client stamps on thread
// replies.
const defaultSubject = "Chat reply"

type snapshotMsg struct {
	snap chat.SyncSnapshot
}

type syncClosedMsg struct{}

type sendResultMsg struct {
	err error
}

func waitSnapshot(sub <-chan chat.SyncSnapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return syncClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

func (m *Model) sendCmd(counterpartID int64, body string) tea.Cmd {
	loop := m.loop
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return sendResultMsg{err: loop.Send(ctx, counterpartID, defaultSubject, body)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.clampScroll()
		return m, nil
	case snapshotMsg:
		m.applySnapshot(typed.snap)
		m.clampScroll()
		return m, waitSnapshot(m.sub)
	case syncClosedMsg:
		return m, tea.Quit
	case sendResultMsg:
		m.sending = false
		m.sendErr = typed.err
		if typed.err == nil {
			m.input = ""
			m.jumpBottom()
		} else {
			m.log.Warn().Err(typed.err).Msg("send failed")
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "pgup":
		m.scrollBy(m.threadHeight() - 1)
		return m, nil
	case "pgdown":
		m.scrollBy(-(m.threadHeight() - 1))
		return m, nil
	case "end":
		m.jumpBottom()
		return m, nil
	}

	switch m.focus {
	case focusSearch:
		return m.handleSearchKey(msg)
	case focusInput:
		return m.handleInputKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		m.moveSelection(1)
		return m, nil
	case "k", "up":
		m.moveSelection(-1)
		return m, nil
	case "G":
		m.jumpBottom()
		return m, nil
	case "/":
		m.focus = focusSearch
		return m, nil
	case "tab":
		if m.snap.Active() != nil {
			m.focus = focusInput
		}
		return m, nil
	case "enter":
		return m, m.openSelected()
	}
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.focus = focusList
		return m, nil
	case tea.KeyBackspace:
		m.query = trimLastRune(m.query)
		m.refilter()
		return m, nil
	case tea.KeySpace:
		m.query += " "
		m.refilter()
		return m, nil
	case tea.KeyRunes:
		m.query += string(msg.Runes)
		m.refilter()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = focusList
		return m, nil
	case tea.KeyTab:
		m.focus = focusList
		return m, nil
	case tea.KeyEnter:
		return m, m.submitInput()
	case tea.KeyBackspace:
		m.input = trimLastRune(m.input)
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m *Model) openSelected() tea.Cmd {
	conv := m.selectedConversation()
	if conv == nil {
		return nil
	}
	if conv.CounterpartID != m.snap.ActiveCounterpartID {
		m.jumpBottom()
		m.loop.SetActive(conv.CounterpartID)
	}
	m.focus = focusInput
	return nil
}

// submitInput sends the composed message. The draft survives a failed
// send so the user can retry without retyping.
func (m *Model) submitInput() tea.Cmd {
	active := m.snap.Active()
	if active == nil || m.sending {
		return nil
	}
	body := strings.TrimSpace(m.input)
	if body == "" {
		return nil
	}
	m.sending = true
	m.sendErr = nil
	return m.sendCmd(active.CounterpartID, body)
}

func (m *Model) moveSelection(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
}

func (m *Model) scrollBy(delta int) {
	m.scrollUp += delta
	m.clampScroll()
	if m.AnchoredToBottom() {
		m.pending = 0
		m.anchor.Reset()
	}
}

func (m *Model) clampScroll() {
	max := m.maxScroll()
	if m.scrollUp > max {
		m.scrollUp = max
	}
	if m.scrollUp < 0 {
		m.scrollUp = 0
	}
}

func (m *Model) maxScroll() int {
	lines := len(m.threadLines())
	h := m.threadHeight()
	if lines <= h {
		return 0
	}
	return lines - h
}

func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return string(runes[:len(runes)-1])
}
