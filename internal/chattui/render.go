package chattui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hivedesk/hivedesk/internal/chat"
)

const (
	minListWidth = 24
	maxListWidth = 36
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	unreadStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	senderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	ownStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	pendingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("203"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	borderStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderRight(true).BorderForeground(lipgloss.Color("238"))
)

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	title := titleStyle.Render(m.cfg.Title)
	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		borderStyle.Render(m.renderList(m.listWidth(), m.bodyHeight())),
		m.renderThread(m.threadWidth(), m.bodyHeight()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, title, body, m.renderInput(), m.renderStatus())
}

func (m *Model) listWidth() int {
	w := m.width / 3
	if w < minListWidth {
		w = minListWidth
	}
	if w > maxListWidth {
		w = maxListWidth
	}
	if w > m.width-10 {
		w = maxInt(1, m.width-10)
	}
	return w
}

func (m *Model) threadWidth() int {
	// One column for the pane border.
	return maxInt(1, m.width-m.listWidth()-1)
}

func (m *Model) bodyHeight() int {
	// Title, input bar and status bar each take one row.
	return maxInt(1, m.height-3)
}

func (m *Model) threadHeight() int {
	return m.bodyHeight()
}

func (m *Model) renderList(width, height int) string {
	lines := make([]string, 0, height)
	if m.focus == focusSearch || m.query != "" {
		lines = append(lines, truncate("search: "+m.query+"▌", width))
	}
	for i, conv := range m.visible {
		if len(lines) >= height {
			break
		}
		lines = append(lines, m.renderListEntry(i, conv, width))
	}
	if len(m.visible) == 0 {
		lines = append(lines, dimStyle.Render(truncate("no conversations", width)))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines[:height], "\n"))
}

func (m *Model) renderListEntry(idx int, conv chat.Conversation, width int) string {
	marker := "  "
	if conv.CounterpartID == m.snap.ActiveCounterpartID {
		marker = "> "
	}
	badge := ""
	if conv.UnreadCount > 0 {
		badge = fmt.Sprintf(" (%d)", conv.UnreadCount)
	}
	if conv.Online {
		badge += " ●"
	}
	preview := "no messages yet"
	if conv.LastMessage != nil {
		preview = firstLine(conv.LastMessage.Body)
	}

	name := truncate(marker+conv.CounterpartName+badge, width)
	line := truncate(name+" · "+preview, width)
	switch {
	case idx == m.selected && m.focus == focusList:
		return selectedStyle.Render(padRight(line, width))
	case conv.Unread:
		return unreadStyle.Render(line)
	default:
		return line
	}
}

func (m *Model) renderThread(width, height int) string {
	lines := m.threadLines()
	if len(lines) == 0 {
		hint := "select a conversation and press enter"
		if m.snap.Active() != nil {
			hint = "no messages yet, say hello"
		}
		return lipgloss.NewStyle().Width(width).Height(height).Render(dimStyle.Render(hint))
	}

	window := append([]string(nil), m.threadWindow(lines, height)...)

	if m.pending > 0 && len(window) > 0 {
		note := fmt.Sprintf(" new messages (%d) · end to jump ", m.pending)
		window[len(window)-1] = pendingStyle.Render(truncate(note, width))
	}
	for len(window) < height {
		window = append(window, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(window, "\n"))
}

// threadWindow slices the visible rows out of the full thread, counting
// scrollUp rows back from the newest line.
func (m *Model) threadWindow(lines []string, height int) []string {
	end := len(lines) - m.scrollUp
	if end > len(lines) {
		end = len(lines)
	}
	if end < 0 {
		end = 0
	}
	start := end - height
	if start < 0 {
		start = 0
	}
	return lines[start:end]
}

// threadLines flattens the active conversation into display rows,
// oldest first, wrapped to the thread pane width.
func (m *Model) threadLines() []string {
	active := m.snap.Active()
	if active == nil {
		return nil
	}
	width := maxInt(8, m.threadWidth()-2)

	lines := make([]string, 0, len(active.Messages)*3)
	for _, msg := range active.Messages {
		lines = append(lines, m.renderMessageHeader(msg, active.CounterpartID, width))
		for _, row := range wrapText(msg.Body, width) {
			lines = append(lines, "  "+row)
		}
		lines = append(lines, "")
	}
	return lines
}

func (m *Model) renderMessageHeader(msg chat.Message, counterpartID int64, width int) string {
	style := ownStyle
	name := "me"
	if msg.SenderID == counterpartID {
		style = senderStyle
		name = msg.SenderName
		if name == "" {
			name = fmt.Sprintf("user %d", msg.SenderID)
		}
	}
	header := style.Render(truncate(name, width))
	if m.cfg.TUI.ShowTimestamps && !msg.CreatedAt.IsZero() {
		header += dimStyle.Render("  " + msg.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	return header
}

func (m *Model) renderInput() string {
	prompt := dimStyle.Render("∅ open a conversation to write")
	if m.snap.Active() != nil {
		cursor := ""
		if m.focus == focusInput {
			cursor = "▌"
		}
		prompt = "> " + m.input + cursor
	}
	return truncate(prompt, m.width)
}

func (m *Model) renderStatus() string {
	parts := []string{"enter open · tab write · / search · pgup/pgdn scroll · q quit"}
	if m.sending {
		parts = append(parts, "sending…")
	}
	if m.sendErr != nil {
		parts = append(parts, errStyle.Render("send failed: "+m.sendErr.Error()))
	}
	return dimStyle.Render(truncate(strings.Join(parts, "  "), m.width))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func wrapText(s string, width int) []string {
	var out []string
	for _, para := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return out
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

func padRight(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
