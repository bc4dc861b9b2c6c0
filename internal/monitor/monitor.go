package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// maxLines bounds the tail buffer shown in the terminal
const maxLines = 200

// keyMap defines key bindings for the monitor
type keyMap struct {
	Token    key.Binding
	Patients key.Binding
	Clear    key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Token, k.Patients, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Token, k.Patients, k.Clear, k.Quit},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Token: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "request token"),
		),
		Patients: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "list patients"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Messages produced by the background WebSocket reader
type connectedMsg struct {
	conn *websocket.Conn
}

type lineMsg struct {
	text string
}

type disconnectedMsg struct {
	err error
}

// Model is the bubbletea model for the live monitor. It connects to the
// bridge's /ws endpoint and tails everything the bridge broadcasts,
// exactly as a clinician-facing client would see it.
type Model struct {
	url  string
	conn *websocket.Conn

	lines     []string
	connected bool
	lastError error

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width  int
	height int
}

// NewModel creates a monitor model targeting the given WebSocket URL
func NewModel(url string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return Model{
		url:     url,
		spinner: s,
		help:    help.New(),
		keys:    defaultKeyMap(),
	}
}

// Init starts the spinner and kicks off the connection attempt
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, connectCmd(m.url))
}

// connectCmd dials the bridge's WebSocket endpoint
func connectCmd(url string) tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return disconnectedMsg{err: err}
		}
		return connectedMsg{conn: conn}
	}
}

// readCmd waits for the next broadcast frame from the bridge.
// Each read schedules the next one from Update, keeping a single
// reader on the connection.
func readCmd(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return disconnectedMsg{err: err}
		}
		return lineMsg{text: string(data)}
	}
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.conn != nil {
				_ = m.conn.Close()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Token):
			return m, m.sendCmd("token")

		case key.Matches(msg, m.keys.Patients):
			return m, m.sendCmd("patients")

		case key.Matches(msg, m.keys.Clear):
			m.lines = nil
			return m, nil
		}
		return m, nil

	case connectedMsg:
		m.conn = msg.conn
		m.connected = true
		m.lastError = nil
		return m, readCmd(m.conn)

	case lineMsg:
		m.appendLine(msg.text)
		return m, readCmd(m.conn)

	case disconnectedMsg:
		m.connected = false
		m.lastError = msg.err
		m.conn = nil
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// sendCmd writes a command frame to the bridge
func (m Model) sendCmd(text string) tea.Cmd {
	conn := m.conn
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			return disconnectedMsg{err: err}
		}
		return nil
	}
}

// appendLine adds a broadcast frame to the tail buffer, trimming old entries
func (m *Model) appendLine(text string) {
	m.lines = append(m.lines, text)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

// View renders the monitor
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(BuildHeaderContent(m.url))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	b.WriteString(m.renderTail())
	b.WriteString("\n")

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")

	return b.String()
}

// renderStatus renders the connection status line
func (m Model) renderStatus() string {
	if m.connected {
		return ConnectedStyle.Render("● connected")
	}
	if m.lastError != nil {
		return DisconnectedStyle.Render("● disconnected") +
			" " + ErrorStyle.Render(m.lastError.Error())
	}
	return m.spinner.View() + StatusStyle.Render(" connecting...")
}

// renderTail renders the broadcast tail inside a bordered box
func (m Model) renderTail() string {
	visible := m.visibleLines()
	if len(visible) == 0 {
		return TailBoxStyle.Render(StatusStyle.Render("waiting for data..."))
	}

	var b strings.Builder
	for i, line := range visible {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(styleLine(line))
	}
	return TailBoxStyle.Render(b.String())
}

// visibleLines returns the slice of the buffer that fits the terminal
func (m Model) visibleLines() []string {
	// Header, status, help and box borders take roughly 8 rows
	rows := m.height - 8
	if rows < 5 {
		rows = 5
	}
	if len(m.lines) <= rows {
		return m.lines
	}
	return m.lines[len(m.lines)-rows:]
}

// styleLine picks a style based on the frame's shape. Device telemetry
// is plain JSON acks; backend replies and token acks get highlighted.
func styleLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, "\"token\"") {
		return ReplyStyle.Render(line)
	}
	if strings.HasPrefix(trimmed, "[") {
		return ReplyStyle.Render(line)
	}
	return LineStyle.Render(line)
}

// Run connects to the bridge at the given host and port and runs the
// monitor until the user quits.
func Run(host string, port int) error {
	url := fmt.Sprintf("ws://%s:%d/ws", host, port)
	p := tea.NewProgram(NewModel(url), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
