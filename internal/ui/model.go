// Package ui is the terminal window: a query box, a Send Query button and a
// transcript of everything the database process prints.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"queryconsole/internal/log"
	"queryconsole/internal/session"
)

const (
	windowTitle = "Interactive Query Interface"
	sendLabel   = "Send Query"
	sendZoneID  = "send-query"

	// EndedNotice is shown when a query is attempted after the child is gone.
	EndedNotice = "The program has ended.\nThe Database has been erased.\n"

	defaultPumpInterval = 100 * time.Millisecond
	defaultInputHeight  = 6
)

// Backend is the child process the window talks to.
type Backend interface {
	Start() (int, error)
	Alive() bool
	Send(query string) error
	Drain() []session.Message
	Terminate(ctx context.Context) error
	State() session.State
}

// Options configures the window.
type Options struct {
	// Name is the executable name used in startup messages.
	Name string
	// SessionID is shown in the header.
	SessionID string
	// PumpInterval is how often queued output is moved into the transcript.
	PumpInterval time.Duration
	// TerminateTimeout bounds how long closing the window waits on the child.
	TerminateTimeout time.Duration
	// InputHeight is the number of rows in the query box.
	InputHeight int
}

type focusArea int

const (
	focusInput focusArea = iota
	focusButton
)

type startedMsg struct {
	pid int
	err error
}

type pumpMsg time.Time

type terminatedMsg struct {
	err error
}

// Model is the bubbletea model for the window.
type Model struct {
	backend Backend
	opts    Options

	transcript string
	wrapped    string
	wrapWidth  int
	pid        int
	statusLine string
	focus      focusArea
	quitting   bool

	width  int
	height int

	input   textarea.Model
	output  viewport.Model
	spinner spinner.Model
	help    help.Model
	zones   *zone.Manager

	theme uiTheme
}

// New builds the window around backend. The backend is started by Init.
func New(backend Backend, opts Options) Model {
	if opts.PumpInterval <= 0 {
		opts.PumpInterval = defaultPumpInterval
	}
	if opts.TerminateTimeout <= 0 {
		opts.TerminateTimeout = session.DefaultTerminateTimeout
	}
	if opts.InputHeight < 1 {
		opts.InputHeight = defaultInputHeight
	}

	input := textarea.New()
	input.Placeholder = "Type a query, then press ctrl+s or Send Query."
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(opts.InputHeight)
	input.Focus()

	output := viewport.New(0, 0)
	output.MouseWheelEnabled = true
	output.MouseWheelDelta = 4

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	return Model{
		backend:    backend,
		opts:       opts,
		statusLine: "starting " + opts.Name + "...",
		focus:      focusInput,
		input:      input,
		output:     output,
		spinner:    sp,
		help:       help.New(),
		zones:      zone.New(),
		theme:      newTheme(),
	}
}

// Transcript returns everything shown in the output view so far.
func (m Model) Transcript() string {
	return m.transcript
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.startCmd(),
		pumpEvery(m.opts.PumpInterval),
		m.spinner.Tick,
		textarea.Blink,
	)
}

func (m Model) startCmd() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		pid, err := backend.Start()
		return startedMsg{pid: pid, err: err}
	}
}

func pumpEvery(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return pumpMsg(t)
	})
}

func (m Model) terminateCmd() tea.Cmd {
	backend := m.backend
	// Leave headroom past the backend's own kill deadline.
	deadline := m.opts.TerminateTimeout + 2*time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), deadline)
		defer cancel()
		return terminatedMsg{err: backend.Terminate(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case startedMsg:
		if msg.err != nil {
			m.reportStartFailure(msg.err)
			break
		}
		m.pid = msg.pid
		m.statusLine = fmt.Sprintf("%s running · pid %d", m.opts.Name, m.pid)
		log.Info(log.CatUI, "backend started", "pid", m.pid)
	case pumpMsg:
		m.pump()
		// Keep ticking after the child exits so its last output still lands.
		cmds = append(cmds, pumpEvery(m.opts.PumpInterval))
	case terminatedMsg:
		if msg.err != nil {
			log.ErrorErr(log.CatUI, "terminate failed", msg.err)
		}
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.rewrap()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.quitting {
			break
		}
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			if z := m.zones.Get(sendZoneID); z != nil && z.InBounds(msg) {
				m.dispatch()
				break
			}
		}
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m.beginQuit()
		case key.Matches(msg, keys.Send):
			m.dispatch()
			return m, nil
		case key.Matches(msg, keys.Focus):
			m.toggleFocus()
			return m, nil
		case key.Matches(msg, keys.ScrollUp):
			m.output.LineUp(max(1, m.output.Height/2))
			return m, nil
		case key.Matches(msg, keys.ScrollDown):
			m.output.LineDown(max(1, m.output.Height/2))
			return m, nil
		case key.Matches(msg, keys.Top):
			m.output.GotoTop()
			return m, nil
		case key.Matches(msg, keys.Bottom):
			m.output.GotoBottom()
			return m, nil
		}
		if m.focus == focusButton {
			if key.Matches(msg, keys.Press) {
				m.dispatch()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// dispatch forwards the query box to the child. Empty input is ignored, a
// dead child gets the ended notice, and the box is cleared only after a
// successful write.
func (m *Model) dispatch() {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return
	}
	if !m.backend.Alive() {
		log.Info(log.CatUI, "query dropped, backend not running", "state", m.backend.State())
		m.appendTranscript(EndedNotice)
		m.statusLine = m.opts.Name + " has ended"
		return
	}
	if err := m.backend.Send(query); err != nil {
		log.ErrorErr(log.CatUI, "send failed", err)
		m.appendTranscript(fmt.Sprintf("Error sending query: %v\n", err))
		m.statusLine = "error: send failed"
		return
	}
	m.input.Reset()
	m.statusLine = fmt.Sprintf("sent %d bytes", len(query)+1)
}

// pump moves every queued message into the transcript. Reports whether
// anything arrived.
func (m *Model) pump() bool {
	msgs := m.backend.Drain()
	if len(msgs) == 0 {
		return false
	}
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(msg.Format())
	}
	m.appendTranscript(b.String())
	log.Debug(log.CatUI, "pump drained", "count", len(msgs))
	return true
}

func (m *Model) reportStartFailure(err error) {
	if errors.Is(err, session.ErrTerminated) {
		// The window closed before the child was spawned.
		log.Info(log.CatUI, "start skipped, window closing")
		return
	}
	log.ErrorErr(log.CatUI, "backend start failed", err)
	if errors.Is(err, session.ErrExecutableNotFound) {
		m.appendTranscript(fmt.Sprintf("Error: Executable '%s' not found.\n", m.opts.Name))
		m.statusLine = "error: executable not found"
		return
	}
	m.appendTranscript(fmt.Sprintf("Failed to start %s: %v\n", m.opts.Name, err))
	m.statusLine = "error: start failed"
}

// appendTranscript wraps only the new text when the transcript so far ends on
// a line boundary at the current width; otherwise it rewraps everything.
func (m *Model) appendTranscript(text string) {
	tail := m.transcript == "" || strings.HasSuffix(m.transcript, "\n")
	m.transcript += text
	if tail && m.wrapWidth == m.output.Width {
		m.wrapped += wrapText(text, m.wrapWidth)
		m.showOutput()
		return
	}
	m.rewrap()
}

func (m *Model) rewrap() {
	m.wrapWidth = m.output.Width
	m.wrapped = wrapText(m.transcript, m.wrapWidth)
	m.showOutput()
}

func (m *Model) showOutput() {
	m.output.SetContent(m.wrapped)
	m.output.GotoBottom()
}

// wrapText breaks at spaces first, then hard-wraps tokens wider than width.
func wrapText(text string, width int) string {
	if width < 1 {
		return text
	}
	return wrap.String(wordwrap.String(text, width), width)
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusButton
		m.input.Blur()
		return
	}
	m.focus = focusInput
	m.input.Focus()
}

func (m Model) beginQuit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.input.Blur()
	m.statusLine = "closing " + m.opts.Name + "..."
	log.Info(log.CatUI, "window closing")
	return m, m.terminateCmd()
}

func (m *Model) resize() {
	contentWidth := max(40, m.width-4)
	m.input.SetWidth(max(20, contentWidth-4))
	m.help.Width = contentWidth

	// header(3) + input(rows+2) + button(3) + output frame(3) + footer(4)
	chrome := 3 + (m.opts.InputHeight + 2) + 3 + 3 + 4
	m.output.Width = max(20, contentWidth-4)
	m.output.Height = max(3, m.height-chrome)
}

func (m Model) View() string {
	contentWidth := max(40, m.width-4)

	out := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(contentWidth),
		m.theme.inputPanel.Width(contentWidth).Render(m.input.View()),
		m.renderButton(),
		m.renderOutput(contentWidth),
		m.renderFooter(contentWidth),
	)
	return m.zones.Scan(m.theme.root.Render(out))
}

func (m Model) renderHeader(width int) string {
	state := m.backend.State().String()
	stateStyle, ok := m.theme.stateStyle[state]
	if !ok {
		stateStyle = m.theme.helpText
	}
	segments := []string{
		m.theme.title.Render(windowTitle),
		"  ",
		stateStyle.Render("[" + state + "]"),
	}
	if m.backend.Alive() {
		segments = append(segments, " ", m.spinner.View())
	}
	if m.pid > 0 {
		segments = append(segments, m.theme.helpText.Render(fmt.Sprintf("  pid %d", m.pid)))
	}
	if m.opts.SessionID != "" {
		segments = append(segments, m.theme.helpText.Render("  session "+shortID(m.opts.SessionID)))
	}
	return m.theme.header.Width(width).Render(lipgloss.JoinHorizontal(lipgloss.Left, segments...))
}

func (m Model) renderButton() string {
	style := m.theme.button
	if m.focus == focusButton {
		style = m.theme.buttonFocus
	}
	return m.zones.Mark(sendZoneID, style.Render(sendLabel))
}

func (m Model) renderOutput(width int) string {
	title := m.theme.panelTitle.Render("Output")
	return m.theme.panel.Width(width).Render(title + "\n" + m.output.View())
}

func (m Model) renderFooter(width int) string {
	statusStyle := m.theme.status
	if strings.HasPrefix(m.statusLine, "error") {
		statusStyle = m.theme.errorStatus
	}
	return m.theme.footer.Width(width).Render(statusStyle.Render(m.statusLine) + "\n" + m.help.View(keys))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
