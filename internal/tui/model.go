// Package tui is the interactive terminal timer screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/engine"
	"github.com/vburojevic/rounds/internal/intensity"
	"github.com/vburojevic/rounds/internal/output"
)

// Session is what the screen drives.
type Session interface {
	ID() string
	Config() domain.SessionConfig
	State() domain.SessionState
	Subscribe(buffer int) (<-chan engine.Event, func())
	Apply(ctx context.Context, cmd command.Command) (command.Result, error)
	RecordIntensity(ctx context.Context, input string) (command.Result, error)
}

type keyMap struct {
	Toggle  key.Binding
	Start   key.Binding
	Skip    key.Binding
	End     key.Binding
	Voice   key.Binding
	Abandon key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
	Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
	Skip:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "skip")),
	End:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end")),
	Voice:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "voice")),
	Abandon: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "abandon")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type eventMsg engine.Event

type closedMsg struct{}

type resultMsg struct {
	res command.Result
	err error
}

// Model is the bubbletea model for one session.
type Model struct {
	sess   Session
	events <-chan engine.Event
	cancel func()

	cfg    domain.SessionConfig
	state  domain.SessionState
	bar    progress.Model
	notice string
	err    string
	cue    string
	width  int
	closed bool
}

// New builds the screen and subscribes to sess.
func New(sess Session) Model {
	events, cancel := sess.Subscribe(64)
	return Model{
		sess:   sess,
		events: events,
		cancel: cancel,
		cfg:    sess.Config(),
		state:  sess.State(),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Init starts listening for session events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) send(cmd command.Command) tea.Cmd {
	return func() tea.Msg {
		res, err := m.sess.Apply(context.Background(), cmd)
		return resultMsg{res: res, err: err}
	}
}

func (m Model) score(input string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.sess.RecordIntensity(context.Background(), input)
		return resultMsg{res: res, err: err}
	}
}

// Update handles keys and session events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-8))
		return m, nil

	case eventMsg:
		switch {
		case msg.State != nil:
			m.state = m.sess.State()
		case msg.Cue != nil:
			m.cue = msg.Cue.Phrase
		case msg.Notice != nil:
			m.notice = msg.Notice.Message
		}
		return m, waitForEvent(m.events)

	case closedMsg:
		m.closed = true
		m.state = m.sess.State()
		return m, nil

	case resultMsg:
		m.err = ""
		if msg.err != nil {
			m.err = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	if m.closed {
		return m, nil
	}

	if m.state.Phase == domain.PhaseAwaitingIntensity {
		for _, c := range intensity.Choices(m.cfg.Scale) {
			if msg.String() == c.Key {
				return m, m.score(c.Key)
			}
		}
	}

	switch {
	case key.Matches(msg, keys.Toggle):
		kind := command.Pause
		if !m.state.IsRunning {
			kind = command.Resume
		}
		if m.state.Phase == domain.PhaseIdle {
			kind = command.Start
		}
		return m, m.send(command.Command{Kind: kind})
	case key.Matches(msg, keys.Start):
		return m, m.send(command.Command{Kind: command.Start})
	case key.Matches(msg, keys.Skip):
		return m, m.send(command.Command{Kind: command.SkipForward})
	case key.Matches(msg, keys.End):
		return m, m.send(command.Command{Kind: command.EndSession})
	case key.Matches(msg, keys.Voice):
		return m, m.send(command.Command{Kind: command.SetVoiceEnabled, Enabled: !m.state.VoiceEnabled})
	case key.Matches(msg, keys.Abandon):
		return m, m.send(command.Command{Kind: command.Abandon})
	}
	return m, nil
}

// State is the last state the screen rendered.
func (m Model) State() domain.SessionState { return m.state }

func (m Model) fraction() float64 {
	var total int
	switch m.state.Phase {
	case domain.PhaseWorking:
		total = m.cfg.RoundDurationSeconds
	case domain.PhaseResting:
		total = m.cfg.RestDurationSeconds
	default:
		return 0
	}
	if total <= 0 {
		return 0
	}
	return float64(total-m.state.TimeRemainingSeconds) / float64(total)
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder
	st := m.state

	b.WriteString(titleStyle.Render("rounds") + "  " + helpStyle.Render(m.sess.ID()) + "\n\n")

	label := output.PhaseLabel(st.Phase)
	if st.CurrentRound > 0 {
		label += fmt.Sprintf("  ROUND %d/%d", st.CurrentRound, m.cfg.RoundCount)
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(phaseColor(st.Phase)).Render(label) + "\n")

	big := output.Clock(st.TimeRemainingSeconds)
	if st.Phase.Timed() && !st.IsRunning {
		big += "  ‖"
	}
	b.WriteString(clockStyle.BorderForeground(phaseColor(st.Phase)).Render(big) + "\n")

	if st.Phase.Timed() {
		b.WriteString(m.bar.ViewAs(m.fraction()) + "\n")
	}
	if focus := m.cfg.FocusLabel(st.CurrentRound); focus != "" && st.Phase == domain.PhaseWorking {
		b.WriteString(focusStyle.Render(focus) + "\n")
	}

	switch st.Phase {
	case domain.PhaseAwaitingIntensity:
		b.WriteString("\n" + warnStyle.Render(intensity.Prompt(st.CurrentRound, m.cfg.Scale)) + "\n")
	case domain.PhaseFinished:
		if line := intensity.Line(st.IntensityByRound); line != "" {
			b.WriteString("\n" + line + "\n")
		}
		b.WriteString(helpStyle.Render("session over, press q to save and exit") + "\n")
	}

	voice := voiceOff
	if st.VoiceEnabled {
		voice = voiceOn
	}
	b.WriteString("\n" + voice)
	if m.cue != "" {
		b.WriteString("  ♪ " + m.cue)
	}
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(warnStyle.Render("⚠ "+m.notice) + "\n")
	}
	if m.err != "" {
		b.WriteString(errStyle.Render(m.err) + "\n")
	}

	help := []key.Binding{keys.Toggle, keys.Start, keys.Skip, keys.End, keys.Voice, keys.Abandon, keys.Quit}
	parts := make([]string, 0, len(help))
	for _, h := range help {
		parts = append(parts, h.Help().Key+" "+h.Help().Desc)
	}
	b.WriteString("\n" + helpStyle.Render(strings.Join(parts, " · ")))
	return b.String()
}
