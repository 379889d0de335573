package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/vburojevic/rounds/internal/domain"
)

var (
	workingColor  = color.New(color.FgHiRed, color.Bold)
	restingColor  = color.New(color.FgHiGreen)
	awaitingColor = color.New(color.FgHiYellow)
	finishedColor = color.New(color.FgHiCyan)
	idleColor     = color.New(color.FgHiBlue)
	noticePrefix  = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	cuePrefix     = color.New(color.FgHiMagenta).Sprint("♪")
)

// PhaseColor colors s by phase.
func PhaseColor(p domain.Phase, s string) string {
	switch p {
	case domain.PhaseWorking:
		return workingColor.Sprint(s)
	case domain.PhaseResting:
		return restingColor.Sprint(s)
	case domain.PhaseAwaitingIntensity:
		return awaitingColor.Sprint(s)
	case domain.PhaseFinished:
		return finishedColor.Sprint(s)
	default:
		return idleColor.Sprint(s)
	}
}

// Clock renders seconds as MM:SS.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// PhaseLabel is the human name of a phase.
func PhaseLabel(p domain.Phase) string {
	switch p {
	case domain.PhaseWorking:
		return "WORK"
	case domain.PhaseResting:
		return "REST"
	case domain.PhaseAwaitingIntensity:
		return "RATE"
	case domain.PhaseFinished:
		return "DONE"
	default:
		return "READY"
	}
}

// StatusLine is the uncolored one-line view of a state, shared by text output and tmux.
func StatusLine(ev *domain.StateEvent) string {
	var b strings.Builder
	b.WriteString(PhaseLabel(ev.Phase))
	if ev.Round > 0 {
		fmt.Fprintf(&b, " R%d/%d", ev.Round, ev.RoundCount)
	}
	if ev.Phase.Timed() {
		b.WriteString(" " + Clock(ev.Remaining))
		if !ev.Running {
			b.WriteString(" paused")
		}
	}
	if ev.Focus != "" && ev.Phase == domain.PhaseWorking {
		b.WriteString(" · " + ev.Focus)
	}
	if ev.VoiceEnabled {
		b.WriteString(" [voice]")
	}
	return b.String()
}

// TextWriter renders events for a human at a terminal.
type TextWriter struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewTextWriter creates a text writer. Errors go to errOut.
func NewTextWriter(out, errOut io.Writer) *TextWriter {
	return &TextWriter{out: out, err: errOut}
}

func (w *TextWriter) line(dst io.Writer, format string, a ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(dst, format+"\n", a...)
	return err
}

// WriteState prints the status line. Per-second ticks are only printed for the last ten seconds.
func (w *TextWriter) WriteState(ev *domain.StateEvent) error {
	if ev.Reason == "tick" && ev.Remaining > 10 && ev.Remaining%30 != 0 {
		return nil
	}
	return w.line(w.out, "%s", PhaseColor(ev.Phase, StatusLine(ev)))
}

// WriteCue prints the cue phrase.
func (w *TextWriter) WriteCue(ev *domain.CueEvent) error {
	msg := ev.Phrase
	if msg == "" {
		msg = ev.Cue
	}
	return w.line(w.out, "%s %s", cuePrefix, msg)
}

// WriteNotice prints a warning line.
func (w *TextWriter) WriteNotice(n *domain.Notice) error {
	return w.line(w.err, "%s %s", noticePrefix, n.Message)
}

// WriteRecord prints a summary of the stored record.
func (w *TextWriter) WriteRecord(rec *domain.FinishedSession) error {
	scores := make([]string, 0, len(rec.IntensityByRound))
	idx := make([]int, 0, len(rec.IntensityByRound))
	for i := range rec.IntensityByRound {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		scores = append(scores, fmt.Sprintf("R%d %s", i+1, rec.IntensityByRound[i]))
	}
	msg := fmt.Sprintf("%s session saved: %d min, %d/%d rounds, avg %.1f",
		successPrefix, rec.DurationMinutes, rec.RoundsCompleted, rec.RoundCount, rec.AverageIntensity)
	if len(scores) > 0 {
		msg += " (" + strings.Join(scores, " · ") + ")"
	}
	if rec.ProofPhotoURL != "" {
		msg += "\n  photo: " + rec.ProofPhotoURL
	}
	return w.line(w.out, "%s", msg)
}

// WriteError prints `Error [CODE]: message (hint: ...)`.
func (w *TextWriter) WriteError(code, message string, hint ...string) error {
	msg := fmt.Sprintf("%s Error [%s]: %s", errorPrefix, code, message)
	if len(hint) > 0 && hint[0] != "" {
		msg += fmt.Sprintf(" (hint: %s)", hint[0])
	}
	return w.line(w.err, "%s", msg)
}
