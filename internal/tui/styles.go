package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vburojevic/rounds/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("57")).Padding(0, 1)
	clockStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4).Border(lipgloss.RoundedBorder())
	focusStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("229"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	voiceOn    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("● voice")
	voiceOff   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("○ voice")
)

func phaseColor(p domain.Phase) lipgloss.Color {
	switch p {
	case domain.PhaseWorking:
		return lipgloss.Color("196")
	case domain.PhaseResting:
		return lipgloss.Color("42")
	case domain.PhaseAwaitingIntensity:
		return lipgloss.Color("214")
	case domain.PhaseFinished:
		return lipgloss.Color("45")
	default:
		return lipgloss.Color("75")
	}
}
