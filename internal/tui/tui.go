// Package tui provides a Bubble Tea TUI for viewing retrospective reports.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/yukitaka/tccretro/internal/analyze"
	"github.com/yukitaka/tccretro/internal/report"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Active tab: bright, underlined
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	// Inactive tab: muted
	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	// Separator between tabs
	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	// Section heading inside a tab
	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	// Key=value label
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	barFillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	barRestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	hoursStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabProjects
	tabModes
	tabRoutine
	tabFeedback
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Projects", "Modes", "Routine", "Feedback",
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	report    *report.Report
	filename  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	byName    bool // sort Projects/Modes by name instead of hours
}

// New creates a new TUI model for the given report and source filename.
func New(rep *report.Report, filename string) Model {
	return Model{
		report:   rep,
		filename: filepath.Base(filename),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabProjects || m.activeTab == tabModes {
				m.byName = !m.byName
				m.rebuildRankedViewports()
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	// ── Row 1: title bar ──────────────────────────────────────────────────────
	title := titleStyle.Width(m.width).Render("  tccretro  " + m.filename)

	// ── Row 2: tab bar ────────────────────────────────────────────────────────
	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	// ── Row 3…N-1: scrollable content ────────────────────────────────────────
	content := m.viewports[m.activeTab].View()

	// ── Row N: status / hint bar ──────────────────────────────────────────────
	hint := "  ←/→ tab  ↑/↓ scroll  1-5 jump  q quit"
	if m.activeTab == tabProjects || m.activeTab == tabModes {
		order := "by hours"
		if m.byName {
			order = "by name"
		}
		hint += "  s sort (" + order + ")"
	}
	// show scroll % on the right
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuildRankedViewports() {
	m.viewports[tabProjects].SetContent(m.renderTab(tabProjects))
	m.viewports[tabProjects].GotoTop()
	m.viewports[tabModes].SetContent(m.renderTab(tabModes))
	m.viewports[tabModes].GotoTop()
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabProjects:
		s := m.report.Summary.Projects
		return m.renderRanked("Projects", s.HoursByProject, s.TotalHours)
	case tabModes:
		s := m.report.Summary.Modes
		return m.renderRanked("Modes", s.HoursByMode, s.TotalHours)
	case tabRoutine:
		return m.renderRoutine()
	case tabFeedback:
		return m.renderFeedback()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	rep := m.report
	var sb strings.Builder
	sb.WriteString(heading("Retrospective Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Period:", rep.Start.Format("2006-01-02")+" 〜 "+rep.End.Format("2006-01-02"))
	row("Tasks:", fmt.Sprintf("%d", rep.Summary.TaskCount))
	row("Total Hours:", fmt.Sprintf("%.2f", rep.Summary.Routines.TotalHours))
	row("Routine:", fmt.Sprintf("%.1f%%", rep.Summary.Routines.RoutinePercentage))
	if rep.Author != "" {
		row("Author:", rep.Author)
	}
	if rep.CSVPath != "" {
		row("Source:", rep.CSVPath)
	}
	row("Generated:", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if rep.FeedbackFromAI && rep.ModelID != "" {
		row("Model:", rep.ModelID)
	}

	sb.WriteString("\n")
	sb.WriteString(heading("Counts"))
	row("Projects:", fmt.Sprintf("%d", rep.Summary.Projects.TotalProjects))
	row("Modes:", fmt.Sprintf("%d", rep.Summary.Modes.TotalModes))
	row("Warnings:", fmt.Sprintf("%d", len(rep.Warnings)))

	if len(rep.Warnings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(heading("Warnings"))
		for _, w := range rep.Warnings {
			sb.WriteString(dimStyle.Render("  "+w) + "\n")
		}
	}
	return sb.String()
}

func (m *Model) renderRanked(title string, hours map[string]float64, total float64) string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("%s (%d)", title, len(hours))))
	if len(hours) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}

	names := analyze.RankedKeys(hours)
	if m.byName {
		names = make([]string, 0, len(hours))
		for n := range hours {
			names = append(names, n)
		}
		sort.Strings(names)
	}

	for _, name := range names {
		h := hours[name]
		share := 0.0
		if total > 0 {
			share = h / total * 100
		}
		sb.WriteString(fmt.Sprintf("  %s  %s %s\n\n",
			gauge(h, total),
			hoursStyle.Render(fmt.Sprintf("%7.2f h %5.1f%%", h, share)),
			name,
		))
	}
	return sb.String()
}

func (m *Model) renderRoutine() string {
	rt := m.report.Summary.Routines
	var sb strings.Builder
	sb.WriteString(heading("Routine vs One-off"))
	if rt.TotalHours <= 0 {
		sb.WriteString(dimStyle.Render("  (no recorded time)") + "\n")
		return sb.String()
	}

	row := func(label string, hours, pct float64) {
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n\n",
			labelStyle.Render(fmt.Sprintf("%-12s", label)),
			gauge(hours, rt.TotalHours),
			hoursStyle.Render(fmt.Sprintf("%7.2f h %5.1f%%", hours, pct)),
		))
	}
	row("Routine", rt.RoutineHours, rt.RoutinePercentage)
	row("One-off", rt.NonRoutineHours, rt.NonRoutinePercentage)
	return sb.String()
}

func (m *Model) renderFeedback() string {
	var sb strings.Builder
	sb.WriteString(heading("Feedback"))
	if m.report.Feedback == "" {
		sb.WriteString(dimStyle.Render("  (no feedback generated)") + "\n")
		return sb.String()
	}
	if !m.report.FeedbackFromAI {
		sb.WriteString(dimStyle.Render("  (aggregate fallback, no model involved)") + "\n\n")
	}
	for _, line := range strings.Split(m.report.Feedback, "\n") {
		sb.WriteString("  " + line + "\n")
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

const gaugeWidth = 24

// gauge renders a colored horizontal bar proportional to value/max.
func gauge(value, max float64) string {
	n := 0
	if max > 0 && value > 0 {
		n = int(value/max*gaugeWidth + 0.5)
		if n < 1 {
			n = 1
		}
		if n > gaugeWidth {
			n = gaugeWidth
		}
	}
	return barFillStyle.Render(strings.Repeat("█", n)) +
		barRestStyle.Render(strings.Repeat("░", gaugeWidth-n))
}

// Run starts the TUI for the given report.
func Run(rep *report.Report, filename string) error {
	p := tea.NewProgram(New(rep, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
