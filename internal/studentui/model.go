// Package studentui provides the Bubble Tea student dashboard.
package studentui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gradeboard/internal/aggregate"
	"gradeboard/internal/api"
	"gradeboard/internal/model"
	"gradeboard/internal/plot"
)

const (
	tabCharts = iota
	tabCompare
	tabTable
)

const plotHeight = 10

type phase int

const (
	phaseLoading phase = iota
	phaseReady
	phaseError
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

type coursesMsg struct {
	courses []model.Course
	err     error
}

type scoresMsg struct {
	token  uuid.UUID
	result model.ScoreResult
	err    error
}

// Model implements the student dashboard UI.
type Model struct {
	client   *api.Client
	identity model.Identity
	log      *zap.Logger

	phase  phase
	errMsg string

	courses     []model.Course
	courseTable table.Model
	selected    *model.Course

	// fetchToken identifies the only in-flight score fetch whose result
	// may still be adopted; anything else resolved late is stale.
	fetchToken uuid.UUID
	fetching   bool
	spin       spinner.Model

	bundle model.SeriesBundle
	stats  *model.Statistics
	noData string

	tabs      []string
	activeTab int
	viewports []viewport.Model

	width  int
	height int
}

// NewModel constructs the student dashboard model.
func NewModel(client *api.Client, identity model.Identity, log *zap.Logger) *Model {
	if log == nil {
		log = zap.NewNop()
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	m := &Model{
		client:   client,
		identity: identity,
		log:      log,
		phase:    phaseLoading,
		spin:     spin,
		tabs:     []string{"Charts", "Compare", "Scores"},
	}
	m.courseTable = buildCourseTable(nil, 0, 1)
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	if !identity.Valid() {
		// No request is issued without a credential.
		m.phase = phaseError
		m.errMsg = "Email not found. Please log in again."
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.phase == phaseError {
		return nil
	}
	return tea.Batch(m.fetchCoursesCmd(), m.spin.Tick)
}

func (m *Model) fetchCoursesCmd() tea.Cmd {
	client, identity := m.client, m.identity
	return func() tea.Msg {
		courses, err := client.ListCourses(context.Background(), identity)
		return coursesMsg{courses: courses, err: err}
	}
}

func (m *Model) fetchScoresCmd(token uuid.UUID, courseID int) tea.Cmd {
	client, email := m.client, m.identity.Email
	return func() tea.Msg {
		result, err := client.GetScores(context.Background(), courseID, email)
		return scoresMsg{token: token, result: result, err: err}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case spinner.TickMsg:
		if !m.fetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case coursesMsg:
		return m.handleCourses(msg)
	case scoresMsg:
		return m.handleScores(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleCourses(msg coursesMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// Course list unavailable is not the same as no courses.
		m.phase = phaseError
		m.errMsg = msg.err.Error()
		return m, nil
	}
	m.phase = phaseReady
	m.errMsg = ""
	m.courses = msg.courses
	_, bodyHeight, _ := m.layoutHeights()
	m.courseTable = buildCourseTable(m.courses, m.width, bodyHeight)
	return m, nil
}

func (m *Model) handleScores(msg scoresMsg) (tea.Model, tea.Cmd) {
	if msg.token != m.fetchToken {
		// A fetch for a previously selected course resolved late.
		m.log.Info("dropped stale score response", zap.String("token", msg.token.String()))
		return m, nil
	}
	m.fetching = false
	if msg.err != nil {
		// Keep the series empty rather than showing the previous
		// course's data.
		m.bundle = model.SeriesBundle{}
		m.stats = nil
		m.errMsg = msg.err.Error()
		m.renderTabContents()
		return m, nil
	}
	m.errMsg = ""
	m.noData = msg.result.Message
	m.bundle = aggregate.Aggregate(msg.result)
	m.stats = msg.result.Statistics
	if m.stats == nil && len(m.bundle.StudentScores) > 0 {
		summary := aggregate.Summary(m.bundle.StudentScores)
		m.stats = &summary
	}
	m.renderTabContents()
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
		return m, tea.Quit
	}
	if m.phase != phaseReady {
		return m, nil
	}
	if m.selected == nil {
		switch msg.String() {
		case "enter":
			return m.selectHighlighted()
		default:
			var cmd tea.Cmd
			m.courseTable, cmd = m.courseTable.Update(msg)
			return m, cmd
		}
	}
	switch msg.String() {
	case "esc":
		m.clearSelection()
		return m, tea.ClearScreen
	case "r":
		// Scores are never cached; re-fetch on demand.
		return m.startFetch(*m.selected)
	case "left", "h":
		m.moveTab(-1)
		return m, tea.ClearScreen
	case "right", "l":
		m.moveTab(1)
		return m, tea.ClearScreen
	case "g", "home":
		m.viewports[m.activeTab].GotoTop()
		return m, nil
	case "G", "end":
		m.viewports[m.activeTab].GotoBottom()
		return m, nil
	default:
		vp := m.viewports[m.activeTab]
		var cmd tea.Cmd
		vp, cmd = vp.Update(msg)
		m.viewports[m.activeTab] = vp
		return m, cmd
	}
}

func (m *Model) selectHighlighted() (tea.Model, tea.Cmd) {
	idx := m.courseTable.Cursor()
	if idx < 0 || idx >= len(m.courses) {
		return m, nil
	}
	course := m.courses[idx]
	return m.startFetch(course)
}

// startFetch clears every derived series before the fetch is issued so
// a slow response can never surface against the wrong course.
func (m *Model) startFetch(course model.Course) (tea.Model, tea.Cmd) {
	m.selected = &course
	m.bundle = model.SeriesBundle{}
	m.stats = nil
	m.noData = ""
	m.errMsg = ""
	m.fetchToken = uuid.New()
	m.fetching = true
	m.renderTabContents()
	return m, tea.Batch(m.fetchScoresCmd(m.fetchToken, course.ID), m.spin.Tick)
}

func (m *Model) clearSelection() {
	m.selected = nil
	m.bundle = model.SeriesBundle{}
	m.stats = nil
	m.noData = ""
	m.errMsg = ""
	m.fetching = false
	m.fetchToken = uuid.UUID{}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = 2
	if m.selected != nil {
		tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
		if tabsHeight < 1 {
			tabsHeight = 1
		}
		headerHeight = tabsHeight + 1
	}
	footerHeight = m.footerLines()
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) footerLines() int {
	if m.errMsg != "" && m.phase == phaseReady {
		return 2
	}
	return 1
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("Student Dashboard")
	sub := headerStyle.Render(m.identity.Email)
	if m.selected != nil {
		tabs := make([]string, 0, len(m.tabs))
		for i, tab := range m.tabs {
			if i == m.activeTab {
				tabs = append(tabs, activeNavStyle.Render(tab))
			} else {
				tabs = append(tabs, inactiveNavStyle.Render(tab))
			}
		}
		sub = lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
		title = titleStyle.Render(m.selected.Name + " Scores")
	}
	return title + "\n" + sub
}

func (m *Model) renderBody() string {
	switch m.phase {
	case phaseLoading:
		return "Loading courses..."
	case phaseError:
		return errorStyle.Render("Error: " + m.errMsg)
	}
	if m.selected == nil {
		if len(m.courses) == 0 {
			return "No enrolled courses."
		}
		return m.courseTable.View()
	}
	if m.fetching {
		return m.spin.View() + " Loading scores..."
	}
	return m.viewports[m.activeTab].View()
}

func (m *Model) renderFooter() string {
	help := "Select: enter  Quit: q"
	if m.selected != nil {
		help = "Tabs: left/right  Refresh: r  Back: esc  Quit: q"
	}
	out := headerStyle.Render(help)
	if m.errMsg != "" && m.phase == phaseReady {
		out += "\n" + errorStyle.Render(m.errMsg)
	}
	return out
}

// updateLayout sizes the viewports for the tabbed course view and the
// table for the browse view, both against the same footer budget.
func (m *Model) updateLayout() {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	viewportHeight := m.height - tabsHeight - 1 - m.footerLines()
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = viewportHeight
	}
	tableHeight := m.height - 2 - m.footerLines()
	if tableHeight < 1 {
		tableHeight = 1
	}
	m.courseTable = buildCourseTable(m.courses, m.width, tableHeight)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabCharts].SetContent(m.renderCharts(width))
	m.viewports[tabCompare].SetContent(m.renderCompare(width))
	m.viewports[tabTable].SetContent(m.renderScores(width))
}

func (m *Model) renderCharts(width int) string {
	if m.bundle.Empty() {
		return m.noDataMessage()
	}
	aligned := m.bundle.Aligned()
	var buf bytes.Buffer
	series := []plot.Series{{Name: "Your Scores", Values: aligned.StudentScores}}
	if err := plot.Render(&buf, "", series, plot.WidthFor(width), plotHeight, false); err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	cards := m.renderSummaryCards(width)
	return strings.TrimRight(cards+"\n\n"+buf.String(), "\n")
}

func (m *Model) renderCompare(width int) string {
	if m.bundle.Empty() {
		return m.noDataMessage()
	}
	series := plot.SeriesFromBundle(m.bundle)
	if len(series) < 2 {
		return "No class average available for this course."
	}
	var buf bytes.Buffer
	if err := plot.Render(&buf, "You vs Class Average", series, plot.WidthFor(width), plotHeight, false); err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (m *Model) renderScores(width int) string {
	if m.bundle.Empty() {
		return m.noDataMessage()
	}
	aligned := m.bundle.Aligned()
	lines := plot.ScoreTable(aligned.Labels, aligned.StudentScores, aligned.ClassAvgSeries)
	bars := plot.Bars(aligned.Labels, aligned.StudentScores, width)
	return strings.Join(lines, "\n") + "\n\n" + strings.Join(bars, "\n")
}

func (m *Model) renderSummaryCards(width int) string {
	if m.stats == nil {
		return ""
	}
	cards := []string{}
	if m.stats.Average != nil {
		cards = append(cards, metricCard("Class Avg", fmt.Sprintf("%.1f", *m.stats.Average)))
	}
	cards = append(cards,
		metricCard("Min", fmt.Sprintf("%.0f", m.stats.Min)),
		metricCard("Max", fmt.Sprintf("%.0f", m.stats.Max)),
		metricCard("Median", fmt.Sprintf("%.1f", m.stats.P50)),
	)
	if width < 60 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m *Model) noDataMessage() string {
	if m.noData != "" {
		return m.noData
	}
	return "No score data available for this course yet."
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildCourseTable(courses []model.Course, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Course", Width: 28},
		{Title: "Code", Width: 8},
		{Title: "Professor", Width: 10},
	}
	rows := make([]table.Row, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, table.Row{c.Name, c.Code, strconv.Itoa(c.ProfessorID)})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
		table.WithFocused(true),
	)
	if width > 0 {
		t.SetWidth(width)
	}
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	t.SetStyles(styles)
	return t
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
