// Package instructorui provides the Bubble Tea instructor dashboard.
package instructorui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gradeboard/internal/api"
	"gradeboard/internal/chartstore"
	"gradeboard/internal/model"
	"gradeboard/internal/plot"
)

const plotHeight = 10

type mode int

const (
	modeBrowse mode = iota
	modeCreate
	modeUpload
	modeViewing
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#73D13D"))
	formStyle   = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	chartTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

type coursesMsg struct {
	courses []model.Course
	err     error
}

type createMsg struct {
	course model.Course
	err    error
}

type deleteMsg struct {
	courseID int
	err      error
}

type uploadMsg struct {
	token     uuid.UUID
	course    model.Course
	graphName string
	result    model.ScoreResult
	err       error
}

// Model implements the instructor dashboard UI.
type Model struct {
	client   *api.Client
	store    *chartstore.Store
	identity model.Identity
	log      *zap.Logger

	mode    mode
	loading bool
	busy    bool
	errMsg  string
	notice  string

	courses     []model.Course
	courseTable table.Model
	selected    *model.Course

	persisted model.PersistedStore
	charts    model.ChartSet

	createInputs []textinput.Model
	createFocus  int
	uploadInputs []textinput.Model
	uploadFocus  int

	// uploadToken identifies the in-flight upload; a completion carrying
	// any other token belongs to an abandoned course view.
	uploadToken uuid.UUID

	chartView viewport.Model

	width  int
	height int
}

// NewModel constructs the instructor dashboard model.
func NewModel(client *api.Client, store *chartstore.Store, identity model.Identity, log *zap.Logger) *Model {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Model{
		client:   client,
		store:    store,
		identity: identity,
		log:      log,
		loading:  true,
	}
	m.courseTable = buildCourseTable(nil, 0, 1)
	m.chartView = viewport.New(0, 0)
	m.createInputs = newInputs("Course name", "Roster file (.xlsx)")
	m.uploadInputs = newInputs("Scores file (.xlsx)", "Graph name")
	if !identity.Valid() {
		m.loading = false
		m.errMsg = "Instructor ID not found. Please log in again."
	}
	return m
}

func newInputs(placeholders ...string) []textinput.Model {
	inputs := make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		in := textinput.New()
		in.Placeholder = p
		in.CharLimit = 200
		in.Width = 48
		inputs[i] = in
	}
	return inputs
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if !m.identity.Valid() {
		return nil
	}
	return m.fetchCoursesCmd()
}

func (m *Model) fetchCoursesCmd() tea.Cmd {
	client, identity := m.client, m.identity
	return func() tea.Msg {
		courses, err := client.ListCourses(context.Background(), identity)
		return coursesMsg{courses: courses, err: err}
	}
}

func (m *Model) createCourseCmd(name, rosterPath string) tea.Cmd {
	client, identity := m.client, m.identity
	return func() tea.Msg {
		file, err := os.Open(rosterPath)
		if err != nil {
			return createMsg{err: &api.ValidationError{Message: "Cannot open roster file: " + err.Error()}}
		}
		defer file.Close()
		course, err := client.CreateCourse(context.Background(), name, identity.ID, filepath.Base(rosterPath), file)
		return createMsg{course: course, err: err}
	}
}

func (m *Model) deleteCourseCmd(courseID int) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		err := client.DeleteCourse(context.Background(), courseID)
		return deleteMsg{courseID: courseID, err: err}
	}
}

func (m *Model) uploadScoresCmd(token uuid.UUID, course model.Course, path, graphName string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		file, err := os.Open(path)
		if err != nil {
			return uploadMsg{token: token, course: course, graphName: graphName,
				err: &api.ValidationError{Message: "Cannot open scores file: " + err.Error()}}
		}
		defer file.Close()
		result, err := client.UploadScores(context.Background(), course.ID, filepath.Base(path), file)
		return uploadMsg{token: token, course: course, graphName: graphName, result: result, err: err}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderCharts()
		return m, nil
	case coursesMsg:
		return m.handleCourses(msg)
	case createMsg:
		return m.handleCreate(msg)
	case deleteMsg:
		return m.handleDelete(msg)
	case uploadMsg:
		return m.handleUpload(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleCourses(msg coursesMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		// Creation still works while the list is unavailable.
		m.errMsg = msg.err.Error()
		return m, nil
	}
	m.errMsg = ""
	m.courses = msg.courses
	m.courseTable = buildCourseTable(m.courses, m.width, m.bodyHeight())
	return m, nil
}

func (m *Model) handleCreate(msg createMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		return m, nil
	}
	m.errMsg = ""
	m.notice = fmt.Sprintf("Course created. Course code: %s", msg.course.Code)
	m.courses = append(m.courses, msg.course)
	m.courseTable = buildCourseTable(m.courses, m.width, m.bodyHeight())
	m.resetInputs(m.createInputs)
	m.mode = modeBrowse
	return m, tea.ClearScreen
}

func (m *Model) handleDelete(msg deleteMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		return m, nil
	}
	m.errMsg = ""
	m.notice = "Course deleted."
	kept := m.courses[:0]
	for _, c := range m.courses {
		if c.ID != msg.courseID {
			kept = append(kept, c)
		}
	}
	m.courses = kept
	m.courseTable = buildCourseTable(m.courses, m.width, m.bodyHeight())
	if m.selected != nil && m.selected.ID == msg.courseID {
		m.selected = nil
		m.charts = model.ChartSet{}
		m.mode = modeBrowse
	}
	return m, tea.ClearScreen
}

func (m *Model) handleUpload(msg uploadMsg) (tea.Model, tea.Cmd) {
	if msg.token != m.uploadToken {
		m.log.Info("dropped stale upload response", zap.String("token", msg.token.String()))
		return m, nil
	}
	m.busy = false
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		return m, nil
	}
	m.errMsg = ""
	bundle := model.ChartBundle{
		GraphName: msg.graphName,
		Labels:    msg.result.Labels,
		Scores:    msg.result.Scores,
	}
	updated, err := m.store.AddBundle(context.Background(), msg.course.Name, bundle)
	if err != nil {
		m.errMsg = "Scores uploaded but chart could not be saved: " + err.Error()
		return m, nil
	}
	m.persisted = updated
	m.notice = "Scores uploaded."
	if msg.result.Statistics != nil && msg.result.Statistics.Average != nil {
		m.notice = fmt.Sprintf("Scores uploaded. Class average: %.1f", *msg.result.Statistics.Average)
	}
	m.resetInputs(m.uploadInputs)
	// The user may have left the course view while the upload was in
	// flight; the bundle is persisted either way, but only an active
	// selection gets re-rendered and shown.
	if m.selected != nil && m.selected.ID == msg.course.ID {
		m.charts = chartstore.CourseCharts(m.persisted, m.selected.Name)
		m.renderCharts()
		m.mode = modeViewing
	}
	return m, tea.ClearScreen
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	switch m.mode {
	case modeCreate:
		return m.handleFormKey(msg, m.createInputs, &m.createFocus, m.submitCreate)
	case modeUpload:
		return m.handleFormKey(msg, m.uploadInputs, &m.uploadFocus, m.submitUpload)
	case modeViewing:
		return m.handleViewingKey(msg)
	default:
		return m.handleBrowseKey(msg)
	}
}

func (m *Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "a":
		m.openForm(modeCreate, m.createInputs, &m.createFocus)
		return m, textinput.Blink
	case "d":
		if course, ok := m.highlighted(); ok && !m.busy {
			m.busy = true
			return m, m.deleteCourseCmd(course.ID)
		}
		return m, nil
	case "r":
		m.loading = true
		return m, m.fetchCoursesCmd()
	case "enter":
		if course, ok := m.highlighted(); ok {
			m.selectCourse(course)
			return m, tea.ClearScreen
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.courseTable, cmd = m.courseTable.Update(msg)
		return m, cmd
	}
}

func (m *Model) handleViewingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.selected = nil
		m.charts = model.ChartSet{}
		m.mode = modeBrowse
		return m, tea.ClearScreen
	case "u":
		m.openForm(modeUpload, m.uploadInputs, &m.uploadFocus)
		return m, textinput.Blink
	case "d":
		if m.selected != nil && !m.busy {
			m.busy = true
			return m, m.deleteCourseCmd(m.selected.ID)
		}
		return m, nil
	case "g", "home":
		m.chartView.GotoTop()
		return m, nil
	case "G", "end":
		m.chartView.GotoBottom()
		return m, nil
	default:
		var cmd tea.Cmd
		m.chartView, cmd = m.chartView.Update(msg)
		return m, cmd
	}
}

func (m *Model) handleFormKey(msg tea.KeyMsg, inputs []textinput.Model, focus *int, submit func() (tea.Model, tea.Cmd)) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.resetInputs(inputs)
		if m.selected != nil {
			m.mode = modeViewing
		} else {
			m.mode = modeBrowse
		}
		m.errMsg = ""
		return m, tea.ClearScreen
	case "tab", "down":
		m.moveFocus(inputs, focus, 1)
		return m, textinput.Blink
	case "shift+tab", "up":
		m.moveFocus(inputs, focus, -1)
		return m, textinput.Blink
	case "enter":
		if *focus < len(inputs)-1 {
			m.moveFocus(inputs, focus, 1)
			return m, textinput.Blink
		}
		return submit()
	default:
		var cmd tea.Cmd
		inputs[*focus], cmd = inputs[*focus].Update(msg)
		return m, cmd
	}
}

func (m *Model) submitCreate() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.createInputs[0].Value())
	roster := strings.TrimSpace(m.createInputs[1].Value())
	if name == "" {
		m.errMsg = "Course name is required."
		return m, nil
	}
	if roster == "" {
		m.errMsg = "A roster file is required."
		return m, nil
	}
	if m.busy {
		return m, nil
	}
	m.busy = true
	m.errMsg = ""
	return m, m.createCourseCmd(name, roster)
}

// submitUpload refuses to issue the request until a graph name is
// entered; an unnamed upload would be unidentifiable in the chart list.
func (m *Model) submitUpload() (tea.Model, tea.Cmd) {
	path := strings.TrimSpace(m.uploadInputs[0].Value())
	graphName := strings.TrimSpace(m.uploadInputs[1].Value())
	if path == "" {
		m.errMsg = "A scores file is required."
		return m, nil
	}
	if graphName == "" {
		m.errMsg = "A graph name is required."
		return m, nil
	}
	if m.selected == nil || m.busy {
		return m, nil
	}
	m.busy = true
	m.errMsg = ""
	m.uploadToken = uuid.New()
	return m, m.uploadScoresCmd(m.uploadToken, *m.selected, path, graphName)
}

func (m *Model) openForm(target mode, inputs []textinput.Model, focus *int) {
	m.mode = target
	m.errMsg = ""
	m.notice = ""
	*focus = 0
	for i := range inputs {
		if i == 0 {
			inputs[i].Focus()
		} else {
			inputs[i].Blur()
		}
	}
}

func (m *Model) moveFocus(inputs []textinput.Model, focus *int, delta int) {
	next := *focus + delta
	if next < 0 {
		next = len(inputs) - 1
	}
	if next >= len(inputs) {
		next = 0
	}
	inputs[*focus].Blur()
	*focus = next
	inputs[*focus].Focus()
}

func (m *Model) resetInputs(inputs []textinput.Model) {
	for i := range inputs {
		inputs[i].SetValue("")
		inputs[i].Blur()
	}
}

// selectCourse binds the locally saved charts for the course; nothing
// is fetched since chart sets live entirely on this machine.
func (m *Model) selectCourse(course model.Course) {
	m.selected = &course
	m.persisted = m.store.Load(context.Background())
	m.charts = chartstore.CourseCharts(m.persisted, course.Name)
	m.mode = modeViewing
	m.notice = ""
	m.errMsg = ""
	// Late completions for the previous course must not land here, and
	// an abandoned upload must not keep the model busy forever.
	m.uploadToken = uuid.UUID{}
	m.busy = false
	m.renderCharts()
	m.chartView.GotoTop()
}

func (m *Model) highlighted() (model.Course, bool) {
	idx := m.courseTable.Cursor()
	if idx < 0 || idx >= len(m.courses) {
		return model.Course{}, false
	}
	return m.courses[idx], true
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := fitLines(m.renderHeader(), m.width, 2)
	body := fitLines(m.renderBody(), m.width, m.bodyHeight())
	footer := fitLines(m.renderFooter(), m.width, m.footerHeight())
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) footerHeight() int {
	if m.errMsg != "" || m.notice != "" {
		return 2
	}
	return 1
}

func (m *Model) bodyHeight() int {
	h := m.height - 2 - m.footerHeight()
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) renderHeader() string {
	title := "Instructor Dashboard"
	sub := fmt.Sprintf("Instructor #%s", m.identity.ID)
	switch m.mode {
	case modeCreate:
		title = "Add Course"
		sub = "Roster must contain 'Name' and 'Email' columns"
	case modeUpload:
		title = "Upload Scores"
		if m.selected != nil {
			sub = m.selected.Name
		}
	case modeViewing:
		if m.selected != nil {
			title = m.selected.Name
			sub = fmt.Sprintf("Course code: %s   Saved charts: %d", m.selected.Code, len(m.charts.Charts))
		}
	}
	return titleStyle.Render(title) + "\n" + subtleStyle.Render(sub)
}

func (m *Model) renderBody() string {
	switch m.mode {
	case modeCreate:
		return m.renderForm("Create a course", m.createInputs, "Name", "Roster file")
	case modeUpload:
		return m.renderForm("Upload a score sheet", m.uploadInputs, "Scores file", "Graph name")
	case modeViewing:
		return m.chartView.View()
	}
	if m.loading {
		return "Loading courses..."
	}
	if len(m.courses) == 0 {
		if m.errMsg != "" {
			return errorStyle.Render("Error: " + m.errMsg)
		}
		return "No courses yet. Press 'a' to add one."
	}
	return m.courseTable.View()
}

func (m *Model) renderForm(title string, inputs []textinput.Model, labels ...string) string {
	lines := []string{titleStyle.Render(title), ""}
	for i, in := range inputs {
		lines = append(lines, labelStyle.Render(labels[i]), in.View(), "")
	}
	lines = append(lines, subtleStyle.Render("Submit: enter  Next field: tab  Cancel: esc"))
	if m.busy {
		lines = append(lines, "", "Working...")
	}
	return formStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	help := "Select: enter  Add: a  Delete: d  Refresh: r  Quit: q"
	switch m.mode {
	case modeViewing:
		help = "Upload: u  Delete course: d  Back: esc  Quit: q"
	case modeCreate, modeUpload:
		help = "Submit: enter  Cancel: esc"
	}
	out := subtleStyle.Render(help)
	switch {
	case m.errMsg != "":
		out += "\n" + errorStyle.Render(m.errMsg)
	case m.notice != "":
		out += "\n" + noticeStyle.Render(m.notice)
	}
	return out
}

func (m *Model) updateLayout() {
	m.chartView.Width = m.width
	m.chartView.Height = m.bodyHeight()
	m.courseTable = buildCourseTable(m.courses, m.width, m.bodyHeight())
}

func (m *Model) renderCharts() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	if len(m.charts.Charts) == 0 {
		m.chartView.SetContent("No charts saved for this course. Press 'u' to upload scores.")
		return
	}
	sections := make([]string, 0, len(m.charts.Charts))
	for _, chart := range m.charts.Charts {
		sections = append(sections, m.renderChart(chart, width))
	}
	m.chartView.SetContent(strings.Join(sections, "\n\n"))
}

func (m *Model) renderChart(chart model.ChartBundle, width int) string {
	series := plot.SeriesFromChart(chart)
	if len(series) == 0 {
		return chartTitleStyle.Render(chart.GraphName) + "\n(no plottable data)"
	}
	var buf strings.Builder
	buf.WriteString(chartTitleStyle.Render(chart.GraphName))
	buf.WriteString("\n")
	if err := plot.Render(&buf, "", series, plot.WidthFor(width), plotHeight, false); err != nil {
		return buf.String() + fmt.Sprintf("Failed to render chart: %v", err)
	}
	for _, line := range plot.Bars(chart.Labels, chart.Scores, width) {
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildCourseTable(courses []model.Course, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Course", Width: 28},
		{Title: "Code", Width: 8},
		{Title: "ID", Width: 6},
	}
	rows := make([]table.Row, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, table.Row{c.Name, c.Code, strconv.Itoa(c.ID)})
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
