package instructorui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gradeboard/internal/chartstore"
	"gradeboard/internal/model"
)

func instructorIdentity() model.Identity {
	return model.Identity{Role: model.RoleInstructor, ID: "42"}
}

func testStore(t *testing.T) *chartstore.Store {
	t.Helper()
	store, err := chartstore.Open(filepath.Join(t.TempDir(), "charts.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func readyModel(t *testing.T, courses []model.Course) *Model {
	t.Helper()
	m := NewModel(nil, testStore(t), instructorIdentity(), zap.NewNop())
	m.width = 100
	m.height = 30
	m.updateLayout()
	next, _ := m.Update(coursesMsg{courses: courses})
	return next.(*Model)
}

func TestMissingInstructorIDBlocksRequests(t *testing.T) {
	m := NewModel(nil, testStore(t), model.Identity{Role: model.RoleInstructor}, zap.NewNop())
	if !strings.Contains(m.errMsg, "log in again") {
		t.Fatalf("errMsg = %q", m.errMsg)
	}
	if cmd := m.Init(); cmd != nil {
		t.Fatal("Init issued a command without a credential")
	}
}

func TestCourseListFailureStillAllowsCreation(t *testing.T) {
	m := readyModel(t, nil)
	next, _ := m.Update(coursesMsg{err: errFake("service unavailable")})
	m = next.(*Model)
	if m.errMsg == "" {
		t.Fatal("list failure not surfaced")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	m = next.(*Model)
	if m.mode != modeCreate {
		t.Fatalf("mode = %d, want create form", m.mode)
	}
	if cmd == nil {
		t.Fatal("expected blink command")
	}
}

func TestCreateAppendsCourseAndDismissesForm(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 1, Name: "Calculus", Code: "A1B2"}})
	m.mode = modeCreate
	m.busy = true

	next, _ := m.Update(createMsg{course: model.Course{ID: 2, Name: "Physics", Code: "Z9Y8"}})
	m = next.(*Model)
	if m.mode != modeBrowse {
		t.Fatalf("mode = %d, want browse", m.mode)
	}
	if len(m.courses) != 2 || m.courses[1].Name != "Physics" {
		t.Fatalf("courses = %+v", m.courses)
	}
	if !strings.Contains(m.notice, "Z9Y8") {
		t.Fatalf("notice = %q, want course code", m.notice)
	}
}

func TestCreateValidationKeepsFormOpen(t *testing.T) {
	m := readyModel(t, nil)
	m.mode = modeCreate
	m.busy = true
	next, _ := m.Update(createMsg{err: errFake("A course with this name already exists")})
	m = next.(*Model)
	if m.mode != modeCreate {
		t.Fatalf("mode = %d, want create form", m.mode)
	}
	if !strings.Contains(m.errMsg, "already exists") {
		t.Fatalf("errMsg = %q", m.errMsg)
	}
	if m.busy {
		t.Fatal("busy not cleared")
	}
}

func TestUploadRequiresGraphName(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 5, Name: "Chemistry"}})
	m.selectCourse(m.courses[0])
	m.mode = modeUpload
	m.uploadInputs[0].SetValue("scores.xlsx")
	m.uploadInputs[1].SetValue("")

	next, cmd := m.submitUpload()
	m = next.(*Model)
	if cmd != nil {
		t.Fatal("upload issued without a graph name")
	}
	if !strings.Contains(m.errMsg, "graph name") {
		t.Fatalf("errMsg = %q", m.errMsg)
	}
}

func TestUploadSuccessPersistsChart(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 5, Name: "Chemistry"}})
	m.selectCourse(m.courses[0])
	m.busy = true
	m.uploadToken = uuid.New()

	next, _ := m.Update(uploadMsg{
		token:     m.uploadToken,
		course:    *m.selected,
		graphName: "Midterm",
		result: model.ScoreResult{
			Labels: model.LabelList{"Ana", "Ben"},
			Scores: model.ScoreList{88, 74},
		},
	})
	m = next.(*Model)
	if m.mode != modeViewing {
		t.Fatalf("mode = %d, want viewing", m.mode)
	}
	if len(m.charts.Charts) != 1 || m.charts.Charts[0].GraphName != "Midterm" {
		t.Fatalf("charts = %+v", m.charts)
	}

	persisted := chartstore.CourseCharts(m.store.Load(context.Background()), "Chemistry")
	if len(persisted.Charts) != 1 {
		t.Fatalf("persisted charts = %+v", persisted)
	}
}

func TestStaleUploadResponseDropped(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 5, Name: "Chemistry"}})
	m.selectCourse(m.courses[0])

	next, _ := m.Update(uploadMsg{
		token:     uuid.New(),
		course:    *m.selected,
		graphName: "Old Upload",
		result:    model.ScoreResult{Labels: model.LabelList{"x"}, Scores: model.ScoreList{1}},
	})
	m = next.(*Model)
	if len(m.charts.Charts) != 0 {
		t.Fatal("stale upload mutated the chart set")
	}
}

func TestStaleUploadDoesNotBlockLaterOperations(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 5, Name: "Chemistry"}, {ID: 6, Name: "Biology"}})
	m.selectCourse(m.courses[0])
	m.mode = modeUpload
	m.uploadInputs[0].SetValue("scores.xlsx")
	m.uploadInputs[1].SetValue("Midterm")
	next, cmd := m.submitUpload()
	m = next.(*Model)
	if cmd == nil {
		t.Fatal("upload not issued")
	}
	pending := m.uploadToken

	// Abandon the upload and switch courses before it resolves.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(*Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(*Model)
	m.selectCourse(m.courses[1])

	next, _ = m.Update(uploadMsg{
		token:     pending,
		course:    m.courses[0],
		graphName: "Midterm",
		result:    model.ScoreResult{Labels: model.LabelList{"x"}, Scores: model.ScoreList{1}},
	})
	m = next.(*Model)
	if m.busy {
		t.Fatal("busy stuck after stale upload was dropped")
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m = next.(*Model)
	if cmd == nil {
		t.Fatal("delete blocked after stale upload")
	}
}

func TestUploadCompletionAfterLeavingCourseStaysInBrowse(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 5, Name: "Chemistry"}})
	m.selectCourse(m.courses[0])
	m.busy = true
	m.uploadToken = uuid.New()

	// Back out of the course view while the upload is in flight.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(*Model)
	if m.mode != modeBrowse {
		t.Fatalf("mode = %d, want browse", m.mode)
	}

	next, _ = m.Update(uploadMsg{
		token:     m.uploadToken,
		course:    model.Course{ID: 5, Name: "Chemistry"},
		graphName: "Midterm",
		result:    model.ScoreResult{Labels: model.LabelList{"Ana"}, Scores: model.ScoreList{88}},
	})
	m = next.(*Model)
	if m.mode != modeBrowse {
		t.Fatalf("mode = %d, want browse after completion with no selection", m.mode)
	}
	if m.selected != nil {
		t.Fatal("completion restored a cleared selection")
	}
	if len(m.charts.Charts) != 0 {
		t.Fatal("completion rebound charts without a selection")
	}

	persisted := chartstore.CourseCharts(m.store.Load(context.Background()), "Chemistry")
	if len(persisted.Charts) != 1 {
		t.Fatalf("persisted charts = %+v, want the accepted upload saved", persisted)
	}
}

func TestDeleteClearsSelectionAndCharts(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 5, Name: "Chemistry"}, {ID: 6, Name: "Biology"}})
	m.selectCourse(m.courses[0])
	m.charts = model.ChartSet{Charts: []model.ChartBundle{{GraphName: "Midterm"}}}

	next, _ := m.Update(deleteMsg{courseID: 5})
	m = next.(*Model)
	if m.selected != nil {
		t.Fatal("selection survived delete")
	}
	if len(m.charts.Charts) != 0 {
		t.Fatal("charts survived delete")
	}
	if len(m.courses) != 1 || m.courses[0].ID != 6 {
		t.Fatalf("courses = %+v", m.courses)
	}
	if m.mode != modeBrowse {
		t.Fatalf("mode = %d, want browse", m.mode)
	}
}

func TestSelectionBindsSavedCharts(t *testing.T) {
	m := readyModel(t, []model.Course{{ID: 5, Name: "Chemistry"}})
	if _, err := m.store.AddBundle(context.Background(), "Chemistry",
		model.ChartBundle{GraphName: "Quiz 1", Labels: []string{"Ana"}, Scores: []float64{91}}); err != nil {
		t.Fatalf("add bundle: %v", err)
	}

	m.selectCourse(m.courses[0])
	if m.mode != modeViewing {
		t.Fatalf("mode = %d, want viewing", m.mode)
	}
	if len(m.charts.Charts) != 1 || m.charts.Charts[0].GraphName != "Quiz 1" {
		t.Fatalf("charts = %+v", m.charts)
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }
