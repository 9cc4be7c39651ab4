package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gradeboard/internal/model"
)

func newTestClient(url string) *Client {
	return New(url, 5*time.Second, nil)
}

func TestListCoursesInstructorQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/courses" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("professor_id"); got != "7" {
			t.Errorf("expected professor_id=7, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "name": "Algorithms", "code": "A1B2"}, {"id": 2, "name": "Databases", "code": "C3D4"}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	courses, err := client.ListCourses(context.Background(), model.Identity{Role: model.RoleInstructor, ID: "7"})
	if err != nil {
		t.Fatalf("list courses: %v", err)
	}
	if len(courses) != 2 || courses[0].Name != "Algorithms" {
		t.Fatalf("unexpected courses: %+v", courses)
	}
}

func TestListCoursesStudentQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("student_email"); got != "ann@uni.edu" {
			t.Errorf("expected student_email=ann@uni.edu, got %q", got)
		}
		w.Write([]byte(`[{"id": 3, "name": "Calculus", "code": "E5F6", "professor_id": 7}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	courses, err := client.ListCourses(context.Background(), model.Identity{Role: model.RoleStudent, Email: "ann@uni.edu"})
	if err != nil {
		t.Fatalf("list courses: %v", err)
	}
	if len(courses) != 1 || courses[0].ProfessorID != 7 {
		t.Fatalf("unexpected courses: %+v", courses)
	}
}

func TestListCoursesSkipsRequestWithoutIdentity(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	courses, err := client.ListCourses(context.Background(), model.Identity{Role: model.RoleInstructor})
	if err != nil {
		t.Fatalf("list courses: %v", err)
	}
	if len(courses) != 0 {
		t.Fatalf("expected no courses, got %+v", courses)
	}
	if requests != 0 {
		t.Fatalf("expected no request to be issued, got %d", requests)
	}
}

func TestListCoursesFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListCourses(context.Background(), model.Identity{Role: model.RoleInstructor, ID: "7"})
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestCreateCourseSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("name"); got != "Algorithms" {
			t.Errorf("expected name=Algorithms, got %q", got)
		}
		if got := r.FormValue("professor_id"); got != "7" {
			t.Errorf("expected professor_id=7, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "roster.xlsx" {
			t.Errorf("unexpected filename: %s", header.Filename)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message": "Course 'Algorithms' created", "code": "A1B2", "id": 12}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	course, err := client.CreateCourse(context.Background(), "Algorithms", "7", "roster.xlsx", strings.NewReader("sheet-bytes"))
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if course.ID != 12 || course.Code != "A1B2" || course.Name != "Algorithms" {
		t.Fatalf("unexpected course: %+v", course)
	}
}

func TestCreateCourseSurfacesServerErrorVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "Excel file must contain 'Name' and 'Email' columns"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateCourse(context.Background(), "Algorithms", "7", "roster.xlsx", strings.NewReader("x"))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Message != "Excel file must contain 'Name' and 'Email' columns" {
		t.Fatalf("message not verbatim: %q", vErr.Message)
	}
}

func TestCreateCourseRequiresNameAndFile(t *testing.T) {
	client := newTestClient("http://unused")
	if _, err := client.CreateCourse(context.Background(), "", "7", "roster.xlsx", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := client.CreateCourse(context.Background(), "Algorithms", "7", "", nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDeleteCourse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/courses/12" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"message": "Course 'Algorithms' deleted successfully."}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.DeleteCourse(context.Background(), 12); err != nil {
		t.Fatalf("delete course: %v", err)
	}
}

func TestDeleteCourseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "course not found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.DeleteCourse(context.Background(), 99)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Message != "course not found" {
		t.Fatalf("expected verbatim validation error, got %v", err)
	}
}

func TestUploadScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload_scores/12" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		w.Write([]byte(`{"labels": ["Ann", "Bob"], "scores": [70, 85], "statistics": {"average": 77.5, "min": 70, "max": 85}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.UploadScores(context.Background(), 12, "scores.xlsx", strings.NewReader("sheet"))
	if err != nil {
		t.Fatalf("upload scores: %v", err)
	}
	if len(result.Labels) != 2 || result.Labels[0] != "Ann" {
		t.Fatalf("unexpected labels: %v", result.Labels)
	}
	if result.Statistics == nil || result.Statistics.Average == nil || *result.Statistics.Average != 77.5 {
		t.Fatalf("unexpected statistics: %+v", result.Statistics)
	}
}

func TestGetScoresNotFoundIsEmptyNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "No scores available for this course."}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.GetScores(context.Background(), 12, "ann@uni.edu")
	if err != nil {
		t.Fatalf("expected no error on 404, got %v", err)
	}
	if len(result.Labels) != 0 || len(result.Scores) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.Message != "No scores available for this course." {
		t.Fatalf("expected message carried through, got %q", result.Message)
	}
}

func TestGetScoresDecodesClassAvg(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("student_email"); got != "ann@uni.edu" {
			t.Errorf("expected student_email=ann@uni.edu, got %q", got)
		}
		w.Write([]byte(`{"labels": ["Q1", "Q2"], "scores": [70, 85], "class_avg": [77.5, 77.5]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.GetScores(context.Background(), 12, "ann@uni.edu")
	if err != nil {
		t.Fatalf("get scores: %v", err)
	}
	if len(result.ClassAvg) != 2 || result.ClassAvg[0] != 77.5 {
		t.Fatalf("unexpected class_avg: %v", result.ClassAvg)
	}
}

func TestGetScoresDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not-json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetScores(context.Background(), 12, "")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
