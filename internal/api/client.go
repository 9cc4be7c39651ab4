package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gradeboard/internal/model"
)

// Client talks to the course/score API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

// New builds a client for the given base URL.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		Log: log,
	}
}

// errorBody is the shape servers use for failures: create/upload report
// under "error", delete and list under "message".
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// ListCourses returns the courses visible to the identity. An identity
// missing its role credential yields an empty list without issuing a
// request, so a malformed query never reaches the server.
func (c *Client) ListCourses(ctx context.Context, identity model.Identity) ([]model.Course, error) {
	if !identity.Valid() {
		return nil, nil
	}
	query := url.Values{}
	switch identity.Role {
	case model.RoleInstructor:
		query.Set("professor_id", identity.ID)
	case model.RoleStudent:
		query.Set("student_email", identity.Email)
	}
	body, err := c.get(ctx, "/api/courses?"+query.Encode())
	if err != nil {
		return nil, err
	}
	var courses []model.Course
	if err := json.Unmarshal(body, &courses); err != nil {
		return nil, fmt.Errorf("%w: course list: %v", ErrDecode, err)
	}
	c.Log.Info("listed courses", zap.String("role", string(identity.Role)), zap.Int("count", len(courses)))
	return courses, nil
}

// createResponse is the 2xx body of POST /api/courses.
type createResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	ID      int    `json:"id"`
}

// CreateCourse uploads a roster spreadsheet and creates a course. The
// file is parsed entirely server-side. Server rejections (duplicate
// name, bad roster) come back as ValidationError with the server's
// message verbatim.
func (c *Client) CreateCourse(ctx context.Context, name, professorID, filename string, file io.Reader) (model.Course, error) {
	if name == "" {
		return model.Course{}, &ValidationError{Message: "course name is required"}
	}
	if file == nil {
		return model.Course{}, &ValidationError{Message: "a roster spreadsheet is required"}
	}
	fields := map[string]string{"name": name, "professor_id": professorID}
	body, contentType, err := multipartBody(fields, filename, file)
	if err != nil {
		return model.Course{}, err
	}
	respBody, status, err := c.do(ctx, http.MethodPost, "/api/courses", body, contentType)
	if err != nil {
		return model.Course{}, err
	}
	if status < 200 || status >= 300 {
		return model.Course{}, c.serverError("create course", status, respBody)
	}
	var created createResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return model.Course{}, fmt.Errorf("%w: create course: %v", ErrDecode, err)
	}
	c.Log.Info("created course", zap.String("name", name), zap.Int("id", created.ID))
	return model.Course{ID: created.ID, Name: name, Code: created.Code}, nil
}

// DeleteCourse removes a course. A 2xx response body is ignored.
func (c *Client) DeleteCourse(ctx context.Context, courseID int) error {
	path := "/api/courses/" + strconv.Itoa(courseID)
	respBody, status, err := c.do(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return c.serverError("delete course", status, respBody)
	}
	c.Log.Info("deleted course", zap.Int("id", courseID))
	return nil
}

// UploadScores posts a score spreadsheet for a course and returns the
// parsed labels/scores the server extracted from it.
func (c *Client) UploadScores(ctx context.Context, courseID int, filename string, file io.Reader) (model.ScoreResult, error) {
	body, contentType, err := multipartBody(nil, filename, file)
	if err != nil {
		return model.ScoreResult{}, err
	}
	path := "/api/upload_scores/" + strconv.Itoa(courseID)
	respBody, status, err := c.do(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return model.ScoreResult{}, err
	}
	if status < 200 || status >= 300 {
		return model.ScoreResult{}, c.serverError("upload scores", status, respBody)
	}
	var result model.ScoreResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return model.ScoreResult{}, fmt.Errorf("%w: upload scores: %v", ErrDecode, err)
	}
	c.Log.Info("uploaded scores", zap.Int("course", courseID), zap.Int("rows", len(result.Scores)))
	return result, nil
}

// GetScores fetches the score payload for a course, filtered to the
// student when an email is given. A 404 means no sheet has been
// uploaded yet and decodes to an empty result, not an error.
func (c *Client) GetScores(ctx context.Context, courseID int, studentEmail string) (model.ScoreResult, error) {
	path := "/api/scores/" + strconv.Itoa(courseID)
	if studentEmail != "" {
		query := url.Values{}
		query.Set("student_email", studentEmail)
		path += "?" + query.Encode()
	}
	respBody, status, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return model.ScoreResult{}, err
	}
	if status == http.StatusNotFound {
		var missing errorBody
		_ = json.Unmarshal(respBody, &missing)
		c.Log.Info("no scores for course", zap.Int("course", courseID))
		return model.ScoreResult{Message: missing.text()}, nil
	}
	if status < 200 || status >= 300 {
		return model.ScoreResult{}, c.serverError("get scores", status, respBody)
	}
	var result model.ScoreResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return model.ScoreResult{}, fmt.Errorf("%w: get scores: %v", ErrDecode, err)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	body, status, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.serverError("get", status, body)
	}
	return body, nil
}

// do issues one request and reads the full body so the connection can
// be reused. There is no retry loop: failed operations surface a single
// message and return control to the user.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, 0, fmt.Errorf("%w: %s %s: %v", ErrFetch, method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s: %v", ErrFetch, method, path, err)
	}
	return respBody, resp.StatusCode, nil
}

// serverError turns a non-2xx body into a ValidationError when the
// server supplied a message, and a generic fetch error otherwise.
func (c *Client) serverError(op string, status int, body []byte) error {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.text() != "" {
		c.Log.Warn("server rejected operation", zap.String("op", op), zap.Int("status", status), zap.String("message", parsed.text()))
		return &ValidationError{Message: parsed.text()}
	}
	c.Log.Warn("request rejected", zap.String("op", op), zap.Int("status", status))
	return fmt.Errorf("%w: %s: status %d", ErrFetch, op, status)
}

func multipartBody(fields map[string]string, filename string, file io.Reader) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, "", fmt.Errorf("failed to copy upload body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
