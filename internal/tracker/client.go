package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/source"
)

// Task is the subset of a created task the bridge needs.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectID   int64  `json:"project_id,omitempty"`
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StatusError is returned when the task service answers with a status
// other than the one an operation expects.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Body,
	)
}

// Client is a thin HTTP client for the Vikunja REST API. It handles Bearer
// token authentication and JSON marshaling. Requests are never retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new task service client. baseURL is the API root
// (e.g., https://vikunja.example.com/api/v1).
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateTask creates a task in projectID. Only 201 Created counts as
// success.
func (c *Client) CreateTask(
	ctx context.Context,
	projectID string,
	title string,
	description string,
) (*Task, error) {
	path := "/projects/" + url.PathEscape(projectID) + "/tasks"

	data, err := json.Marshal(createTaskRequest{
		Title:       title,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	respBody, err := c.do(
		ctx, http.MethodPut, path,
		"application/json", bytes.NewReader(data),
		http.StatusCreated,
	)
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(respBody, &task); err != nil {
		return nil, fmt.Errorf(
			"unmarshaling response from PUT %s: %w", path, err,
		)
	}

	return &task, nil
}

// UploadAttachments sends all files to taskID in one multipart request,
// one "files" field per file. Every opened file is closed before it
// returns, whatever the outcome.
func (c *Client) UploadAttachments(
	ctx context.Context,
	taskID int64,
	files []model.LocalFile,
) error {
	path := "/tasks/" + strconv.FormatInt(taskID, 10) + "/attachments"

	opened := make([]*os.File, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, lf := range files {
		f, err := os.Open(lf.Path)
		if err != nil {
			return fmt.Errorf("opening attachment %s: %w", lf.Path, err)
		}
		opened = append(opened, f)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range opened {
		part, err := writer.CreateFormFile("files", filepath.Base(f.Name()))
		if err != nil {
			return fmt.Errorf("creating form part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return fmt.Errorf("reading attachment %s: %w", f.Name(), err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}

	_, err := c.do(
		ctx, http.MethodPut, path,
		writer.FormDataContentType(), &body,
		http.StatusOK,
	)
	return err
}

// do builds the request, adds auth headers and checks the response
// status against want. It returns the response body on success.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	contentType string,
	body io.Reader,
	want int,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, method, c.baseURL+path, body,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &source.AuthError{
			SourceType: source.SourceTypeVikunja,
			Message: fmt.Sprintf(
				"%s %s rejected the API token (401): %s",
				method, path, strings.TrimSpace(string(respBody)),
			),
		}
	}

	if resp.StatusCode != want {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}
