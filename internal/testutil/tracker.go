// Package testutil provides fakes shared by package tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// CreatedTask is a create-task request received by the fake tracker.
type CreatedTask struct {
	ID            int64
	ProjectID     string
	Title         string
	Description   string
	Authorization string
}

// Upload is an attachment upload received by the fake tracker.
type Upload struct {
	TaskID    string
	Filenames []string
	Contents  map[string]string
}

// FakeTracker is an in-process task service speaking the create-task and
// upload-attachments endpoints.
type FakeTracker struct {
	Server *httptest.Server

	mu           sync.Mutex
	createStatus int
	uploadStatus int
	nextID       int64
	created      []CreatedTask
	uploads      []Upload
}

// NewFakeTracker starts a fake tracker that answers 201 to task creation
// and 200 to uploads. It is closed when the test completes.
func NewFakeTracker(t *testing.T) *FakeTracker {
	t.Helper()

	f := &FakeTracker{
		createStatus: http.StatusCreated,
		uploadStatus: http.StatusOK,
		nextID:       100,
	}

	r := chi.NewRouter()
	r.Put("/projects/{projectID}/tasks", f.createTask)
	r.Put("/tasks/{taskID}/attachments", f.uploadAttachments)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)

	return f
}

// URL returns the base URL of the fake.
func (f *FakeTracker) URL() string {
	return f.Server.URL
}

// SetCreateStatus changes the status returned for task creation.
func (f *FakeTracker) SetCreateStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createStatus = status
}

// SetUploadStatus changes the status returned for uploads.
func (f *FakeTracker) SetUploadStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadStatus = status
}

// Created returns the create-task requests received so far.
func (f *FakeTracker) Created() []CreatedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreatedTask(nil), f.created...)
}

// Uploads returns the uploads received so far.
func (f *FakeTracker) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

func (f *FakeTracker) createTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"message":"bad json"}`, http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	task := CreatedTask{
		ID:            f.nextID,
		ProjectID:     chi.URLParam(r, "projectID"),
		Title:         req.Title,
		Description:   req.Description,
		Authorization: r.Header.Get("Authorization"),
	}
	f.created = append(f.created, task)

	w.Header().Set("Content-Type", "application/json")
	if f.createStatus != http.StatusCreated {
		w.WriteHeader(f.createStatus)
		_, _ = io.WriteString(w, `{"message":"project does not exist"}`)
		return
	}

	w.WriteHeader(http.StatusCreated)
	projectID, _ := strconv.ParseInt(task.ProjectID, 10, 64)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":          task.ID,
		"title":       task.Title,
		"description": task.Description,
		"project_id":  projectID,
	})
}

func (f *FakeTracker) uploadAttachments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, `{"message":"bad multipart"}`, http.StatusBadRequest)
		return
	}

	upload := Upload{
		TaskID:   chi.URLParam(r, "taskID"),
		Contents: map[string]string{},
	}
	for _, fh := range r.MultipartForm.File["files"] {
		upload.Filenames = append(upload.Filenames, fh.Filename)
		if file, err := fh.Open(); err == nil {
			data, _ := io.ReadAll(file)
			file.Close()
			upload.Contents[fh.Filename] = string(data)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads = append(f.uploads, upload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.uploadStatus)
	if f.uploadStatus == http.StatusOK {
		_, _ = io.WriteString(w, `{"success":[]}`)
		return
	}
	_, _ = io.WriteString(w, `{"message":"upload rejected"}`)
}
