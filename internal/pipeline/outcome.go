package pipeline

import "time"

// State is the terminal state a message reached in one run.
type State int

const (
	// FetchFailed means the mail session could not return the message.
	FetchFailed State = iota
	// NoProject means no keyword matched the subject.
	NoProject
	// CreateFailed means the task service did not create the task.
	CreateFailed
	// Created means the task was created and the message had no
	// attachments.
	Created
	// UploadFailed means the task exists but its attachments were not
	// accepted. The local files are kept.
	UploadFailed
	// Uploaded means the task and its attachments were published and
	// the local files cleaned up.
	Uploaded
)

var stateNames = map[State]string{
	FetchFailed:  "fetch failed",
	NoProject:    "no project",
	CreateFailed: "create failed",
	Created:      "created",
	UploadFailed: "upload failed",
	Uploaded:     "uploaded",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Failed reports whether the state is one of the failure states.
func (s State) Failed() bool {
	return s == FetchFailed || s == CreateFailed || s == UploadFailed
}

// Outcome records how one message was processed.
type Outcome struct {
	MessageID   string
	Subject     string
	Title       string
	ProjectID   string
	Keyword     string
	TaskID      int64
	Attachments int
	State       State
	Err         error

	// CleanupFailures counts attachments that could not be deleted after
	// a successful upload.
	CleanupFailures int
}

// Result aggregates the outcomes of one run.
type Result struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Count returns how many outcomes ended in state.
func (r *Result) Count(state State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// TasksCreated returns the number of tasks created during the run,
// including those whose attachment upload failed.
func (r *Result) TasksCreated() int {
	return r.Count(Created) + r.Count(UploadFailed) + r.Count(Uploaded)
}
