package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
)

// Mailbox lists and fetches unread messages.
type Mailbox interface {
	Unread(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// Decoder turns a raw message into its normalized form.
type Decoder interface {
	Decode(raw []byte) model.ParsedMessage
}

// Router picks the project for a subject and builds the task title.
type Router interface {
	Route(subject string) (projectID, keyword string, ok bool)
	Title(subject, keyword string) string
}

// Publisher creates tasks and uploads their attachments.
type Publisher interface {
	CreateTask(
		ctx context.Context, projectID, title, description string,
	) (*tracker.Task, error)
	UploadAttachments(
		ctx context.Context, taskID int64, files []model.LocalFile,
	) error
}

// Cleaner deletes attachments once they are published.
type Cleaner interface {
	Cleanup(files []model.LocalFile) []error
}

// Coordinator runs decode, route, publish and cleanup for every unread
// message, one message at a time.
type Coordinator struct {
	mailbox   Mailbox
	decoder   Decoder
	router    Router
	publisher Publisher
	cleaner   Cleaner
	logger    *slog.Logger
}

// New creates a Coordinator from its collaborators.
func New(
	mailbox Mailbox,
	decoder Decoder,
	router Router,
	publisher Publisher,
	cleaner Cleaner,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		mailbox:   mailbox,
		decoder:   decoder,
		router:    router,
		publisher: publisher,
		cleaner:   cleaner,
		logger:    logger,
	}
}

// Run processes the current batch of unread messages. Per-message
// failures are recorded in the result and never stop the batch. An error
// is returned only when the unread list cannot be obtained or ctx is
// cancelled; in the latter case the partial result is returned with it.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	logger := c.logger.With("run", result.RunID)

	ids, err := c.mailbox.Unread(ctx)
	if err != nil {
		result.Finished = time.Now()
		return result, fmt.Errorf("listing unread messages: %w", err)
	}

	if len(ids) == 0 {
		logger.Info("no new messages to parse")
	} else {
		logger.Info("processing unread messages", "count", len(ids))
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Finished = time.Now()
			return result, err
		}
		result.Outcomes = append(result.Outcomes, c.process(ctx, logger, id))
	}

	result.Finished = time.Now()
	logger.Info("run finished",
		"messages", len(result.Outcomes),
		"tasks_created", result.TasksCreated(),
		"duration", result.Finished.Sub(result.Started))

	return result, nil
}

// process carries one message to a terminal state.
func (c *Coordinator) process(
	ctx context.Context, logger *slog.Logger, id string,
) Outcome {
	logger = logger.With("message", id)
	out := Outcome{MessageID: id}

	raw, err := c.mailbox.Fetch(ctx, id)
	if err != nil {
		logger.Error("failed to fetch message", "error", err)
		out.State = FetchFailed
		out.Err = err
		return out
	}

	msg := c.decoder.Decode(raw)
	out.Subject = msg.Subject
	out.Attachments = len(msg.Attachments)
	logger.Info("processing message", "subject", msg.Subject,
		"attachments", len(msg.Attachments))

	projectID, keyword, ok := c.router.Route(msg.Subject)
	if !ok {
		logger.Info("no matching project found for subject")
		out.State = NoProject
		return out
	}
	out.ProjectID = projectID
	out.Keyword = keyword
	out.Title = c.router.Title(msg.Subject, keyword)

	task, err := c.publisher.CreateTask(ctx, projectID, out.Title, msg.Body)
	if err != nil {
		logPublishError(logger, "failed to create task", err,
			"project_id", projectID)
		out.State = CreateFailed
		out.Err = err
		return out
	}
	out.TaskID = task.ID
	logger.Info("task created", "task_id", task.ID,
		"project_id", projectID, "title", out.Title)

	if !msg.HasAttachments() {
		out.State = Created
		return out
	}

	if err := c.publisher.UploadAttachments(
		ctx, task.ID, msg.Attachments,
	); err != nil {
		logPublishError(logger, "failed to upload attachments", err,
			"task_id", task.ID)
		out.State = UploadFailed
		out.Err = err
		return out
	}
	logger.Info("attachments uploaded", "task_id", task.ID,
		"count", len(msg.Attachments))

	if errs := c.cleaner.Cleanup(msg.Attachments); len(errs) > 0 {
		out.CleanupFailures = len(errs)
		logger.Warn("some attachments were left on disk",
			"task_id", task.ID, "count", len(errs))
	}
	out.State = Uploaded
	return out
}

// logPublishError logs err, adding the HTTP status and response body when
// the task service answered.
func logPublishError(
	logger *slog.Logger, msg string, err error, args ...any,
) {
	var statusErr *tracker.StatusError
	if errors.As(err, &statusErr) {
		args = append(args,
			"status", statusErr.StatusCode,
			"body", statusErr.Body)
	}
	args = append(args, "error", err)
	logger.Error(msg, args...)
}
