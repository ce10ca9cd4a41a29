// Package report renders the per-message outcomes of a run for a terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nhle/mailtask/internal/pipeline"
)

// stateWidth fits the longest state name plus a gap.
const stateWidth = 15

// Render writes a summary of result to w.
func Render(w io.Writer, result *pipeline.Result) error {
	_, err := io.WriteString(w, Format(result))
	return err
}

// Format returns the rendered summary of result.
func Format(result *pipeline.Result) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("mailtask run " + shortID(result.RunID)))
	b.WriteString("\n")

	failed := 0
	for _, o := range result.Outcomes {
		if o.State.Failed() {
			failed++
		}
	}
	b.WriteString(summaryStyle.Render(fmt.Sprintf(
		"%d messages, %d tasks created, %d failed in %s",
		len(result.Outcomes), result.TasksCreated(), failed,
		result.Finished.Sub(result.Started).Round(time.Millisecond),
	)))
	b.WriteString("\n")

	for _, o := range result.Outcomes {
		b.WriteString(stateStyle(o.State).Render(o.State.String()))
		b.WriteString(line(o))
		b.WriteString("\n")

		if o.Err != nil {
			b.WriteString(detailStyle.Render(o.Err.Error()))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// line describes one outcome after its state column.
func line(o pipeline.Outcome) string {
	switch o.State {
	case pipeline.FetchFailed:
		return "message " + o.MessageID
	case pipeline.NoProject:
		return subjectOrPlaceholder(o.Subject)
	}

	var parts []string
	if o.TaskID != 0 {
		parts = append(parts, fmt.Sprintf("#%d", o.TaskID))
	}
	parts = append(parts, subjectOrPlaceholder(o.Title))

	detail := "project " + o.ProjectID
	if o.Attachments == 1 {
		detail += ", 1 attachment"
	} else if o.Attachments > 1 {
		detail += fmt.Sprintf(", %d attachments", o.Attachments)
	}
	if o.CleanupFailures == 1 {
		detail += ", 1 file left on disk"
	} else if o.CleanupFailures > 1 {
		detail += fmt.Sprintf(", %d files left on disk", o.CleanupFailures)
	}
	parts = append(parts, "("+detail+")")

	return strings.Join(parts, " ")
}

func subjectOrPlaceholder(s string) string {
	if s == "" {
		return "(no subject)"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
