package mbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	gombox "github.com/emersion/go-mbox"

	"github.com/nhle/mailtask/internal/source"
)

// Mailbox serves the messages of an mbox file. An mbox carries no flags
// the bridge can update, so every message counts as unread.
type Mailbox struct {
	path     string
	messages [][]byte
}

// Open reads every message of the mbox file at path.
func Open(path string) (*Mailbox, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mbox %s: %w", path, err)
	}
	defer f.Close()

	return read(path, f)
}

func read(path string, r io.Reader) (*Mailbox, error) {
	reader := gombox.NewReader(r)

	var messages [][]byte
	for {
		msg, err := reader.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf(
				"reading message %d of %s: %w", len(messages)+1, path, err,
			)
		}

		data, err := io.ReadAll(msg)
		if err != nil {
			return nil, fmt.Errorf(
				"reading message %d of %s: %w", len(messages)+1, path, err,
			)
		}
		messages = append(messages, data)
	}

	return &Mailbox{path: path, messages: messages}, nil
}

// Type returns the mailbox kind.
func (m *Mailbox) Type() source.SourceType {
	return source.SourceTypeMbox
}

// Unread returns the 1-based indices of all messages in the file.
func (m *Mailbox) Unread(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.messages))
	for i := range m.messages {
		ids = append(ids, strconv.Itoa(i+1))
	}
	return ids, nil
}

// Fetch returns the message at the 1-based index id.
func (m *Mailbox) Fetch(_ context.Context, id string) ([]byte, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("invalid mbox message id %q: %w", id, err)
	}
	if n < 1 || n > len(m.messages) {
		return nil, fmt.Errorf(
			"message %d not found in %s (%d messages)",
			n, m.path, len(m.messages),
		)
	}
	return m.messages[n-1], nil
}

// Close releases the loaded messages.
func (m *Mailbox) Close() error {
	m.messages = nil
	return nil
}
