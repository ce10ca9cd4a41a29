package source

import (
	"context"
	"errors"
	"fmt"
)

// AuthError indicates that a collaborator rejected the configured
// credentials. It is returned when an IMAP login fails or the task service
// answers 401.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of mailbox a batch was read from.
type SourceType string

const (
	SourceTypeIMAP    SourceType = "imap"
	SourceTypeMbox    SourceType = "mbox"
	SourceTypeVikunja SourceType = "vikunja"
)

// Mailbox is a mail session that has been opened for one run.
type Mailbox interface {
	// Type returns the mailbox kind.
	Type() SourceType

	// Unread returns the ids of the messages not yet marked as seen, in
	// the order the server reports them.
	Unread(ctx context.Context) ([]string, error)

	// Fetch returns the full RFC 5322 content of one message. A failure
	// only concerns that id; the session stays usable.
	Fetch(ctx context.Context, id string) ([]byte, error)

	// Close ends the session.
	Close() error
}
