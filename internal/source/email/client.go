package email

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailtask/internal/source"
)

// IMAPClient holds the settings needed to open an IMAP session.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string

	// dial opens the connection; tests swap in a plaintext dialer.
	dial func(address string, options *imapclient.Options) (*imapclient.Client, error)
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	dial := imapclient.DialStartTLS
	if tls {
		dial = imapclient.DialTLS
	}
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		dial:     dial,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	opts := &imapclient.Options{
		WordDecoder: wordDecoder,
	}

	client, err := c.dial(addr, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			SourceType: source.SourceTypeIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// Open connects, authenticates and selects mailbox, returning a Session
// that stays open until Close.
func (c *IMAPClient) Open(
	ctx context.Context, mailbox string,
) (*Session, error) {
	if mailbox == "" {
		mailbox = "INBOX"
	}

	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	return &Session{client: client, mailbox: mailbox}, nil
}

// Session is an authenticated IMAP connection with a selected mailbox.
type Session struct {
	client  *imapclient.Client
	mailbox string
}

// Type returns the mailbox kind.
func (s *Session) Type() source.SourceType {
	return source.SourceTypeIMAP
}

// Unread searches the selected mailbox for messages without the \Seen
// flag and returns their UIDs as strings.
func (s *Session) Unread(_ context.Context) ([]string, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unread messages: %w", err)
	}

	uids := searchData.AllUIDs()
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}

	return ids, nil
}

// Fetch retrieves the full message for a UID. The body section is not
// peeked, so the server marks the message as seen.
func (s *Session) Fetch(_ context.Context, id string) ([]byte, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching message UID %d: %w", uid, err)
	}

	return raw, nil
}

// Close logs out, which also closes the connection.
func (s *Session) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		return fmt.Errorf("logging out of IMAP: %w", err)
	}
	return nil
}

// parseUID converts a string message id to a uint32 UID.
func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message UID %q: %w", id, err)
	}
	return uint32(uid), nil
}
