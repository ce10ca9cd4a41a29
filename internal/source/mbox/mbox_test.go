package mbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailtask/internal/source"
)

const sample = "From alice@example.com Mon Jan  1 00:00:00 2024\n" +
	"Subject: Invoice #1\n" +
	"\n" +
	"first body\n" +
	"\n" +
	"From bob@example.com Mon Jan  1 00:01:00 2024\n" +
	"Subject: Report\n" +
	"\n" +
	"second body\n"

func TestMailboxListsEveryMessageAsUnread(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.mbox")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	mb, err := Open(path)
	require.NoError(t, err)
	defer mb.Close()

	assert.Equal(t, source.SourceTypeMbox, mb.Type())

	ids, err := mb.Unread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	raw, err := mb.Fetch(context.Background(), "2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "Subject: Report"))
	assert.Contains(t, string(raw), "second body")
}

func TestFetchUnknownID(t *testing.T) {
	mb, err := read("inline", strings.NewReader(sample))
	require.NoError(t, err)

	_, err = mb.Fetch(context.Background(), "3")
	assert.Error(t, err)

	_, err = mb.Fetch(context.Background(), "abc")
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mbox"))
	assert.Error(t, err)
}
