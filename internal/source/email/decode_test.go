package email

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boundary = "BOUNDARY"

func singlePart(subject, contentType, body string) []byte {
	var b strings.Builder
	b.WriteString("From: sender@example.com\r\n")
	if subject != "" {
		b.WriteString("Subject: " + subject + "\r\n")
	}
	if contentType != "" {
		b.WriteString("Content-Type: " + contentType + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func multipartMessage(subject string, parts ...string) []byte {
	var b strings.Builder
	b.WriteString("From: sender@example.com\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"" + boundary + "\"\r\n")
	b.WriteString("\r\n")
	for _, p := range parts {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString(p)
		b.WriteString("\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}

func textPart(contentType, body string) string {
	return "Content-Type: " + contentType + "\r\n\r\n" + body
}

func attachmentPart(filename, content string) string {
	return "Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"" + filename + "\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		base64.StdEncoding.EncodeToString([]byte(content))
}

func newTestDecoder(t *testing.T) (*Decoder, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "attachments")
	return NewDecoder(dir, nil), dir
}

func TestDecodeSinglePartPlain(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(singlePart(
		"  Hello  ", "text/plain; charset=utf-8", "line1\r\nline2\r\n",
	))

	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, "line1<br>line2", msg.Body)
	assert.Empty(t, msg.Attachments)
}

func TestDecodeSinglePartWithoutContentType(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(singlePart("Note", "", "a\nb"))

	assert.Equal(t, "a<br>b", msg.Body)
}

func TestDecodeSinglePartHTML(t *testing.T) {
	d, _ := newTestDecoder(t)

	html := "<p>Hello</p>\r\n<p>World</p>"
	msg := d.Decode(singlePart("Hi", "text/html; charset=utf-8", html))

	assert.Equal(t, html, msg.Body)
}

func TestDecodeMissingSubject(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(singlePart("", "text/plain", "body"))

	assert.Equal(t, "", msg.Subject)
	assert.Equal(t, "body", msg.Body)
}

func TestDecodeEncodedSubject(t *testing.T) {
	d, _ := newTestDecoder(t)

	encoded := "=?UTF-8?B?" +
		base64.StdEncoding.EncodeToString([]byte("Rechnung für März")) + "?="
	msg := d.Decode(singlePart(encoded, "text/plain", "x"))
	assert.Equal(t, "Rechnung für März", msg.Subject)

	msg = d.Decode(singlePart("=?ISO-8859-1?Q?caf=E9?=", "text/plain", "x"))
	assert.Equal(t, "café", msg.Subject)
}

func TestDecodeDeclaredCharset(t *testing.T) {
	d, _ := newTestDecoder(t)

	raw := "Subject: menu\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=E9"
	msg := d.Decode([]byte(raw))

	assert.Equal(t, "café", msg.Body)
}

func TestDecodeUnknownCharsetSubstitutes(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(singlePart(
		"odd", "text/plain; charset=x-made-up", "hello \xff world",
	))

	assert.Equal(t, "hello \uFFFD world", msg.Body)
}

func TestDecodeInvalidUTF8Substitutes(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(singlePart("bad", "text/plain", "ok \xc3\x28 ok"))

	assert.Equal(t, "ok \uFFFD( ok", msg.Body)
}

func TestDecodeMultipartPrefersHTML(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(multipartMessage("Both",
		textPart("text/plain; charset=utf-8", "plain version"),
		textPart("text/html; charset=utf-8", "<b>html version</b>"),
	))

	assert.Equal(t, "<b>html version</b>", msg.Body)
}

func TestDecodeMultipartPlainOnly(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(multipartMessage("Plain",
		textPart("text/plain; charset=utf-8", "line1\r\nline2"),
	))

	assert.Equal(t, "line1<br>line2", msg.Body)
}

func TestDecodeMultipartWithoutText(t *testing.T) {
	d, _ := newTestDecoder(t)

	msg := d.Decode(multipartMessage("Only a file",
		attachmentPart("data.bin", "payload"),
	))

	assert.Equal(t, "", msg.Body)
	require.Len(t, msg.Attachments, 1)
}

func TestDecodeWritesAttachments(t *testing.T) {
	d, dir := newTestDecoder(t)

	msg := d.Decode(multipartMessage("Invoice",
		textPart("text/plain", "see attached"),
		attachmentPart("report.pdf", "%PDF-1.4 fake"),
		attachmentPart("notes.txt", "hello"),
	))

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), msg.Attachments[0].Path)
	assert.Equal(t, "report.pdf", msg.Attachments[0].OriginalName)
	assert.Equal(t, filepath.Join(dir, "notes.txt"), msg.Attachments[1].Path)

	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestDecodeAttachmentNameCollisionOverwrites(t *testing.T) {
	d, dir := newTestDecoder(t)

	msg := d.Decode(multipartMessage("Twice",
		attachmentPart("same.txt", "first"),
		attachmentPart("same.txt", "second"),
	))

	require.Len(t, msg.Attachments, 2)
	data, err := os.ReadFile(filepath.Join(dir, "same.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestDecodeAttachmentStaysInsideDirectory(t *testing.T) {
	d, dir := newTestDecoder(t)

	msg := d.Decode(multipartMessage("Sneaky",
		attachmentPart("../../etc/evil.txt", "x"),
	))

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, filepath.Join(dir, "evil.txt"), msg.Attachments[0].Path)
	assert.Equal(t, "../../etc/evil.txt", msg.Attachments[0].OriginalName)
}

func TestDecodeTextAttachmentKeepsItsBytes(t *testing.T) {
	d, dir := newTestDecoder(t)

	raw8bit := "Content-Type: text/csv; charset=iso-8859-1\r\n" +
		"Content-Disposition: attachment; filename=\"prices.csv\"\r\n" +
		"\r\n" +
		"caf\xe9"
	quoted := "Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Disposition: attachment; filename=\"menu.txt\"\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=E9"

	msg := d.Decode(multipartMessage("Latin-1 files",
		textPart("text/plain; charset=iso-8859-1", "caf\xe9"),
		raw8bit,
		quoted,
	))

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "café", msg.Body)

	data, err := os.ReadFile(filepath.Join(dir, "prices.csv"))
	require.NoError(t, err)
	assert.Equal(t, []byte("caf\xe9"), data)

	data, err = os.ReadFile(filepath.Join(dir, "menu.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("caf\xe9"), data)
}

func TestDecodeNestedMultipart(t *testing.T) {
	d, dir := newTestDecoder(t)

	raw := "Subject: nested\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n\r\nplain\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html\r\n\r\n<p>html</p>\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		attachmentPart("a.bin", "payload") + "\r\n" +
		"--outer--\r\n"

	msg := d.Decode([]byte(raw))

	assert.Equal(t, "<p>html</p>", msg.Body)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, filepath.Join(dir, "a.bin"), msg.Attachments[0].Path)
}

func TestSafeBaseName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":        "report.pdf",
		"../../etc/passwd":  "passwd",
		`C:\Users\me\a.txt`: "a.txt",
		"/abs/path/b.txt":   "b.txt",
		"..":                "",
		"/":                 "",
	}

	for in, want := range tests {
		assert.Equal(t, want, safeBaseName(in), in)
	}
}

func TestDecodeAttachmentWithoutFilenameIsSkipped(t *testing.T) {
	d, _ := newTestDecoder(t)

	part := "Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment\r\n\r\n" +
		"data"
	msg := d.Decode(multipartMessage("Nameless",
		textPart("text/plain", "body"),
		part,
	))

	assert.Empty(t, msg.Attachments)
	assert.Equal(t, "body", msg.Body)
}

func TestPlainToHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"line1\r\nline2", "line1<br>line2"},
		{"a\rb\nc", "a<br>b<br>c"},
		{"\r\n  trimmed  \r\n", "trimmed"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, plainToHTML(tt.in), tt.in)
	}
}
