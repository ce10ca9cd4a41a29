package email

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/nhle/mailtask/internal/model"
)

const (
	mediaTypePlain = "text/plain"
	mediaTypeHTML  = "text/html"
)

func init() {
	// Common East Asian aliases that mail clients put in charset params.
	charset.RegisterEncoding("gbk", simplifiedchinese.GBK)
	charset.RegisterEncoding("gb18030", simplifiedchinese.GB18030)
	charset.RegisterEncoding("big5", traditionalchinese.Big5)
	charset.RegisterEncoding("shift_jis", japanese.ShiftJIS)
	charset.RegisterEncoding("iso-2022-jp", japanese.ISO2022JP)
	charset.RegisterEncoding("euc-kr", korean.EUCKR)

	message.CharsetReader = lenientCharsetReader
}

// lenientCharsetReader converts input to UTF-8 when the charset is known
// and passes the bytes through otherwise. Invalid sequences are replaced
// later by toValidUTF8, so an unknown charset never fails a part.
func lenientCharsetReader(name string, input io.Reader) (io.Reader, error) {
	r, err := charset.Reader(name, input)
	if err != nil {
		return input, nil
	}
	return r, nil
}

// wordDecoder decodes RFC 2047 encoded-words in headers.
var wordDecoder = &mime.WordDecoder{CharsetReader: lenientCharsetReader}

// Decoder turns raw RFC 5322 messages into model.ParsedMessage values and
// writes attachments into a staging directory.
type Decoder struct {
	dir    string
	logger *slog.Logger
}

// NewDecoder creates a Decoder that stores attachments under dir.
func NewDecoder(dir string, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{dir: dir, logger: logger}
}

// maxDepth bounds multipart nesting.
const maxDepth = 16

// Decode parses raw and returns its subject, body and attachments. It
// never fails: malformed headers, unknown charsets and broken parts all
// degrade to defaults or replacement characters.
func (d *Decoder) Decode(raw []byte) model.ParsedMessage {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		// If parsing fails, treat the whole thing as plain text
		d.logger.Warn("parsing message failed, using raw content as body",
			"error", err)
		return model.ParsedMessage{
			Body: plainToHTML(toValidUTF8(string(raw))),
		}
	}

	header := message.Header{Header: h}
	w := &walk{
		parsed: model.ParsedMessage{
			Subject: decodeSubject(mail.Header{Header: header}),
		},
	}
	d.walkEntity(w, header, br, 0)

	switch {
	case w.haveHTML:
		w.parsed.Body = strings.TrimSpace(w.htmlBody)
	case w.havePlain:
		w.parsed.Body = plainToHTML(w.plainBody)
	}

	return w.parsed
}

// walk collects body candidates and attachments across the part tree.
type walk struct {
	parsed              model.ParsedMessage
	plainBody, htmlBody string
	havePlain, haveHTML bool
}

// walkEntity visits one entity: multipart containers are descended,
// attachments are staged and inline text parts become body candidates.
func (d *Decoder) walkEntity(
	w *walk, header message.Header, body io.Reader, depth int,
) {
	mediaType, params, _ := header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxDepth {
			d.logger.Warn("multipart nesting too deep, skipping", "depth", depth)
			return
		}

		mr := textproto.NewMultipartReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil {
				d.logger.Warn("reading message part failed", "error", err)
				return
			}
			d.walkEntity(w, message.Header{Header: part.Header}, part, depth+1)
		}
	}

	disposition, _, _ := header.ContentDisposition()
	if disposition == "attachment" {
		d.attachment(w, header, body)
		return
	}

	if mediaType == "" {
		mediaType = mediaTypePlain
	}
	if mediaType != mediaTypePlain && mediaType != mediaTypeHTML {
		return
	}
	if (mediaType == mediaTypePlain && w.havePlain) ||
		(mediaType == mediaTypeHTML && w.haveHTML) {
		return
	}

	entity, err := message.New(header, body)
	if err != nil && !message.IsUnknownEncoding(err) &&
		!message.IsUnknownCharset(err) {
		d.logger.Warn("reading text part failed", "error", err)
		return
	}

	text := d.readText(entity.Body)
	if mediaType == mediaTypeHTML {
		w.htmlBody, w.haveHTML = text, true
	} else {
		w.plainBody, w.havePlain = text, true
	}
}

// attachment stages an attachment part. Only the transfer encoding is
// undone; the declared charset is dropped first so the payload keeps the
// sender's bytes.
func (d *Decoder) attachment(
	w *walk, header message.Header, body io.Reader,
) {
	filename, _ := (&mail.AttachmentHeader{Header: header}).Filename()
	if strings.TrimSpace(filename) == "" {
		return
	}

	entity, err := message.New(withoutCharset(header), body)
	if err != nil && !message.IsUnknownEncoding(err) {
		d.logger.Error("reading attachment failed",
			"filename", filename, "error", err)
		return
	}

	file, err := d.saveAttachment(filename, entity.Body)
	if err != nil {
		d.logger.Error("saving attachment failed",
			"filename", filename, "error", err)
		return
	}
	w.parsed.Attachments = append(w.parsed.Attachments, file)
}

// withoutCharset returns a copy of header whose Content-Type carries no
// charset parameter.
func withoutCharset(header message.Header) message.Header {
	out := message.Header{Header: header.Header.Copy()}

	mediaType, params, err := out.ContentType()
	if err != nil || mediaType == "" {
		return out
	}
	if _, ok := params["charset"]; ok {
		delete(params, "charset")
		out.SetContentType(mediaType, params)
	}
	return out
}

// readText reads a text part. A read error keeps whatever was decoded up
// to that point.
func (d *Decoder) readText(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		d.logger.Warn("reading text part failed, keeping partial body",
			"error", err)
	}
	return toValidUTF8(string(body))
}

// saveAttachment writes the decoded payload to the staging directory under
// the base name of filename. An existing file with the same name is
// overwritten.
func (d *Decoder) saveAttachment(
	filename string, body io.Reader,
) (model.LocalFile, error) {
	name := safeBaseName(filename)
	if name == "" {
		return model.LocalFile{}, fmt.Errorf("unusable filename %q", filename)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return model.LocalFile{}, fmt.Errorf(
			"creating attachment directory %s: %w", d.dir, err,
		)
	}

	path := filepath.Join(d.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return model.LocalFile{}, fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(path)
		return model.LocalFile{}, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return model.LocalFile{}, fmt.Errorf("closing %s: %w", path, err)
	}

	return model.LocalFile{Path: path, OriginalName: filename}, nil
}

// decodeSubject returns the decoded Subject header, or the raw value when
// an encoded-word cannot be decoded.
func decodeSubject(h mail.Header) string {
	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}
	return strings.TrimSpace(toValidUTF8(subject))
}

// safeBaseName strips any directory components, including Windows-style
// ones, from an attachment filename.
func safeBaseName(filename string) string {
	name := strings.ReplaceAll(toValidUTF8(filename), `\`, "/")
	name = strings.TrimSpace(filepath.Base(filepath.Clean("/" + name)))
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	return name
}

// plainToHTML normalizes line terminators and turns every line break into
// an HTML <br> so plain text keeps its shape in an HTML description.
func plainToHTML(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\n", "<br>")
}

func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
