package model

// LocalFile is an attachment written to the staging directory while a
// message is decoded. The pipeline owns the file until it is deleted after
// a successful upload.
type LocalFile struct {
	// Path is the location of the file on disk.
	Path string `json:"path"`

	// OriginalName is the filename declared by the message part.
	OriginalName string `json:"original_name"`
}

// ParsedMessage is the normalized content of one mail message.
type ParsedMessage struct {
	// Subject is the decoded, trimmed Subject header.
	Subject string `json:"subject"`

	// Body is either the HTML part verbatim or the plain-text part with
	// line breaks converted to <br>.
	Body string `json:"body"`

	// Attachments lists the files extracted from the message, in part
	// order.
	Attachments []LocalFile `json:"attachments,omitempty"`
}

// HasAttachments reports whether the message carried any attachment.
func (m ParsedMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}
