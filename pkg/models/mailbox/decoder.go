package mailbox

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"aaronromeo.com/imaparchiver/pkg/base"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/pkg/errors"
)

var illegalNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\v\p{Z}]`)

// Decode parses a raw RFC822 message into sanitized headers and its leaf parts.
// Body parts are converted to UTF-8; attachments only lose their transfer
// encoding.
func Decode(raw []byte) (*DecodedMessage, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	th, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, errors.Wrap(err, "parsing message")
	}

	root := message.Header{Header: th}
	header := mail.Header{Header: root}
	decoded := &DecodedMessage{
		Subject: Sanitize(headerText(header, "Subject")),
		From:    Sanitize(headerText(header, "From")),
	}

	err = walkLeaves(root, br, nil, func(path []int, part MimePart, body io.Reader) error {
		payload, err := io.ReadAll(body)
		if err != nil {
			return errors.Wrapf(err, "reading %s part %v", part.ContentType, path)
		}
		part.Payload = payload
		decoded.Parts = append(decoded.Parts, part)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return decoded, nil
}

type leafFunc func(path []int, part MimePart, body io.Reader) error

// walkLeaves calls fn for every non-multipart part below h, depth first.
func walkLeaves(h message.Header, body io.Reader, path []int, fn leafFunc) error {
	contentType := partContentType(h)
	if strings.HasPrefix(contentType, "multipart/") {
		_, params, err := h.ContentType()
		if err != nil {
			return errors.Wrapf(err, "reading part %v", path)
		}
		mr := textproto.NewMultipartReader(body, params["boundary"])
		for i := 0; ; i++ {
			p, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "reading part %v", path)
			}
			child := append(path[:len(path):len(path)], i)
			if err := walkLeaves(message.Header{Header: p.Header}, p, child, fn); err != nil {
				return err
			}
		}
	}

	attachment := mail.AttachmentHeader{Header: h}
	filename, _ := attachment.Filename()
	part := MimePart{
		ContentType: contentType,
		Disposition: h.Get("Content-Disposition"),
		Filename:    filename,
	}

	if part.IsAttachment() {
		h = withoutCharset(h)
	}
	entity, err := message.New(h, body)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return errors.Wrapf(err, "reading part %v", path)
	}
	return fn(path, part, entity.Body)
}

// withoutCharset returns a copy of h whose Content-Type carries no charset, so
// go-message leaves the decoded bytes as they are.
func withoutCharset(h message.Header) message.Header {
	t, params, err := h.ContentType()
	if err != nil || params["charset"] == "" {
		return h
	}
	h = h.Copy()
	delete(params, "charset")
	h.SetContentType(t, params)
	return h
}

// headerText decodes an RFC 2047 header. Values that cannot be decoded are
// returned raw and a missing header is "".
func headerText(h mail.Header, key string) string {
	text, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}
	return text
}

// partContentType defaults to text/plain like RFC 2045 does for parts without
// a usable Content-Type. A malformed parameter list still yields the type.
func partContentType(h message.Header) string {
	t, _, err := h.ContentType()
	if err == nil {
		return strings.ToLower(t)
	}
	if t, _, err = mime.ParseMediaType(h.Get("Content-Type")); err == mime.ErrInvalidMediaParameter && t != "" {
		return strings.ToLower(t)
	}
	return "text/plain"
}

// Sanitize drops every rune that is not a letter, digit, underscore or
// whitespace. Unicode separators such as no-break space count as whitespace.
func Sanitize(s string) string {
	return illegalNameChars.ReplaceAllString(s, "")
}

// BaseFilename is the first SubjectFilenameLength runes of the sanitized
// subject followed by "_" and the identifier.
func BaseFilename(subject, id string) string {
	runes := []rune(subject)
	if len(runes) > base.SubjectFilenameLength {
		runes = runes[:base.SubjectFilenameLength]
	}
	return fmt.Sprintf("%s_%s", string(runes), id)
}

// AttachmentFilename strips any directory components from a sender-supplied
// name. It returns "" when nothing usable is left.
func AttachmentFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

// HTMLDocument wraps an html part with the message subject and sender.
func HTMLDocument(subject, from string, payload []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<html><body>\n<h2>%s</h2>\n<p>From: %s</p>\n", subject, from)
	buf.Write(payload)
	buf.WriteString("\n</body></html>")
	return buf.Bytes()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
