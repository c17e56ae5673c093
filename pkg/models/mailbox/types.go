package mailbox

import (
	"context"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
)

type Mailbox interface {
	Identity() base.MailboxIdentity
	Targets() TargetDirs
	Snapshot(ctx context.Context) idset.Set
}

// TargetDirs are the absolute directories a mailbox archives into. Attachments
// is shared between every mailbox.
type TargetDirs struct {
	Body        string `json:"body"`
	Attachments string `json:"attachments"`
}

// DecodedMessage is a fetched message after header decoding and sanitizing.
type DecodedMessage struct {
	Subject string
	From    string
	Parts   []MimePart
}

// MimePart is a leaf of the MIME tree with its transfer encoding removed.
type MimePart struct {
	ContentType string
	Disposition string
	Filename    string
	Payload     []byte
}

func (p MimePart) IsAttachment() bool {
	return containsFold(p.Disposition, "attachment") && p.Filename != ""
}
