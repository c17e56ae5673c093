package base

import (
	"github.com/emersion/go-imap"
)

const (
	UPTRACE_SERVICE     = "imaparchiver"
	UPTRACE_DSN_ENV_VAR = "UPTRACE_DSN"

	DefaultBaseDir        = "/app/saved_emails"
	AttachmentsDir        = "attachments"
	InboxFolder           = "inbox"
	LegacyInboxDir        = "inbox"
	LegacyNonInboxDir     = "sent"
	SubjectFilenameLength = 50
)

// MailboxIdentity is a configured mailbox: display name, server folder and the
// directory (relative to the base directory) its bodies are written to.
type MailboxIdentity struct {
	Name   string `json:"name" yaml:"name"`
	Folder string `json:"folder" yaml:"folder"`
	Dir    string `json:"dir" yaml:"dir"`
}

// Client is an interface to abstract the client.Client methods used
type Client interface {
	Login(username string, password string) error
	Logout() error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	State() imap.ConnState
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidSearch(criteria *imap.SearchCriteria) (uids []uint32, err error)
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
}

// Sessioner opens a scoped, authenticated connection for the duration of fn.
type Sessioner interface {
	WithSession(fn func(c Client) error) error
}
