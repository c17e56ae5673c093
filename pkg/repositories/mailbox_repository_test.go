package repositories

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/mock"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
	"aaronromeo.com/imaparchiver/pkg/utils"
)

var identities = []base.MailboxIdentity{
	{Name: "inbox", Folder: "inbox", Dir: "inbox"},
	{Name: "sent", Folder: "&BB4EQgQ,BEAEMAQyBDsENQQ9BD0ESwQ1-", Dir: "sent"},
	{Name: "junk", Folder: "&BCEEPwQwBDw-"},
}

func newRepo(t *testing.T, fm utils.FileManager, legacy bool) MailboxRepository {
	return NewMailboxRepository(
		RepositoryConfig{BaseDir: "/data", Mailboxes: identities, LegacyRouting: legacy, Retry: utils.RetryPolicy{MaxAttempts: 2}},
		&mock.Sessioner{},
		fm,
		mock.SetupLogger(t),
		nil,
	)
}

func TestDirsFor(t *testing.T) {
	tests := []struct {
		name   string
		legacy bool
		id     base.MailboxIdentity
		want   string
	}{
		{name: "explicit dir", id: identities[1], want: "/data/sent"},
		{name: "dir defaults to name", id: identities[2], want: "/data/junk"},
		{name: "legacy inbox", legacy: true, id: identities[0], want: "/data/inbox"},
		{name: "legacy inbox is case insensitive", legacy: true, id: base.MailboxIdentity{Name: "in", Folder: "INBOX"}, want: "/data/inbox"},
		{name: "legacy everything else", legacy: true, id: identities[2], want: "/data/sent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirs := newRepo(t, mock.NewMockFileWriter(), tt.legacy).DirsFor(tt.id)
			assert.Equal(t, tt.want, dirs.Body)
			assert.Equal(t, "/data/attachments", dirs.Attachments)
		})
	}
}

func TestInitStorage(t *testing.T) {
	t.Run("one directory per mailbox", func(t *testing.T) {
		fm := mock.NewMockFileWriter()
		require.NoError(t, newRepo(t, fm, false).InitStorage())

		assert.Len(t, fm.Mkdirs, 4)
		for _, dir := range []string{"/data/attachments", "/data/inbox", "/data/sent", "/data/junk"} {
			assert.Contains(t, fm.Mkdirs, dir)
		}
	})

	t.Run("legacy layout", func(t *testing.T) {
		fm := mock.NewMockFileWriter()
		require.NoError(t, newRepo(t, fm, true).InitStorage())

		assert.Len(t, fm.Mkdirs, 3)
		assert.Contains(t, fm.Mkdirs, "/data/sent")
	})

	t.Run("failure is returned", func(t *testing.T) {
		fm := mock.NewMockFileWriter()
		fm.Err = errors.New("read-only file system")
		assert.ErrorContains(t, newRepo(t, fm, false).InitStorage(), "read-only")
	})
}

func TestGetMailboxes(t *testing.T) {
	mailboxes, err := newRepo(t, mock.NewMockFileWriter(), false).GetMailboxes()
	require.NoError(t, err)
	require.Len(t, mailboxes, 3)

	for i, mb := range mailboxes {
		assert.Equal(t, identities[i], mb.Identity())
	}
	assert.Equal(t, mailbox.TargetDirs{Body: "/data/junk", Attachments: "/data/attachments"}, mailboxes[2].Targets())

	repo := NewMailboxRepository(
		RepositoryConfig{Mailboxes: []base.MailboxIdentity{{Name: "broken"}}},
		&mock.Sessioner{}, mock.NewMockFileWriter(), mock.SetupLogger(t), nil,
	)
	_, err = repo.GetMailboxes()
	assert.Error(t, err)
}
