package mailbox_test

import (
	"context"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/mock"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
	"aaronromeo.com/imaparchiver/pkg/utils"
)

var inbox = base.MailboxIdentity{Name: "inbox", Folder: "INBOX", Dir: "inbox"}

func fastRetry(attempts int) utils.RetryPolicy {
	return utils.RetryPolicy{MaxAttempts: attempts, Delay: 0}
}

func TestNewMailbox(t *testing.T) {
	logger := mock.SetupLogger(t)
	sessioner := &mock.Sessioner{}

	tests := []struct {
		name    string
		options []mailbox.MailboxOption
		wantErr bool
	}{
		{
			name: "valid configuration",
			options: []mailbox.MailboxOption{
				mailbox.WithIdentity(inbox),
				mailbox.WithSessioner(sessioner),
				mailbox.WithLogger(logger),
			},
			wantErr: false,
		},
		{
			name: "missing folder",
			options: []mailbox.MailboxOption{
				mailbox.WithIdentity(base.MailboxIdentity{Name: "inbox"}),
				mailbox.WithSessioner(sessioner),
				mailbox.WithLogger(logger),
			},
			wantErr: true,
		},
		{
			name: "missing sessioner",
			options: []mailbox.MailboxOption{
				mailbox.WithIdentity(inbox),
				mailbox.WithLogger(logger),
			},
			wantErr: true,
		},
		{
			name: "missing logger",
			options: []mailbox.MailboxOption{
				mailbox.WithIdentity(inbox),
				mailbox.WithSessioner(sessioner),
			},
			wantErr: true,
		},
		{
			name: "zero attempts",
			options: []mailbox.MailboxOption{
				mailbox.WithIdentity(inbox),
				mailbox.WithSessioner(sessioner),
				mailbox.WithLogger(logger),
				mailbox.WithRetryPolicy(fastRetry(0)),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb, err := mailbox.NewMailbox(tt.options...)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, mb)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, inbox, mb.Identity())
		})
	}
}

func newMailbox(t *testing.T, sessioner base.Sessioner, attempts int) *mailbox.MailboxImpl {
	t.Helper()
	mb, err := mailbox.NewMailbox(
		mailbox.WithIdentity(inbox),
		mailbox.WithDirs(mailbox.TargetDirs{Body: "/archive/inbox", Attachments: "/archive/attachments"}),
		mailbox.WithSessioner(sessioner),
		mailbox.WithLogger(mock.SetupLogger(t)),
		mailbox.WithRetryPolicy(fastRetry(attempts)),
	)
	require.NoError(t, err)
	return mb
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("lists every uid read-only", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewMockClient(ctrl)
		gomock.InOrder(
			c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{Name: "INBOX"}, nil),
			c.EXPECT().UidSearch(imap.NewSearchCriteria()).Return([]uint32{101, 102}, nil),
		)
		sessioner := &mock.Sessioner{Client: c}

		got := newMailbox(t, sessioner, 3).Snapshot(ctx)

		assert.True(t, idset.New("101", "102").Equal(got))
		assert.Equal(t, 1, sessioner.Opened)
	})

	t.Run("empty folder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewMockClient(ctrl)
		c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{}, nil)
		c.EXPECT().UidSearch(gomock.Any()).Return(nil, nil)

		got := newMailbox(t, &mock.Sessioner{Client: c}, 3).Snapshot(ctx)

		assert.NotNil(t, got)
		assert.Equal(t, 0, got.Len())
	})

	t.Run("recovers after a failed search", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewMockClient(ctrl)
		c.EXPECT().Select("INBOX", true).Return(&imap.MailboxStatus{}, nil).Times(2)
		gomock.InOrder(
			c.EXPECT().UidSearch(gomock.Any()).Return(nil, errors.New("BAD search")),
			c.EXPECT().UidSearch(gomock.Any()).Return([]uint32{7}, nil),
		)
		sessioner := &mock.Sessioner{Client: c}

		got := newMailbox(t, sessioner, 3).Snapshot(ctx)

		assert.True(t, idset.New("7").Equal(got))
		assert.Equal(t, 2, sessioner.Opened)
	})

	t.Run("degrades to empty after every select fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := mock.NewMockClient(ctrl)
		c.EXPECT().Select("INBOX", true).Return(nil, errors.New("NO such mailbox")).Times(3)
		sessioner := &mock.Sessioner{Client: c}

		got := newMailbox(t, sessioner, 3).Snapshot(ctx)

		assert.Equal(t, 0, got.Len())
		assert.Equal(t, 3, sessioner.Opened)
	})

	t.Run("degrades to empty when connections fail", func(t *testing.T) {
		sessioner := &mock.Sessioner{Err: errors.New("connection refused")}

		got := newMailbox(t, sessioner, 3).Snapshot(ctx)

		assert.Equal(t, 0, got.Len())
		assert.Equal(t, 3, sessioner.Opened)
	})

	t.Run("stops retrying once cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		sessioner := &mock.Sessioner{Err: errors.New("connection refused")}

		got := newMailbox(t, sessioner, 5).Snapshot(cancelled)

		assert.Equal(t, 0, got.Len())
		assert.Equal(t, 1, sessioner.Opened)
	})
}
