package testutil

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
)

func TestMockMailbox(t *testing.T) {
	mb := NewMockMailbox(TestMailboxData.Inbox, idset.New("1"), idset.New("1", "2"))
	ctx := context.Background()

	assert.True(t, idset.New("1").Equal(mb.Snapshot(ctx)))
	assert.True(t, idset.New("1", "2").Equal(mb.Snapshot(ctx)))
	assert.True(t, idset.New("1", "2").Equal(mb.Snapshot(ctx)))
	assert.Equal(t, 3, mb.SnapshotCalls)
	assert.Equal(t, "/archive/inbox", mb.Targets().Body)
}

func TestMockArchiver(t *testing.T) {
	a := &MockArchiver{
		ArchiveFunc: func(_ context.Context, _ base.Client, id string, _ mailbox.TargetDirs) error {
			if id == "2" {
				return errors.New("boom")
			}
			return nil
		},
	}
	ctx := context.Background()

	assert.NoError(t, a.Archive(ctx, nil, "1", mailbox.TargetDirs{}))
	assert.Error(t, a.Archive(ctx, nil, "2", mailbox.TargetDirs{}))
	assert.Equal(t, []string{"1", "2"}, a.IDs())
}

func TestMockSyncService(t *testing.T) {
	s := &MockSyncService{}
	mb := NewMockMailbox(TestMailboxData.Sent)

	result := s.ProcessNewMessages(context.Background(), mb, idset.New("1"), idset.New("1", "2", "3"), idset.New("1", "9"))

	assert.True(t, idset.New("1", "2", "3").Equal(result.Archived))
	assert.Len(t, s.CallsFor("sent"), 1)
	assert.Empty(t, s.CallsFor("inbox"))
}
