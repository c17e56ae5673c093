// Package testutil provides hand-written fakes for the mailbox and sync
// interfaces. Behaviour is injected through function fields and every call is
// recorded for assertions.
package testutil

import (
	"context"
	"sync"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
	"aaronromeo.com/imaparchiver/pkg/services"
)

// MockMailbox provides a mock implementation of the mailbox.Mailbox interface.
type MockMailbox struct {
	ID   base.MailboxIdentity
	Dirs mailbox.TargetDirs

	// Snapshots are returned one per call; the last one repeats.
	Snapshots    []idset.Set
	SnapshotFunc func(ctx context.Context) idset.Set

	SnapshotCalls int
}

func NewMockMailbox(id base.MailboxIdentity, snapshots ...idset.Set) *MockMailbox {
	return &MockMailbox{
		ID:        id,
		Dirs:      mailbox.TargetDirs{Body: "/archive/" + id.Dir, Attachments: "/archive/attachments"},
		Snapshots: snapshots,
	}
}

func (m *MockMailbox) Identity() base.MailboxIdentity {
	return m.ID
}

func (m *MockMailbox) Targets() mailbox.TargetDirs {
	return m.Dirs
}

func (m *MockMailbox) Snapshot(ctx context.Context) idset.Set {
	m.SnapshotCalls++
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx)
	}
	if len(m.Snapshots) == 0 {
		return idset.New()
	}
	i := m.SnapshotCalls - 1
	if i >= len(m.Snapshots) {
		i = len(m.Snapshots) - 1
	}
	return m.Snapshots[i]
}

// ArchiveCall records one Archive invocation.
type ArchiveCall struct {
	ID   string
	Dirs mailbox.TargetDirs
}

// MockArchiver provides a mock implementation of mailbox.Archiver.
type MockArchiver struct {
	ArchiveFunc func(ctx context.Context, c base.Client, id string, dirs mailbox.TargetDirs) error

	mu    sync.Mutex
	Calls []ArchiveCall
}

func (m *MockArchiver) Archive(ctx context.Context, c base.Client, id string, dirs mailbox.TargetDirs) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, ArchiveCall{ID: id, Dirs: dirs})
	m.mu.Unlock()
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, c, id, dirs)
	}
	return nil
}

// IDs returns the archived identifiers in call order.
func (m *MockArchiver) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.Calls))
	for _, call := range m.Calls {
		ids = append(ids, call.ID)
	}
	return ids
}

// SyncCall records the sets one ProcessNewMessages call received.
type SyncCall struct {
	Mailbox string
	Prior   idset.Set
	Current idset.Set
	Retry   idset.Set
}

// MockSyncService provides a mock implementation of services.SyncService.
// Without ProcessNewMessagesFunc it archives every new identifier.
type MockSyncService struct {
	ProcessNewMessagesFunc func(ctx context.Context, mb mailbox.Mailbox, prior, current, retry idset.Set) services.SyncResult

	Calls []SyncCall
}

func (m *MockSyncService) ProcessNewMessages(ctx context.Context, mb mailbox.Mailbox, prior, current, retry idset.Set) services.SyncResult {
	m.Calls = append(m.Calls, SyncCall{
		Mailbox: mb.Identity().Name,
		Prior:   prior,
		Current: current,
		Retry:   retry,
	})
	if m.ProcessNewMessagesFunc != nil {
		return m.ProcessNewMessagesFunc(ctx, mb, prior, current, retry)
	}
	return services.SyncResult{
		Archived: current.Difference(prior).Union(retry.Intersect(current)),
		Failed:   idset.New(),
	}
}

// CallsFor returns the recorded calls for one mailbox.
func (m *MockSyncService) CallsFor(name string) []SyncCall {
	var calls []SyncCall
	for _, call := range m.Calls {
		if call.Mailbox == name {
			calls = append(calls, call)
		}
	}
	return calls
}

// TestMailboxData provides common mailbox identities.
var TestMailboxData = struct {
	Inbox base.MailboxIdentity
	Sent  base.MailboxIdentity
	Spam  base.MailboxIdentity
}{
	Inbox: base.MailboxIdentity{Name: "inbox", Folder: "INBOX", Dir: "inbox"},
	Sent:  base.MailboxIdentity{Name: "sent", Folder: "&BB4EQgQ,BEAEMAQyBDsENQQ9BD0ESwQ1-", Dir: "sent"},
	Spam:  base.MailboxIdentity{Name: "junk", Folder: "&BCEEPwQwBDw-", Dir: "junk"},
}
