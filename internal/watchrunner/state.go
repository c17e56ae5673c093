package watchrunner

import (
	"sort"
	"sync"
	"time"

	"aaronromeo.com/imaparchiver/pkg/models/idset"
)

// MailboxState is what the scheduler remembers about one mailbox between
// cycles. It lives only in memory.
type MailboxState struct {
	Known idset.Set
	// Retry maps a failed identifier to the archive attempts it has left.
	Retry map[string]int

	LastArchived int
	LastFailed   int
	LastErr      string
}

func newMailboxState() *MailboxState {
	return &MailboxState{Known: idset.New(), Retry: map[string]int{}}
}

func (s *MailboxState) retryIDs() idset.Set {
	ids := make(idset.Set, len(s.Retry))
	for id := range s.Retry {
		ids.Add(id)
	}
	return ids
}

// State is shared between the scheduler loop and status readers.
type State struct {
	mu        sync.RWMutex
	mailboxes map[string]*MailboxState
	order     []string
	seeded    bool
	cycles    int
	lastCycle time.Time
}

func NewState() *State {
	return &State{mailboxes: map[string]*MailboxState{}}
}

// Mailbox returns the state for name, creating it on first use.
func (s *State) Mailbox(name string) *MailboxState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mailboxLocked(name)
}

func (s *State) mailboxLocked(name string) *MailboxState {
	st, ok := s.mailboxes[name]
	if !ok {
		st = newMailboxState()
		s.mailboxes[name] = st
		s.order = append(s.order, name)
	}
	return st
}

// MailboxStatus is a read-only view of one mailbox for reporting.
type MailboxStatus struct {
	Name         string   `json:"name"`
	Known        int      `json:"known"`
	Retry        []string `json:"retry"`
	LastArchived int      `json:"last_archived"`
	LastFailed   int      `json:"last_failed"`
	LastErr      string   `json:"last_error,omitempty"`
}

// Status is a copy of the scheduler state safe to hand to other goroutines.
type Status struct {
	Seeded    bool            `json:"seeded"`
	Cycles    int             `json:"cycles"`
	LastCycle time.Time       `json:"last_cycle"`
	Mailboxes []MailboxStatus `json:"mailboxes"`
}

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Seeded:    s.seeded,
		Cycles:    s.cycles,
		LastCycle: s.lastCycle,
		Mailboxes: make([]MailboxStatus, 0, len(s.order)),
	}
	for _, name := range s.order {
		st := s.mailboxes[name]
		retry := make([]string, 0, len(st.Retry))
		for id := range st.Retry {
			retry = append(retry, id)
		}
		sort.Strings(retry)
		status.Mailboxes = append(status.Mailboxes, MailboxStatus{
			Name:         name,
			Known:        st.Known.Len(),
			Retry:        retry,
			LastArchived: st.LastArchived,
			LastFailed:   st.LastFailed,
			LastErr:      st.LastErr,
		})
	}
	return status
}
