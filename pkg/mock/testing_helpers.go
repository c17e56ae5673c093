package mock

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"testing"

	imap "github.com/emersion/go-imap"
	gomock "go.uber.org/mock/gomock"
)

// SetupLogger sets up a logger that only outputs if the test fails
func SetupLogger(t *testing.T) *slog.Logger {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Cleanup(func() {
		if t.Failed() {
			os.Stdout.Write(buf.Bytes()) //nolint:errcheck
		}
	})

	return logger
}

// StringLiteral is a simple imap.Literal implementation that wraps a string.
type StringLiteral struct {
	s   string
	pos int
}

// NewStringLiteral creates a new StringLiteral based on a string.
func NewStringLiteral(s string) *StringLiteral {
	return &StringLiteral{s: s}
}

func (l *StringLiteral) Read(p []byte) (n int, err error) {
	if l.pos >= len(l.s) {
		return 0, io.EOF
	}
	n = copy(p, l.s[l.pos:])
	l.pos += n
	return n, nil
}

// Len returns the length of the underlying string.
func (l *StringLiteral) Len() int {
	return len(l.s)
}

// NewRawMessage wraps an RFC822 message the way a UID FETCH (RFC822) returns it.
func NewRawMessage(uid uint32, raw string) *imap.Message {
	return &imap.Message{
		Uid:  uid,
		Body: map[*imap.BodySectionName]imap.Literal{{}: NewStringLiteral(raw)},
	}
}

// FetchReturning is a DoAndReturn body for UidFetch that streams msgs and
// closes the channel like the real client does.
func FetchReturning(msgs ...*imap.Message) func(*imap.SeqSet, []imap.FetchItem, chan *imap.Message) error {
	return func(_ *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
		defer close(ch)
		for _, msg := range msgs {
			ch <- msg
		}
		return nil
	}
}

// FetchFailing closes the channel without messages and returns err.
func FetchFailing(err error) func(*imap.SeqSet, []imap.FetchItem, chan *imap.Message) error {
	return func(_ *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
		close(ch)
		return err
	}
}

type seqSetMatcher struct {
	want *imap.SeqSet
}

func (m seqSetMatcher) Matches(x interface{}) bool {
	set, ok := x.(*imap.SeqSet)
	if !ok || set == nil {
		return false
	}
	return set.String() == m.want.String()
}

func (m seqSetMatcher) String() string {
	return "is sequence set " + m.want.String()
}

// SeqSetOf matches a *imap.SeqSet holding exactly the given numbers.
func SeqSetOf(nums ...uint32) gomock.Matcher {
	want := new(imap.SeqSet)
	want.AddNum(nums...)
	return seqSetMatcher{want: want}
}

// ExpectSession records the calls ImapManagerImpl.WithSession makes around
// the session body: a state check, a login and the final logout.
func ExpectSession(m *MockClient, username, password string) {
	m.EXPECT().State().Return(imap.NotAuthenticatedState)
	m.EXPECT().Login(username, password).Return(nil)
	m.EXPECT().Logout().Return(nil)
}
