package mailbox

import (
	"context"
	"log/slog"
	"time"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/emersion/go-imap"
	"github.com/pkg/errors"
)

type MailboxImpl struct {
	base.MailboxIdentity
	Dirs TargetDirs `json:"dirs"`

	sessioner   base.Sessioner
	logger      *slog.Logger
	retry       utils.RetryPolicy
	instruments *utils.Instruments
	retrySet    bool
}

type MailboxOption func(*MailboxImpl) error

func NewMailbox(opts ...MailboxOption) (*MailboxImpl, error) {
	var mb MailboxImpl
	for _, opt := range opts {
		err := opt(&mb)
		if err != nil {
			return nil, err
		}
	}

	if mb.Name == "" {
		return nil, errors.New("requires mailbox name")
	}

	if mb.Folder == "" {
		return nil, errors.New("requires mailbox folder")
	}

	if mb.sessioner == nil {
		return nil, errors.New("requires sessioner")
	}

	if mb.logger == nil {
		return nil, errors.New("requires slogger")
	}

	if !mb.retrySet {
		mb.retry = utils.DefaultRetryPolicy()
	}

	return &mb, nil
}

func WithIdentity(identity base.MailboxIdentity) MailboxOption {
	return func(mb *MailboxImpl) error {
		mb.MailboxIdentity = identity
		return nil
	}
}

func WithDirs(dirs TargetDirs) MailboxOption {
	return func(mb *MailboxImpl) error {
		mb.Dirs = dirs
		return nil
	}
}

func WithSessioner(s base.Sessioner) MailboxOption {
	return func(mb *MailboxImpl) error {
		mb.sessioner = s
		return nil
	}
}

func WithLogger(logger *slog.Logger) MailboxOption {
	return func(mb *MailboxImpl) error {
		mb.logger = logger
		return nil
	}
}

func WithRetryPolicy(policy utils.RetryPolicy) MailboxOption {
	return func(mb *MailboxImpl) error {
		if policy.MaxAttempts < 1 {
			return errors.Errorf("retry policy needs at least one attempt, got %d", policy.MaxAttempts)
		}
		if policy.Delay < 0 {
			return errors.Errorf("retry delay must not be negative, got %s", policy.Delay)
		}
		mb.retry = policy
		mb.retrySet = true
		return nil
	}
}

func WithInstruments(instruments *utils.Instruments) MailboxOption {
	return func(mb *MailboxImpl) error {
		mb.instruments = instruments
		return nil
	}
}

func (mb *MailboxImpl) Identity() base.MailboxIdentity {
	return mb.MailboxIdentity
}

func (mb *MailboxImpl) Targets() TargetDirs {
	return mb.Dirs
}

// Snapshot lists every identifier currently in the folder. Each attempt opens
// its own session and examines the folder read-only. When every attempt fails,
// or ctx ends, the result is an empty set rather than an error.
func (mb *MailboxImpl) Snapshot(ctx context.Context) idset.Set {
	logger := mb.logger.With(
		slog.String("mailbox", mb.Name),
		slog.String("folder", utils.DecodeFolderName(mb.Folder)),
	)

	var ids idset.Set
	err := mb.retry.Retry(ctx, func(attempt int) error {
		uids, err := mb.listUIDs()
		if err != nil {
			mb.countFailure(ctx)
			return err
		}
		ids = idset.FromUIDs(uids)
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.Warn("snapshot attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", mb.retry.MaxAttempts),
			slog.Duration("retry_in", wait),
			slog.Any("error", utils.WrapError(err)),
		)
	})
	if err != nil {
		logger.Error("snapshot failed, treating mailbox as empty",
			slog.Int("max_attempts", mb.retry.MaxAttempts),
			slog.Any("error", utils.WrapError(err)),
		)
		return idset.New()
	}

	logger.Debug("snapshot taken", slog.Int("count", ids.Len()))
	return ids
}

func (mb *MailboxImpl) listUIDs() ([]uint32, error) {
	var uids []uint32
	err := mb.sessioner.WithSession(func(c base.Client) error {
		if _, err := c.Select(mb.Folder, true); err != nil {
			return errors.Wrapf(err, "examining %s", mb.Folder)
		}
		var err error
		uids, err = c.UidSearch(imap.NewSearchCriteria())
		if err != nil {
			return errors.Wrapf(err, "searching %s", mb.Folder)
		}
		return nil
	})
	return uids, err
}

func (mb *MailboxImpl) countFailure(ctx context.Context) {
	if mb.instruments == nil {
		return
	}
	utils.Add(ctx, mb.instruments.SnapshotFailures, 1, utils.MailboxAttr(mb.Name))
}
