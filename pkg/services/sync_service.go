// Package services turns two snapshots of a mailbox into archive work.
package services

import (
	"context"
	"log/slog"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SyncResult reports what happened to each identifier of a batch. Err is set
// when the batch could not run at all, in which case every identifier that was
// not archived is in Failed.
type SyncResult struct {
	Archived idset.Set
	Failed   idset.Set
	Err      error
}

type SyncService interface {
	ProcessNewMessages(ctx context.Context, mb mailbox.Mailbox, prior, current, retry idset.Set) SyncResult
}

type SyncServiceImpl struct {
	sessioner   base.Sessioner
	archiver    mailbox.Archiver
	logger      *slog.Logger
	instruments *utils.Instruments
	tracer      trace.Tracer
}

// NewSyncService creates a SyncService that opens one session per batch.
// instruments may be nil.
func NewSyncService(sessioner base.Sessioner, archiver mailbox.Archiver, logger *slog.Logger, instruments *utils.Instruments) SyncService {
	return &SyncServiceImpl{
		sessioner:   sessioner,
		archiver:    archiver,
		logger:      logger,
		instruments: instruments,
		tracer:      otel.Tracer(base.UPTRACE_SERVICE),
	}
}

// ProcessNewMessages archives current minus prior, plus any retry identifiers
// still on the server. Nothing is opened when there is no work. A failure to
// open or select aborts the whole batch; a failure on one message does not.
func (s *SyncServiceImpl) ProcessNewMessages(ctx context.Context, mb mailbox.Mailbox, prior, current, retry idset.Set) SyncResult {
	id := mb.Identity()
	logger := s.logger.With(slog.String("mailbox", id.Name))

	newIDs := current.Difference(prior)
	retryIDs := retry.Intersect(current)
	work := newIDs.Union(retryIDs)

	result := SyncResult{Archived: idset.New(), Failed: idset.New()}
	if work.Len() == 0 {
		logger.DebugContext(ctx, "no new messages")
		return result
	}

	ctx, span := s.tracer.Start(ctx, "sync "+id.Name, trace.WithAttributes(
		attribute.String("mailbox", id.Name),
		attribute.Int("messages.new", newIDs.Len()),
		attribute.Int("messages.retry", retryIDs.Len()),
	))
	defer span.End()

	logger.InfoContext(ctx, "new messages found",
		slog.Int("new", newIDs.Len()),
		slog.Int("retry", retryIDs.Len()),
		slog.Any("ids", work.Slice()),
	)

	err := s.sessioner.WithSession(func(c base.Client) error {
		if _, err := c.Select(id.Folder, false); err != nil {
			return errors.Wrapf(err, "selecting %s", id.Folder)
		}
		for _, msgID := range work.Slice() {
			if ctx.Err() != nil {
				result.Failed.Add(msgID)
				continue
			}
			if err := s.archiver.Archive(ctx, c, msgID, mb.Targets()); err != nil {
				logger.ErrorContext(ctx, "failed to archive message",
					slog.String("id", msgID),
					slog.Any("error", utils.WrapError(err)),
				)
				result.Failed.Add(msgID)
				continue
			}
			result.Archived.Add(msgID)
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "sync batch aborted",
			slog.Int("messages", work.Len()),
			slog.Any("error", utils.WrapError(err)),
		)
		for msgID := range work {
			if !result.Archived.Contains(msgID) {
				result.Failed.Add(msgID)
			}
		}
		result.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if s.instruments != nil {
		attr := utils.MailboxAttr(id.Name)
		utils.Add(ctx, s.instruments.Archived, int64(result.Archived.Len()), attr)
		utils.Add(ctx, s.instruments.Failed, int64(result.Failed.Len()), attr)
	}

	logger.InfoContext(ctx, "sync batch finished",
		slog.Int("archived", result.Archived.Len()),
		slog.Int("failed", result.Failed.Len()),
	)
	return result
}
