package watchrunner

import (
	"context"
	"log/slog"
	"time"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
	"aaronromeo.com/imaparchiver/pkg/services"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultPollInterval = 5 * time.Second

type Deps struct {
	Mailboxes    []mailbox.Mailbox
	Sync         services.SyncService
	Log          *slog.Logger
	PollInterval time.Duration
	// ArchiveRetries is how many later cycles retry a failed identifier.
	// Zero drops failures immediately.
	ArchiveRetries int
	Announce       func(ctx context.Context, mailbox string, count int)
	Instruments    *utils.Instruments
}

// Runner polls every mailbox in turn, one cycle at a time.
type Runner struct {
	deps   Deps
	state  *State
	tracer trace.Tracer
}

func New(deps Deps) (*Runner, error) {
	if len(deps.Mailboxes) == 0 {
		return nil, errors.New("requires at least one mailbox")
	}
	if deps.Sync == nil {
		return nil, errors.New("requires sync service")
	}
	if deps.Log == nil {
		return nil, errors.New("requires slogger")
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}
	if deps.ArchiveRetries < 0 {
		return nil, errors.Errorf("archive retries must not be negative, got %d", deps.ArchiveRetries)
	}

	state := NewState()
	for _, mb := range deps.Mailboxes {
		state.Mailbox(mb.Identity().Name)
	}

	return &Runner{
		deps:   deps,
		state:  state,
		tracer: otel.Tracer(base.UPTRACE_SERVICE),
	}, nil
}

func (r *Runner) State() *State {
	return r.state
}

// Seed records what is already in every mailbox so that only later arrivals
// are archived.
func (r *Runner) Seed(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "seed")
	defer span.End()

	for _, mb := range r.deps.Mailboxes {
		name := mb.Identity().Name
		ids := mb.Snapshot(ctx)

		r.state.mu.Lock()
		r.state.mailboxLocked(name).Known = ids
		r.state.mu.Unlock()

		r.deps.Log.InfoContext(ctx, "seeded mailbox",
			slog.String("mailbox", name),
			slog.Int("known", ids.Len()),
		)
	}

	r.state.mu.Lock()
	r.state.seeded = true
	r.state.mu.Unlock()
}

// CycleReport summarises one cycle per mailbox name.
type CycleReport map[string]services.SyncResult

// RunCycle snapshots every mailbox, archives what is new, and then replaces
// each baseline with the snapshot just taken. The baseline moves even when
// archiving failed or the snapshot came back empty.
func (r *Runner) RunCycle(ctx context.Context) CycleReport {
	ctx, span := r.tracer.Start(ctx, "cycle")
	defer span.End()

	currents := make(map[string]idset.Set, len(r.deps.Mailboxes))
	for _, mb := range r.deps.Mailboxes {
		currents[mb.Identity().Name] = mb.Snapshot(ctx)
	}

	report := make(CycleReport, len(r.deps.Mailboxes))
	for _, mb := range r.deps.Mailboxes {
		name := mb.Identity().Name
		current := currents[name]

		r.state.mu.RLock()
		st := r.state.mailboxes[name]
		prior := st.Known
		retry := st.retryIDs()
		r.state.mu.RUnlock()

		result := r.deps.Sync.ProcessNewMessages(ctx, mb, prior, current, retry)
		report[name] = result

		r.state.mu.Lock()
		r.updateRetry(ctx, name, st, current, result)
		st.LastArchived = result.Archived.Len()
		st.LastFailed = result.Failed.Len()
		st.LastErr = ""
		if result.Err != nil {
			st.LastErr = result.Err.Error()
		}
		r.state.mu.Unlock()
	}

	r.state.mu.Lock()
	for _, mb := range r.deps.Mailboxes {
		name := mb.Identity().Name
		r.state.mailboxes[name].Known = currents[name]
	}
	r.state.cycles++
	r.state.lastCycle = time.Now()
	r.state.mu.Unlock()

	archived := 0
	for _, result := range report {
		archived += result.Archived.Len()
	}
	span.SetAttributes(attribute.Int("messages.archived", archived))
	if r.deps.Instruments != nil {
		utils.Add(ctx, r.deps.Instruments.Cycles, 1)
	}

	r.announce(ctx, report)
	return report
}

// updateRetry must be called with the state lock held.
func (r *Runner) updateRetry(ctx context.Context, name string, st *MailboxState, current idset.Set, result services.SyncResult) {
	for id := range st.Retry {
		if result.Archived.Contains(id) || !current.Contains(id) {
			delete(st.Retry, id)
		}
	}

	for id := range result.Failed {
		left, queued := st.Retry[id]
		if queued {
			left--
		} else {
			left = r.deps.ArchiveRetries
		}
		if left <= 0 {
			delete(st.Retry, id)
			if queued {
				r.deps.Log.WarnContext(ctx, "giving up on message",
					slog.String("mailbox", name),
					slog.String("id", id),
				)
			}
			continue
		}
		st.Retry[id] = left
	}
}

func (r *Runner) announce(ctx context.Context, report CycleReport) {
	if r.deps.Announce == nil {
		return
	}
	for _, mb := range r.deps.Mailboxes {
		name := mb.Identity().Name
		if n := report[name].Archived.Len(); n > 0 {
			r.deps.Announce(ctx, name, n)
		}
	}
}

// Run seeds the baselines and then runs a cycle every PollInterval until ctx
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.deps.Log.InfoContext(ctx, "starting watch",
		slog.Int("mailboxes", len(r.deps.Mailboxes)),
		slog.Duration("poll_interval", r.deps.PollInterval),
		slog.Int("archive_retries", r.deps.ArchiveRetries),
	)
	r.Seed(ctx)

	timer := time.NewTimer(r.deps.PollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.deps.Log.InfoContext(context.WithoutCancel(ctx), "watch stopped")
			return nil
		case <-timer.C:
			if ctx.Err() != nil {
				continue
			}
		}

		r.RunCycle(ctx)
		timer.Reset(r.deps.PollInterval)
	}
}
