package cli

import (
	"context"
	"log/slog"

	"aaronromeo.com/imaparchiver/internal/announcer"
	"aaronromeo.com/imaparchiver/internal/config"
	"aaronromeo.com/imaparchiver/internal/status"
	"aaronromeo.com/imaparchiver/internal/watchrunner"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
	"aaronromeo.com/imaparchiver/pkg/services"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var newStatusServer = status.New

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	eng, err := buildEngine(c, cfg)
	if err != nil {
		return err
	}
	defer eng.close(c.Context)

	eng.logger.Info(config.Summary(cfg))

	runner, err := eng.newRunner()
	if err != nil {
		return err
	}

	var srv *status.Server
	if cfg.Status.Addr != "" {
		srv, err = newStatusServer(cfg.Status.Addr, runner.State(), eng.logger)
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		return runner.Run(ctx)
	})
	if srv != nil {
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	return g.Wait()
}

// newRunner prepares the archive directories and wires the scheduler.
func (e *engine) newRunner() (*watchrunner.Runner, error) {
	if err := e.repo.InitStorage(); err != nil {
		return nil, err
	}

	mailboxes, err := e.repo.GetMailboxes()
	if err != nil {
		return nil, err
	}

	archiver, err := mailbox.NewArchiver(
		mailbox.WithFileManager(e.fileManager),
		mailbox.WithArchiverLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}

	deps := watchrunner.Deps{
		Mailboxes:      mailboxes,
		Sync:           services.NewSyncService(e.sessioner, archiver, e.logger, e.instruments),
		Log:            e.logger,
		PollInterval:   e.cfg.PollInterval,
		ArchiveRetries: e.cfg.ArchiveRetries,
		Instruments:    e.instruments,
	}

	if config.ReportingEnabled() {
		announce := announcer.New(announcer.WithWebhookURL(config.WebhookURL()))
		deps.Announce = func(ctx context.Context, name string, count int) {
			if err := announce.Do(ctx, name, count); err != nil {
				e.logger.WarnContext(ctx, "announcement failed",
					slog.String("mailbox", name),
					slog.Any("error", utils.WrapError(err)),
				)
			}
		}
	}

	return watchrunner.New(deps)
}
