package cli

import (
	"context"
	"log/slog"

	"aaronromeo.com/imaparchiver/internal/config"
	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/imapmanager"
	"aaronromeo.com/imaparchiver/pkg/repositories"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// newSessioner opens IMAP sessions with the environment credentials.
var newSessioner = func(ctx context.Context, env config.IMAPEnv, logger *slog.Logger) (base.Sessioner, error) {
	return imapmanager.NewImapManager(
		imapmanager.WithTLSConfig(env.Address(), nil),
		imapmanager.WithAuth(env.User, env.Pass),
		imapmanager.WithLogger(logger),
		imapmanager.WithCtx(ctx),
	)
}

// engine is everything run and snapshot share.
type engine struct {
	cfg         config.Config
	logger      *slog.Logger
	instruments *utils.Instruments
	sessioner   base.Sessioner
	fileManager utils.FileManager
	repo        repositories.MailboxRepository
	shutdown    func(context.Context) error
}

func buildEngine(c *cli.Context, cfg config.Config) (*engine, error) {
	ctx := c.Context

	shutdown, err := utils.SetupOTelSDK(ctx, cfg.Telemetry.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "setting up telemetry")
	}

	eng := &engine{
		cfg:      cfg,
		logger:   utils.NewLogger(cfg.Telemetry.Mode, c.App.ErrWriter, c.Bool("verbose")),
		shutdown: shutdown,
	}

	fail := func(err error) (*engine, error) {
		eng.close(ctx)
		return nil, err
	}

	eng.instruments, err = utils.NewInstruments()
	if err != nil {
		return fail(errors.Wrap(err, "creating instruments"))
	}

	imapEnv, err := config.IMAPEnvFromEnv()
	if err != nil {
		return fail(err)
	}
	eng.sessioner, err = newSessioner(ctx, imapEnv, eng.logger)
	if err != nil {
		return fail(errors.Wrap(err, "creating imap session manager"))
	}

	eng.fileManager = utils.OSFileManager{}
	s3Cfg, mirror, err := config.S3EnvFromEnv()
	if err != nil {
		return fail(err)
	}
	if mirror {
		client, err := utils.NewS3Client(s3Cfg)
		if err != nil {
			return fail(err)
		}
		eng.fileManager = utils.NewS3Mirror(ctx, eng.fileManager, client, s3Cfg.Bucket, cfg.BaseDir)
		eng.logger.Info("mirroring archive to bucket", slog.String("bucket", s3Cfg.Bucket))
	}

	eng.repo = repositories.NewMailboxRepository(
		repositories.RepositoryConfig{
			BaseDir:       cfg.BaseDir,
			Mailboxes:     cfg.Mailboxes,
			LegacyRouting: cfg.LegacyRouting,
			Retry:         cfg.Retry.Policy(),
		},
		eng.sessioner,
		eng.fileManager,
		eng.logger,
		eng.instruments,
	)
	return eng, nil
}

func (e *engine) close(ctx context.Context) {
	if err := e.shutdown(context.WithoutCancel(ctx)); err != nil {
		e.logger.Error("telemetry shutdown failed", slog.Any("error", utils.WrapError(err)))
	}
}
