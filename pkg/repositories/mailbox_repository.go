// Package repositories builds the configured mailboxes and the directory
// layout they archive into.
package repositories

import (
	"log/slog"
	"path/filepath"
	"strings"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/mailbox"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/pkg/errors"
)

const dirPerm = 0o755

// MailboxRepository defines the interface for mailbox storage operations.
type MailboxRepository interface {
	GetMailboxes() ([]mailbox.Mailbox, error)
	InitStorage() error
	DirsFor(id base.MailboxIdentity) mailbox.TargetDirs
}

// RepositoryConfig is the part of the configuration the repository needs.
type RepositoryConfig struct {
	BaseDir       string
	Mailboxes     []base.MailboxIdentity
	LegacyRouting bool
	Retry         utils.RetryPolicy
}

// StorageMailboxRepository implements MailboxRepository on a FileManager.
type StorageMailboxRepository struct {
	cfg         RepositoryConfig
	sessioner   base.Sessioner
	fileManager utils.FileManager
	logger      *slog.Logger
	instruments *utils.Instruments
}

// NewMailboxRepository creates a repository for the configured mailboxes.
// instruments may be nil.
func NewMailboxRepository(
	cfg RepositoryConfig,
	sessioner base.Sessioner,
	fileManager utils.FileManager,
	logger *slog.Logger,
	instruments *utils.Instruments,
) MailboxRepository {
	if cfg.BaseDir == "" {
		cfg.BaseDir = base.DefaultBaseDir
	}
	return &StorageMailboxRepository{
		cfg:         cfg,
		sessioner:   sessioner,
		fileManager: fileManager,
		logger:      logger,
		instruments: instruments,
	}
}

// DirsFor routes a mailbox to its body directory. With legacy routing the
// inbox folder goes to "inbox" and every other folder shares "sent".
func (r *StorageMailboxRepository) DirsFor(id base.MailboxIdentity) mailbox.TargetDirs {
	attachments := filepath.Join(r.cfg.BaseDir, base.AttachmentsDir)
	if r.cfg.LegacyRouting {
		dir := base.LegacyNonInboxDir
		if strings.EqualFold(id.Folder, base.InboxFolder) {
			dir = base.LegacyInboxDir
		}
		return mailbox.TargetDirs{Body: filepath.Join(r.cfg.BaseDir, dir), Attachments: attachments}
	}

	dir := id.Dir
	if dir == "" {
		dir = id.Name
	}
	return mailbox.TargetDirs{Body: filepath.Join(r.cfg.BaseDir, dir), Attachments: attachments}
}

// InitStorage creates the attachments directory and every body directory.
// It is safe to call when they already exist.
func (r *StorageMailboxRepository) InitStorage() error {
	dirs := []string{filepath.Join(r.cfg.BaseDir, base.AttachmentsDir)}
	if r.cfg.LegacyRouting {
		dirs = append(dirs,
			filepath.Join(r.cfg.BaseDir, base.LegacyInboxDir),
			filepath.Join(r.cfg.BaseDir, base.LegacyNonInboxDir),
		)
	} else {
		for _, id := range r.cfg.Mailboxes {
			dirs = append(dirs, r.DirsFor(id).Body)
		}
	}

	for _, dir := range dirs {
		if err := r.fileManager.MkdirAll(dir, dirPerm); err != nil {
			r.logger.Error("Failed to create archive directory",
				slog.String("dir", dir),
				slog.Any("error", utils.WrapError(err)))
			return errors.Wrapf(err, "creating %s", dir)
		}
	}

	r.logger.Info("Archive directories ready",
		slog.String("base_dir", r.cfg.BaseDir),
		slog.Int("count", len(dirs)))
	return nil
}

// GetMailboxes builds one mailbox per configured identity, in order.
func (r *StorageMailboxRepository) GetMailboxes() ([]mailbox.Mailbox, error) {
	mailboxes := make([]mailbox.Mailbox, 0, len(r.cfg.Mailboxes))
	for _, id := range r.cfg.Mailboxes {
		opts := []mailbox.MailboxOption{
			mailbox.WithIdentity(id),
			mailbox.WithDirs(r.DirsFor(id)),
			mailbox.WithSessioner(r.sessioner),
			mailbox.WithLogger(r.logger),
			mailbox.WithInstruments(r.instruments),
		}
		if r.cfg.Retry.MaxAttempts > 0 {
			opts = append(opts, mailbox.WithRetryPolicy(r.cfg.Retry))
		}
		mb, err := mailbox.NewMailbox(opts...)
		if err != nil {
			r.logger.Error("Failed to build mailbox",
				slog.String("mailbox", id.Name),
				slog.Any("error", utils.WrapError(err)))
			return nil, errors.Wrapf(err, "mailbox %q", id.Name)
		}
		mailboxes = append(mailboxes, mb)
	}

	r.logger.Info("Successfully built mailboxes",
		slog.Int("count", len(mailboxes)))
	return mailboxes, nil
}
