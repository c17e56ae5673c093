package mailbox

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/models/idset"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/emersion/go-imap"
	"github.com/pkg/errors"
)

const archiveFilePerm = 0o644

type Archiver interface {
	Archive(ctx context.Context, c base.Client, id string, dirs TargetDirs) error
}

type ArchiverImpl struct {
	fileManager utils.FileManager
	logger      *slog.Logger
}

type ArchiverOption func(*ArchiverImpl) error

func NewArchiver(opts ...ArchiverOption) (*ArchiverImpl, error) {
	var a ArchiverImpl
	for _, opt := range opts {
		err := opt(&a)
		if err != nil {
			return nil, err
		}
	}

	if a.fileManager == nil {
		return nil, errors.New("requires file manager")
	}

	if a.logger == nil {
		return nil, errors.New("requires slogger")
	}

	return &a, nil
}

func WithFileManager(fm utils.FileManager) ArchiverOption {
	return func(a *ArchiverImpl) error {
		a.fileManager = fm
		return nil
	}
}

func WithArchiverLogger(logger *slog.Logger) ArchiverOption {
	return func(a *ArchiverImpl) error {
		a.logger = logger
		return nil
	}
}

// Archive fetches one message from the selected mailbox and writes its text
// bodies and attachments under dirs. Once the fetch succeeded the message is
// marked unseen again, whether or not the writes worked.
func (a *ArchiverImpl) Archive(ctx context.Context, c base.Client, id string, dirs TargetDirs) (err error) {
	logger := a.logger.With(slog.String("id", id))

	uid, err := idset.UID(id)
	if err != nil {
		return errors.Wrapf(err, "invalid identifier %q", id)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	raw, err := fetchRaw(c, seqset)
	if err != nil {
		logger.Error("failed to fetch message", slog.Any("error", utils.WrapError(err)))
		return errors.Wrapf(err, "fetching message %s", id)
	}

	defer func() {
		if serr := markUnseen(c, seqset); serr != nil {
			logger.Error("failed to restore unseen state", slog.Any("error", utils.WrapError(serr)))
			if err == nil {
				err = errors.Wrapf(serr, "restoring unseen state of %s", id)
			}
		}
	}()

	msg, err := Decode(raw)
	if err != nil {
		logger.Error("failed to decode message", slog.Any("error", utils.WrapError(err)))
		return errors.Wrapf(err, "decoding message %s", id)
	}

	written, err := a.persist(ctx, msg, id, dirs)
	if err != nil {
		logger.Error("failed to write message", slog.Any("error", utils.WrapError(err)))
		return errors.Wrapf(err, "writing message %s", id)
	}

	logger.Info("archived message",
		slog.String("subject", msg.Subject),
		slog.Int("files", written),
	)
	return nil
}

// fetchRaw drains the fetch channel before looking at the command result so
// the client goroutine never blocks on an unread message.
func fetchRaw(c base.Client, seqset *imap.SeqSet) ([]byte, error) {
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{imap.FetchRFC822}, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		for _, literal := range msg.Body {
			if literal == nil || raw != nil {
				continue
			}
			b, err := io.ReadAll(literal)
			if err != nil {
				readErr = err
				continue
			}
			raw = b
		}
	}

	if err := <-done; err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, errors.Wrap(readErr, "reading message literal")
	}
	if raw == nil {
		return nil, errors.Errorf("server returned no message for uid %s", seqset)
	}
	return raw, nil
}

func markUnseen(c base.Client, seqset *imap.SeqSet) error {
	item := imap.FormatFlagsOp(imap.RemoveFlags, true)
	flags := []interface{}{imap.SeenFlag}
	return c.UidStore(seqset, item, flags, nil)
}

// persist writes the parts it knows how to store and reports how many files it
// wrote. Attachments are checked first so a text/plain attachment is kept as a
// file rather than overwriting the body.
func (a *ArchiverImpl) persist(ctx context.Context, msg *DecodedMessage, id string, dirs TargetDirs) (int, error) {
	baseName := BaseFilename(msg.Subject, id)
	written := 0

	for _, part := range msg.Parts {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		var path string
		var data []byte
		switch {
		case part.IsAttachment():
			name := AttachmentFilename(part.Filename)
			if name == "" {
				a.logger.Warn("skipping attachment without usable name",
					slog.String("id", id),
					slog.String("filename", part.Filename),
				)
				continue
			}
			path = filepath.Join(dirs.Attachments, name)
			data = part.Payload
		case part.ContentType == "text/plain":
			path = filepath.Join(dirs.Body, baseName+".txt")
			data = part.Payload
		case part.ContentType == "text/html":
			path = filepath.Join(dirs.Body, baseName+".html")
			data = HTMLDocument(msg.Subject, msg.From, part.Payload)
		default:
			continue
		}

		if err := a.fileManager.WriteFile(path, data, archiveFilePerm); err != nil {
			return written, errors.Wrapf(err, "writing %s", path)
		}
		written++
	}

	return written, nil
}
