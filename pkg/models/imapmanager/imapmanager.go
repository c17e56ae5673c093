package imapmanager

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/pkg/errors"
)

// ImapManager opens scoped IMAP sessions. Every session is a fresh connection;
// nothing is pooled or kept alive between calls.
type ImapManager interface {
	base.Sessioner
}

type ImapManagerImpl struct {
	dialTLS   func(address string, tlsConfig *tls.Config) (base.Client, error)
	username  string
	password  string
	address   string
	logger    *slog.Logger
	tlsConfig *tls.Config
	ctx       context.Context
}

type ImapManagerOption func(*ImapManagerImpl) error

func NewImapManager(opts ...ImapManagerOption) (*ImapManagerImpl, error) {
	var imapMgr ImapManagerImpl
	for _, opt := range opts {
		err := opt(&imapMgr)
		if err != nil {
			return nil, err
		}
	}

	if imapMgr.dialTLS == nil {
		imapMgr.dialTLS = func(address string, tlsConfig *tls.Config) (base.Client, error) {
			c, err := imapclient.DialTLS(address, tlsConfig)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	if imapMgr.username == "" {
		return nil, errors.New("requires username")
	}

	if imapMgr.password == "" {
		return nil, errors.New("requires password")
	}

	if imapMgr.address == "" {
		return nil, errors.New("requires address")
	}

	if imapMgr.logger == nil {
		return nil, errors.New("requires slogger")
	}

	if imapMgr.ctx == nil {
		imapMgr.ctx = context.Background()
	}

	return &imapMgr, nil
}

func WithTLSConfig(addr string, tlsConfig *tls.Config) ImapManagerOption {
	return func(imapMgr *ImapManagerImpl) error {
		imapMgr.address = addr
		imapMgr.tlsConfig = tlsConfig
		return nil
	}
}

func WithAuth(username string, password string) ImapManagerOption {
	return func(imapMgr *ImapManagerImpl) error {
		imapMgr.username = username
		imapMgr.password = password
		return nil
	}
}

// WithDialTLS replaces the dialer, e.g. with a plain-text dialer in tests or
// a constructor returning a mock client.
func WithDialTLS(d func(address string, tlsConfig *tls.Config) (base.Client, error)) ImapManagerOption {
	return func(imapMgr *ImapManagerImpl) error {
		if d == nil {
			return errors.New("dialer must not be nil")
		}
		imapMgr.dialTLS = d
		return nil
	}
}

func WithLogger(logger *slog.Logger) ImapManagerOption {
	return func(imapMgr *ImapManagerImpl) error {
		imapMgr.logger = logger
		return nil
	}
}

func WithCtx(ctx context.Context) ImapManagerOption {
	return func(imapMgr *ImapManagerImpl) error {
		imapMgr.ctx = ctx
		return nil
	}
}

// Login authenticates c unless it already is.
func (srv *ImapManagerImpl) Login(c base.Client) error {
	state := c.State()
	switch state {
	case imap.NotAuthenticatedState:
		if err := c.Login(srv.username, srv.password); err != nil {
			srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to login: %v", err), slog.Any("error", utils.WrapError(err)))
			return err
		}
		srv.logger.DebugContext(srv.ctx, "Login success", slog.String("user", srv.username))
	case imap.AuthenticatedState, imap.SelectedState:
		srv.logger.DebugContext(srv.ctx, "Already authenticated")
	default: // imap.LogoutState and imap.ConnectingState
		return errors.Errorf("connection is not usable (state %v)", state)
	}

	return nil
}

// LogoutFn returns a func that logs c out, logging rather than returning
// failures so it can be deferred.
func (srv *ImapManagerImpl) LogoutFn(c base.Client) func() {
	return func() {
		if err := c.Logout(); err != nil {
			srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to logout: %v", err), slog.Any("error", utils.WrapError(err)))
		}
	}
}

// WithSession opens one authenticated connection, runs fn with it and logs out
// afterwards, also when fn fails or panics. Dial and login failures are
// returned to the caller; retrying is up to the caller.
func (srv *ImapManagerImpl) WithSession(fn func(c base.Client) error) error {
	c, err := srv.dialTLS(srv.address, srv.tlsConfig)
	if err != nil {
		srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to create a client: %v", err), slog.Any("error", utils.WrapError(err)))
		return errors.Wrapf(err, "dialing %s", srv.address)
	}
	defer srv.LogoutFn(c)()

	if err := srv.Login(c); err != nil {
		return errors.Wrapf(err, "logging in as %s", srv.username)
	}

	return fn(c)
}
