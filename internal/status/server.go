// Package status serves a small read-only view of the scheduler state.
package status

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"aaronromeo.com/imaparchiver/handlers"
	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

//go:embed views/*.html
var views embed.FS

type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger
}

// New builds the fiber app. Nothing listens until Run is called.
func New(addr string, provider handlers.StatusProvider, logger *slog.Logger) (*Server, error) {
	if addr == "" {
		return nil, errors.New("requires listen address")
	}
	if provider == nil {
		return nil, errors.New("requires status provider")
	}
	if logger == nil {
		return nil, errors.New("requires slogger")
	}

	sub, err := fs.Sub(views, "views")
	if err != nil {
		return nil, errors.Wrap(err, "loading views")
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")

	app := fiber.New(fiber.Config{
		Views:                 engine,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Error("status request failed",
				slog.String("path", c.Path()),
				slog.Any("error", utils.WrapError(err)),
			)
			code := fiber.StatusInternalServerError
			var ferr *fiber.Error
			if errors.As(err, &ferr) {
				code = ferr.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware(otelfiber.WithServerName(base.UPTRACE_SERVICE)))
	app.Use(handlers.WithStatus(provider))

	app.Get("/", handlers.Home)
	app.Get("/api/status", handlers.Status)
	app.Get("/healthz", handlers.Healthz)
	app.Use(handlers.NotFound)

	return &Server{app: app, addr: addr, logger: logger}, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled and then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", slog.String("addr", s.addr))
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "status server on %s", s.addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}
