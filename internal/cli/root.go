package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

const (
	configEnvVar   = "IMAPARCHIVER_CONFIG"
	defaultEnvFile = ".env"
)

// NewApp builds the imaparchiver command line. Without a subcommand it runs the
// archiver.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "imaparchiver",
		Usage: "archive new IMAP messages to local files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to YAML config file (built-in mailboxes when unset)",
				EnvVars: []string{configEnvVar},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Watch the configured mailboxes and archive new messages",
				Action: runAction,
			},
			{
				Name:   "snapshot",
				Usage:  "Print the number of messages in every configured mailbox",
				Action: snapshotAction,
			},
			{
				Name:   "config",
				Usage:  "Validate the configuration and print a summary",
				Action: configAction,
			},
		},
	}
}

// Execute runs the app with the process arguments until SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
