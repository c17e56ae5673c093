package cli

import (
	"fmt"

	"aaronromeo.com/imaparchiver/internal/config"
	"github.com/urfave/cli/v2"
)

func configAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, config.Summary(cfg))
	return nil
}
