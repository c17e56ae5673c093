package cli

import (
	"fmt"

	"aaronromeo.com/imaparchiver/pkg/utils"
	"github.com/urfave/cli/v2"
)

func snapshotAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	eng, err := buildEngine(c, cfg)
	if err != nil {
		return err
	}
	defer eng.close(c.Context)

	mailboxes, err := eng.repo.GetMailboxes()
	if err != nil {
		return err
	}

	for _, mb := range mailboxes {
		id := mb.Identity()
		ids := mb.Snapshot(c.Context)
		fmt.Fprintf(c.App.Writer, "%s (%s): %d messages\n", id.Name, utils.DecodeFolderName(id.Folder), ids.Len())
	}
	return nil
}
