package cli

import (
	"os"
	"strings"

	"aaronromeo.com/imaparchiver/internal/config"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// resolveConfigPath returns the --config flag, falling back to
// IMAPARCHIVER_CONFIG. An empty result selects the built-in mailboxes.
func resolveConfigPath(c *cli.Context) string {
	cfgPath := strings.TrimSpace(c.String("config"))
	if cfgPath == "" {
		cfgPath = strings.TrimSpace(os.Getenv(configEnvVar))
	}
	return cfgPath
}

func loadEnvFile() error {
	if _, err := os.Stat(defaultEnvFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultEnvFile)
}

func loadConfig(c *cli.Context) (config.Config, error) {
	if err := loadEnvFile(); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(resolveConfigPath(c))
	if err != nil {
		return config.Config{}, err
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
