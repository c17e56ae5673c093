package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"aaronromeo.com/imaparchiver/pkg/base"
	"aaronromeo.com/imaparchiver/pkg/utils"
	"gopkg.in/yaml.v3"
)

const (
	envIMAPHost   = "IMAPARCHIVER_IMAP_HOST"
	envIMAPPort   = "IMAPARCHIVER_IMAP_PORT"
	envIMAPUser   = "IMAPARCHIVER_IMAP_USER"
	envIMAPPass   = "IMAPARCHIVER_IMAP_PASS"
	envS3Endpoint = "IMAPARCHIVER_S3_ENDPOINT"
	envS3Region   = "IMAPARCHIVER_S3_REGION"
	envS3Bucket   = "IMAPARCHIVER_S3_BUCKET"
	envS3Key      = "IMAPARCHIVER_S3_KEY"
	envS3Secret   = "IMAPARCHIVER_S3_SECRET"
	envWebhookURL = "IMAPARCHIVER_WEBHOOK_URL"

	defaultIMAPPort     = 993
	defaultPollInterval = 5 * time.Second
)

// Config holds non-secret configuration loaded from YAML.
type Config struct {
	BaseDir        string                 `yaml:"base_dir"`
	PollInterval   time.Duration          `yaml:"poll_interval"`
	Retry          Retry                  `yaml:"retry"`
	ArchiveRetries int                    `yaml:"archive_retries"`
	LegacyRouting  bool                   `yaml:"legacy_routing"`
	Mailboxes      []base.MailboxIdentity `yaml:"mailboxes"`
	Status         Status                 `yaml:"status"`
	Telemetry      Telemetry              `yaml:"telemetry"`
}

// Retry bounds the attempts made to snapshot a mailbox.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

func (r Retry) Policy() utils.RetryPolicy {
	return utils.RetryPolicy{MaxAttempts: r.MaxAttempts, Delay: r.Delay}
}

// Status configures the optional HTTP status page. An empty Addr disables it.
type Status struct {
	Addr string `yaml:"addr"`
}

type Telemetry struct {
	Mode string `yaml:"mode"`
}

// IMAPEnv holds the IMAP connection details from environment variables.
type IMAPEnv struct {
	Host string
	Port int
	User string
	Pass string
}

func (e IMAPEnv) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// DefaultMailboxes are the folders of a Yandex mailbox, each archived into a
// directory named after it. Set legacy_routing to fold everything but the
// inbox into "sent".
func DefaultMailboxes() []base.MailboxIdentity {
	return []base.MailboxIdentity{
		{Name: "inbox", Folder: "inbox", Dir: "inbox"},
		{Name: "sent", Folder: "&BB4EQgQ,BEAEMAQyBDsENQQ9BD0ESwQ1-", Dir: "sent"},
		{Name: "trash", Folder: "&BCMENAQwBDsENQQ9BD0ESwQ1-", Dir: "trash"},
		{Name: "drafts", Folder: "&BCcENQRABD0EPgQyBDgEOgQ4-", Dir: "drafts"},
		{Name: "unmarked", Folder: "&BBgEQQRFBD4ENARPBEkEOAQ1-", Dir: "unmarked"},
		{Name: "templates", Folder: "&BCcENQRABD0EPgQyBDgEOgQ4-|template", Dir: "templates"},
		{Name: "junk", Folder: "&BCEEPwQwBDw-", Dir: "junk"},
	}
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		BaseDir:      base.DefaultBaseDir,
		PollInterval: defaultPollInterval,
		Retry: Retry{
			MaxAttempts: utils.DefaultRetryAttempts,
			Delay:       utils.DefaultRetryDelay,
		},
		Mailboxes: DefaultMailboxes(),
		Telemetry: Telemetry{Mode: utils.TelemetryNone},
	}
}

// Load reads configuration from a YAML file on top of Default. An empty path
// returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Telemetry.Mode) == "" {
		cfg.Telemetry.Mode = utils.TelemetryNone
	}

	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func Validate(cfg Config) error {
	var errs []error

	if strings.TrimSpace(cfg.BaseDir) == "" {
		errs = append(errs, errors.New("base_dir must be set"))
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", cfg.PollInterval))
	}
	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts))
	}
	if cfg.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay must not be negative, got %s", cfg.Retry.Delay))
	}
	if cfg.ArchiveRetries < 0 {
		errs = append(errs, fmt.Errorf("archive_retries must not be negative, got %d", cfg.ArchiveRetries))
	}

	switch cfg.Telemetry.Mode {
	case utils.TelemetryNone, utils.TelemetryStdout, utils.TelemetryUptrace:
	default:
		errs = append(errs, fmt.Errorf("telemetry.mode must be one of none, stdout, uptrace, got %q", cfg.Telemetry.Mode))
	}

	if len(cfg.Mailboxes) == 0 {
		errs = append(errs, errors.New("config must define at least one mailbox"))
	}
	seen := map[string]bool{}
	for i, mb := range cfg.Mailboxes {
		if strings.TrimSpace(mb.Name) == "" {
			errs = append(errs, fmt.Errorf("mailbox %d must define name", i+1))
		} else if seen[mb.Name] {
			errs = append(errs, fmt.Errorf("mailbox name %q is used more than once", mb.Name))
		}
		seen[mb.Name] = true
		if strings.TrimSpace(mb.Folder) == "" {
			errs = append(errs, fmt.Errorf("mailbox %d must define folder", i+1))
		}
		if strings.Contains(mb.Dir, "..") {
			errs = append(errs, fmt.Errorf("mailbox %d dir must stay inside base_dir", i+1))
		}
	}

	return errors.Join(errs...)
}

// IMAPEnvFromEnv loads IMAP connection details and validates required entries.
// The port defaults to 993.
func IMAPEnvFromEnv() (IMAPEnv, error) {
	missing := []string{}

	host := strings.TrimSpace(os.Getenv(envIMAPHost))
	if host == "" {
		missing = append(missing, envIMAPHost)
	}

	user := strings.TrimSpace(os.Getenv(envIMAPUser))
	if user == "" {
		missing = append(missing, envIMAPUser)
	}

	pass := strings.TrimSpace(os.Getenv(envIMAPPass))
	if pass == "" {
		missing = append(missing, envIMAPPass)
	}

	if len(missing) > 0 {
		return IMAPEnv{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	port := defaultIMAPPort
	if portRaw := strings.TrimSpace(os.Getenv(envIMAPPort)); portRaw != "" {
		p, err := strconv.Atoi(portRaw)
		if err != nil {
			return IMAPEnv{}, fmt.Errorf("invalid %s: %w", envIMAPPort, err)
		}
		port = p
	}

	return IMAPEnv{
		Host: host,
		Port: port,
		User: user,
		Pass: pass,
	}, nil
}

// S3EnvFromEnv returns the object mirror settings. ok is false when no bucket
// is configured; a partial configuration is an error.
func S3EnvFromEnv() (cfg utils.S3Config, ok bool, err error) {
	cfg = utils.S3Config{
		Endpoint: strings.TrimSpace(os.Getenv(envS3Endpoint)),
		Region:   strings.TrimSpace(os.Getenv(envS3Region)),
		Bucket:   strings.TrimSpace(os.Getenv(envS3Bucket)),
		Key:      strings.TrimSpace(os.Getenv(envS3Key)),
		Secret:   strings.TrimSpace(os.Getenv(envS3Secret)),
	}
	if cfg.Bucket == "" {
		return utils.S3Config{}, false, nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		envS3Region: cfg.Region,
		envS3Key:    cfg.Key,
		envS3Secret: cfg.Secret,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return utils.S3Config{}, false, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, true, nil
}

// WebhookURL returns the announcement webhook, or "" when unset.
func WebhookURL() string {
	return strings.TrimSpace(os.Getenv(envWebhookURL))
}

// ReportingEnabled returns true when a webhook URL is configured via env var.
func ReportingEnabled() bool {
	return WebhookURL() != ""
}

// Summary returns a concise config summary for validation runs.
func Summary(cfg Config) string {
	reportingStatus := "disabled"
	if ReportingEnabled() {
		reportingStatus = "enabled"
	}
	routing := "per mailbox"
	if cfg.LegacyRouting {
		routing = "legacy (inbox/sent)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Config summary\n"+
		"- base dir: %s\n"+
		"- poll interval: %s\n"+
		"- snapshot retries: %d attempts, %s apart\n"+
		"- archive retries: %d\n"+
		"- routing: %s\n"+
		"- status page: %s\n"+
		"- telemetry: %s\n"+
		"- reporting webhook: %s\n"+
		"- mailboxes: %d",
		cfg.BaseDir,
		cfg.PollInterval,
		cfg.Retry.MaxAttempts,
		cfg.Retry.Delay,
		cfg.ArchiveRetries,
		routing,
		defaultIfEmpty(cfg.Status.Addr, "(disabled)"),
		cfg.Telemetry.Mode,
		reportingStatus,
		len(cfg.Mailboxes),
	)
	for _, mb := range cfg.Mailboxes {
		fmt.Fprintf(&b, "\n  - %s: %s -> %s", mb.Name, utils.DecodeFolderName(mb.Folder), defaultIfEmpty(mb.Dir, mb.Name))
	}
	return b.String()
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
