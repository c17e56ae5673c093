package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIMAPEnvMissing(t *testing.T) {
	t.Setenv(envIMAPHost, "")
	t.Setenv(envIMAPPort, "")
	t.Setenv(envIMAPUser, "")
	t.Setenv(envIMAPPass, "")

	_, err := IMAPEnvFromEnv()
	if err == nil {
		t.Fatalf("expected error for missing environment variables")
	}
	for _, name := range []string{envIMAPHost, envIMAPUser, envIMAPPass} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in error, got: %v", name, err)
		}
	}
	if strings.Contains(err.Error(), envIMAPPort) {
		t.Fatalf("port is optional, got: %v", err)
	}
}

func TestIMAPEnvDefaultsPort(t *testing.T) {
	t.Setenv(envIMAPHost, "imap.yandex.ru")
	t.Setenv(envIMAPPort, "")
	t.Setenv(envIMAPUser, "user@yandex.ru")
	t.Setenv(envIMAPPass, "app-password")

	env, err := IMAPEnvFromEnv()
	if err != nil {
		t.Fatalf("expected env to load, got error: %v", err)
	}
	if env.Address() != "imap.yandex.ru:993" {
		t.Fatalf("unexpected address %q", env.Address())
	}
}

func TestIMAPEnvInvalidPort(t *testing.T) {
	t.Setenv(envIMAPHost, "imap.yandex.ru")
	t.Setenv(envIMAPPort, "imaps")
	t.Setenv(envIMAPUser, "user@yandex.ru")
	t.Setenv(envIMAPPass, "app-password")

	if _, err := IMAPEnvFromEnv(); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestS3Env(t *testing.T) {
	t.Setenv(envS3Endpoint, "")
	t.Setenv(envS3Region, "")
	t.Setenv(envS3Bucket, "")
	t.Setenv(envS3Key, "")
	t.Setenv(envS3Secret, "")

	if _, ok, err := S3EnvFromEnv(); ok || err != nil {
		t.Fatalf("expected mirror to be disabled, got ok=%v err=%v", ok, err)
	}

	t.Setenv(envS3Bucket, "mail-archive")
	if _, _, err := S3EnvFromEnv(); err == nil || !strings.Contains(err.Error(), envS3Key) {
		t.Fatalf("expected missing key error, got: %v", err)
	}

	t.Setenv(envS3Region, "nyc3")
	t.Setenv(envS3Key, "key")
	t.Setenv(envS3Secret, "secret")
	cfg, ok, err := S3EnvFromEnv()
	if err != nil || !ok {
		t.Fatalf("expected mirror to be enabled, got ok=%v err=%v", ok, err)
	}
	if cfg.Bucket != "mail-archive" {
		t.Fatalf("unexpected bucket %q", cfg.Bucket)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "not: [valid_yaml")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid YAML")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults, got error: %v", err)
	}
	if len(cfg.Mailboxes) != 7 {
		t.Fatalf("expected the default mailbox table, got %d mailboxes", len(cfg.Mailboxes))
	}
	if cfg.PollInterval != 5*time.Second || cfg.Retry.MaxAttempts != 3 || cfg.Retry.Delay != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got error: %v", err)
	}
	dirs := map[string]bool{}
	for _, mb := range cfg.Mailboxes {
		if dirs[mb.Dir] {
			t.Fatalf("default mailboxes share directory %q", mb.Dir)
		}
		dirs[mb.Dir] = true
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	path := writeTempFile(t, `
poll_interval: 0s
retry:
  max_attempts: 0
  delay: -1s
archive_retries: -2
telemetry:
  mode: prometheus
mailboxes:
  - name: inbox
    folder: INBOX
  - name: inbox
    folder: ""
    dir: ../escape
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	err = Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{
		"poll_interval",
		"retry.max_attempts",
		"retry.delay",
		"archive_retries",
		"telemetry.mode",
		`"inbox" is used more than once`,
		"mailbox 2 must define folder",
		"inside base_dir",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got: %v", want, err)
		}
	}
}

func TestValidateEmptyMailboxes(t *testing.T) {
	path := writeTempFile(t, `
mailboxes: []
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "at least one mailbox") {
		t.Fatalf("expected validation error for missing mailboxes, got: %v", err)
	}
}

func TestHappyPath(t *testing.T) {
	t.Setenv(envWebhookURL, "https://example.com/webhook")

	path := writeTempFile(t, `
base_dir: /srv/mail
poll_interval: 30s
retry:
  max_attempts: 5
  delay: 2s
archive_retries: 2
legacy_routing: true
status:
  addr: ":8080"
telemetry:
  mode: stdout
mailboxes:
  - name: inbox
    folder: INBOX
    dir: inbox
  - name: spam
    folder: "&BCEEPwQwBDw-"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected config to validate, got error: %v", err)
	}

	if cfg.PollInterval != 30*time.Second || cfg.Retry.Delay != 2*time.Second {
		t.Fatalf("durations not decoded: %+v", cfg)
	}
	if policy := cfg.Retry.Policy(); policy.MaxAttempts != 5 {
		t.Fatalf("unexpected policy %+v", policy)
	}

	summary := Summary(cfg)
	for _, want := range []string{"/srv/mail", "legacy", ":8080", "reporting webhook: enabled", "spam: Спам -> spam"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("expected %q in summary:\n%s", want, summary)
		}
	}
}

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
