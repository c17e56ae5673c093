package utils

import (
	"context"

	"aaronromeo.com/imaparchiver/pkg/base"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments groups the counters recorded by the sync engine.
type Instruments struct {
	Archived         metric.Int64Counter
	Failed           metric.Int64Counter
	SnapshotFailures metric.Int64Counter
	Cycles           metric.Int64Counter
}

// NewInstruments registers the counters on the global meter provider, which
// is a no-op until SetupOTelSDK installs one.
func NewInstruments() (*Instruments, error) {
	meter := otel.Meter(base.UPTRACE_SERVICE)

	archived, err := meter.Int64Counter("imaparchiver.messages.archived",
		metric.WithDescription("Messages written to the archive"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("imaparchiver.messages.failed",
		metric.WithDescription("Messages that could not be archived"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("imaparchiver.snapshot.failures",
		metric.WithDescription("Failed mailbox snapshot attempts"))
	if err != nil {
		return nil, err
	}
	cycles, err := meter.Int64Counter("imaparchiver.cycles",
		metric.WithDescription("Completed poll cycles"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Archived:         archived,
		Failed:           failed,
		SnapshotFailures: failures,
		Cycles:           cycles,
	}, nil
}

// MailboxAttr tags a measurement with the mailbox display name.
func MailboxAttr(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("mailbox", name))
}

// Add is a nil-safe helper so components can run without instruments.
func Add(ctx context.Context, c metric.Int64Counter, n int64, opts ...metric.AddOption) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, n, opts...)
}
