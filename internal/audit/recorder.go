package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"veil/internal/platform/metrics"
	"veil/internal/storage"
	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// Failure is one audit append that could not be persisted. Swallowed writes
// are routed here so the drop is observable instead of a silent catch.
type Failure struct {
	Entry domain.AuditLogEntry
	Err   error
}

// Recorder captures structured audit events into the vault's capped streams.
// It is append-only; entries are never edited after emission.
type Recorder struct {
	vault    *storage.Vault
	log      *slog.Logger
	metrics  *metrics.Metrics
	failures chan Failure
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for drop reporting.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recorder) { r.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a recorder over the vault.
func NewRecorder(vault *storage.Vault, opts ...Option) *Recorder {
	r := &Recorder{
		vault:    vault,
		log:      slog.New(slog.DiscardHandler),
		failures: make(chan Failure, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newEntry(eventType EventType, data map[string]any) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		EventType:     string(eventType),
		EventData:     data,
		SystemVersion: domain.SystemVersion,
	}
}

// Emit appends an audit entry best-effort. A persistence failure never
// propagates to the caller: it is counted, logged, and pushed onto the
// failure channel when there is room.
func (r *Recorder) Emit(ctx context.Context, eventType EventType, data map[string]any) {
	// MustEmit routes the failure to metrics, log, and sink.
	_ = r.MustEmit(ctx, eventType, data)
}

// MustEmit appends an audit entry and returns the append error, for callers
// whose contract requires the audit write to succeed. The failure is still
// observable on the side channel.
func (r *Recorder) MustEmit(ctx context.Context, eventType EventType, data map[string]any) error {
	entry := newEntry(eventType, data)
	err := r.vault.AppendAuditEntry(ctx, eventType.Stream(), entry)
	if err == nil {
		return nil
	}

	wrapped := dErrors.Wrap(err, dErrors.CodeAuditLogFailed, "append "+string(eventType))
	if r.metrics != nil {
		r.metrics.AuditWriteFailures.Inc()
	}
	r.log.Error("audit append failed", "event", eventType, "error", err)
	select {
	case r.failures <- Failure{Entry: entry, Err: wrapped}:
	default:
		// Sink full; the metric and log line remain the record of the drop.
	}
	return wrapped
}

// Failures exposes swallowed audit writes. Consumers drain it to alert on
// audit degradation; an undrained channel only drops failure notices, never
// blocks emission.
func (r *Recorder) Failures() <-chan Failure {
	return r.failures
}

// Entries returns the contents of one audit stream, oldest first.
func (r *Recorder) Entries(ctx context.Context, streamKey string) ([]domain.AuditLogEntry, error) {
	return r.vault.AuditEntries(ctx, streamKey)
}
