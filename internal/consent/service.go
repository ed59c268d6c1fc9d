package consent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"veil/internal/audit"
	"veil/internal/platform/metrics"
	"veil/internal/storage"
	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// Manager owns the consent record lifecycle and enforces purpose-level
// processing permission. All history mutations are serialized per user; the
// reference behavior assumed a single caller and raced otherwise.
type Manager struct {
	vault    *storage.Vault
	recorder *audit.Recorder
	log      *slog.Logger
	metrics  *metrics.Metrics
	tx       userTx
}

// Option configures the Manager.
type Option func(*Manager)

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager creates a consent manager over the vault and audit recorder.
func NewManager(vault *storage.Vault, recorder *audit.Recorder, opts ...Option) (*Manager, error) {
	if vault == nil {
		return nil, fmt.Errorf("storage vault is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	m := &Manager{
		vault:    vault,
		recorder: recorder,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RecordConsent validates and persists a new consent record. Missing required
// fields are a validation failure, never silently defaulted. The record is
// appended to the user's history with status forced to given.
func (m *Manager) RecordConsent(ctx context.Context, record domain.ConsentRecord) (domain.ConsentRecord, error) {
	if err := validateRecord(record); err != nil {
		return domain.ConsentRecord{}, err
	}

	now := time.Now()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Timestamp = now
	record.Status = domain.ConsentGiven
	record.Withdrawn = false
	record.WithdrawalDate = nil
	if record.ConsentVersion == "" {
		record.ConsentVersion = domain.SystemVersion
	}
	record.UserAgent = normalizeUserAgent(record.UserAgent)
	if record.GranularConsents == nil {
		record.GranularConsents = map[domain.Purpose]bool{}
	}

	err := m.tx.run(ctx, record.UserID, func(ctx context.Context) error {
		history, err := m.vault.ConsentHistory(ctx, record.UserID)
		if err != nil {
			return err
		}
		history = append(history, record)
		return m.vault.SaveConsentHistory(ctx, record.UserID, history)
	})
	if err != nil {
		return domain.ConsentRecord{}, err
	}

	if m.metrics != nil {
		m.metrics.ConsentsRecorded.Inc()
	}
	m.recorder.Emit(ctx, audit.EventConsentGiven, map[string]any{
		"consentId": record.ID,
		"userId":    record.UserID.String(),
		"purposes":  purposeStrings(record.Purposes),
	})
	return record, nil
}

func validateRecord(record domain.ConsentRecord) error {
	if record.UserID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "consent record requires a user id")
	}
	if len(record.Purposes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "consent record requires at least one purpose")
	}
	for _, p := range record.Purposes {
		if !p.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "invalid purpose: %s", p)
		}
	}
	if record.ConsentText == "" {
		return dErrors.New(dErrors.CodeValidation, "consent record requires consent text")
	}
	if record.LawfulBasis == "" {
		return dErrors.New(dErrors.CodeValidation, "consent record requires a lawful basis")
	}
	if !record.LawfulBasis.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid lawful basis: %s", record.LawfulBasis)
	}
	return nil
}

// WithdrawConsent flips the record to its terminal withdrawn state and runs
// the purpose-specific erasure cascade. The status write and the cascade are
// not one transaction: a crash in between leaves a pending erasure intent
// that the cleanup job resumes.
func (m *Manager) WithdrawConsent(ctx context.Context, consentID string, userID domain.UserID) (domain.ConsentRecord, error) {
	var withdrawn domain.ConsentRecord
	var alreadyWithdrawn bool

	err := m.tx.run(ctx, userID, func(ctx context.Context) error {
		history, err := m.vault.ConsentHistory(ctx, userID)
		if err != nil {
			return err
		}
		idx := indexByID(history, consentID)
		if idx < 0 {
			return dErrors.Newf(dErrors.CodeNotFound, "consent record %s not found", consentID)
		}
		if history[idx].Withdrawn {
			alreadyWithdrawn = true
			withdrawn = history[idx]
			return nil
		}
		now := time.Now()
		history[idx].Status = domain.ConsentWithdrawn
		history[idx].Withdrawn = true
		history[idx].WithdrawalDate = &now
		if err := m.vault.SaveConsentHistory(ctx, userID, history); err != nil {
			return err
		}
		withdrawn = history[idx]
		return nil
	})
	if err != nil {
		return domain.ConsentRecord{}, err
	}
	if alreadyWithdrawn {
		// Terminal state; the cascade already ran when it was withdrawn.
		return withdrawn, nil
	}

	intent := domain.NewErasureIntent(userID, "consent_withdrawal", withdrawn.Purposes, time.Now())
	if err := m.vault.ApplyErasure(ctx, intent); err != nil {
		// Status is already withdrawn; the intent record keeps the cascade
		// resumable. Surface the fault rather than pretend it completed.
		return withdrawn, err
	}

	if m.metrics != nil {
		m.metrics.ConsentsWithdrawn.Inc()
	}
	m.recorder.Emit(ctx, audit.EventConsentWithdrawn, map[string]any{
		"consentId": withdrawn.ID,
		"userId":    userID.String(),
		"purposes":  purposeStrings(withdrawn.Purposes),
	})
	return withdrawn, nil
}

// IsConsentValid reports whether the record currently authorizes processing:
// status given, not withdrawn, expiry not passed, and younger than the fixed
// two-year maximum age.
func (m *Manager) IsConsentValid(ctx context.Context, consentID string, userID domain.UserID) (bool, error) {
	history, err := m.vault.ConsentHistory(ctx, userID)
	if err != nil {
		return false, err
	}
	idx := indexByID(history, consentID)
	if idx < 0 {
		return false, dErrors.Newf(dErrors.CodeNotFound, "consent record %s not found", consentID)
	}
	return history[idx].IsValid(time.Now()), nil
}

// RenewConsent withdraws the old record and records the replacement under a
// freshly generated id.
func (m *Manager) RenewConsent(ctx context.Context, oldID string, record domain.ConsentRecord) (domain.ConsentRecord, error) {
	if _, err := m.WithdrawConsent(ctx, oldID, record.UserID); err != nil {
		return domain.ConsentRecord{}, err
	}
	record.ID = uuid.NewString()
	renewed, err := m.RecordConsent(ctx, record)
	if err != nil {
		return domain.ConsentRecord{}, err
	}
	m.recorder.Emit(ctx, audit.EventConsentRenewed, map[string]any{
		"oldConsentId": oldID,
		"newConsentId": renewed.ID,
		"userId":       record.UserID.String(),
	})
	return renewed, nil
}

// UpdateGranularConsent flips one purpose flag on the user's active consent.
// Revoking a purpose triggers the same erasure cascade as withdrawal, scoped
// to that purpose.
func (m *Manager) UpdateGranularConsent(ctx context.Context, userID domain.UserID, purpose domain.Purpose, granted bool) (domain.ConsentRecord, error) {
	if !purpose.IsValid() {
		return domain.ConsentRecord{}, dErrors.Newf(dErrors.CodeValidation, "invalid purpose: %s", purpose)
	}

	var updated domain.ConsentRecord
	err := m.tx.run(ctx, userID, func(ctx context.Context) error {
		history, err := m.vault.ConsentHistory(ctx, userID)
		if err != nil {
			return err
		}
		idx := activeIndex(history, time.Now())
		if idx < 0 {
			return dErrors.Newf(dErrors.CodeMissingConsent, "no active consent for user %s", userID)
		}
		if history[idx].GranularConsents == nil {
			history[idx].GranularConsents = map[domain.Purpose]bool{}
		}
		history[idx].GranularConsents[purpose] = granted
		if err := m.vault.SaveConsentHistory(ctx, userID, history); err != nil {
			return err
		}
		updated = history[idx]
		return nil
	})
	if err != nil {
		return domain.ConsentRecord{}, err
	}

	if !granted {
		intent := domain.NewErasureIntent(userID, "granular_revocation", []domain.Purpose{purpose}, time.Now())
		if err := m.vault.ApplyErasure(ctx, intent); err != nil {
			return updated, err
		}
	}

	if m.metrics != nil {
		m.metrics.GranularUpdates.Inc()
	}
	m.recorder.Emit(ctx, audit.EventGranularConsentUpdated, map[string]any{
		"consentId": updated.ID,
		"userId":    userID.String(),
		"purpose":   purpose.String(),
		"granted":   granted,
	})
	return updated, nil
}

// GetConsentStatus builds the per-user summary: the purpose catalog seeded
// with granted=false, overlaid with the active consent's granular flags.
func (m *Manager) GetConsentStatus(ctx context.Context, userID domain.UserID) (Status, error) {
	history, err := m.vault.ConsentHistory(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	now := time.Now()

	status := Status{UserID: userID}
	for _, d := range domain.Catalog() {
		status.Purposes = append(status.Purposes, PurposeStatus{
			Purpose:     d.Purpose,
			Name:        d.Name,
			Description: d.Description,
			Required:    d.Required,
		})
	}

	if len(history) > 0 {
		last := history[len(history)-1].Timestamp
		status.LastConsentDate = &last
	}

	idx := activeIndex(history, now)
	if idx < 0 {
		return status, nil
	}
	active := history[idx]
	status.HasValidConsent = true
	status.ExpiryDate = active.ExpiryDate
	for i := range status.Purposes {
		status.Purposes[i].Granted = active.GranularConsents[status.Purposes[i].Purpose]
	}
	return status, nil
}

// GenerateConsentForm returns the catalog annotated with current granted
// flags plus the fixed rights disclosure. Nothing is persisted.
func (m *Manager) GenerateConsentForm(ctx context.Context, userID domain.UserID) (Form, error) {
	status, err := m.GetConsentStatus(ctx, userID)
	if err != nil {
		return Form{}, err
	}
	granted := map[domain.Purpose]bool{}
	for _, p := range status.Purposes {
		granted[p.Purpose] = p.Granted
	}

	form := Form{
		ConsentText:    rightsDisclosure,
		ConsentVersion: domain.SystemVersion,
	}
	for _, d := range domain.Catalog() {
		form.Purposes = append(form.Purposes, FormPurpose{
			Purpose:     d.Purpose,
			Name:        d.Name,
			Description: d.Description,
			LawfulBasis: d.LawfulBasis,
			Required:    d.Required,
			DataTypes:   d.DataTypes,
			Granted:     granted[d.Purpose],
		})
	}
	return form, nil
}

// ActiveConsent returns the user's currently valid consent record, or nil.
// At most one non-withdrawn, non-expired consent is active per user; the
// newest valid record wins.
func (m *Manager) ActiveConsent(ctx context.Context, userID domain.UserID) (*domain.ConsentRecord, error) {
	history, err := m.vault.ConsentHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := activeIndex(history, time.Now())
	if idx < 0 {
		return nil, nil
	}
	record := history[idx]
	return &record, nil
}

func indexByID(history []domain.ConsentRecord, id string) int {
	for i := range history {
		if history[i].ID == id {
			return i
		}
	}
	return -1
}

func activeIndex(history []domain.ConsentRecord, now time.Time) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsValid(now) {
			return i
		}
	}
	return -1
}

func purposeStrings(purposes []domain.Purpose) []string {
	out := make([]string, len(purposes))
	for i, p := range purposes {
		out[i] = p.String()
	}
	return out
}

// normalizeUserAgent reduces a raw user agent string to "browser/version
// (os)" so consent records do not retain high-entropy fingerprints.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s/%s (%s)", name, version, os)
	}
	return fmt.Sprintf("%s/%s", name, version)
}
