package compliance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veil/internal/audit"
	"veil/internal/consent"
	"veil/internal/platform/metrics"
	"veil/internal/storage"
	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// Manager handles data subject requests under GDPR Articles 15 through 20.
// Every request is audited to the compliance stream; that stream is the one
// piece of data retained under legal basis when a subject asks for erasure.
type Manager struct {
	vault    *storage.Vault
	consents *consent.Manager
	recorder *audit.Recorder
	log      *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	receipts *receiptSigner
}

// Option configures the Manager.
type Option func(*Manager)

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithReceiptSigning makes deletion responses carry a signed receipt token.
func WithReceiptSigning(key string) Option {
	return func(m *Manager) { m.receipts = newReceiptSigner(key) }
}

// NewManager creates a compliance manager over the vault, consent manager,
// and audit recorder.
func NewManager(vault *storage.Vault, consents *consent.Manager, recorder *audit.Recorder, opts ...Option) (*Manager, error) {
	if vault == nil {
		return nil, fmt.Errorf("storage vault is required")
	}
	if consents == nil {
		return nil, fmt.Errorf("consent manager is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	m := &Manager{
		vault:    vault,
		consents: consents,
		recorder: recorder,
		log:      slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("veil/compliance"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) countRequest(kind string) {
	if m.metrics != nil {
		m.metrics.SubjectRequests.WithLabelValues(kind).Inc()
	}
}

// ensureRequestID keeps the intake system's correlation id when one was
// supplied and mints one otherwise. The id ties the statutory request to the
// response, the audit trail, and the deletion certificate.
func ensureRequestID(requestID string) string {
	if requestID == "" {
		return uuid.NewString()
	}
	return requestID
}

// RequestDataAccess gathers everything stored about the user (GDPR Art. 15).
// The access event is audited before gathering; if gathering then fails, an
// error event is appended best-effort and the storage fault is returned.
func (m *Manager) RequestDataAccess(ctx context.Context, userID domain.UserID, requestID string) (AccessResponse, error) {
	requestID = ensureRequestID(requestID)
	ctx, span := m.tracer.Start(ctx, "compliance.RequestDataAccess",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("request.id", requestID)))
	defer span.End()

	if userID.IsNil() {
		return AccessResponse{}, dErrors.New(dErrors.CodeValidation, "data access request requires a user id")
	}
	m.countRequest("access")
	event := map[string]any{
		"requestId": requestID,
		"userId":    userID.String(),
	}
	if active, err := m.consents.ActiveConsent(ctx, userID); err != nil {
		m.log.Warn("active consent lookup failed during access request",
			"requestId", requestID, "error", err)
	} else {
		event["hasActiveConsent"] = active != nil
	}
	m.recorder.Emit(ctx, audit.EventDataAccessRequest, event)

	data, err := m.gatherPersonalData(ctx, userID)
	if err != nil {
		m.recorder.Emit(ctx, audit.EventDataAccessError, map[string]any{
			"requestId": requestID,
			"userId":    userID.String(),
			"error":     err.Error(),
		})
		return AccessResponse{}, err
	}

	// The processing-purpose disclosure is static catalog text, independent
	// of what the subject has currently consented to.
	catalog := domain.Catalog()
	purposes := make([]string, 0, len(catalog))
	for _, d := range catalog {
		purposes = append(purposes, d.Name+": "+d.Description)
	}

	return AccessResponse{
		RequestID:          requestID,
		UserID:             userID,
		Timestamp:          time.Now(),
		PersonalData:       data,
		ProcessingPurposes: purposes,
		DataCategories: []string{
			storage.DatasetCohortData,
			storage.DatasetPreferences,
			storage.DatasetProfile,
			storage.DatasetAPILogs,
		},
		Recipients:      []string{"none"},
		RetentionPeriod: fmt.Sprintf("%d days", data.Preferences.DataRetentionDays),
		DataSource:      "local encrypted storage",
	}, nil
}

func (m *Manager) gatherPersonalData(ctx context.Context, userID domain.UserID) (PersonalData, error) {
	cohorts, err := m.vault.GetCohortData(ctx, userID)
	if err != nil {
		return PersonalData{}, err
	}
	prefs, err := m.vault.GetUserPreferences(ctx, userID)
	if err != nil {
		return PersonalData{}, err
	}
	profile, err := m.vault.GetUserProfile(ctx, userID)
	if err != nil {
		return PersonalData{}, err
	}
	logs, err := m.vault.GetAPIRequestLogs(ctx)
	if err != nil {
		return PersonalData{}, err
	}
	if logs == nil {
		logs = []domain.APIRequestLog{}
	}
	return PersonalData{
		CohortData:     cohorts,
		Preferences:    prefs,
		Profile:        profile,
		APIRequestLogs: logs,
	}, nil
}

// RequestDataCorrection applies field-level corrections to the user's
// preferences (GDPR Art. 16). Only known preference fields with
// type-compatible values are applied; everything else is rejected with a
// reason. The outcome status follows from acceptance counts alone.
func (m *Manager) RequestDataCorrection(ctx context.Context, userID domain.UserID, requestID string, corrections []Correction) (CorrectionResponse, error) {
	requestID = ensureRequestID(requestID)
	ctx, span := m.tracer.Start(ctx, "compliance.RequestDataCorrection",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("request.id", requestID)))
	defer span.End()

	if userID.IsNil() {
		return CorrectionResponse{}, dErrors.New(dErrors.CodeValidation, "data correction request requires a user id")
	}
	if len(corrections) == 0 {
		return CorrectionResponse{}, dErrors.New(dErrors.CodeValidation, "data correction request requires at least one correction")
	}
	m.countRequest("correction")

	prefs, err := m.vault.GetUserPreferences(ctx, userID)
	if err != nil {
		return CorrectionResponse{}, err
	}

	var made []string
	var rejected []RejectedCorrection
	for _, c := range corrections {
		if reason := applyCorrection(&prefs, c); reason != "" {
			rejected = append(rejected, RejectedCorrection{Field: c.Field, Reason: reason})
		} else {
			made = append(made, c.Field)
		}
	}

	if len(made) > 0 {
		if _, err := m.vault.StoreUserPreferences(ctx, userID, prefs); err != nil {
			return CorrectionResponse{}, err
		}
	}

	status := CorrectionCompleted
	switch {
	case len(made) == 0:
		status = CorrectionRejected
	case len(rejected) > 0:
		status = CorrectionPartial
	}

	m.recorder.Emit(ctx, audit.EventDataCorrectionRequest, map[string]any{
		"requestId":       requestID,
		"userId":          userID.String(),
		"status":          string(status),
		"correctionsMade": made,
	})
	return CorrectionResponse{
		RequestID:       requestID,
		UserID:          userID,
		Status:          status,
		CorrectionsMade: made,
		Rejected:        rejected,
		Timestamp:       time.Now(),
	}, nil
}

// applyCorrection mutates one preference field in place. Returns a rejection
// reason, or empty on success. Field paths are dotted, rooted at
// "preferences".
func applyCorrection(prefs *domain.UserPreferences, c Correction) string {
	switch c.Field {
	case "preferences.cohortsEnabled":
		v, ok := c.Value.(bool)
		if !ok {
			return "expected a boolean value"
		}
		prefs.CohortsEnabled = v
	case "preferences.shareWithAdvertisers":
		v, ok := c.Value.(bool)
		if !ok {
			return "expected a boolean value"
		}
		prefs.ShareWithAdvertisers = v
	case "preferences.dataRetentionDays":
		days, ok := toInt(c.Value)
		if !ok {
			return "expected a number of days"
		}
		if days < 1 {
			return "retention must be at least one day"
		}
		prefs.DataRetentionDays = days
	case "preferences.disabledTopics":
		topics, ok := toIntSlice(c.Value)
		if !ok {
			return "expected a list of topic ids"
		}
		prefs.DisabledTopics = topics
	default:
		return "field is not correctable"
	}
	return ""
}

// toInt accepts the numeric shapes a decoded request can carry.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toIntSlice(v any) ([]int, bool) {
	switch s := v.(type) {
	case []int:
		return append([]int(nil), s...), true
	case []any:
		out := make([]int, 0, len(s))
		for _, e := range s {
			n, ok := toInt(e)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

// RequestDataDeletion erases the requested scope (GDPR Art. 17) and returns
// a certificate of what was removed. A full wipe with legal-basis retention
// keeps only the compliance audit stream; without it, that stream goes too.
func (m *Manager) RequestDataDeletion(ctx context.Context, userID domain.UserID, requestID string, scope DeletionScope) (DeletionResponse, error) {
	requestID = ensureRequestID(requestID)
	ctx, span := m.tracer.Start(ctx, "compliance.RequestDataDeletion",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("request.id", requestID),
			attribute.Bool("scope.delete_all", scope.DeleteAll)))
	defer span.End()

	if userID.IsNil() {
		return DeletionResponse{}, dErrors.New(dErrors.CodeValidation, "data deletion request requires a user id")
	}
	if !scope.DeleteAll && len(scope.SpecificData) == 0 {
		return DeletionResponse{}, dErrors.New(dErrors.CodeValidation, "data deletion request requires a scope: deleteAll or specificData")
	}
	m.countRequest("deletion")

	var deleted, retained []string
	var err error
	if scope.DeleteAll {
		deleted, retained, err = m.deleteAll(ctx, userID, scope.RetainForLegalBasis)
	} else {
		deleted, err = m.deleteSpecific(ctx, userID, scope.SpecificData)
	}
	if err != nil {
		return DeletionResponse{}, err
	}
	sort.Strings(deleted)

	deletionDate := time.Now()
	certificate := deletionCertificate(userID, requestID, deleted, deletionDate)

	resp := DeletionResponse{
		RequestID:       requestID,
		UserID:          userID,
		DeletedData:     deleted,
		RetainedData:    retained,
		DeletionDate:    deletionDate,
		CertificateHash: certificate,
	}
	if m.receipts != nil {
		token, err := m.receipts.sign(userID, requestID, certificate, deletionDate)
		if err != nil {
			// The deletion already happened; a receipt signing fault must not
			// unwind it.
			m.log.Error("deletion receipt signing failed", "requestId", requestID, "error", err)
		} else {
			resp.ReceiptToken = token
		}
	}

	m.recorder.Emit(ctx, audit.EventDataDeletionRequest, map[string]any{
		"requestId":       requestID,
		"userId":          userID.String(),
		"deletedData":     deleted,
		"retainedData":    retained,
		"certificateHash": certificate,
	})
	return resp, nil
}

// deleteAll removes every dataset. The compliance audit stream survives only
// when the subject's legal-basis retention applies; the consent stream never
// survives a full wipe.
func (m *Manager) deleteAll(ctx context.Context, userID domain.UserID, retainForLegalBasis bool) (deleted, retained []string, err error) {
	datasets := []string{
		storage.DatasetCohortData,
		storage.DatasetPreferences,
		storage.DatasetProfile,
		storage.DatasetAPILogs,
		storage.DatasetConsentHistory,
	}
	for _, ds := range datasets {
		if err := m.vault.RemoveUserData(ctx, userID, ds); err != nil {
			return nil, nil, err
		}
		deleted = append(deleted, ds)
	}
	if err := m.vault.RemoveAuditStream(ctx, storage.KeyConsentAudit); err != nil {
		return nil, nil, err
	}
	deleted = append(deleted, storage.KeyConsentAudit)

	if retainForLegalBasis {
		retained = append(retained, storage.KeyComplianceAudit)
	} else {
		if err := m.vault.RemoveAuditStream(ctx, storage.KeyComplianceAudit); err != nil {
			return nil, nil, err
		}
		deleted = append(deleted, storage.KeyComplianceAudit)
	}
	return deleted, retained, nil
}

func (m *Manager) deleteSpecific(ctx context.Context, userID domain.UserID, datasets []string) ([]string, error) {
	deleted := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		if err := m.vault.RemoveUserData(ctx, userID, ds); err != nil {
			return nil, err
		}
		deleted = append(deleted, ds)
	}
	return deleted, nil
}

// deletionCertificate derives the tamper-evident certificate hash from the
// request facts. Format: CERT- followed by uppercase hex.
func deletionCertificate(userID domain.UserID, requestID string, deleted []string, date time.Time) string {
	payload := strings.Join([]string{
		userID.String(),
		requestID,
		strings.Join(deleted, ","),
		date.UTC().Format(time.RFC3339Nano),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return "CERT-" + strings.ToUpper(hex.EncodeToString(sum[:]))
}

// RequestDataPortability exports the user's data in a machine-readable
// format (GDPR Art. 20) with a content checksum.
func (m *Manager) RequestDataPortability(ctx context.Context, userID domain.UserID, requestID string, format ExportFormat) (PortabilityResponse, error) {
	requestID = ensureRequestID(requestID)
	ctx, span := m.tracer.Start(ctx, "compliance.RequestDataPortability",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("request.id", requestID),
			attribute.String("export.format", string(format))))
	defer span.End()

	if userID.IsNil() {
		return PortabilityResponse{}, dErrors.New(dErrors.CodeValidation, "data portability request requires a user id")
	}
	m.countRequest("portability")

	data, err := m.gatherPersonalData(ctx, userID)
	if err != nil {
		return PortabilityResponse{}, err
	}

	exportDate := time.Now()
	bundle := exportBundle{
		UserID:     userID,
		ExportDate: exportDate,
		Data:       data,
	}
	raw, err := serializeExport(bundle, format)
	if err != nil {
		return PortabilityResponse{}, err
	}

	m.recorder.Emit(ctx, audit.EventDataPortabilityRequest, map[string]any{
		"requestId": requestID,
		"userId":    userID.String(),
		"format":    string(format),
	})
	return PortabilityResponse{
		RequestID:  requestID,
		UserID:     userID,
		Format:     format,
		ExportData: raw,
		Checksum:   checksum(raw),
		ExportDate: exportDate,
	}, nil
}

// ValidateDataProcessingLawfulness runs the rule-based validator over a
// proposed processing activity and audits the verdict.
func (m *Manager) ValidateDataProcessingLawfulness(ctx context.Context, activity ProcessingActivity) (LawfulnessResult, error) {
	ctx, span := m.tracer.Start(ctx, "compliance.ValidateDataProcessingLawfulness")
	defer span.End()

	m.countRequest("lawfulness")
	result := validateLawfulness(activity)

	m.recorder.Emit(ctx, audit.EventLawfulnessValidated, map[string]any{
		"purpose":     activity.Purpose,
		"lawfulBasis": activity.LawfulBasis,
		"isLawful":    result.IsLawful,
		"violations":  result.ValidationDetails,
	})
	return result, nil
}
