package storage

import (
	"fmt"
	"time"

	"veil/pkg/domain"
)

// Key layout. Per-user records carry the user id in the key so scoped
// deletion and cleanup can enumerate them by prefix; the API request log and
// the audit streams are device-global.
const (
	prefixCohortData    = "cohort_data:"
	prefixPreferences   = "user_preferences:"
	prefixProfile       = "user_profile:"
	prefixConsent       = "consent_history:"
	prefixMarker        = "withdrawal_marker:"
	prefixErasureIntent = "erasure_intent:"
	prefixAPILog        = "api_log_"

	// KeyConsentAudit and KeyComplianceAudit name the two capped audit
	// streams. KeyComplianceAudit is the key excluded from deletion when a
	// subject request retains data for legal basis.
	KeyConsentAudit    = "consent_audit_logs"
	KeyComplianceAudit = "compliance_audit_logs"

	keyLastCleanup = "last_cleanup"
)

// Logical dataset names used by subject access and deletion responses.
const (
	DatasetCohortData     = "cohort_data"
	DatasetPreferences    = "user_preferences"
	DatasetProfile        = "user_profile"
	DatasetAPILogs        = "api_request_logs"
	DatasetConsentHistory = "consent_records"
)

func cohortKey(userID domain.UserID) string {
	return prefixCohortData + userID.String()
}

func preferencesKey(userID domain.UserID) string {
	return prefixPreferences + userID.String()
}

func profileKey(userID domain.UserID) string {
	return prefixProfile + userID.String()
}

func consentKey(userID domain.UserID) string {
	return prefixConsent + userID.String()
}

func markerKey(userID domain.UserID, purpose domain.Purpose) string {
	return prefixMarker + userID.String() + ":" + purpose.String()
}

func intentKey(userID domain.UserID) string {
	return prefixErasureIntent + userID.String()
}

// apiLogKey resolves the monthly bucket for a request timestamp.
func apiLogKey(ts time.Time) string {
	return fmt.Sprintf("%s%d_%d", prefixAPILog, ts.Year(), int(ts.Month()))
}
