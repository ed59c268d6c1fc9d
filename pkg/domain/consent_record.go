package domain

import "time"

// ConsentStatus tracks the one-way lifecycle of a consent record.
// Initial "given", terminal "withdrawn"; there is no transition back.
// Expiry is a derived condition evaluated at validity-check time, not a
// stored transition.
type ConsentStatus string

const (
	ConsentGiven     ConsentStatus = "given"
	ConsentWithdrawn ConsentStatus = "withdrawn"
)

// ConsentRecord captures one umbrella consent decision. Immutable except for
// the status/withdrawal fields and the granular map.
type ConsentRecord struct {
	ID             string           `json:"id"`
	UserID         UserID           `json:"userId"`
	Purposes       []Purpose        `json:"purposes"`
	LawfulBasis    LawfulBasis      `json:"lawfulBasis"`
	ConsentText    string           `json:"consentText"`
	ConsentVersion string           `json:"consentVersion"`
	UserAgent      string           `json:"userAgent,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	Status         ConsentStatus    `json:"status"`
	Withdrawn      bool             `json:"withdrawn"`
	WithdrawalDate *time.Time       `json:"withdrawalDate,omitempty"`
	ExpiryDate     *time.Time       `json:"expiryDate,omitempty"`
	// GranularConsents holds per-purpose opt-in flags nested under the
	// umbrella record. Unset purposes default to not granted.
	GranularConsents map[Purpose]bool `json:"granularConsents"`
}

// MaxConsentAge is the fixed maximum age of a consent record. Age alone
// invalidates a record even without an explicit expiry date.
const MaxConsentAge = 730 * 24 * time.Hour

// IsValid reports whether the record authorizes processing at the given time:
// status given, not withdrawn, expiry (if set) not passed, and younger than
// MaxConsentAge.
func (c ConsentRecord) IsValid(now time.Time) bool {
	if c.Status != ConsentGiven || c.Withdrawn {
		return false
	}
	if c.ExpiryDate != nil && c.ExpiryDate.Before(now) {
		return false
	}
	return now.Sub(c.Timestamp) <= MaxConsentAge
}

// WithdrawalMarker records that purpose-specific data was withdrawn. Written
// by cascading erasure for purposes whose data cannot simply be deleted.
type WithdrawalMarker struct {
	Purpose   Purpose   `json:"purpose"`
	Withdrawn bool      `json:"withdrawn"`
	Date      time.Time `json:"date"`
}
