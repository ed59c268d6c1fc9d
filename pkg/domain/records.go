package domain

import (
	"time"

	dErrors "veil/pkg/domain-errors"
)

// UserID identifies a data subject. The engine is agnostic to the ID scheme
// (browser profile id, account id); it only requires a non-empty value.
type UserID string

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "user id cannot be empty")
	}
	return UserID(s), nil
}

func (u UserID) String() string { return string(u) }

// IsNil returns true when the user id is empty.
func (u UserID) IsNil() bool { return u == "" }

// CohortAssignment is produced by the external cohort engine. The core only
// stores, filters, and erases these records; classification happens elsewhere.
type CohortAssignment struct {
	TopicID      int       `json:"topicId"`
	TopicName    string    `json:"topicName"`
	Confidence   float64   `json:"confidence"`
	AssignedDate time.Time `json:"assignedDate"`
	ExpiryDate   time.Time `json:"expiryDate"`
}

// Expired reports whether the assignment's expiry is strictly before now.
func (c CohortAssignment) Expired(now time.Time) bool {
	return c.ExpiryDate.Before(now)
}

// UserPreferences holds the user's cohort and sharing settings.
type UserPreferences struct {
	CohortsEnabled       bool      `json:"cohortsEnabled"`
	DisabledTopics       []int     `json:"disabledTopics"`
	DataRetentionDays    int       `json:"dataRetentionDays"`
	ShareWithAdvertisers bool      `json:"shareWithAdvertisers"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

// DefaultPreferences returns the fixed defaults used whenever no stored
// preferences exist, including immediately after a full wipe.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		CohortsEnabled:       true,
		DisabledTopics:       []int{},
		DataRetentionDays:    21,
		ShareWithAdvertisers: true,
	}
}

// APIRequestLog records one cohort-sharing API call. Entries are grouped into
// monthly buckets and carry no user id; the log is device-local.
type APIRequestLog struct {
	RequestID     string    `json:"requestId"`
	Domain        string    `json:"domain"`
	Timestamp     time.Time `json:"timestamp"`
	CohortsShared []int     `json:"cohortsShared"`
	RequestType   string    `json:"requestType"`
	UserConsent   bool      `json:"userConsent"`
}
