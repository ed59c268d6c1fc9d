package storage

import (
	"time"

	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// Stored records are versioned envelopes rather than loose JSON blobs. Each
// envelope carries a schema version so a future shape change has an explicit
// migration path; readers reject versions they do not know.
const schemaVersionCurrent = 1

type cohortEnvelope struct {
	SchemaVersion int                       `json:"schemaVersion"`
	Cohorts       []domain.CohortAssignment `json:"cohorts"`
	Timestamp     time.Time                 `json:"timestamp"`
	Version       string                    `json:"version"`
}

type preferencesEnvelope struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Preferences   domain.UserPreferences `json:"preferences"`
}

type profileEnvelope struct {
	SchemaVersion int            `json:"schemaVersion"`
	Profile       map[string]any `json:"profile"`
}

type consentEnvelope struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Records       []domain.ConsentRecord `json:"records"`
}

type logBucket struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Entries       []domain.APIRequestLog `json:"entries"`
}

type auditStream struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Entries       []domain.AuditLogEntry `json:"entries"`
}

type cleanupStamp struct {
	SchemaVersion int       `json:"schemaVersion"`
	Timestamp     time.Time `json:"timestamp"`
}

// checkSchema validates an envelope's version on the read path. Version zero
// is accepted as the pre-versioning shape and upgraded in place on the next
// write; anything newer than the current version is corruption from this
// build's point of view.
func checkSchema(version int, key string) error {
	if version > schemaVersionCurrent {
		return dErrors.Newf(dErrors.CodeCorruptionDetected,
			"unknown schema version %d for %s", version, key)
	}
	return nil
}
