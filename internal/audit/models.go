package audit

import "veil/internal/storage"

// EventType classifies audit events. Each type routes to one of the two
// capped streams: consent lifecycle events to the consent stream, subject
// request events to the compliance stream.
type EventType string

const (
	// Consent lifecycle events
	EventConsentGiven           EventType = "CONSENT_GIVEN"
	EventConsentWithdrawn       EventType = "CONSENT_WITHDRAWN"
	EventConsentRenewed         EventType = "CONSENT_RENEWED"
	EventGranularConsentUpdated EventType = "GRANULAR_CONSENT_UPDATED"

	// Data subject request events
	EventDataAccessRequest      EventType = "DATA_ACCESS_REQUEST"
	EventDataAccessError        EventType = "DATA_ACCESS_ERROR"
	EventDataCorrectionRequest  EventType = "DATA_CORRECTION_REQUEST"
	EventDataDeletionRequest    EventType = "DATA_DELETION_REQUEST"
	EventDataPortabilityRequest EventType = "DATA_PORTABILITY_REQUEST"
	EventLawfulnessValidated    EventType = "LAWFULNESS_VALIDATED"
)

// eventStreams maps each event type to its stream key. Unknown events land in
// the compliance stream, the one retained under legal basis.
var eventStreams = map[EventType]string{
	EventConsentGiven:           storage.KeyConsentAudit,
	EventConsentWithdrawn:       storage.KeyConsentAudit,
	EventConsentRenewed:         storage.KeyConsentAudit,
	EventGranularConsentUpdated: storage.KeyConsentAudit,

	EventDataAccessRequest:      storage.KeyComplianceAudit,
	EventDataAccessError:        storage.KeyComplianceAudit,
	EventDataCorrectionRequest:  storage.KeyComplianceAudit,
	EventDataDeletionRequest:    storage.KeyComplianceAudit,
	EventDataPortabilityRequest: storage.KeyComplianceAudit,
	EventLawfulnessValidated:    storage.KeyComplianceAudit,
}

// Stream returns the storage key of the stream this event belongs to.
func (e EventType) Stream() string {
	if s, ok := eventStreams[e]; ok {
		return s
	}
	return storage.KeyComplianceAudit
}
