package domain

import "time"

// SystemVersion is stamped onto audit entries and consent forms so exported
// records identify the engine release that produced them.
const SystemVersion = "1.0.0"

// AuditLogEntry is one append-only audit record. Entries are never edited,
// only evicted oldest-first once a stream reaches its cap.
type AuditLogEntry struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"eventType"`
	EventData     map[string]any `json:"eventData,omitempty"`
	SystemVersion string         `json:"systemVersion"`
}
