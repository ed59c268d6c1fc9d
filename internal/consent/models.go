package consent

import (
	"time"

	"veil/pkg/domain"
)

// rightsDisclosure is the fixed consent text presented with every consent
// form. It is rendered by the caller's UI, never persisted by the engine.
const rightsDisclosure = "You may withdraw this consent at any time, in whole " +
	"or per purpose, without affecting the lawfulness of processing before " +
	"withdrawal. You also have the right to access, rectify, erase, and " +
	"export the personal data processed under it. All processing happens " +
	"locally on this device."

// PurposeStatus reports one catalog purpose with its current granted flag.
type PurposeStatus struct {
	Purpose     domain.Purpose `json:"purpose"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Required    bool           `json:"required"`
	Granted     bool           `json:"granted"`
}

// Status is the per-user consent summary consumed by presentation layers.
type Status struct {
	UserID          domain.UserID   `json:"userId"`
	HasValidConsent bool            `json:"hasValidConsent"`
	Purposes        []PurposeStatus `json:"purposes"`
	LastConsentDate *time.Time      `json:"lastConsentDate,omitempty"`
	ExpiryDate      *time.Time      `json:"expiryDate,omitempty"`
}

// FormPurpose is one catalog entry annotated for rendering a consent form.
type FormPurpose struct {
	Purpose     domain.Purpose     `json:"purpose"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	LawfulBasis domain.LawfulBasis `json:"lawfulBasis"`
	Required    bool               `json:"required"`
	DataTypes   []string           `json:"dataTypes"`
	Granted     bool               `json:"granted"`
}

// Form carries everything a caller needs to render consent UI.
type Form struct {
	Purposes       []FormPurpose `json:"purposes"`
	ConsentText    string        `json:"consentText"`
	ConsentVersion string        `json:"consentVersion"`
}
