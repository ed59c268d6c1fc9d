package compliance

import (
	"time"

	"veil/pkg/domain"
)

// PersonalData is the aggregate bundle a subject's data resolves to. Access
// and portability requests share it.
type PersonalData struct {
	CohortData     []domain.CohortAssignment `json:"cohortData"`
	Preferences    domain.UserPreferences    `json:"preferences"`
	Profile        map[string]any            `json:"profile,omitempty"`
	APIRequestLogs []domain.APIRequestLog    `json:"apiRequestLogs"`
}

// AccessResponse answers a data access request (GDPR Art. 15).
type AccessResponse struct {
	RequestID          string        `json:"requestId"`
	UserID             domain.UserID `json:"userId"`
	Timestamp          time.Time     `json:"timestamp"`
	PersonalData       PersonalData  `json:"personalData"`
	ProcessingPurposes []string      `json:"processingPurposes"`
	DataCategories     []string      `json:"dataCategories"`
	Recipients         []string      `json:"recipients"`
	RetentionPeriod    string        `json:"retentionPeriod"`
	DataSource         string        `json:"dataSource"`
}

// Correction names one dotted field path and its replacement value.
type Correction struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// CorrectionStatus classifies a correction request outcome. Deterministic
// from acceptance counts: zero accepted is rejected, all accepted is
// completed, a mix is partial.
type CorrectionStatus string

const (
	CorrectionCompleted CorrectionStatus = "completed"
	CorrectionPartial   CorrectionStatus = "partial"
	CorrectionRejected  CorrectionStatus = "rejected"
)

// RejectedCorrection reports a correction that was not applied and why.
type RejectedCorrection struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// CorrectionResponse answers a rectification request (GDPR Art. 16).
type CorrectionResponse struct {
	RequestID       string               `json:"requestId"`
	UserID          domain.UserID        `json:"userId"`
	Status          CorrectionStatus     `json:"status"`
	CorrectionsMade []string             `json:"correctionsMade"`
	Rejected        []RejectedCorrection `json:"rejected,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
}

// DeletionScope selects what an erasure request covers: a global wipe
// (optionally retaining the compliance audit stream for legal basis) or an
// explicit list of datasets.
type DeletionScope struct {
	DeleteAll           bool     `json:"deleteAll"`
	RetainForLegalBasis bool     `json:"retainForLegalBasis"`
	SpecificData        []string `json:"specificData,omitempty"`
}

// DeletionResponse answers an erasure request (GDPR Art. 17). The
// certificate hash is a tamper-evident receipt of what was deleted;
// ReceiptToken carries the same facts as a signed JWT when receipt signing
// is configured.
type DeletionResponse struct {
	RequestID       string        `json:"requestId"`
	UserID          domain.UserID `json:"userId"`
	DeletedData     []string      `json:"deletedData"`
	RetainedData    []string      `json:"retainedData"`
	DeletionDate    time.Time     `json:"deletionDate"`
	CertificateHash string        `json:"certificateHash"`
	ReceiptToken    string        `json:"receiptToken,omitempty"`
}

// ExportFormat is a supported portability serialization.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatXML  ExportFormat = "xml"
)

// PortabilityResponse answers a portability request (GDPR Art. 20).
type PortabilityResponse struct {
	RequestID  string        `json:"requestId"`
	UserID     domain.UserID `json:"userId"`
	Format     ExportFormat  `json:"format"`
	ExportData []byte        `json:"exportData"`
	Checksum   string        `json:"checksum"`
	ExportDate time.Time     `json:"exportDate"`
}

// ProcessingActivity describes a proposed processing operation submitted to
// the lawfulness validator.
type ProcessingActivity struct {
	Purpose         string   `json:"purpose"`
	LawfulBasis     string   `json:"lawfulBasis"`
	DataTypes       []string `json:"dataTypes"`
	RetentionPeriod int      `json:"retentionPeriod"` // days
}

// LawfulnessResult reports the rule-based validation outcome.
// Recommendations may be present even when the activity is lawful.
type LawfulnessResult struct {
	IsLawful          bool     `json:"isLawful"`
	ValidationDetails []string `json:"validationDetails"`
	Recommendations   []string `json:"recommendations"`
}
