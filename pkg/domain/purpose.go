package domain

import (
	dErrors "veil/pkg/domain-errors"
)

// Purpose is a domain value that identifies why personal data is processed.
// Invariant: the value must be one of the supported processing purposes.
//
// Usage: construct via ParsePurpose at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Purpose string

// Supported processing purposes. The catalog is static and not persisted.
const (
	PurposeCohortAssignment   Purpose = "cohort_assignment"
	PurposeAdPersonalization  Purpose = "advertising_personalization"
	PurposeAnalytics          Purpose = "analytics_improvement"
	PurposeSecurityMonitoring Purpose = "security_monitoring"
	PurposeLegalCompliance    Purpose = "legal_compliance"
)

// validPurposes is the single source of truth for valid processing purposes.
var validPurposes = map[Purpose]bool{
	PurposeCohortAssignment:   true,
	PurposeAdPersonalization:  true,
	PurposeAnalytics:          true,
	PurposeSecurityMonitoring: true,
	PurposeLegalCompliance:    true,
}

// ParsePurpose constructs a Purpose from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported; no
// other errors are expected.
func ParsePurpose(s string) (Purpose, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "purpose cannot be empty")
	}
	p := Purpose(s)
	if !p.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid purpose: %s", s)
	}
	return p, nil
}

// IsValid checks if the purpose is one of the supported enum values.
func (p Purpose) IsValid() bool {
	return validPurposes[p]
}

// String returns the string representation of the purpose.
func (p Purpose) String() string {
	return string(p)
}

// LawfulBasis is a GDPR Article 6 justification for processing.
type LawfulBasis string

const (
	BasisConsent             LawfulBasis = "consent"
	BasisContract            LawfulBasis = "contract"
	BasisLegalObligation     LawfulBasis = "legal_obligation"
	BasisVitalInterests      LawfulBasis = "vital_interests"
	BasisPublicTask          LawfulBasis = "public_task"
	BasisLegitimateInterests LawfulBasis = "legitimate_interests"
)

var validBases = map[LawfulBasis]bool{
	BasisConsent:             true,
	BasisContract:            true,
	BasisLegalObligation:     true,
	BasisVitalInterests:      true,
	BasisPublicTask:          true,
	BasisLegitimateInterests: true,
}

// IsValid checks if the basis is a recognized Article 6 basis.
func (b LawfulBasis) IsValid() bool {
	return validBases[b]
}

func (b LawfulBasis) String() string {
	return string(b)
}

// PurposeDescriptor carries the static metadata for one catalog entry.
type PurposeDescriptor struct {
	Purpose     Purpose
	Name        string
	Description string
	LawfulBasis LawfulBasis
	Required    bool
	DataTypes   []string
}

// purposeCatalog is the fixed descriptor table. Required purposes cannot be
// opted out of and produce no erasure actions on withdrawal.
var purposeCatalog = []PurposeDescriptor{
	{
		Purpose:     PurposeCohortAssignment,
		Name:        "Cohort Assignment",
		Description: "Assignment to anonymized interest cohorts derived from local browsing categorization",
		LawfulBasis: BasisConsent,
		Required:    false,
		DataTypes:   []string{"browsing_domains", "topic_categories", "cohort_ids"},
	},
	{
		Purpose:     PurposeAdPersonalization,
		Name:        "Advertising Personalization",
		Description: "Sharing of assigned cohorts with advertisers to personalize advertising",
		LawfulBasis: BasisConsent,
		Required:    false,
		DataTypes:   []string{"cohort_ids", "api_request_logs"},
	},
	{
		Purpose:     PurposeAnalytics,
		Name:        "Analytics & Improvement",
		Description: "Aggregate usage analysis to improve cohort quality and system behavior",
		LawfulBasis: BasisConsent,
		Required:    false,
		DataTypes:   []string{"usage_statistics", "cohort_quality_metrics"},
	},
	{
		Purpose:     PurposeSecurityMonitoring,
		Name:        "Security Monitoring",
		Description: "Detection of abuse and tampering with locally stored data",
		LawfulBasis: BasisLegitimateInterests,
		Required:    true,
		DataTypes:   []string{"integrity_checksums", "error_events"},
	},
	{
		Purpose:     PurposeLegalCompliance,
		Name:        "Legal Compliance",
		Description: "Retention of audit records required to demonstrate regulatory compliance",
		LawfulBasis: BasisLegalObligation,
		Required:    true,
		DataTypes:   []string{"audit_log_entries", "consent_records"},
	},
}

// Catalog returns the purpose descriptor table. The returned slice is a copy;
// the catalog itself is immutable.
func Catalog() []PurposeDescriptor {
	out := make([]PurposeDescriptor, len(purposeCatalog))
	copy(out, purposeCatalog)
	return out
}

// DescriptorFor looks up the catalog entry for a purpose.
func DescriptorFor(p Purpose) (PurposeDescriptor, bool) {
	for _, d := range purposeCatalog {
		if d.Purpose == p {
			return d, true
		}
	}
	return PurposeDescriptor{}, false
}
