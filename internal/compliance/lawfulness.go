package compliance

import (
	"fmt"

	"veil/pkg/domain"
)

// Rule thresholds for the lawfulness validator.
const (
	minPurposeDescription = 10
	maxDataTypes          = 10
	maxRetentionDays      = 365
)

// validateLawfulness applies the rule set to a proposed processing activity.
// Violations land in ValidationDetails and make the activity unlawful;
// recommendations alone do not.
func validateLawfulness(activity ProcessingActivity) LawfulnessResult {
	result := LawfulnessResult{
		ValidationDetails: []string{},
		Recommendations:   []string{},
	}
	violations := 0

	if !domain.LawfulBasis(activity.LawfulBasis).IsValid() {
		violations++
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"invalid lawful basis: %q is not a recognized GDPR Article 6 basis",
			activity.LawfulBasis))
	}

	if len(activity.Purpose) < minPurposeDescription {
		result.Recommendations = append(result.Recommendations, fmt.Sprintf(
			"purpose description is below %d characters; describe the processing specifically enough for a data subject to understand it",
			minPurposeDescription))
	}

	if len(activity.DataTypes) > maxDataTypes {
		violations++
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"data minimization violation: %d data types exceeds the maximum of %d for a single purpose",
			len(activity.DataTypes), maxDataTypes))
	}

	if activity.RetentionPeriod > maxRetentionDays {
		violations++
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(
			"retention period of %d days exceeds the maximum of %d days",
			activity.RetentionPeriod, maxRetentionDays))
		result.Recommendations = append(result.Recommendations,
			"define a shorter retention period or document the legal obligation requiring longer storage")
	}

	result.IsLawful = violations == 0
	return result
}
