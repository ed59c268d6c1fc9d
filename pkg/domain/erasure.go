package domain

import "time"

// ErasureActionKind names one mechanical step of a cascading erasure.
type ErasureActionKind string

const (
	// EraseCohortData removes the user's stored cohort assignments.
	EraseCohortData ErasureActionKind = "remove_cohort_data"
	// EraseWriteMarker records a withdrawal marker under a purpose-specific
	// key; downstream consumers must honor the marker before processing.
	EraseWriteMarker ErasureActionKind = "write_withdrawal_marker"
)

// ErasureAction is one step of a planned cascade. Actions are abstract; the
// storage layer resolves them to concrete keys when applying.
type ErasureAction struct {
	Kind    ErasureActionKind `json:"kind"`
	Purpose Purpose           `json:"purpose"`
}

// ErasureIntent is the write-ahead record persisted before a cascade is
// applied. A crash mid-cascade leaves the intent behind; the cleanup job
// re-applies pending intents so withdrawal and erasure converge.
type ErasureIntent struct {
	UserID    UserID          `json:"userId"`
	Reason    string          `json:"reason"`
	Actions   []ErasureAction `json:"actions"`
	CreatedAt time.Time       `json:"createdAt"`
}

// PlanErasure maps a purpose to the erasure actions its withdrawal or
// revocation requires. Pure; applying the plan is the storage layer's job.
// The switch is exhaustive over the purpose catalog: required purposes
// (security monitoring, legal compliance) yield no actions because their
// lawful basis does not rest on consent.
func PlanErasure(purpose Purpose) []ErasureAction {
	switch purpose {
	case PurposeCohortAssignment:
		return []ErasureAction{{Kind: EraseCohortData, Purpose: purpose}}
	case PurposeAdPersonalization, PurposeAnalytics:
		return []ErasureAction{{Kind: EraseWriteMarker, Purpose: purpose}}
	case PurposeSecurityMonitoring, PurposeLegalCompliance:
		return nil
	default:
		return nil
	}
}

// NewErasureIntent builds the write-ahead intent for a set of purposes. The
// reason records what triggered the cascade (withdrawal, granular revocation).
func NewErasureIntent(userID UserID, reason string, purposes []Purpose, now time.Time) ErasureIntent {
	var actions []ErasureAction
	for _, p := range purposes {
		actions = append(actions, PlanErasure(p)...)
	}
	return ErasureIntent{
		UserID:    userID,
		Reason:    reason,
		Actions:   actions,
		CreatedAt: now,
	}
}
