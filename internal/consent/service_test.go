package consent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veil/internal/audit"
	"veil/internal/storage"
	"veil/internal/storage/provider/memory"
	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// =============================================================================
// Consent Manager Test Suite
// =============================================================================
// Justification for unit tests: consent validity, withdrawal cascades, and
// granular revocation carry regulatory invariants (withdrawal is terminal,
// cohort data is erased with its purpose) that must hold in isolation.

type ConsentManagerSuite struct {
	suite.Suite
	provider *memory.Provider
	vault    *storage.Vault
	recorder *audit.Recorder
	manager  *Manager
	userID   domain.UserID
}

func TestConsentManagerSuite(t *testing.T) {
	suite.Run(t, new(ConsentManagerSuite))
}

func (s *ConsentManagerSuite) SetupTest() {
	s.provider = memory.New()
	s.vault = storage.NewVault(s.provider)
	s.recorder = audit.NewRecorder(s.vault)
	s.userID = domain.UserID("user-1")

	var err error
	s.manager, err = NewManager(s.vault, s.recorder)
	s.Require().NoError(err)
}

func (s *ConsentManagerSuite) newRecord(purposes ...domain.Purpose) domain.ConsentRecord {
	if len(purposes) == 0 {
		purposes = []domain.Purpose{domain.PurposeCohortAssignment}
	}
	return domain.ConsentRecord{
		UserID:      s.userID,
		Purposes:    purposes,
		LawfulBasis: domain.BasisConsent,
		ConsentText: "I agree to local cohort processing",
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ConsentManagerSuite) TestNewManager() {
	s.Run("nil vault returns error", func() {
		_, err := NewManager(nil, s.recorder)
		s.Error(err)
		s.Contains(err.Error(), "storage vault is required")
	})

	s.Run("nil recorder returns error", func() {
		_, err := NewManager(s.vault, nil)
		s.Error(err)
		s.Contains(err.Error(), "audit recorder is required")
	})
}

// =============================================================================
// RecordConsent Tests
// =============================================================================

func (s *ConsentManagerSuite) TestRecordConsent() {
	ctx := context.Background()

	s.Run("rejects missing required fields", func() {
		cases := []struct {
			name   string
			mutate func(*domain.ConsentRecord)
		}{
			{"no user id", func(r *domain.ConsentRecord) { r.UserID = "" }},
			{"no purposes", func(r *domain.ConsentRecord) { r.Purposes = nil }},
			{"no consent text", func(r *domain.ConsentRecord) { r.ConsentText = "" }},
			{"no lawful basis", func(r *domain.ConsentRecord) { r.LawfulBasis = "" }},
			{"invalid lawful basis", func(r *domain.ConsentRecord) { r.LawfulBasis = "vibes" }},
			{"invalid purpose", func(r *domain.ConsentRecord) { r.Purposes = []domain.Purpose{"unknown"} }},
		}
		for _, tc := range cases {
			record := s.newRecord()
			tc.mutate(&record)
			_, err := s.manager.RecordConsent(ctx, record)
			s.Error(err, tc.name)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), tc.name)
		}
	})

	s.Run("fills generated fields and appends to history", func() {
		saved, err := s.manager.RecordConsent(ctx, s.newRecord())
		s.Require().NoError(err)
		s.NotEmpty(saved.ID)
		s.Equal(domain.ConsentGiven, saved.Status)
		s.False(saved.Withdrawn)
		s.Equal(domain.SystemVersion, saved.ConsentVersion)
		s.NotNil(saved.GranularConsents)
		s.False(saved.Timestamp.IsZero())

		history, err := s.vault.ConsentHistory(ctx, s.userID)
		s.Require().NoError(err)
		s.Len(history, 1)
	})

	s.Run("normalizes the user agent", func() {
		record := s.newRecord()
		record.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		saved, err := s.manager.RecordConsent(ctx, record)
		s.Require().NoError(err)
		s.Contains(saved.UserAgent, "Chrome/")
		s.NotContains(saved.UserAgent, "AppleWebKit")
	})

	s.Run("emits a consent audit entry", func() {
		entries, err := s.recorder.Entries(ctx, storage.KeyConsentAudit)
		s.Require().NoError(err)
		s.NotEmpty(entries)
		s.Equal(string(audit.EventConsentGiven), entries[0].EventType)
	})
}

// =============================================================================
// Validity Tests
// =============================================================================

func (s *ConsentManagerSuite) TestIsConsentValid() {
	ctx := context.Background()

	s.Run("unknown id is not found", func() {
		_, err := s.manager.IsConsentValid(ctx, "missing", s.userID)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("fresh consent is valid", func() {
		saved, err := s.manager.RecordConsent(ctx, s.newRecord())
		s.Require().NoError(err)

		valid, err := s.manager.IsConsentValid(ctx, saved.ID, s.userID)
		s.NoError(err)
		s.True(valid)
	})

	s.Run("withdrawn consent is invalid", func() {
		saved, err := s.manager.RecordConsent(ctx, s.newRecord())
		s.Require().NoError(err)
		_, err = s.manager.WithdrawConsent(ctx, saved.ID, s.userID)
		s.Require().NoError(err)

		valid, err := s.manager.IsConsentValid(ctx, saved.ID, s.userID)
		s.NoError(err)
		s.False(valid)
	})

	s.Run("consent older than two years is invalid", func() {
		saved, err := s.manager.RecordConsent(ctx, s.newRecord())
		s.Require().NoError(err)

		// Age the record directly in storage
		history, err := s.vault.ConsentHistory(ctx, s.userID)
		s.Require().NoError(err)
		for i := range history {
			if history[i].ID == saved.ID {
				history[i].Timestamp = time.Now().Add(-domain.MaxConsentAge - time.Hour)
			}
		}
		s.Require().NoError(s.vault.SaveConsentHistory(ctx, s.userID, history))

		valid, err := s.manager.IsConsentValid(ctx, saved.ID, s.userID)
		s.NoError(err)
		s.False(valid)
	})
}

// =============================================================================
// Withdrawal Tests
// =============================================================================

func (s *ConsentManagerSuite) TestWithdrawConsent() {
	ctx := context.Background()

	s.Run("unknown id is not found", func() {
		_, err := s.manager.WithdrawConsent(ctx, "missing", s.userID)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("flips the record to its terminal state", func() {
		saved, err := s.manager.RecordConsent(ctx, s.newRecord())
		s.Require().NoError(err)

		withdrawn, err := s.manager.WithdrawConsent(ctx, saved.ID, s.userID)
		s.Require().NoError(err)
		s.Equal(domain.ConsentWithdrawn, withdrawn.Status)
		s.True(withdrawn.Withdrawn)
		s.Require().NotNil(withdrawn.WithdrawalDate)
	})

	s.Run("cohort purpose withdrawal erases stored cohort data", func() {
		s.SetupTest()
		s.Require().NoError(s.vault.StoreCohortData(ctx, s.userID, []domain.CohortAssignment{{
			TopicID:    7,
			ExpiryDate: time.Now().Add(24 * time.Hour),
		}}))

		saved, err := s.manager.RecordConsent(ctx, s.newRecord(domain.PurposeCohortAssignment))
		s.Require().NoError(err)
		_, err = s.manager.WithdrawConsent(ctx, saved.ID, s.userID)
		s.Require().NoError(err)

		cohorts, err := s.vault.GetCohortData(ctx, s.userID)
		s.NoError(err)
		s.Empty(cohorts)
	})

	s.Run("advertising purpose withdrawal writes a marker", func() {
		s.SetupTest()
		saved, err := s.manager.RecordConsent(ctx, s.newRecord(domain.PurposeAdPersonalization))
		s.Require().NoError(err)
		_, err = s.manager.WithdrawConsent(ctx, saved.ID, s.userID)
		s.Require().NoError(err)

		marker, err := s.vault.WithdrawalMarker(ctx, s.userID, domain.PurposeAdPersonalization)
		s.NoError(err)
		s.Require().NotNil(marker)
		s.True(marker.Withdrawn)
	})

	s.Run("second withdrawal is idempotent", func() {
		s.SetupTest()
		saved, err := s.manager.RecordConsent(ctx, s.newRecord())
		s.Require().NoError(err)

		first, err := s.manager.WithdrawConsent(ctx, saved.ID, s.userID)
		s.Require().NoError(err)
		second, err := s.manager.WithdrawConsent(ctx, saved.ID, s.userID)
		s.Require().NoError(err)
		s.Require().NotNil(second.WithdrawalDate)
		s.True(first.WithdrawalDate.Equal(*second.WithdrawalDate))
	})
}

// =============================================================================
// Renewal Tests
// =============================================================================

func (s *ConsentManagerSuite) TestRenewConsent() {
	ctx := context.Background()

	saved, err := s.manager.RecordConsent(ctx, s.newRecord())
	s.Require().NoError(err)

	renewed, err := s.manager.RenewConsent(ctx, saved.ID, s.newRecord())
	s.Require().NoError(err)
	s.NotEqual(saved.ID, renewed.ID, "renewal issues a fresh id")

	oldValid, err := s.manager.IsConsentValid(ctx, saved.ID, s.userID)
	s.NoError(err)
	s.False(oldValid)

	newValid, err := s.manager.IsConsentValid(ctx, renewed.ID, s.userID)
	s.NoError(err)
	s.True(newValid)

	history, err := s.vault.ConsentHistory(ctx, s.userID)
	s.Require().NoError(err)
	s.Len(history, 2, "history keeps the withdrawn record")
}

// =============================================================================
// Granular Consent Tests
// =============================================================================

func (s *ConsentManagerSuite) TestUpdateGranularConsent() {
	ctx := context.Background()

	s.Run("invalid purpose is rejected", func() {
		_, err := s.manager.UpdateGranularConsent(ctx, s.userID, "unknown", true)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("no active consent yields missing consent", func() {
		_, err := s.manager.UpdateGranularConsent(ctx, s.userID, domain.PurposeAnalytics, true)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeMissingConsent))
	})

	s.Run("grant then revoke runs the scoped cascade", func() {
		_, err := s.manager.RecordConsent(ctx, s.newRecord(
			domain.PurposeCohortAssignment, domain.PurposeAdPersonalization))
		s.Require().NoError(err)

		updated, err := s.manager.UpdateGranularConsent(ctx, s.userID, domain.PurposeAdPersonalization, true)
		s.Require().NoError(err)
		s.True(updated.GranularConsents[domain.PurposeAdPersonalization])

		status, err := s.manager.GetConsentStatus(ctx, s.userID)
		s.Require().NoError(err)
		s.True(purposeGranted(status, domain.PurposeAdPersonalization))

		updated, err = s.manager.UpdateGranularConsent(ctx, s.userID, domain.PurposeAdPersonalization, false)
		s.Require().NoError(err)
		s.False(updated.GranularConsents[domain.PurposeAdPersonalization])

		marker, err := s.vault.WithdrawalMarker(ctx, s.userID, domain.PurposeAdPersonalization)
		s.NoError(err)
		s.Require().NotNil(marker, "revocation cascades like withdrawal")

		status, err = s.manager.GetConsentStatus(ctx, s.userID)
		s.Require().NoError(err)
		s.False(purposeGranted(status, domain.PurposeAdPersonalization))
		s.True(status.HasValidConsent, "umbrella consent stays active")
	})
}

func purposeGranted(status Status, purpose domain.Purpose) bool {
	for _, p := range status.Purposes {
		if p.Purpose == purpose {
			return p.Granted
		}
	}
	return false
}

// =============================================================================
// Status and Form Tests
// =============================================================================

func (s *ConsentManagerSuite) TestGetConsentStatus() {
	ctx := context.Background()

	s.Run("fresh user has the full catalog, nothing granted", func() {
		status, err := s.manager.GetConsentStatus(ctx, s.userID)
		s.Require().NoError(err)
		s.False(status.HasValidConsent)
		s.Len(status.Purposes, 5)
		s.Nil(status.LastConsentDate)
		for _, p := range status.Purposes {
			s.False(p.Granted)
		}
	})

	s.Run("active consent overlays granular flags", func() {
		saved, err := s.manager.RecordConsent(ctx, s.newRecord())
		s.Require().NoError(err)
		_, err = s.manager.UpdateGranularConsent(ctx, s.userID, domain.PurposeAnalytics, true)
		s.Require().NoError(err)

		status, err := s.manager.GetConsentStatus(ctx, s.userID)
		s.Require().NoError(err)
		s.True(status.HasValidConsent)
		s.Require().NotNil(status.LastConsentDate)
		s.Equal(saved.Timestamp.Unix(), status.LastConsentDate.Unix())
		s.True(purposeGranted(status, domain.PurposeAnalytics))
	})
}

func (s *ConsentManagerSuite) TestGenerateConsentForm() {
	ctx := context.Background()

	form, err := s.manager.GenerateConsentForm(ctx, s.userID)
	s.Require().NoError(err)
	s.Len(form.Purposes, 5)
	s.Equal(domain.SystemVersion, form.ConsentVersion)
	s.Contains(form.ConsentText, "withdraw")

	required := 0
	for _, p := range form.Purposes {
		if p.Required {
			required++
		}
		s.NotEmpty(p.DataTypes)
	}
	s.Equal(2, required)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func (s *ConsentManagerSuite) TestConcurrentRecordsSerializePerUser() {
	ctx := context.Background()
	const writers = 16

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.manager.RecordConsent(ctx, s.newRecord())
			s.NoError(err)
		}()
	}
	wg.Wait()

	history, err := s.vault.ConsentHistory(ctx, s.userID)
	s.Require().NoError(err)
	s.Len(history, writers, "no lost updates under concurrent writes")
}
