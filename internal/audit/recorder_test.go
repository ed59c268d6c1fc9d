package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"veil/internal/storage"
	"veil/internal/storage/provider/memory"
	storagemock "veil/mocks/storage"
	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// =============================================================================
// Audit Recorder Test Suite
// =============================================================================
// Justification for unit tests: the recorder's contract is asymmetric. Emit
// must never fail the caller while keeping drops observable; that split is
// invisible from service-level tests.

type RecorderSuite struct {
	suite.Suite
	vault    *storage.Vault
	recorder *Recorder
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.vault = storage.NewVault(memory.New())
	s.recorder = NewRecorder(s.vault)
}

func (s *RecorderSuite) TestEmitRoutesToTheRightStream() {
	ctx := context.Background()

	s.recorder.Emit(ctx, EventConsentGiven, map[string]any{"consentId": "c-1"})
	s.recorder.Emit(ctx, EventDataDeletionRequest, map[string]any{"requestId": "r-1"})

	consent, err := s.recorder.Entries(ctx, storage.KeyConsentAudit)
	s.Require().NoError(err)
	s.Require().Len(consent, 1)
	s.Equal(string(EventConsentGiven), consent[0].EventType)
	s.Equal(domain.SystemVersion, consent[0].SystemVersion)
	s.NotEmpty(consent[0].ID)
	s.False(consent[0].Timestamp.IsZero())

	compliance, err := s.recorder.Entries(ctx, storage.KeyComplianceAudit)
	s.Require().NoError(err)
	s.Require().Len(compliance, 1)
	s.Equal(string(EventDataDeletionRequest), compliance[0].EventType)
}

func (s *RecorderSuite) TestUnknownEventsLandInComplianceStream() {
	s.Equal(storage.KeyComplianceAudit, EventType("SOMETHING_NEW").Stream())
}

func (s *RecorderSuite) TestEmitSwallowsPersistenceFaults() {
	ctrl := gomock.NewController(s.T())
	provider := storagemock.NewMockSecureStorageProvider(ctrl)
	provider.EXPECT().
		RetrieveEncrypted(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("backend down")).
		AnyTimes()

	recorder := NewRecorder(storage.NewVault(provider))

	// Emit must return normally despite the fault
	recorder.Emit(context.Background(), EventConsentGiven, nil)

	select {
	case failure := <-recorder.Failures():
		s.True(dErrors.HasCode(failure.Err, dErrors.CodeAuditLogFailed))
		s.Equal(string(EventConsentGiven), failure.Entry.EventType)
	default:
		s.Fail("expected a failure on the sink")
	}
}

func (s *RecorderSuite) TestMustEmitReturnsCodedError() {
	ctrl := gomock.NewController(s.T())
	provider := storagemock.NewMockSecureStorageProvider(ctrl)
	provider.EXPECT().
		RetrieveEncrypted(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("backend down")).
		AnyTimes()

	recorder := NewRecorder(storage.NewVault(provider))

	err := recorder.MustEmit(context.Background(), EventDataAccessRequest, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuditLogFailed))
}

func (s *RecorderSuite) TestFullSinkNeverBlocksEmission() {
	ctrl := gomock.NewController(s.T())
	provider := storagemock.NewMockSecureStorageProvider(ctrl)
	provider.EXPECT().
		RetrieveEncrypted(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("backend down")).
		AnyTimes()

	recorder := NewRecorder(storage.NewVault(provider))

	// Overfill the sink without draining; every Emit must still return.
	for i := 0; i < 200; i++ {
		recorder.Emit(context.Background(), EventConsentGiven, nil)
	}
}
