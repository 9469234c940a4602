package signoff

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/notify"
	signoffmocks "github.com/BearBump/CrewTrack/internal/services/signoff/mocks"
)

var t0 = time.Date(2025, 7, 1, 18, 30, 0, 0, time.UTC)

var signature = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))

func moveJob() *models.Job {
	return &models.Job{ID: "j1", Type: models.JobTypeMove, Status: models.JobStatusInProgress, ClientEmail: "c@example.test"}
}

func input(a models.Attestations) models.SignOffInput {
	return models.SignOffInput{
		JobID: "j1", JobType: models.JobTypeMove, SignerName: "Ada Client",
		Signature: signature, Attestations: a,
	}
}

type ServiceSuite struct {
	suite.Suite

	repo      *signoffmocks.MockRepository
	store     *signoffmocks.MockArtifactStore
	snapshots *signoffmocks.MockSnapshotInvalidator
	escalator *signoffmocks.MockEscalator
	svc       *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &signoffmocks.MockRepository{}
	s.store = &signoffmocks.MockArtifactStore{}
	s.snapshots = &signoffmocks.MockSnapshotInvalidator{}
	s.escalator = &signoffmocks.MockEscalator{}
	s.svc = New(s.repo, s.store, s.snapshots, s.escalator)
	s.svc.now = func() time.Time { return t0 }
}

func (s *ServiceSuite) expectFreshSubmit() {
	s.repo.On("GetJob", mock.Anything, "j1").Return(moveJob(), nil).Once()
	s.repo.On("GetSignOff", mock.Anything, "j1", models.JobTypeMove).Return(nil, models.ErrNotFound).Once()
	s.store.On("Put", mock.Anything, mock.AnythingOfType("string"), []byte("png-bytes"), "image/png").Return(nil).Once()
	s.repo.On("InsertSignOff", mock.Anything, mock.Anything).Return(nil).Once()
}

func (s *ServiceSuite) expectFinalize() {
	s.repo.On("FinalizeJob", mock.Anything, "j1", models.JobStatusCompleted, t0).Return("s1", nil).Once()
	s.snapshots.On("Invalidate", mock.Anything, "j1").Return(nil).Once()
}

func (s *ServiceSuite) TestSubmit_HappyPath() {
	s.expectFreshSubmit()
	s.repo.On("ListIncidents", mock.Anything, "j1", models.JobTypeMove).Return([]models.Incident{}, nil).Once()
	s.expectFinalize()

	so, err := s.svc.Submit(context.Background(), input(allGood()))
	s.Require().NoError(err)
	s.Require().False(so.EscalationTriggered)
	s.Require().Empty(so.EscalationReasons)
	s.Require().Empty(so.DiscrepancyFlags)
	s.Require().Equal(t0.Add(24*time.Hour), so.DamageReportDeadline)
	s.Require().Equal(t0, so.SignedAt)
	s.Require().Regexp(`^signoffs/j1/[0-9a-f-]{36}\.png$`, so.SignatureKey)

	s.repo.AssertExpectations(s.T())
	s.store.AssertExpectations(s.T())
	s.snapshots.AssertExpectations(s.T())
	s.escalator.AssertNotCalled(s.T(), "Escalated", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestSubmit_LowRatingAllPositive() {
	a := allGood()
	a.SatisfactionRating = 1

	s.expectFreshSubmit()
	s.repo.On("ListIncidents", mock.Anything, "j1", models.JobTypeMove).Return([]models.Incident{}, nil).Once()
	s.repo.On("SetDiscrepancyFlags", mock.Anything, mock.Anything, []string{FlagMisclickOrDuress}).Return(nil).Once()
	s.expectFinalize()
	s.escalator.On("Escalated", mock.Anything, mock.MatchedBy(func(p notify.EscalationPayload) bool {
		return p.JobID == "j1" && p.Reason == "Low satisfaction rating: 1/5" &&
			len(p.DiscrepancyFlags) == 1 && p.DiscrepancyFlags[0] == FlagMisclickOrDuress
	})).Once()

	so, err := s.svc.Submit(context.Background(), input(a))
	s.Require().NoError(err)
	s.Require().True(so.EscalationTriggered)
	s.Require().Equal([]string{"Low satisfaction rating: 1/5"}, so.EscalationReasons)
	s.Require().Equal("Low satisfaction rating: 1/5", so.EscalationReason)
	s.Require().Contains(so.DiscrepancyFlags, FlagMisclickOrDuress)
	s.escalator.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestSubmit_ReasonsJoined() {
	a := allGood()
	a.NoDamages = false
	a.DamageDescription = "scratched table"
	a.Exceptions = "late"

	s.expectFreshSubmit()
	s.repo.On("ListIncidents", mock.Anything, "j1", models.JobTypeMove).
		Return([]models.Incident{{IssueType: models.IssueTypeDamage}}, nil).Once()
	s.expectFinalize()
	s.escalator.On("Escalated", mock.Anything, mock.Anything).Once()

	so, err := s.svc.Submit(context.Background(), input(a))
	s.Require().NoError(err)
	s.Require().Len(so.EscalationReasons, 2)
	s.Require().Equal("Client reported damage; Client noted exceptions", so.EscalationReason)
	s.Require().Empty(so.DiscrepancyFlags)
}

func (s *ServiceSuite) TestSubmit_AlreadySigned() {
	s.repo.On("GetJob", mock.Anything, "j1").Return(moveJob(), nil).Once()
	s.repo.On("GetSignOff", mock.Anything, "j1", models.JobTypeMove).Return(&models.ClientSignOff{ID: "so1"}, nil).Once()

	_, err := s.svc.Submit(context.Background(), input(allGood()))
	s.Require().ErrorIs(err, models.ErrAlreadySigned)
	s.store.AssertNotCalled(s.T(), "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestSubmit_InsertLosesRace_RemovesUploadedSignature() {
	var uploaded string
	s.repo.On("GetJob", mock.Anything, "j1").Return(moveJob(), nil).Once()
	s.repo.On("GetSignOff", mock.Anything, "j1", models.JobTypeMove).Return(nil, models.ErrNotFound).Once()
	s.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { uploaded = args.String(1) }).
		Return(nil).Once()
	s.repo.On("InsertSignOff", mock.Anything, mock.Anything).Return(models.ErrAlreadySigned).Once()
	s.store.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool { return key == uploaded })).
		Return(nil).Once()

	_, err := s.svc.Submit(context.Background(), input(allGood()))
	s.Require().ErrorIs(err, models.ErrAlreadySigned)
	s.Require().True(strings.HasPrefix(uploaded, "signoffs/j1/"))
	s.store.AssertExpectations(s.T())
	s.repo.AssertNotCalled(s.T(), "FinalizeJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestSubmit_OrphanRemovalFailureKeepsInsertError() {
	s.repo.On("GetJob", mock.Anything, "j1").Return(moveJob(), nil).Once()
	s.repo.On("GetSignOff", mock.Anything, "j1", models.JobTypeMove).Return(nil, models.ErrNotFound).Once()
	s.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	s.repo.On("InsertSignOff", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	s.store.On("Delete", mock.Anything, mock.Anything).Return(errors.New("s3 down")).Once()

	_, err := s.svc.Submit(context.Background(), input(allGood()))
	s.Require().EqualError(err, "db down")
	s.store.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestSubmit_BackfillAndFinalizeFailuresAreSwallowed() {
	s.expectFreshSubmit()
	s.repo.On("ListIncidents", mock.Anything, "j1", models.JobTypeMove).Return(nil, errors.New("db down")).Once()
	s.repo.On("FinalizeJob", mock.Anything, "j1", models.JobStatusCompleted, t0).Return("", errors.New("db down")).Once()

	so, err := s.svc.Submit(context.Background(), input(allGood()))
	s.Require().NoError(err)
	s.Require().NotNil(so)
	s.Require().Empty(so.DiscrepancyFlags)
	s.snapshots.AssertNotCalled(s.T(), "Invalidate", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestSubmit_DeliveryFinalizesAsDelivered() {
	job := moveJob()
	job.Type = models.JobTypeDelivery
	in := input(allGood())
	in.JobType = models.JobTypeDelivery

	s.repo.On("GetJob", mock.Anything, "j1").Return(job, nil).Once()
	s.repo.On("GetSignOff", mock.Anything, "j1", models.JobTypeDelivery).Return(nil, models.ErrNotFound).Once()
	s.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	s.repo.On("InsertSignOff", mock.Anything, mock.Anything).Return(nil).Once()
	s.repo.On("ListIncidents", mock.Anything, "j1", models.JobTypeDelivery).Return([]models.Incident{}, nil).Once()
	s.repo.On("FinalizeJob", mock.Anything, "j1", models.JobStatusDelivered, t0).Return("", nil).Once()
	s.snapshots.On("Invalidate", mock.Anything, "j1").Return(nil).Once()

	_, err := s.svc.Submit(context.Background(), in)
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestSubmit_Validation() {
	cases := map[string]func(*models.SignOffInput){
		"no signer":    func(in *models.SignOffInput) { in.SignerName = " " },
		"no signature": func(in *models.SignOffInput) { in.Signature = "" },
		"bad rating":   func(in *models.SignOffInput) { in.Attestations.SatisfactionRating = 0 },
		"bad nps":      func(in *models.SignOffInput) { in.Attestations.NPSScore = intp(11) },
		"bad job type": func(in *models.SignOffInput) { in.JobType = "boat" },
	}
	for name, mutate := range cases {
		in := input(allGood())
		mutate(&in)
		_, err := s.svc.Submit(context.Background(), in)
		s.Require().ErrorIs(err, models.ErrValidation, name)
	}
	s.repo.AssertNotCalled(s.T(), "GetJob", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestSubmit_UndecodableSignature() {
	s.repo.On("GetJob", mock.Anything, "j1").Return(moveJob(), nil).Once()
	s.repo.On("GetSignOff", mock.Anything, "j1", models.JobTypeMove).Return(nil, models.ErrNotFound).Once()

	in := input(allGood())
	in.Signature = "data:text/plain;base64,aGk="
	_, err := s.svc.Submit(context.Background(), in)
	s.Require().ErrorIs(err, models.ErrValidation)
}

func (s *ServiceSuite) TestReportIncident() {
	s.repo.On("GetJob", mock.Anything, "j1").Return(moveJob(), nil).Once()
	s.repo.On("CreateIncident", mock.Anything, mock.MatchedBy(func(in *models.Incident) bool {
		return in.IssueType == models.IssueTypeDamage && in.OccurredAt.Equal(t0) && in.Description == "dent"
	})).Return(nil).Once()

	inc, err := s.svc.ReportIncident(context.Background(), IncidentInput{
		JobID: "j1", JobType: models.JobTypeMove, IssueType: models.IssueTypeDamage, Description: " dent ",
	})
	s.Require().NoError(err)
	s.Require().Equal("dent", inc.Description)

	_, err = s.svc.ReportIncident(context.Background(), IncidentInput{
		JobID: "j1", JobType: models.JobTypeMove, IssueType: "flood", Description: "x",
	})
	s.Require().ErrorIs(err, models.ErrValidation)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// memRepo enforces one sign-off per job the way the unique constraint does.
type memRepo struct {
	mu       sync.Mutex
	signoffs map[string]*models.ClientSignOff
}

func (r *memRepo) GetJob(_ context.Context, id string) (*models.Job, error) {
	return moveJob(), nil
}

func (r *memRepo) GetSignOff(_ context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so, ok := r.signoffs[jobID+"/"+string(jobType)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return so, nil
}

func (r *memRepo) InsertSignOff(_ context.Context, so *models.ClientSignOff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := so.JobID + "/" + string(so.JobType)
	if _, ok := r.signoffs[k]; ok {
		return models.ErrAlreadySigned
	}
	r.signoffs[k] = so
	return nil
}

func (r *memRepo) SetDiscrepancyFlags(context.Context, string, []string) error { return nil }
func (r *memRepo) CreateIncident(context.Context, *models.Incident) error      { return nil }
func (r *memRepo) ListIncidents(context.Context, string, models.JobType) ([]models.Incident, error) {
	return nil, nil
}
func (r *memRepo) FinalizeJob(context.Context, string, models.JobStatus, time.Time) (string, error) {
	return "", nil
}

type nopStore struct{}

func (nopStore) Put(context.Context, string, []byte, string) error { return nil }
func (nopStore) Delete(context.Context, string) error              { return nil }

func TestSubmit_DuplicateSubmissionsLeaveOneRecord(t *testing.T) {
	repo := &memRepo{signoffs: map[string]*models.ClientSignOff{}}
	svc := New(repo, nopStore{}, nil, nil)

	_, err := svc.Submit(context.Background(), input(allGood()))
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), input(allGood()))
	require.ErrorIs(t, err, models.ErrAlreadySigned)

	const n = 8
	repo2 := &memRepo{signoffs: map[string]*models.ClientSignOff{}}
	svc2 := New(repo2, nopStore{}, nil, nil)
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc2.Submit(context.Background(), input(allGood()))
		}(i)
	}
	wg.Wait()

	var ok, signed int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrAlreadySigned):
			signed++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, signed)
	require.Len(t, repo2.signoffs, 1)
}
