package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/queue"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

// ----- Fakes and shims -----

type candidateRepoShim struct{}

func (candidateRepoShim) CreateCandidate(ctx context.Context, db *gorm.DB, c *domain.Candidate) error {
	return repo.CreateCandidate(ctx, db, c)
}
func (candidateRepoShim) GetCandidate(ctx context.Context, db *gorm.DB, id string) (*domain.Candidate, error) {
	return repo.GetCandidate(ctx, db, id)
}
func (candidateRepoShim) FindCandidateByUserAndInterview(ctx context.Context, db *gorm.DB, userID, interviewID string) (*domain.Candidate, error) {
	return repo.FindCandidateByUserAndInterview(ctx, db, userID, interviewID)
}
func (candidateRepoShim) CountCandidates(ctx context.Context, db *gorm.DB, interviewID string) (int64, error) {
	return repo.CountCandidates(ctx, db, interviewID)
}
func (candidateRepoShim) ListCandidatesPage(ctx context.Context, db *gorm.DB, interviewID string, offset, limit int) ([]domain.Candidate, error) {
	return repo.ListCandidatesPage(ctx, db, interviewID, offset, limit)
}
func (candidateRepoShim) RequestRevaluation(ctx context.Context, db *gorm.DB, id, reason string) error {
	return repo.RequestRevaluation(ctx, db, id, reason)
}
func (candidateRepoShim) DeleteCandidate(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCandidate(ctx, db, id)
}

type fakePublisher struct {
	published [][]byte
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

func seedInterview(t *testing.T, db *gorm.DB, orgID string) *domain.Interview {
	t.Helper()
	s := NewInterviewService(db, interviewRepoShim{})
	iv, err := s.Create(context.Background(), orgID, "creator-1", validInput())
	if err != nil {
		t.Fatalf("seed interview: %v", err)
	}
	return iv
}

func window() (time.Time, time.Time) {
	start := time.Now().Add(-time.Hour)
	return start, start.Add(72 * time.Hour)
}

// ----- Tests -----

func TestInvite_EnqueuesJob(t *testing.T) {
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")
	pub := &fakePublisher{}
	s := NewCandidateService(db, candidateRepoShim{}, pub)

	start, end := window()
	cand, err := s.Invite(context.Background(), "org-1", InviteInput{
		InterviewID: iv.ID,
		UserID:      "user-9",
		Email:       "cand@example.com",
		WindowStart: start,
		WindowEnd:   end,
		Attachments: []string{"https://files.example.com/cv.pdf"},
	})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if cand.InviteStatus != domain.InviteStatusPending {
		t.Errorf("invite status = %q, want pending", cand.InviteStatus)
	}
	if cand.InterviewVersion != iv.Version {
		t.Errorf("attempt pinned version %d, want %d", cand.InterviewVersion, iv.Version)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d jobs, want 1", len(pub.published))
	}
	var job queue.InviteJob
	if err := json.Unmarshal(pub.published[0], &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.CandidateID != cand.ID || job.Email != "cand@example.com" {
		t.Errorf("unexpected job: %+v", job)
	}
	if len(job.AttachmentURLs) != 1 || job.AttachmentURLs[0] != "https://files.example.com/cv.pdf" {
		t.Errorf("attachments not carried: %+v", job.AttachmentURLs)
	}
}

func TestInvite_InvalidWindow(t *testing.T) {
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")
	s := NewCandidateService(db, candidateRepoShim{}, &fakePublisher{})

	now := time.Now()
	_, err := s.Invite(context.Background(), "org-1", InviteInput{
		InterviewID: iv.ID,
		UserID:      "user-9",
		Email:       "cand@example.com",
		WindowStart: now,
		WindowEnd:   now.Add(-time.Hour),
	})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("Invite: got %v, want ErrInvalidWindow", err)
	}
}

func TestInvite_SecondAttemptRejected(t *testing.T) {
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")
	pub := &fakePublisher{}
	s := NewCandidateService(db, candidateRepoShim{}, pub)

	start, end := window()
	in := InviteInput{
		InterviewID: iv.ID,
		UserID:      "user-9",
		Email:       "cand@example.com",
		WindowStart: start,
		WindowEnd:   end,
	}
	if _, err := s.Invite(context.Background(), "org-1", in); err != nil {
		t.Fatalf("first Invite: %v", err)
	}
	if _, err := s.Invite(context.Background(), "org-1", in); !errors.Is(err, ErrDuplicateCandidate) {
		t.Fatalf("second Invite: got %v, want ErrDuplicateCandidate", err)
	}
	if len(pub.published) != 1 {
		t.Errorf("duplicate invite published a job")
	}
}

func TestInvite_ExternalKeyDeduplicated(t *testing.T) {
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")
	s := NewCandidateService(db, candidateRepoShim{}, &fakePublisher{})

	start, end := window()
	in := InviteInput{
		InterviewID: iv.ID,
		Email:       "ext@example.com",
		External:    true,
		ExternalKey: "ext-referral-42",
		WindowStart: start,
		WindowEnd:   end,
	}
	if _, err := s.Invite(context.Background(), "org-1", in); err != nil {
		t.Fatalf("first Invite: %v", err)
	}
	if _, err := s.Invite(context.Background(), "org-1", in); !errors.Is(err, ErrDuplicateCandidate) {
		t.Fatalf("second Invite: got %v, want ErrDuplicateCandidate", err)
	}
}

func TestInvite_UnknownInterview(t *testing.T) {
	db := newTestDB(t)
	s := NewCandidateService(db, candidateRepoShim{}, &fakePublisher{})

	start, end := window()
	_, err := s.Invite(context.Background(), "org-1", InviteInput{
		InterviewID: "missing",
		UserID:      "user-9",
		Email:       "cand@example.com",
		WindowStart: start,
		WindowEnd:   end,
	})
	if !errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("Invite: got %v, want ErrInterviewNotFound", err)
	}
}

func TestInvite_PublishFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	s := NewCandidateService(db, candidateRepoShim{}, pub)
	ctx := context.Background()

	start, end := window()
	in := InviteInput{
		InterviewID: iv.ID,
		UserID:      "user-9",
		Email:       "cand@example.com",
		WindowStart: start,
		WindowEnd:   end,
	}
	if _, err := s.Invite(ctx, "org-1", in); err == nil {
		t.Fatal("Invite succeeded despite publish failure")
	}
	if _, err := repo.FindCandidateByUserAndInterview(ctx, db, "user-9", iv.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("attempt row survived the failed publish: %v", err)
	}

	// With the row rolled back, a retry must succeed rather than hit the
	// one-attempt rule.
	pub.err = nil
	cand, err := s.Invite(ctx, "org-1", in)
	if err != nil {
		t.Fatalf("retry after publish failure: %v", err)
	}
	if cand.InviteStatus != domain.InviteStatusPending {
		t.Errorf("retry invite status = %q, want pending", cand.InviteStatus)
	}
	if len(pub.published) != 1 {
		t.Errorf("published %d jobs, want 1", len(pub.published))
	}
}

func TestCandidateService_DBErrorsNotMaskedAsNotFound(t *testing.T) {
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")
	s := NewCandidateService(db, candidateRepoShim{}, &fakePublisher{})
	ctx := context.Background()

	start, end := window()
	cand, err := s.Invite(ctx, "org-1", InviteInput{
		InterviewID: iv.ID,
		UserID:      "user-9",
		Email:       "cand@example.com",
		WindowStart: start,
		WindowEnd:   end,
	})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	// Simulate a storage outage for interview lookups.
	if err := db.Migrator().DropTable(&domain.Interview{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if _, err := s.Invite(ctx, "org-1", InviteInput{
		InterviewID: iv.ID,
		UserID:      "user-10",
		Email:       "other@example.com",
		WindowStart: start,
		WindowEnd:   end,
	}); err == nil || errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("Invite during outage: got %v, want raw DB error", err)
	}
	if _, err := s.Get(ctx, "org-1", cand.ID); err == nil || errors.Is(err, ErrCandidateNotFound) {
		t.Fatalf("Get during outage: got %v, want raw DB error", err)
	}
	if _, _, err := s.List(ctx, "org-1", iv.ID, 0, 10); err == nil || errors.Is(err, ErrInterviewNotFound) {
		t.Fatalf("List during outage: got %v, want raw DB error", err)
	}
}

func TestRequestRevaluation(t *testing.T) {
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")
	s := NewCandidateService(db, candidateRepoShim{}, &fakePublisher{})
	ctx := context.Background()

	start, end := window()
	cand, err := s.Invite(ctx, "org-1", InviteInput{
		InterviewID: iv.ID,
		UserID:      "user-9",
		Email:       "cand@example.com",
		WindowStart: start,
		WindowEnd:   end,
	})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	if err := s.RequestRevaluation(ctx, "org-1", cand.ID, "score looks off"); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("revaluation before completion: got %v, want ErrNotCompleted", err)
	}

	if err := repo.CompleteCandidate(ctx, db, cand.ID, "summary", nil); err != nil {
		t.Fatalf("CompleteCandidate: %v", err)
	}
	if err := s.RequestRevaluation(ctx, "org-1", cand.ID, "score looks off"); err != nil {
		t.Fatalf("RequestRevaluation: %v", err)
	}

	got, _ := s.Get(ctx, "org-1", cand.ID)
	if !got.RevaluationRequested || got.RevaluationReason != "score looks off" {
		t.Errorf("revaluation not recorded: %+v", got)
	}
}
