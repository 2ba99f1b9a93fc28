package services

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/cache"
	"github.com/skillgate/go-interview-backend/internal/config"
	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/llm"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

type fakeChatter struct {
	replies []string // popped per call
	lastSys string
	turns   [][]domain.Turn
	err     error
}

func (f *fakeChatter) Chat(ctx context.Context, system string, turns []domain.Turn) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastSys = system
	f.turns = append(f.turns, turns)
	if len(f.replies) == 0 {
		return `{"message":"go on","intent":"probe","confidence":0.8,"conclude":false}`, nil
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	return next, nil
}

func newSessionFixture(t *testing.T) (*SessionService, *fakeChatter, *gorm.DB, *domain.Candidate) {
	t.Helper()
	db := newTestDB(t)
	iv := seedInterview(t, db, "org-1")

	start, end := window()
	cand := &domain.Candidate{
		InterviewID:      iv.ID,
		InterviewVersion: iv.Version,
		UserID:           "user-9",
		WindowStart:      start,
		WindowEnd:        end,
		InviteStatus:     domain.InviteStatusSent,
	}
	if err := repo.CreateCandidate(context.Background(), db, cand); err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewConversationCache(client, db, config.CacheConfig{
		ActiveTTL:    time.Hour,
		FlushLockTTL: 10 * time.Second,
	})

	chatter := &fakeChatter{}
	return NewSessionService(db, store, chatter), chatter, db, cand
}

func TestPostMessage_AppendsBothTurns(t *testing.T) {
	s, chatter, _, cand := newSessionFixture(t)
	ctx := context.Background()

	reply, err := s.PostMessage(ctx, cand.ID, "I have ten years of Go experience.")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if reply.Message != "go on" {
		t.Errorf("reply message = %q", reply.Message)
	}
	if chatter.lastSys == "" {
		t.Errorf("system instruction not passed to the model")
	}
	// The model sees the candidate turn that triggered the call.
	if got := chatter.turns[0]; len(got) != 1 || got[0].Role != domain.TurnRoleCandidate {
		t.Fatalf("model saw turns %+v", got)
	}

	history, err := s.History(ctx, cand.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d turns, want 2", len(history))
	}
	if history[0].Role != domain.TurnRoleCandidate || history[1].Role != domain.TurnRoleInterviewer {
		t.Errorf("unexpected roles: %+v", history)
	}
}

func TestPostMessage_Validation(t *testing.T) {
	s, _, _, cand := newSessionFixture(t)
	ctx := context.Background()

	if _, err := s.PostMessage(ctx, cand.ID, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank message: got %v, want ErrEmptyMessage", err)
	}

	s.MaxMessageRunes = 5
	if _, err := s.PostMessage(ctx, cand.ID, "definitely longer than five runes"); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("long message: got %v, want ErrMessageTooLong", err)
	}
}

func TestPostMessage_OutsideWindow(t *testing.T) {
	s, _, db, cand := newSessionFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-48 * time.Hour)
	if err := db.Model(&domain.Candidate{}).Where("id = ?", cand.ID).
		Updates(map[string]any{"window_start": past, "window_end": past.Add(time.Hour)}).Error; err != nil {
		t.Fatalf("shrink window: %v", err)
	}

	if _, err := s.PostMessage(ctx, cand.ID, "hello?"); !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("PostMessage: got %v, want ErrOutsideWindow", err)
	}
}

func TestPostMessage_ConcludeFinalizes(t *testing.T) {
	s, chatter, db, cand := newSessionFixture(t)
	ctx := context.Background()

	chatter.replies = []string{
		`{"message":"That concludes our interview.","intent":"conclude","confidence":0.95,"conclude":true,` +
			`"report":{"summary":"Solid fundamentals.","scores":[` +
			`{"skill":"Go","score":7,"max_score":10,"comment":"good"},` +
			`{"skill":"SQL","score":5,"max_score":10}]}}`,
	}

	reply, err := s.PostMessage(ctx, cand.ID, "Thanks, I'm done.")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if !reply.Conclude {
		t.Fatalf("reply not concluding: %+v", reply)
	}

	got, err := repo.GetCandidate(ctx, db, cand.ID)
	if err != nil {
		t.Fatalf("GetCandidate: %v", err)
	}
	if got.CompletedAt == nil {
		t.Errorf("attempt not marked completed")
	}
	if got.SummaryReport != "Solid fundamentals." {
		t.Errorf("summary = %q", got.SummaryReport)
	}
	if len(got.TopicScores) != 2 {
		t.Errorf("stored %d score rows, want 2", len(got.TopicScores))
	}

	// Transcript flushed to durable storage, cache cleared.
	tr, err := repo.GetTranscript(ctx, db, cand.ID)
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if tr.Messages == "" {
		t.Errorf("flushed transcript empty")
	}

	// Further turns are rejected.
	if _, err := s.PostMessage(ctx, cand.ID, "one more thing"); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("post after conclusion: got %v, want ErrSessionCompleted", err)
	}
}

func TestPostMessage_MalformedReplySurfaces(t *testing.T) {
	s, chatter, db, cand := newSessionFixture(t)
	ctx := context.Background()

	chatter.replies = []string{"I will not answer in JSON today."}
	if _, err := s.PostMessage(ctx, cand.ID, "hello"); !errors.Is(err, llm.ErrMalformedReply) {
		t.Fatalf("PostMessage: got %v, want ErrMalformedReply", err)
	}

	// The candidate turn stays in the cache; the attempt is still open.
	got, _ := repo.GetCandidate(ctx, db, cand.ID)
	if got.CompletedAt != nil {
		t.Errorf("attempt completed by a malformed reply")
	}
}

func TestComplete_ExplicitFlush(t *testing.T) {
	s, _, db, cand := newSessionFixture(t)
	ctx := context.Background()

	if _, err := s.PostMessage(ctx, cand.ID, "short chat"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if err := s.Complete(ctx, cand.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, _ := repo.GetCandidate(ctx, db, cand.ID)
	if got.CompletedAt == nil {
		t.Errorf("attempt not marked completed")
	}
	if _, err := repo.GetTranscript(ctx, db, cand.ID); err != nil {
		t.Errorf("transcript not flushed: %v", err)
	}
}
