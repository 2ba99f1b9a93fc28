// Package services – SessionService
//
// This file implements the SessionService, which runs live interview
// sessions: it validates the candidate's time window, keeps the hot
// transcript in the conversation cache, drives the LLM interviewer for every
// turn, and finalizes the attempt (report rows + transcript flush) when the
// model concludes the interview.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/cache"
	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/llm"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

// ConversationStore is the cache contract required by SessionService.
// Implemented by cache.ConversationCache.
type ConversationStore interface {
	Populate(ctx context.Context, candidateID string) (bool, error)
	Append(ctx context.Context, candidateID, raw string) error
	Messages(ctx context.Context, candidateID string) ([]string, error)
	Hot(ctx context.Context, candidateID string) (bool, error)
	Flush(ctx context.Context, candidateID string) error
}

// Chatter is the model contract required by SessionService. Implemented by
// llm.Client.
type Chatter interface {
	Chat(ctx context.Context, system string, turns []domain.Turn) (string, error)
}

// SessionService exchanges turns between a candidate and the LLM interviewer.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache holds the hot transcript.
	Cache ConversationStore
	// LLM produces the interviewer's replies.
	LLM Chatter

	// MaxMessageRunes caps a single candidate turn by rune length.
	MaxMessageRunes int
}

// NewSessionService constructs a SessionService with a sane message cap.
func NewSessionService(db *gorm.DB, store ConversationStore, chatter Chatter) *SessionService {
	return &SessionService{
		DB:              db,
		Cache:           store,
		LLM:             chatter,
		MaxMessageRunes: 4000,
	}
}

// History returns the attempt's conversation so far, rehydrating the cache
// from the persisted transcript if needed.
func (s *SessionService) History(ctx context.Context, candidateID string) ([]domain.Turn, error) {
	if _, err := s.ensureHot(ctx, candidateID); err != nil {
		return nil, err
	}
	return s.turns(ctx, candidateID)
}

// PostMessage appends a candidate turn, obtains the interviewer's reply, and
// finalizes the attempt when the model concludes. The returned reply carries
// the message to show the candidate.
func (s *SessionService) PostMessage(ctx context.Context, candidateID, text string) (*llm.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return nil, ErrMessageTooLong
	}

	cand, err := s.loadOpenAttempt(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	iv, err := repo.GetInterview(ctx, s.DB, cand.InterviewID)
	if err != nil {
		return nil, err
	}

	if _, err := s.ensureHot(ctx, candidateID); err != nil {
		return nil, err
	}
	if err := s.appendTurn(ctx, candidateID, domain.TurnRoleCandidate, text); err != nil {
		return nil, err
	}

	turns, err := s.turns(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	raw, err := s.LLM.Chat(ctx, llm.BuildSystemInstruction(iv), turns)
	if err != nil {
		return nil, err
	}
	reply, err := llm.ParseReply(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.appendTurn(ctx, candidateID, domain.TurnRoleInterviewer, reply.Message); err != nil {
		return nil, err
	}

	if reply.Conclude {
		if err := s.finalize(ctx, candidateID, reply); err != nil {
			return nil, err
		}
	}
	return reply, nil
}

// Complete ends an attempt explicitly: the transcript is flushed to durable
// storage and, absent a model-issued report, the attempt is marked completed
// with an empty summary.
func (s *SessionService) Complete(ctx context.Context, candidateID string) error {
	cand, err := repo.GetCandidate(ctx, s.DB, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCandidateNotFound
		}
		return err
	}
	if cand.CompletedAt == nil {
		if err := repo.CompleteCandidate(ctx, s.DB, candidateID, "", nil); err != nil {
			return err
		}
	}
	return s.flush(ctx, candidateID)
}

// loadOpenAttempt fetches the candidate and rejects turns outside the invite
// window or after completion.
func (s *SessionService) loadOpenAttempt(ctx context.Context, candidateID string) (*domain.Candidate, error) {
	cand, err := repo.GetCandidate(ctx, s.DB, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCandidateNotFound
		}
		return nil, err
	}
	if cand.CompletedAt != nil {
		return nil, ErrSessionCompleted
	}
	now := time.Now().UTC()
	if now.Before(cand.WindowStart) || now.After(cand.WindowEnd) {
		return nil, ErrOutsideWindow
	}
	return cand, nil
}

// ensureHot hydrates the cache when the attempt has no live entry yet.
func (s *SessionService) ensureHot(ctx context.Context, candidateID string) (bool, error) {
	hot, err := s.Cache.Hot(ctx, candidateID)
	if err != nil {
		return false, err
	}
	if hot {
		return true, nil
	}
	return s.Cache.Populate(ctx, candidateID)
}

func (s *SessionService) appendTurn(ctx context.Context, candidateID, role, content string) error {
	b, err := json.Marshal(domain.Turn{Role: role, Content: content, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.Cache.Append(ctx, candidateID, string(b))
}

func (s *SessionService) turns(ctx context.Context, candidateID string) ([]domain.Turn, error) {
	raws, err := s.Cache.Messages(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	turns := make([]domain.Turn, 0, len(raws))
	for _, raw := range raws {
		var t domain.Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// finalize stores the model's report and flushes the transcript.
func (s *SessionService) finalize(ctx context.Context, candidateID string, reply *llm.Reply) error {
	summary := ""
	var scores []domain.TopicScore
	if reply.Report != nil {
		summary = reply.Report.Summary
		for _, sc := range reply.Report.Scores {
			scores = append(scores, domain.TopicScore{
				Skill:    sc.Skill,
				Score:    sc.Score,
				MaxScore: sc.MaxScore,
				Comment:  sc.Comment,
			})
		}
	}
	if err := repo.CompleteCandidate(ctx, s.DB, candidateID, summary, scores); err != nil {
		return err
	}
	return s.flush(ctx, candidateID)
}

// flush tolerates a concurrent flusher: losing the lock means the transcript
// is being persisted anyway.
func (s *SessionService) flush(ctx context.Context, candidateID string) error {
	if err := s.Cache.Flush(ctx, candidateID); err != nil && !errors.Is(err, cache.ErrFlushLocked) {
		return err
	}
	return nil
}
