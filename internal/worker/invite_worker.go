// Package worker implements the background consumer that turns a queued
// invitation job into a sent candidate email, transcribing any attached
// documents along the way.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/config"
	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/mail"
	"github.com/skillgate/go-interview-backend/internal/queue"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

// Transcriber extracts text from an attachment prompt. Satisfied by
// llm.Client.
type Transcriber interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sleeper lets tests skip real backoff delays.
type Sleeper func(ctx context.Context, attempt int)

// InviteWorker processes invite jobs: transcribe attachments, persist the
// extracted content, email the candidate, and track invite status through
// pending -> processing -> sent|failed.
type InviteWorker struct {
	db          *gorm.DB
	transcriber Transcriber
	mailer      mail.Mailer
	cfg         config.WorkerConfig
	appBaseURL  string
	log         zerolog.Logger
	sleep       Sleeper
}

// NewInviteWorker wires a worker. appBaseURL is the public frontend origin
// embedded in invite links.
func NewInviteWorker(db *gorm.DB, tr Transcriber, m mail.Mailer, cfg config.WorkerConfig, appBaseURL string, log zerolog.Logger) *InviteWorker {
	if cfg.TranscribeAttempts <= 0 {
		cfg.TranscribeAttempts = 3
	}
	w := &InviteWorker{
		db:          db,
		transcriber: tr,
		mailer:      m,
		cfg:         cfg,
		appBaseURL:  appBaseURL,
		log:         log,
	}
	w.sleep = w.backoff
	return w
}

// Handle is the queue.HandlerFunc for invite jobs. A returned error nacks
// the delivery; the candidate row is marked failed first so the status is
// observable even if the redelivery also fails.
func (w *InviteWorker) Handle(ctx context.Context, body []byte) error {
	var job queue.InviteJob
	if err := json.Unmarshal(body, &job); err != nil {
		// Unparseable payloads can never succeed; drop without touching state.
		w.log.Error().Err(err).Msg("invite job: bad payload")
		return nil
	}

	log := w.log.With().Str("candidate_id", job.CandidateID).Logger()

	if err := repo.UpdateInviteStatus(ctx, w.db, job.CandidateID, domain.InviteStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := w.process(ctx, log, job); err != nil {
		if serr := repo.UpdateInviteStatus(ctx, w.db, job.CandidateID, domain.InviteStatusFailed); serr != nil {
			log.Error().Err(serr).Msg("invite job: marking failed status failed")
		}
		return err
	}

	if err := repo.UpdateInviteStatus(ctx, w.db, job.CandidateID, domain.InviteStatusSent); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	log.Info().Msg("invite sent")
	return nil
}

func (w *InviteWorker) process(ctx context.Context, log zerolog.Logger, job queue.InviteJob) error {
	cand, err := repo.GetCandidate(ctx, w.db, job.CandidateID)
	if err != nil {
		return fmt.Errorf("load candidate: %w", err)
	}
	iv, err := repo.GetInterview(ctx, w.db, cand.InterviewID)
	if err != nil {
		return fmt.Errorf("load interview: %w", err)
	}

	if extracted := w.transcribeAll(ctx, log, cand.Attachments); len(extracted) > 0 {
		if err := repo.MergeAttachmentContent(ctx, w.db, cand.ID, extracted); err != nil {
			return fmt.Errorf("persist attachment content: %w", err)
		}
	}

	subject, bodyText := w.composeInvite(iv, cand)
	if err := w.mailer.Send(job.Email, subject, bodyText); err != nil {
		return fmt.Errorf("send invite email: %w", err)
	}
	return nil
}

// transcribeAll extracts text for each attachment that has none yet. A
// single attachment exhausting its retries is logged and skipped; the job
// carries on with the rest.
func (w *InviteWorker) transcribeAll(ctx context.Context, log zerolog.Logger, attachments []domain.Attachment) map[string]string {
	extracted := make(map[string]string)
	for _, att := range attachments {
		if att.Content != "" {
			continue
		}
		content, err := w.transcribeOne(ctx, att.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", att.URL).Msg("attachment transcription exhausted retries, skipping")
			continue
		}
		extracted[att.URL] = content
	}
	return extracted
}

// transcribeOne retries up to the configured attempt count. Retried prompts
// carry a random marker so an upstream prompt cache never replays the failed
// response.
func (w *InviteWorker) transcribeOne(ctx context.Context, url string) (string, error) {
	prompt := "Extract the full plain-text content of the document at the following location. " +
		"Return only the text, with no commentary.\nDocument: " + url

	var lastErr error
	for attempt := 1; attempt <= w.cfg.TranscribeAttempts; attempt++ {
		p := prompt
		if attempt > 1 {
			p += "\n[retry " + uuid.NewString() + "]"
		}
		content, err := w.transcriber.Generate(ctx, p)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if attempt < w.cfg.TranscribeAttempts {
			w.sleep(ctx, attempt)
		}
	}
	return "", lastErr
}

// backoff waits 2^(attempt-1) times the base delay, honoring ctx.
func (w *InviteWorker) backoff(ctx context.Context, attempt int) {
	delay := w.cfg.BackoffBase << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *InviteWorker) composeInvite(iv *domain.Interview, cand *domain.Candidate) (subject, body string) {
	subject = fmt.Sprintf("Interview invitation: %s", iv.Title)
	link := fmt.Sprintf("%s/interview/%s/session/%s", w.appBaseURL, iv.ID, cand.ID)
	body = fmt.Sprintf(
		"Hello,\n\nYou have been invited to the interview %q.\n"+
			"Your session is available from %s to %s.\n\n"+
			"Start here: %s\n\nGood luck!\n",
		iv.Title,
		cand.WindowStart.Format("Mon, 02 Jan 2006 15:04 MST"),
		cand.WindowEnd.Format("Mon, 02 Jan 2006 15:04 MST"),
		link,
	)
	return subject, body
}
