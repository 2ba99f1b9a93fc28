package queue

import (
	"context"
	"encoding/json"
)

// InviteJob is the payload carried on the invite queue. The worker re-reads
// the candidate row before acting, so the payload stays small: identifiers
// plus the attachment URLs to transcribe.
type InviteJob struct {
	CandidateID    string   `json:"candidate_id"`
	InterviewID    string   `json:"interview_id"`
	Email          string   `json:"email"`
	AttachmentURLs []string `json:"attachment_urls,omitempty"`
}

// Publisher is the producer-side capability the HTTP layer depends on.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// EnqueueInvite marshals the job and publishes it.
func EnqueueInvite(ctx context.Context, p Publisher, job InviteJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.Publish(ctx, body)
}
