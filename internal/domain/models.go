// Package domain defines the persistence models for interview definitions,
// candidate attempts, transcripts, users, and API tokens. These types are
// mapped with GORM and form the core data layer of the interview platform.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Invite status values for a candidate attempt. The invite worker moves an
// attempt through pending → processing → {sent, failed}.
const (
	InviteStatusPending    = "pending"
	InviteStatusProcessing = "processing"
	InviteStatusSent       = "sent"
	InviteStatusFailed     = "failed"
)

// Interview is an interview definition owned by an organization. It carries
// the free-text briefing handed to the LLM interviewer plus an ordered list
// of topics that partition the total duration.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OrgID / CreatorID: ownership; permission checks match on both.
//   - Title: human-readable name.
//   - DurationMin: total interview duration in minutes.
//   - Description: free-text briefing for the AI interviewer.
//   - Keywords: comma-separated search keywords.
//   - Version: bumped on every update; attempts pin the version they ran against.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Interview struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	OrgID       string         `json:"org_id"       gorm:"type:varchar(64);not null;index:idx_org_interviews"`
	CreatorID   string         `json:"creator_id"   gorm:"type:varchar(64);not null;index"`
	Title       string         `json:"title"        gorm:"type:varchar(255);not null"`
	DurationMin int            `json:"duration_min" gorm:"not null"`
	Description string         `json:"description"  gorm:"type:text"`
	Keywords    string         `json:"keywords"     gorm:"type:text"`
	Version     int            `json:"version"      gorm:"not null;default:1"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	// Topics are cascade-deleted with their interview.
	Topics []InterviewTopic `json:"topics" gorm:"foreignKey:InterviewID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Interview.
func (Interview) TableName() string { return "interviews" }

// InterviewTopic is one skill block inside an interview: a difficulty level,
// a weight toward the final score, a time budget, and optional seed questions.
//
// Invariants (enforced in the service layer on create and update):
//   - Difficulty is 1, 2, or 3.
//   - Sum of DurationMin over topics ≤ Interview.DurationMin.
//   - Sum of WeightPct over topics ≈ 100 (±1).
type InterviewTopic struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	InterviewID string `json:"interview_id" gorm:"type:char(36);not null;index:idx_interview_topics,priority:1"`
	Skill       string `json:"skill"        gorm:"type:varchar(128);not null"`
	Difficulty  int    `json:"difficulty"   gorm:"not null;check:difficulty IN (1,2,3)"`
	WeightPct   int    `json:"weight_pct"   gorm:"not null"`
	DurationMin int    `json:"duration_min" gorm:"not null"`
	// Questions holds an optional JSON array of seed questions.
	Questions string `json:"questions" gorm:"type:text"`
	Position  int    `json:"position"  gorm:"not null;index:idx_interview_topics,priority:2"`
}

// TableName returns the database table name for InterviewTopic.
func (InterviewTopic) TableName() string { return "interview_topics" }

// Candidate is one candidate's attempt at an interview: the invite lifecycle,
// the allowed time window, and the reports produced when the session ends.
//
// Uniqueness:
//   - (UserID, InterviewID) is unique for non-external candidates; enforced in
//     the service layer inside the creating transaction (SQLite has no partial
//     unique index through GORM tags).
//   - ExternalKey is unique when set (external candidates only).
type Candidate struct {
	ID               string `json:"id"                gorm:"type:char(36);primaryKey"`
	InterviewID      string `json:"interview_id"      gorm:"type:char(36);not null;index:idx_interview_candidates"`
	InterviewVersion int    `json:"interview_version" gorm:"not null"`
	UserID           string `json:"user_id"           gorm:"type:varchar(64);not null;index"`
	External         bool   `json:"external"          gorm:"not null;default:false"`
	// ExternalKey deduplicates invitations of candidates who have no account.
	ExternalKey   *string    `json:"external_key,omitempty" gorm:"type:varchar(128);uniqueIndex"`
	WindowStart   time.Time  `json:"window_start"`
	WindowEnd     time.Time  `json:"window_end"`
	InviteStatus  string     `json:"invite_status" gorm:"type:varchar(16);not null;default:'pending';check:invite_status IN ('pending','processing','sent','failed')"`
	SummaryReport string     `json:"summary_report" gorm:"type:text"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	// Revaluation of an already-issued report.
	RevaluationRequested  bool       `json:"revaluation_requested" gorm:"not null;default:false"`
	RevaluationReason     string     `json:"revaluation_reason"    gorm:"type:text"`
	RevaluationResolvedAt *time.Time `json:"revaluation_resolved_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Attachments []Attachment `json:"attachments" gorm:"foreignKey:CandidateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	TopicScores []TopicScore `json:"topic_scores" gorm:"foreignKey:CandidateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Candidate.
func (Candidate) TableName() string { return "candidates" }

// Attachment is a document supplied with an invitation (CV, portfolio, task).
// Content holds the text extracted by the invite worker; it stays empty when
// transcription failed or has not run yet.
type Attachment struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	CandidateID string    `json:"candidate_id" gorm:"type:char(36);not null;index"`
	URL         string    `json:"url"          gorm:"type:text;not null"`
	Content     string    `json:"content"      gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string { return "attachments" }

// TopicScore is one row of a candidate's detailed report: the per-skill score
// breakdown taken from the LLM's final report when a session completes.
type TopicScore struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	CandidateID string    `json:"candidate_id" gorm:"type:char(36);not null;index"`
	Skill       string    `json:"skill"        gorm:"type:varchar(128);not null"`
	Score       float64   `json:"score"        gorm:"not null"`
	MaxScore    float64   `json:"max_score"    gorm:"not null"`
	Comment     string    `json:"comment"      gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for TopicScore.
func (TopicScore) TableName() string { return "topic_scores" }

/// Transcript is the durable copy of a session's chat history: one row per
// candidate attempt holding the ordered message list as serialized JSON.
//
// While a session is hot the Redis list is the source of truth; the flush
// replaces Messages wholesale (last write wins, never a merge).
type Transcript struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	CandidateID string    `json:"candidate_id" gorm:"type:char(36);not null;uniqueIndex"`
	Messages    string    `json:"messages"     gorm:"type:text;not null"`
	FlushedAt   time.Time `json:"flushed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Transcript.
func (Transcript) TableName() string { return "transcripts" }

// User is a platform account (admin or candidate with an account).
type User struct {
	ID        string         `json:"id"     gorm:"type:char(36);primaryKey"`
	OrgID     string         `json:"org_id" gorm:"type:varchar(64);index"`
	Name      string         `json:"name"   gorm:"type:varchar(255);not null"`
	Email     string         `json:"email"  gorm:"type:varchar(255);not null;uniqueIndex"`
	Phone     string         `json:"phone"  gorm:"type:varchar(32)"`
	// PasswordHash is a bcrypt hash; empty for externally provisioned accounts.
	PasswordHash string         `json:"-" gorm:"type:varchar(100)"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Token is a bearer credential that authenticates API calls as an alternative
// to the session cookie. Inactive tokens are rejected but kept for audit.
type Token struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	Token     string    `json:"-"       gorm:"type:varchar(128);not null;uniqueIndex"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Active    bool      `json:"active"  gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Token.
func (Token) TableName() string { return "tokens" }
