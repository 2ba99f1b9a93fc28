// Package services defines the business logic for interviews, candidate
// invitations, live sessions, and authentication. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Interview-related errors.
var (
	// ErrInterviewNotFound indicates that the requested interview does not
	// exist or is not accessible to the caller's organization.
	ErrInterviewNotFound = errors.New("interview not found")

	// ErrNoTopics is returned when an interview payload carries no topics.
	ErrNoTopics = errors.New("interview needs at least one topic")

	// ErrDurationExceeded is returned when the summed topic durations exceed
	// the interview's total duration.
	ErrDurationExceeded = errors.New("topic durations exceed interview duration")

	// ErrInvalidWeights is returned when topic weights do not sum to
	// (approximately) 100 percent.
	ErrInvalidWeights = errors.New("topic weights must sum to 100")

	// ErrInvalidDifficulty is returned when a topic difficulty is outside the
	// allowed 1..3 range.
	ErrInvalidDifficulty = errors.New("topic difficulty must be 1, 2 or 3")

	// ErrInvalidDuration is returned when the interview or a topic duration is
	// not a positive number of minutes.
	ErrInvalidDuration = errors.New("durations must be positive minutes")
)

// Candidate / invitation errors.
var (
	// ErrCandidateNotFound indicates that the requested attempt does not exist.
	ErrCandidateNotFound = errors.New("candidate not found")

	// ErrDuplicateCandidate is returned when the user already has an attempt
	// for this interview, or the external key was already invited.
	ErrDuplicateCandidate = errors.New("candidate already invited")

	// ErrInvalidWindow is returned when the invitation window is empty or
	// inverted.
	ErrInvalidWindow = errors.New("invitation window end must be after start")

	// ErrNotCompleted is returned when revaluation is requested for an attempt
	// that has not produced a report yet.
	ErrNotCompleted = errors.New("attempt not completed")
)

// Session errors.
var (
	// ErrEmptyMessage is returned when a session turn carries no text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a session turn exceeds the configured
	// rune limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrOutsideWindow is returned when the candidate talks to the session
	// outside the allowed time window.
	ErrOutsideWindow = errors.New("outside the interview window")

	// ErrSessionCompleted is returned when the attempt already has a final
	// report.
	ErrSessionCompleted = errors.New("interview already completed")
)

// Auth errors.
var (
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
