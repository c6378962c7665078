// Package store persists learner profiles, credit balances, and finished
// session records. The core treats it as a fire-and-forget collaborator:
// callers own retries, the store never retries internally.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing profile or record.
var ErrNotFound = errors.New("store: not found")

// Profile is one learner account.
type Profile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	CreditSeconds int       `json:"creditSeconds"`
	Plan          string    `json:"plan"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SessionRecord is one finished tutoring session with its evaluation.
type SessionRecord struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	AvatarName         string    `json:"avatarName"`
	StartedAt          time.Time `json:"startedAt"`
	DurationSeconds    int       `json:"durationSeconds"`
	Transcript         string    `json:"transcript"`
	OverallScore       int       `json:"overallScore"`
	VocabularyScore    int       `json:"vocabularyScore"`
	GrammarScore       int       `json:"grammarScore"`
	PronunciationScore int       `json:"pronunciationScore"`
	FluencyRating      string    `json:"fluencyRating"`
	Feedback           string    `json:"feedback"`
}

// Store is the persistence collaborator.
type Store interface {
	// GetProfile loads one learner profile. Returns ErrNotFound when the
	// id is unknown.
	GetProfile(ctx context.Context, id string) (*Profile, error)

	// EnsureProfile creates the profile if it does not exist yet and
	// returns the stored version. An existing profile is returned
	// unchanged, so the signup credit grant applies only once.
	EnsureProfile(ctx context.Context, p Profile) (*Profile, error)

	// UpdateCredits sets the remaining credit balance, in seconds, for the
	// given learner. Negative values are clamped to zero.
	UpdateCredits(ctx context.Context, id string, seconds int) error

	// AppendSessionRecord stores one finished session. A missing record ID
	// is assigned by the store.
	AppendSessionRecord(ctx context.Context, rec *SessionRecord) error

	// ListSessionRecords returns the learner's sessions, newest first.
	ListSessionRecords(ctx context.Context, userID string, limit int) ([]SessionRecord, error)

	// Close releases the underlying connections.
	Close()
}
