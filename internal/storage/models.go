package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when inserting a profile card collides with
// the uniqueness constraint on (workspace_id, project_id, version). It is the
// race detector for concurrent version commits.
var ErrVersionConflict = errors.New("profile card version conflict")

// ProfileCardRecord is one immutable snapshot in the append-only profile log.
// Card documents are stored as JSON text.
type ProfileCardRecord struct {
	WorkspaceID  string
	ProjectID    string // "" denotes the workspace-level scope
	Version      int
	VoiceCard    json.RawMessage
	AudienceCard json.RawMessage
	OfferCard    json.RawMessage
	Constraints  json.RawMessage
	CreatedAt    time.Time
}

// ProfileAnswer is the latest answer for a question key within a scope.
// Unlike cards, answers are mutable: a new write replaces the previous value.
type ProfileAnswer struct {
	WorkspaceID string
	ProjectID   string
	QuestionKey string
	AnswerText  string
	AnswerJSON  string // optional JSON value stored as text, "" if absent
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileState is a derived progress cache per scope, rebuildable from the
// answer records.
type ProfileState struct {
	WorkspaceID     string
	ProjectID       string
	KnownKeys       string // JSON array stored as text
	MissingKeys     string // JSON array stored as text
	ConfidenceScore float64
	LastQuestionKey string
	UpdatedAt       time.Time
}

// Example is a good/bad content sample used to steer synthesis and generation.
type Example struct {
	ID          string
	WorkspaceID string
	ProjectID   string
	Kind        string // "good" or "bad"
	Content     string
	Source      string // "api", "cli", "url", "pdf"
	CreatedAt   time.Time
}

// Output is an immutable record of generated content, pinned to the profile
// card version that was in effect at generation time.
type Output struct {
	ID                 string
	WorkspaceID        string
	ProjectID          string
	Channel            string // "linkedin" or "blog"
	Content            string
	QualityJSON        string // serialized quality result
	ModelName          string
	SpecVersion        string
	ProfileCardVersion int // 0 when the output predates any profile card
	CreatedAt          time.Time
}

// Feedback is one append-only rating on an output.
type Feedback struct {
	ID        string
	OutputID  string
	Rating    int
	Notes     string
	CreatedAt time.Time
}

// Job is a queued background task (example ingestion).
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
