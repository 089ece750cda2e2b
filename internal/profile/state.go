package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bureauhq/bureau/internal/storage"
)

// ErrUnknownQuestion is returned for a question key outside the foundation
// set that is not an adaptive key.
var ErrUnknownQuestion = errors.New("unknown question key")

// ErrEmptyAnswer is returned when an answer has no content after trimming.
var ErrEmptyAnswer = errors.New("answer text is empty")

// TrackerStore defines the storage operations the Tracker needs.
// Implemented by storage.Store.
type TrackerStore interface {
	UpsertProfileAnswer(a storage.ProfileAnswer) error
	ListProfileAnswers(workspaceID, projectID string) ([]storage.ProfileAnswer, error)
	UpsertProfileState(st storage.ProfileState) error
	GetProfileState(workspaceID, projectID string) (storage.ProfileState, error)
}

// State is the derived interview progress for a scope.
type State struct {
	KnownKeys       []string `json:"knownKeys"`
	MissingKeys     []string `json:"missingKeys"`
	Confidence      float64  `json:"confidenceScore"`
	LastQuestionKey string   `json:"lastQuestionKey"`
}

// Tracker records profile answers and keeps the derived state in sync.
type Tracker struct {
	store TrackerStore
}

func NewTracker(store TrackerStore) *Tracker {
	return &Tracker{store: store}
}

// RecordAnswer stores the answer for a question key and recomputes the
// scope's state. Accepts foundation keys and free-form "adaptive." keys;
// anything else is ErrUnknownQuestion.
func (t *Tracker) RecordAnswer(scope Scope, questionKey, answerText, answerJSON string) (State, error) {
	if !IsFoundationKey(questionKey) && !strings.HasPrefix(questionKey, "adaptive.") {
		return State{}, fmt.Errorf("%w: %q", ErrUnknownQuestion, questionKey)
	}
	answerText = strings.TrimSpace(answerText)
	if answerText == "" {
		return State{}, ErrEmptyAnswer
	}

	err := t.store.UpsertProfileAnswer(storage.ProfileAnswer{
		WorkspaceID: scope.WorkspaceID,
		ProjectID:   scope.ProjectID,
		QuestionKey: questionKey,
		AnswerText:  answerText,
		AnswerJSON:  answerJSON,
	})
	if err != nil {
		return State{}, fmt.Errorf("storing answer %q: %w", questionKey, err)
	}

	state, err := t.recompute(scope, questionKey)
	if err != nil {
		return State{}, err
	}
	return state, nil
}

// NextQuestion returns the first unanswered foundation question for the
// scope, or ok=false when the interview is complete.
func (t *Tracker) NextQuestion(scope Scope) (Question, bool, error) {
	answers, err := t.store.ListProfileAnswers(scope.WorkspaceID, scope.ProjectID)
	if err != nil {
		return Question{}, false, fmt.Errorf("listing answers: %w", err)
	}
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		answered[a.QuestionKey] = true
	}
	q, ok := NextQuestion(answered)
	return q, ok, nil
}

// CurrentState reads the persisted state for a scope. A scope with no
// answers yet gets a state with all foundation keys missing.
func (t *Tracker) CurrentState(scope Scope) (State, error) {
	st, err := t.store.GetProfileState(scope.WorkspaceID, scope.ProjectID)
	if errors.Is(err, storage.ErrNotFound) {
		return State{
			KnownKeys:   []string{},
			MissingKeys: append([]string(nil), FoundationKeys...),
		}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("loading state: %w", err)
	}

	state := State{
		Confidence:      st.ConfidenceScore,
		LastQuestionKey: st.LastQuestionKey,
		KnownKeys:       []string{},
		MissingKeys:     []string{},
	}
	if err := json.Unmarshal([]byte(st.KnownKeys), &state.KnownKeys); err != nil {
		state.KnownKeys = []string{}
	}
	if err := json.Unmarshal([]byte(st.MissingKeys), &state.MissingKeys); err != nil {
		state.MissingKeys = []string{}
	}
	return state, nil
}

// recompute rebuilds the derived state from the answer rows and persists it.
func (t *Tracker) recompute(scope Scope, lastQuestionKey string) (State, error) {
	answers, err := t.store.ListProfileAnswers(scope.WorkspaceID, scope.ProjectID)
	if err != nil {
		return State{}, fmt.Errorf("listing answers: %w", err)
	}

	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if IsFoundationKey(a.QuestionKey) {
			answered[a.QuestionKey] = true
		}
	}

	known := make([]string, 0, len(FoundationKeys))
	missing := make([]string, 0, len(FoundationKeys))
	for _, key := range FoundationKeys {
		if answered[key] {
			known = append(known, key)
		} else {
			missing = append(missing, key)
		}
	}

	state := State{
		KnownKeys:       known,
		MissingKeys:     missing,
		Confidence:      float64(len(known)) / float64(len(FoundationKeys)),
		LastQuestionKey: lastQuestionKey,
	}

	knownJSON, err := json.Marshal(state.KnownKeys)
	if err != nil {
		return State{}, fmt.Errorf("encoding known keys: %w", err)
	}
	missingJSON, err := json.Marshal(state.MissingKeys)
	if err != nil {
		return State{}, fmt.Errorf("encoding missing keys: %w", err)
	}

	err = t.store.UpsertProfileState(storage.ProfileState{
		WorkspaceID:     scope.WorkspaceID,
		ProjectID:       scope.ProjectID,
		KnownKeys:       string(knownJSON),
		MissingKeys:     string(missingJSON),
		ConfidenceScore: state.Confidence,
		LastQuestionKey: state.LastQuestionKey,
	})
	if err != nil {
		return State{}, fmt.Errorf("storing state: %w", err)
	}
	return state, nil
}
