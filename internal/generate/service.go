// Package generate orchestrates the content flow: resolve the effective
// profile, synthesize cards when needed, prompt the model, gate the result,
// and persist outputs. It also drives the feedback-to-profile loop.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bureauhq/bureau/internal/feedback"
	"github.com/bureauhq/bureau/internal/llm"
	"github.com/bureauhq/bureau/internal/profile"
	"github.com/bureauhq/bureau/internal/quality"
	"github.com/bureauhq/bureau/internal/storage"
	"github.com/bureauhq/bureau/internal/synthesis"
)

const (
	ChannelLinkedIn = "linkedin"
	ChannelBlog     = "blog"
)

// generateTemperature is used for channel content; synthesis runs cooler.
const generateTemperature = 0.4

// DefaultQualityThreshold rejects generations scoring below it.
const DefaultQualityThreshold = 0.5

var (
	// ErrProfileIncomplete means no card exists and the foundations
	// interview is not finished, so auto-synthesis cannot run.
	ErrProfileIncomplete = errors.New("profile incomplete, foundations unanswered")

	// ErrInvalidThought means the thought is too short to work with.
	ErrInvalidThought = errors.New("thought must be at least 10 characters")

	// ErrInvalidRating means the rating falls outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrOutputHasNoProfile means feedback targets an output without a
	// pinned profile card, so there is nothing to adapt.
	ErrOutputHasNoProfile = errors.New("output is not linked to a profile card")

	// ErrLLM marks a failed language model call.
	ErrLLM = errors.New("language model call failed")
)

// QualityRejectedError carries the gate result for a rejected generation.
type QualityRejectedError struct {
	Result quality.Result
}

func (e *QualityRejectedError) Error() string {
	return fmt.Sprintf("generated content rejected by quality gate (score %.2f)", e.Result.Score)
}

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	ListProfileAnswers(workspaceID, projectID string) ([]storage.ProfileAnswer, error)
	ListExamples(workspaceID, projectID string) ([]storage.Example, error)
	LatestProfileCard(workspaceID, projectID string) (storage.ProfileCardRecord, error)
	ProfileCardByVersion(workspaceID, projectID string, version int) (storage.ProfileCardRecord, error)
	SaveOutput(o storage.Output) error
	GetOutput(id string) (storage.Output, error)
	SaveFeedback(f storage.Feedback) error
}

// Resolver resolves the effective profile for a scope.
type Resolver interface {
	Resolve(ctx context.Context, scope profile.Scope) (profile.EffectiveProfile, error)
}

// Committer appends profile card versions.
type Committer interface {
	CommitNextVersion(ctx context.Context, scope profile.Scope, cards profile.CardSet) (int, error)
}

// Synthesizer produces a card set from foundations and examples.
type Synthesizer interface {
	Synthesize(ctx context.Context, input synthesis.Input) (profile.CardSet, error)
}

// Service wires the generation and feedback flows together.
type Service struct {
	store       Store
	resolver    Resolver
	committer   Committer
	synthesizer Synthesizer
	client      llm.Client
	adapter     *feedback.Adapter
	threshold   float64
}

// New creates a Service with the default quality threshold.
func New(store Store, resolver Resolver, committer Committer, synthesizer Synthesizer, client llm.Client) *Service {
	return &Service{
		store:       store,
		resolver:    resolver,
		committer:   committer,
		synthesizer: synthesizer,
		client:      client,
		adapter:     feedback.NewAdapter(nil),
		threshold:   DefaultQualityThreshold,
	}
}

// SetThreshold overrides the quality rejection threshold.
func (s *Service) SetThreshold(threshold float64) { s.threshold = threshold }

// Request describes one generation call.
type Request struct {
	Channel string
	Thought string
	Length  string // "short", "medium" or "long"; anything else means medium
}

// Result is a successful generation.
type Result struct {
	OutputID           string
	Content            string
	Quality            quality.Result
	ProfileCardVersion int
	ModelName          string
	SpecVersion        string
}

// Generate runs the full flow for one thought. When the scope has no profile
// card yet and the foundations interview is complete, it synthesizes and
// commits one first; otherwise it fails with ErrProfileIncomplete.
func (s *Service) Generate(ctx context.Context, scope profile.Scope, req Request) (*Result, error) {
	thought := strings.TrimSpace(req.Thought)
	if len([]rune(thought)) < 10 {
		return nil, ErrInvalidThought
	}

	length := req.Length
	if length != "short" && length != "long" {
		length = "medium"
	}

	var spec quality.Spec
	switch req.Channel {
	case ChannelLinkedIn:
		spec = quality.LinkedInSpecV1
	case ChannelBlog:
		spec = quality.BuildBlogSpec(length)
	default:
		return nil, fmt.Errorf("unknown channel %q", req.Channel)
	}

	effective, err := s.resolver.Resolve(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("resolving profile: %w", err)
	}

	pinnedVersion := effective.PinnedVersion()
	if pinnedVersion == 0 {
		cards, version, err := s.autoSynthesize(ctx, scope)
		if err != nil {
			return nil, err
		}
		pinnedVersion = version
		effective.Cards = cards
		slog.Info("auto-synthesized profile before generation",
			"workspace", scope.WorkspaceID, "project", scope.ProjectID, "version", version)
	}

	examples := make([]synthesis.ExampleInput, 0, len(effective.Examples))
	for _, e := range effective.Examples {
		examples = append(examples, synthesis.ExampleInput{Kind: e.Kind, Content: e.Content})
	}

	system, user, err := buildChannelPrompt(req.Channel, thought, length, effective.Cards, examples)
	if err != nil {
		return nil, err
	}

	generated, err := s.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, llm.Options{Temperature: generateTemperature})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLM, err)
	}
	content := strings.TrimSpace(generated)

	result := quality.Evaluate(content, spec, effective.Cards.Constraints)
	if result.Score < s.threshold {
		return nil, &QualityRejectedError{Result: result}
	}

	qualityJSON, err := json.Marshal(struct {
		quality.Result
		SpecMeta specMeta `json:"specMeta"`
	}{
		Result:   result,
		SpecMeta: specMeta{Version: spec.Version, Channel: req.Channel},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding quality result: %w", err)
	}

	output := storage.Output{
		ID:                 uuid.NewString(),
		WorkspaceID:        scope.WorkspaceID,
		ProjectID:          scope.ProjectID,
		Channel:            req.Channel,
		Content:            content,
		QualityJSON:        string(qualityJSON),
		ModelName:          s.client.ModelName(),
		SpecVersion:        spec.Version,
		ProfileCardVersion: pinnedVersion,
	}
	if err := s.store.SaveOutput(output); err != nil {
		return nil, fmt.Errorf("saving output: %w", err)
	}

	return &Result{
		OutputID:           output.ID,
		Content:            content,
		Quality:            result,
		ProfileCardVersion: pinnedVersion,
		ModelName:          output.ModelName,
		SpecVersion:        spec.Version,
	}, nil
}

type specMeta struct {
	Version string `json:"version"`
	Channel string `json:"channel"`
}

// autoSynthesize builds the first card for a scope from its own answers and
// examples. Requires every foundation question answered in the exact scope.
func (s *Service) autoSynthesize(ctx context.Context, scope profile.Scope) (profile.CardSet, int, error) {
	answers, err := s.store.ListProfileAnswers(scope.WorkspaceID, scope.ProjectID)
	if err != nil {
		return profile.CardSet{}, 0, fmt.Errorf("listing answers: %w", err)
	}

	answered := make(map[string]profile.Answer, len(answers))
	for _, a := range answers {
		if profile.IsFoundationKey(a.QuestionKey) {
			answered[a.QuestionKey] = profile.Answer{Text: a.AnswerText, JSON: a.AnswerJSON}
		}
	}
	if !profile.FoundationsComplete(answered) {
		return profile.CardSet{}, 0, ErrProfileIncomplete
	}

	rawExamples, err := s.store.ListExamples(scope.WorkspaceID, scope.ProjectID)
	if err != nil {
		return profile.CardSet{}, 0, fmt.Errorf("listing examples: %w", err)
	}

	input := synthesis.Input{}
	for _, a := range answers {
		if !profile.IsFoundationKey(a.QuestionKey) {
			continue
		}
		fa := synthesis.FoundationAnswer{QuestionKey: a.QuestionKey, AnswerText: a.AnswerText}
		if a.AnswerJSON != "" {
			var v any
			if err := json.Unmarshal([]byte(a.AnswerJSON), &v); err == nil {
				fa.AnswerJSON = v
			}
		}
		input.Foundations = append(input.Foundations, fa)
	}
	for _, e := range rawExamples {
		input.Examples = append(input.Examples, synthesis.ExampleInput{Kind: e.Kind, Content: e.Content})
	}

	prev, err := s.store.LatestProfileCard(scope.WorkspaceID, scope.ProjectID)
	if err == nil {
		cards := profile.CardSetFromRecord(prev)
		input.PreviousCards = &cards
	} else if !errors.Is(err, storage.ErrNotFound) {
		return profile.CardSet{}, 0, fmt.Errorf("loading previous card: %w", err)
	}

	cards, err := s.synthesizer.Synthesize(ctx, input)
	if err != nil {
		return profile.CardSet{}, 0, fmt.Errorf("synthesizing profile: %w", err)
	}

	version, err := s.committer.CommitNextVersion(ctx, scope, cards)
	if err != nil {
		return profile.CardSet{}, 0, fmt.Errorf("committing synthesized card: %w", err)
	}
	return cards, version, nil
}

// Synthesize runs an explicit synthesis for a scope and commits the result.
func (s *Service) Synthesize(ctx context.Context, scope profile.Scope) (int, error) {
	_, version, err := s.autoSynthesize(ctx, scope)
	return version, err
}

// SubmitFeedback records a rating on an output and, when the feedback rules
// trigger, commits an adjusted card as the next profile version. Returns the
// profile version in effect afterwards.
func (s *Service) SubmitFeedback(ctx context.Context, workspaceID, outputID string, rating int, notes string) (int, error) {
	if rating < 1 || rating > 5 {
		return 0, ErrInvalidRating
	}

	output, err := s.store.GetOutput(outputID)
	if err != nil {
		return 0, fmt.Errorf("loading output: %w", err)
	}
	if output.WorkspaceID != workspaceID {
		return 0, fmt.Errorf("loading output: %w", storage.ErrNotFound)
	}

	err = s.store.SaveFeedback(storage.Feedback{
		ID:       uuid.NewString(),
		OutputID: output.ID,
		Rating:   rating,
		Notes:    notes,
	})
	if err != nil {
		return 0, fmt.Errorf("saving feedback: %w", err)
	}

	if output.ProfileCardVersion == 0 {
		return 0, ErrOutputHasNoProfile
	}

	rec, err := s.store.ProfileCardByVersion(output.WorkspaceID, output.ProjectID, output.ProfileCardVersion)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrOutputHasNoProfile
	}
	if err != nil {
		return 0, fmt.Errorf("loading pinned card: %w", err)
	}

	updated, next := s.adapter.Apply(rating, notes, profile.CardSetFromRecord(rec))
	if !updated {
		return rec.Version, nil
	}

	scope := profile.Scope{WorkspaceID: output.WorkspaceID, ProjectID: output.ProjectID}
	version, err := s.committer.CommitNextVersion(ctx, scope, next)
	if err != nil {
		return 0, fmt.Errorf("committing adjusted card: %w", err)
	}
	slog.Info("profile adjusted from feedback",
		"workspace", scope.WorkspaceID, "project", scope.ProjectID,
		"output", output.ID, "rating", rating, "version", version)
	return version, nil
}
