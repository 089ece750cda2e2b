package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bureauhq/bureau/internal/llm"
	"github.com/bureauhq/bureau/internal/profile"
	"github.com/bureauhq/bureau/internal/storage"
	"github.com/bureauhq/bureau/internal/synthesis"
)

// cleanPost passes the LinkedIn gate untouched.
const cleanPost = `Vandaag sprak ik een founder over contentritme.

Consistentie wint het van virale pieken.

Wat is jouw ritme?`

type fakeStore struct {
	answers  []storage.ProfileAnswer
	examples []storage.Example

	latestCard    storage.ProfileCardRecord
	latestCardErr error
	cardsByVer    map[int]storage.ProfileCardRecord

	outputs       map[string]storage.Output
	savedOutputs  []storage.Output
	savedFeedback []storage.Feedback
}

func (f *fakeStore) ListProfileAnswers(workspaceID, projectID string) ([]storage.ProfileAnswer, error) {
	return f.answers, nil
}

func (f *fakeStore) ListExamples(workspaceID, projectID string) ([]storage.Example, error) {
	return f.examples, nil
}

func (f *fakeStore) LatestProfileCard(workspaceID, projectID string) (storage.ProfileCardRecord, error) {
	if f.latestCardErr != nil {
		return storage.ProfileCardRecord{}, f.latestCardErr
	}
	return f.latestCard, nil
}

func (f *fakeStore) ProfileCardByVersion(workspaceID, projectID string, version int) (storage.ProfileCardRecord, error) {
	rec, ok := f.cardsByVer[version]
	if !ok {
		return storage.ProfileCardRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) SaveOutput(o storage.Output) error {
	f.savedOutputs = append(f.savedOutputs, o)
	return nil
}

func (f *fakeStore) GetOutput(id string) (storage.Output, error) {
	o, ok := f.outputs[id]
	if !ok {
		return storage.Output{}, storage.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) SaveFeedback(fb storage.Feedback) error {
	f.savedFeedback = append(f.savedFeedback, fb)
	return nil
}

type fakeResolver struct {
	effective profile.EffectiveProfile
	err       error
}

func (f *fakeResolver) Resolve(ctx context.Context, scope profile.Scope) (profile.EffectiveProfile, error) {
	return f.effective, f.err
}

type fakeCommitter struct {
	version int
	err     error

	gotScope profile.Scope
	gotCards profile.CardSet
	calls    int
}

func (f *fakeCommitter) CommitNextVersion(ctx context.Context, scope profile.Scope, cards profile.CardSet) (int, error) {
	f.calls++
	f.gotScope = scope
	f.gotCards = cards
	return f.version, f.err
}

type fakeSynthesizer struct {
	cards profile.CardSet
	err   error

	gotInput synthesis.Input
	calls    int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, input synthesis.Input) (profile.CardSet, error) {
	f.calls++
	f.gotInput = input
	return f.cards, f.err
}

type fakeLLM struct {
	response string
	err      error

	gotMessages []llm.Message
	gotOpts     llm.Options
	calls       int
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	f.calls++
	f.gotMessages = messages
	f.gotOpts = opts
	return f.response, f.err
}

func (f *fakeLLM) ModelName() string { return "test-model" }

func foundationAnswers() []storage.ProfileAnswer {
	answers := make([]storage.ProfileAnswer, 0, len(profile.FoundationKeys))
	for _, key := range profile.FoundationKeys {
		answers = append(answers, storage.ProfileAnswer{
			WorkspaceID: "ws1",
			QuestionKey: key,
			AnswerText:  "antwoord voor " + key,
		})
	}
	return answers
}

func TestGenerateHappyPath(t *testing.T) {
	store := &fakeStore{}
	resolver := &fakeResolver{effective: profile.EffectiveProfile{
		WorkspaceCardVersion: 2,
		Cards:                profile.CardSet{Voice: profile.Doc{"formality": "neutraal"}},
	}}
	committer := &fakeCommitter{}
	synth := &fakeSynthesizer{}
	client := &fakeLLM{response: cleanPost + "\n"}

	svc := New(store, resolver, committer, synth, client)
	res, err := svc.Generate(context.Background(), profile.Scope{WorkspaceID: "ws1"}, Request{
		Channel: ChannelLinkedIn,
		Thought: "consistentie verslaat virale pieken",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if res.ProfileCardVersion != 2 {
		t.Errorf("ProfileCardVersion = %d, want 2", res.ProfileCardVersion)
	}
	if res.Content != cleanPost {
		t.Errorf("Content not trimmed: %q", res.Content)
	}
	if res.Quality.Score != 1 {
		t.Errorf("Score = %v, want 1", res.Quality.Score)
	}
	if res.ModelName != "test-model" {
		t.Errorf("ModelName = %q", res.ModelName)
	}
	if res.SpecVersion != "LinkedInSpecV1" {
		t.Errorf("SpecVersion = %q", res.SpecVersion)
	}

	if client.gotOpts.Temperature != generateTemperature {
		t.Errorf("temperature = %v, want %v", client.gotOpts.Temperature, generateTemperature)
	}
	if synth.calls != 0 || committer.calls != 0 {
		t.Error("synthesis ran despite an existing profile card")
	}

	if len(store.savedOutputs) != 1 {
		t.Fatalf("saved %d outputs, want 1", len(store.savedOutputs))
	}
	out := store.savedOutputs[0]
	if out.ID == "" || out.ID != res.OutputID {
		t.Errorf("output ID mismatch: %q vs %q", out.ID, res.OutputID)
	}
	if out.ProfileCardVersion != 2 || out.Channel != ChannelLinkedIn {
		t.Errorf("output = %+v", out)
	}
	if !strings.Contains(out.QualityJSON, `"specMeta"`) {
		t.Errorf("QualityJSON missing spec metadata: %s", out.QualityJSON)
	}
}

func TestGenerateRejectsShortThought(t *testing.T) {
	svc := New(&fakeStore{}, &fakeResolver{}, &fakeCommitter{}, &fakeSynthesizer{}, &fakeLLM{})

	_, err := svc.Generate(context.Background(), profile.Scope{WorkspaceID: "ws1"}, Request{
		Channel: ChannelLinkedIn,
		Thought: "  te kort  ",
	})
	if !errors.Is(err, ErrInvalidThought) {
		t.Errorf("error = %v, want ErrInvalidThought", err)
	}
}

func TestGenerateUnknownChannel(t *testing.T) {
	svc := New(&fakeStore{}, &fakeResolver{}, &fakeCommitter{}, &fakeSynthesizer{}, &fakeLLM{})

	_, err := svc.Generate(context.Background(), profile.Scope{WorkspaceID: "ws1"}, Request{
		Channel: "newsletter",
		Thought: "een voldoende lange gedachte",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown channel") {
		t.Errorf("error = %v, want unknown channel", err)
	}
}

func TestGenerateQualityRejected(t *testing.T) {
	store := &fakeStore{}
	resolver := &fakeResolver{effective: profile.EffectiveProfile{WorkspaceCardVersion: 1}}
	client := &fakeLLM{response: "Dit is een post.\n\nMet wat context.\n\nKoop nu via de link."}

	svc := New(store, resolver, &fakeCommitter{}, &fakeSynthesizer{}, client)
	_, err := svc.Generate(context.Background(), profile.Scope{WorkspaceID: "ws1"}, Request{
		Channel: ChannelLinkedIn,
		Thought: "een voldoende lange gedachte",
	})

	var qerr *QualityRejectedError
	if !errors.As(err, &qerr) {
		t.Fatalf("error = %v, want QualityRejectedError", err)
	}
	if qerr.Result.Score >= DefaultQualityThreshold {
		t.Errorf("Score = %v, expected below threshold", qerr.Result.Score)
	}
	if len(store.savedOutputs) != 0 {
		t.Error("rejected output was saved")
	}
}

func TestGenerateAutoSynthesizes(t *testing.T) {
	store := &fakeStore{
		answers:       foundationAnswers(),
		examples:      []storage.Example{{Kind: "good", Content: "voorbeeldpost"}},
		latestCardErr: storage.ErrNotFound,
	}
	resolver := &fakeResolver{effective: profile.EffectiveProfile{}}
	committer := &fakeCommitter{version: 1}
	synth := &fakeSynthesizer{cards: profile.CardSet{Voice: profile.Doc{"formality": "informeel"}}}
	client := &fakeLLM{response: cleanPost}

	svc := New(store, resolver, committer, synth, client)
	scope := profile.Scope{WorkspaceID: "ws1", ProjectID: "proj1"}
	res, err := svc.Generate(context.Background(), scope, Request{
		Channel: ChannelLinkedIn,
		Thought: "consistentie verslaat virale pieken",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if res.ProfileCardVersion != 1 {
		t.Errorf("ProfileCardVersion = %d, want freshly committed 1", res.ProfileCardVersion)
	}
	if synth.calls != 1 {
		t.Fatalf("synthesizer called %d times, want 1", synth.calls)
	}
	if len(synth.gotInput.Foundations) != len(profile.FoundationKeys) {
		t.Errorf("synthesis got %d foundations, want %d", len(synth.gotInput.Foundations), len(profile.FoundationKeys))
	}
	if len(synth.gotInput.Examples) != 1 {
		t.Errorf("synthesis got %d examples, want 1", len(synth.gotInput.Examples))
	}
	if synth.gotInput.PreviousCards != nil {
		t.Error("first synthesis should have no previous cards")
	}
	if committer.gotScope != scope {
		t.Errorf("committed to scope %+v, want %+v", committer.gotScope, scope)
	}
}

func TestGenerateProfileIncomplete(t *testing.T) {
	store := &fakeStore{
		answers: foundationAnswers()[:5],
	}
	resolver := &fakeResolver{effective: profile.EffectiveProfile{}}
	synth := &fakeSynthesizer{}
	client := &fakeLLM{response: cleanPost}

	svc := New(store, resolver, &fakeCommitter{}, synth, client)
	_, err := svc.Generate(context.Background(), profile.Scope{WorkspaceID: "ws1"}, Request{
		Channel: ChannelLinkedIn,
		Thought: "consistentie verslaat virale pieken",
	})
	if !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("error = %v, want ErrProfileIncomplete", err)
	}
	if synth.calls != 0 || client.calls != 0 {
		t.Error("synthesis or generation ran without a complete profile")
	}
}

func TestGenerateBlogSpecVersion(t *testing.T) {
	store := &fakeStore{}
	resolver := &fakeResolver{effective: profile.EffectiveProfile{WorkspaceCardVersion: 3}}
	longBody := strings.Repeat("woord ", 450)
	client := &fakeLLM{response: longBody}

	svc := New(store, resolver, &fakeCommitter{}, &fakeSynthesizer{}, client)
	res, err := svc.Generate(context.Background(), profile.Scope{WorkspaceID: "ws1"}, Request{
		Channel: ChannelBlog,
		Thought: "een voldoende lange gedachte",
		Length:  "short",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.SpecVersion != "BlogSpecV1" {
		t.Errorf("SpecVersion = %q, want BlogSpecV1", res.SpecVersion)
	}
	if res.Quality.Score != 1 {
		t.Errorf("Score = %v, want 1", res.Quality.Score)
	}
}

func TestSubmitFeedbackInvalidRating(t *testing.T) {
	svc := New(&fakeStore{}, &fakeResolver{}, &fakeCommitter{}, &fakeSynthesizer{}, &fakeLLM{})

	for _, rating := range []int{0, 6, -1} {
		if _, err := svc.SubmitFeedback(context.Background(), "ws1", "out1", rating, ""); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: error = %v, want ErrInvalidRating", rating, err)
		}
	}
}

func TestSubmitFeedbackWorkspaceMismatch(t *testing.T) {
	store := &fakeStore{outputs: map[string]storage.Output{
		"out1": {ID: "out1", WorkspaceID: "other"},
	}}
	svc := New(store, &fakeResolver{}, &fakeCommitter{}, &fakeSynthesizer{}, &fakeLLM{})

	_, err := svc.SubmitFeedback(context.Background(), "ws1", "out1", 4, "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if len(store.savedFeedback) != 0 {
		t.Error("feedback saved for a foreign workspace output")
	}
}

func TestSubmitFeedbackNoProfileCard(t *testing.T) {
	store := &fakeStore{outputs: map[string]storage.Output{
		"out1": {ID: "out1", WorkspaceID: "ws1"},
	}}
	svc := New(store, &fakeResolver{}, &fakeCommitter{}, &fakeSynthesizer{}, &fakeLLM{})

	_, err := svc.SubmitFeedback(context.Background(), "ws1", "out1", 2, "te salesy")
	if !errors.Is(err, ErrOutputHasNoProfile) {
		t.Errorf("error = %v, want ErrOutputHasNoProfile", err)
	}
	if len(store.savedFeedback) != 1 {
		t.Error("the rating itself should still be recorded")
	}
}

func TestSubmitFeedbackHighRatingNoOp(t *testing.T) {
	rec, err := profile.RecordFromCardSet(profile.Scope{WorkspaceID: "ws1"}, 4, profile.CardSet{
		Constraints: profile.Doc{"ctaStyle": map[string]any{"level": "duidelijk"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	store := &fakeStore{
		outputs: map[string]storage.Output{
			"out1": {ID: "out1", WorkspaceID: "ws1", ProfileCardVersion: 4},
		},
		cardsByVer: map[int]storage.ProfileCardRecord{4: rec},
	}
	committer := &fakeCommitter{}

	svc := New(store, &fakeResolver{}, committer, &fakeSynthesizer{}, &fakeLLM{})
	version, err := svc.SubmitFeedback(context.Background(), "ws1", "out1", 5, "prima zo")
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if version != 4 {
		t.Errorf("version = %d, want unchanged 4", version)
	}
	if committer.calls != 0 {
		t.Error("high rating should not commit a new profile version")
	}
	if len(store.savedFeedback) != 1 {
		t.Errorf("saved %d feedback rows, want 1", len(store.savedFeedback))
	}
}

func TestSubmitFeedbackAdjustsProfile(t *testing.T) {
	rec, err := profile.RecordFromCardSet(profile.Scope{WorkspaceID: "ws1", ProjectID: "proj1"}, 4, profile.CardSet{
		Constraints: profile.Doc{"ctaStyle": map[string]any{"level": "duidelijk"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	store := &fakeStore{
		outputs: map[string]storage.Output{
			"out1": {ID: "out1", WorkspaceID: "ws1", ProjectID: "proj1", ProfileCardVersion: 4},
		},
		cardsByVer: map[int]storage.ProfileCardRecord{4: rec},
	}
	committer := &fakeCommitter{version: 5}

	svc := New(store, &fakeResolver{}, committer, &fakeSynthesizer{}, &fakeLLM{})
	version, err := svc.SubmitFeedback(context.Background(), "ws1", "out1", 2, "dit voelt te salesy")
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if version != 5 {
		t.Errorf("version = %d, want committed 5", version)
	}
	if committer.calls != 1 {
		t.Fatalf("committer called %d times, want 1", committer.calls)
	}
	if committer.gotScope != (profile.Scope{WorkspaceID: "ws1", ProjectID: "proj1"}) {
		t.Errorf("committed to scope %+v", committer.gotScope)
	}

	cta := profile.Constraints(committer.gotCards.Constraints)
	if cta.CTALevel != "neutraal" {
		t.Errorf("CTALevel = %q, want softened to neutraal", cta.CTALevel)
	}
}
