// Package synthesis turns foundation answers and examples into a fresh set
// of profile cards via the LLM collaborator.
package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bureauhq/bureau/internal/llm"
	"github.com/bureauhq/bureau/internal/profile"
)

// ErrMalformedOutput is returned when the model response is not the expected
// four-key JSON object.
var ErrMalformedOutput = errors.New("synthesis output is not a valid card object")

// synthesisTemperature keeps card synthesis conservative.
const synthesisTemperature = 0.2

// Input bundles everything a synthesis run conditions on.
type Input struct {
	Foundations   []FoundationAnswer
	Examples      []ExampleInput
	PreviousCards *profile.CardSet // nil on first synthesis
}

// Synthesizer drives profile card synthesis through an llm.Client.
type Synthesizer struct {
	client llm.Client
}

func NewSynthesizer(client llm.Client) *Synthesizer {
	return &Synthesizer{client: client}
}

// Synthesize builds the prompt, calls the model, and parses the strict
// four-key card object. Anything the model wraps around the JSON (markdown
// fences included) fails with ErrMalformedOutput.
func (s *Synthesizer) Synthesize(ctx context.Context, input Input) (profile.CardSet, error) {
	system, user, err := BuildPrompt(input.Foundations, input.Examples, input.PreviousCards)
	if err != nil {
		return profile.CardSet{}, err
	}

	raw, err := s.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, llm.Options{Temperature: synthesisTemperature})
	if err != nil {
		return profile.CardSet{}, fmt.Errorf("synthesis chat: %w", err)
	}

	return ParseCardObject(raw)
}

// ParseCardObject decodes a model response into a CardSet. All four keys
// must be present and hold objects.
func ParseCardObject(raw string) (profile.CardSet, error) {
	var parsed struct {
		VoiceCard    *profile.Doc `json:"voiceCard"`
		AudienceCard *profile.Doc `json:"audienceCard"`
		OfferCard    *profile.Doc `json:"offerCard"`
		Constraints  *profile.Doc `json:"constraints"`
	}

	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	if err := dec.Decode(&parsed); err != nil {
		return profile.CardSet{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	if parsed.VoiceCard == nil || parsed.AudienceCard == nil || parsed.OfferCard == nil || parsed.Constraints == nil {
		return profile.CardSet{}, fmt.Errorf("%w: missing one of the four card keys", ErrMalformedOutput)
	}

	return profile.CardSet{
		Voice:       *parsed.VoiceCard,
		Audience:    *parsed.AudienceCard,
		Offer:       *parsed.OfferCard,
		Constraints: *parsed.Constraints,
	}, nil
}
