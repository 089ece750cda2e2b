package synthesis

import (
	"encoding/json"
	"fmt"

	"github.com/bureauhq/bureau/internal/profile"
)

// FoundationAnswer is one answered intake question, as fed to the prompt.
type FoundationAnswer struct {
	QuestionKey string `json:"questionKey"`
	AnswerText  string `json:"answerText"`
	AnswerJSON  any    `json:"answerJson"`
}

// ExampleInput is one good/bad content sample, as fed to the prompt.
type ExampleInput struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

const synthesisSystemPrompt = `Je bent een senior branding- en copy-expert die een gestructureerd profiel samenstelt voor LinkedIn- en blogcontent.

JE TAAK:
- Synthesiseer op basis van input:
  - één VoiceCardV1,
  - één AudienceCardV1,
  - één OfferCardV1,
  - één ConstraintsV1.

BELANGRIJK:
- Houd je strikt aan de bestaande velden per card zoals gespecificeerd (VoiceCardV1, AudienceCardV1, OfferCardV1, ConstraintsV1).
- Voeg GEEN extra velden toe.
- Verwijder geen verplichte velden.
- Gebruik alleen JSON types die passen bij de velden (strings, booleans, numbers, arrays, objecten).
- Je output moet UITSLUITEND bestaan uit één JSON-object met precies deze vier keys:
  {
    "voiceCard": { ... },
    "audienceCard": { ... },
    "offerCard": { ... },
    "constraints": { ... }
  }
- GEEN markdown, GEEN uitleg, GEEN tekst buiten dit JSON-object.

KORTE HERINNERING PER CARD (SAMENVATTING):
- VoiceCardV1: toon, formality, energy, rol/persona, schrijfstijl (zinnen, bullets, emoji), taal en aanspreekvorm, do's & don'ts, voorbeeldfragmenten.
- AudienceCardV1: doelgroepsegmenten, primaire rol, type bedrijven, huidige situatie, doelen, uitdagingen, beslisfactoren, taalnotities.
- OfferCardV1: kernaanbod, probleemverhaal, belofte, concrete outcomes, voor/na, mechanisme, wie wel/niet, differentiators, prijspositionering, proof points.
- ConstraintsV1: banned phrases, banned topics, juridische/claim-notities, CTA-stijl (niveau + voorbeelden + verboden CTA-patronen), harde toon-limieten, operationele beperkingen.`

const synthesisUserTemplate = `Je krijgt hieronder de volledige context:

1) FOUNDATIONS-ANTWOORDEN (per vraag):
%s

2) VOORBEELDEN (examples) met type "good" of "bad":
%s

3) EERDERE CARDS (optioneel, voor continuïteit):
%s

OPDRACHT:
- Lees eerst de foundations-answers goed door.
- Gebruik de good examples als gewenste richting, en de bad examples als anti-patronen.
- Gebruik eerdere cards alleen als extra context; corrigeer of scherper maken mag.

GENEREER:
- Eén JSON-object met exact deze structuur:
{
  "voiceCard": { ... },
  "audienceCard": { ... },
  "offerCard": { ... },
  "constraints": { ... }
}

REGELS:
- Geen extra top-level keys.
- Geen velden met null als dat niet nodig is; laat optionele velden eventueel weg of gebruik lege arrays.
- Stem VoiceCardV1, AudienceCardV1, OfferCardV1 en ConstraintsV1 goed op elkaar af.
- Houd rekening met nuchtere, rustige, niet-hyperbolische toon als dat uit de input blijkt.`

// BuildPrompt renders the synthesis system and user messages. previousCards
// may be nil for a first synthesis.
func BuildPrompt(foundations []FoundationAnswer, examples []ExampleInput, previousCards *profile.CardSet) (system, user string, err error) {
	foundationsJSON, err := json.MarshalIndent(foundations, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding foundations: %w", err)
	}
	examplesJSON, err := json.MarshalIndent(examples, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding examples: %w", err)
	}

	previousJSON := []byte("null")
	if previousCards != nil {
		previousJSON, err = json.MarshalIndent(map[string]any{
			"voiceCard":    previousCards.Voice,
			"audienceCard": previousCards.Audience,
			"offerCard":    previousCards.Offer,
			"constraints":  previousCards.Constraints,
		}, "", "  ")
		if err != nil {
			return "", "", fmt.Errorf("encoding previous cards: %w", err)
		}
	}

	user = fmt.Sprintf(synthesisUserTemplate, foundationsJSON, examplesJSON, previousJSON)
	return synthesisSystemPrompt, user, nil
}
