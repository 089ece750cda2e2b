package generate

import (
	"encoding/json"
	"fmt"

	"github.com/bureauhq/bureau/internal/profile"
	"github.com/bureauhq/bureau/internal/synthesis"
)

const linkedinSystemPrompt = `Je bent een gespecialiseerde LinkedIn-copywriter.

DOEL:
- Zet een ruwe gedachte van de gebruiker om in een volledige LinkedIn-post.
- Gebruik het meegegeven profiel (Voice, Audience, Offer, Constraints) en respecteer alle contentregels.

LINKEDIN SPEC (LinkedInSpecV1):
- Structuur:
  - hook: korte opener die aandacht pakt.
  - story: context, voorbeeld of mini-anekdote.
  - insight: concrete les, observatie of tip.
  - ctaLight: subtiele uitnodiging, geen harde sales.
- Taal & stijl:
  - Geen hype-taal, geen clichés zoals "game changer" of "revolutionair".
  - Geen agressieve sales-CTA's ("koop nu", "beperkte plekken", etc.).
  - Respecteer bannedPhrases, bannedTopics en CTA-stijl uit het profiel.
- Output:
  - Alleen de uiteindelijke LinkedIn-post als platte tekst.
  - Geen headings, geen labels (hook/story/insight/cta), geen uitleg.
  - Geen markdown, geen JSON, geen extra commentaar.`

const linkedinUserTemplate = `THOUGHT (ruwe input van gebruiker):
%s

GEWENSTE LENGTE:
- %s

PROFIEL (VoiceCard, AudienceCard, OfferCard, Constraints):
%s

VOORBEELDEN (good/bad):
%s

OPDRACHT:
- Schrijf één LinkedIn-post die:
  - duidelijk start met een pakkende hook (eerste 1–3 regels),
  - daarna een korte story/context geeft,
  - vervolgens een helder insight deelt,
  - en afsluit met een CTA-light die past bij de CTA-stijl uit het profiel.
- Gebruik de tone of voice, doelgroepcontext en offer-informatie uit het profiel.
- Vermijd alle bannedPhrases en bannedTopics uit Constraints.
- Vermijd hype-taal en harde sales.
- Houd rekening met de gevraagde lengte-modus ("short", "medium" of "long").

BELANGRIJK:
- Geef ALLEEN de uiteindelijke LinkedIn-post als platte tekst terug.
- GEEN extra uitleg, GEEN metadata, GEEN JSON, GEEN markdown.`

const blogSystemPrompt = `Je bent een gespecialiseerde B2B-blogschrijver.

DOEL:
- Zet een ruwe gedachte van de gebruiker om in een inhoudelijke blogpost.
- Gebruik het meegegeven profiel (Voice, Audience, Offer, Constraints) en respecteer alle contentregels.

BLOG SPEC (BlogSpecV1):
- Structuur (impliciet, niet gelabeld in de tekst):
  - duidelijke introductie met probleem of observatie,
  - context en verdieping,
  - 2–4 concrete inzichten, argumenten of stappen,
  - zachte afsluiting (reflectie of lichte CTA).
- Stijl:
  - rustig, analytisch, inhoudelijk,
  - meer diepgang dan een LinkedIn-post,
  - geen hype, geen sales-push,
  - respecteer bannedPhrases, bannedTopics en CTA-stijl uit het profiel.
- Output:
  - alleen de uiteindelijke blogtekst als platte tekst,
  - geen headings of labels als "Intro", "Inzicht 1" enzovoort,
  - geen markdown, geen JSON, geen extra uitleg.`

const blogUserTemplate = `THOUGHT (ruwe input van gebruiker):
%s

GEWENSTE LENGTE:
- %s

PROFIEL (VoiceCard, AudienceCard, OfferCard, Constraints):
%s

VOORBEELDEN (good/bad):
%s

OPDRACHT:
- Schrijf één blogartikel dat:
  - begint met een heldere introductie (waar gaat dit over, waarom nu?),
  - vervolgens de context en situatie van de doelgroep uitwerkt,
  - daarna 2–4 concrete inzichten, argumenten of stappen geeft,
  - en afsluit met een rustige reflectie of lichte CTA die past bij de CTA-stijl.
- Gebruik de tone of voice, doelgroepcontext en offer-informatie uit het profiel.
- Vermijd alle bannedPhrases en bannedTopics uit Constraints.
- Vermijd hype-taal en harde sales.
- Houd rekening met de gevraagde lengte-modus ("short", "medium" of "long").

BELANGRIJK:
- Geef ALLEEN de uiteindelijke blogtekst als platte tekst terug.
- GEEN extra uitleg, GEEN metadata, GEEN JSON, GEEN markdown.`

// buildChannelPrompt renders the generation system/user messages for a
// channel.
func buildChannelPrompt(channel, thought, length string, cards profile.CardSet, examples []synthesis.ExampleInput) (system, user string, err error) {
	profileJSON, err := json.MarshalIndent(map[string]any{
		"voiceCard":    cards.Voice,
		"audienceCard": cards.Audience,
		"offerCard":    cards.Offer,
		"constraints":  cards.Constraints,
	}, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding profile: %w", err)
	}
	examplesJSON, err := json.MarshalIndent(examples, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding examples: %w", err)
	}

	switch channel {
	case ChannelLinkedIn:
		return linkedinSystemPrompt, fmt.Sprintf(linkedinUserTemplate, thought, length, profileJSON, examplesJSON), nil
	case ChannelBlog:
		return blogSystemPrompt, fmt.Sprintf(blogUserTemplate, thought, length, profileJSON, examplesJSON), nil
	default:
		return "", "", fmt.Errorf("unknown channel %q", channel)
	}
}
