package profile

// FoundationKeys lists the intake questions that must all be answered before
// a profile can be synthesized. Order doubles as interview order.
var FoundationKeys = []string{
	"foundations.target_audience",
	"foundations.main_problem",
	"foundations.current_situation",
	"foundations.desired_outcome",
	"foundations.main_offer",
	"foundations.differentiator",
	"foundations.price_positioning",
	"foundations.tone_keywords",
	"foundations.formality_level",
	"foundations.persona_role",
	"foundations.nl_or_english",
	"foundations.banned_phrases",
	"foundations.topics_to_avoid",
	"foundations.call_to_action_style",
	"foundations.time_constraints",
}

// Question describes one intake question.
type Question struct {
	Key        string   `json:"questionKey"`
	Text       string   `json:"questionText"`
	AnswerType string   `json:"answerType"` // "text", "select", "multi" or "boolean"
	Options    []string `json:"options"`
}

var questionBank = map[string]Question{
	"foundations.target_audience": {
		Key:        "foundations.target_audience",
		Text:       "Voor wie maak je vooral content? Beschrijf je ideale doelgroep zo concreet mogelijk.",
		AnswerType: "text",
	},
	"foundations.main_problem": {
		Key:        "foundations.main_problem",
		Text:       "Welk hoofdpijnprobleem los je op voor je doelgroep?",
		AnswerType: "text",
	},
	"foundations.current_situation": {
		Key:        "foundations.current_situation",
		Text:       "Hoe ziet de huidige situatie van je ideale klant eruit (voor ze met jou werken)?",
		AnswerType: "text",
	},
	"foundations.desired_outcome": {
		Key:        "foundations.desired_outcome",
		Text:       "Wat is de gewenste uitkomst / resultaten waar je klanten voor bij jou komen?",
		AnswerType: "text",
	},
	"foundations.main_offer": {
		Key:        "foundations.main_offer",
		Text:       "Wat is je belangrijkste aanbod of product waar je nu aandacht op wilt?",
		AnswerType: "text",
	},
	"foundations.differentiator": {
		Key:        "foundations.differentiator",
		Text:       "Wat maakt jouw aanpak anders dan alternatieven of concurrenten?",
		AnswerType: "text",
	},
	"foundations.price_positioning": {
		Key:        "foundations.price_positioning",
		Text:       "Hoe positioneer je jezelf qua prijs en waarde? (bijv. premium, midden, betaalbaar)",
		AnswerType: "select",
		Options:    []string{"premium", "boven gemiddeld", "midden", "betaalbaar", "budget"},
	},
	"foundations.tone_keywords": {
		Key:        "foundations.tone_keywords",
		Text:       "Hoe zou je je toon omschrijven in 3–5 woorden? (bijv. \"direct\", \"speels\", \"nuchter\")",
		AnswerType: "text",
	},
	"foundations.formality_level": {
		Key:        "foundations.formality_level",
		Text:       "Hoe formeel wil je klinken?",
		AnswerType: "select",
		Options:    []string{"zeer informeel", "informeel", "neutraal", "formeel", "zeer formeel"},
	},
	"foundations.persona_role": {
		Key:        "foundations.persona_role",
		Text:       "Vanuit welke rol wil je vooral communiceren? (bijv. expert, mentor, maker, directeur)",
		AnswerType: "text",
	},
	"foundations.nl_or_english": {
		Key:        "foundations.nl_or_english",
		Text:       "In welke taal(en) wil je primair publiceren?",
		AnswerType: "multi",
		Options:    []string{"Nederlands", "Engels", "Nederlands + Engels"},
	},
	"foundations.banned_phrases": {
		Key:        "foundations.banned_phrases",
		Text:       "Zijn er woorden, termen of clichés die we absoluut nooit mogen gebruiken?",
		AnswerType: "text",
	},
	"foundations.topics_to_avoid": {
		Key:        "foundations.topics_to_avoid",
		Text:       "Zijn er onderwerpen of invalshoeken die je liever vermijdt?",
		AnswerType: "text",
	},
	"foundations.call_to_action_style": {
		Key:        "foundations.call_to_action_style",
		Text:       "Hoe direct mag een call-to-action zijn? (bijv. \"heel zacht\", \"neutraal\", \"duidelijk\")",
		AnswerType: "select",
		Options:    []string{"heel zacht", "neutraal", "duidelijk", "sterk sales-gericht"},
	},
	"foundations.time_constraints": {
		Key:        "foundations.time_constraints",
		Text:       "Zijn er praktische beperkingen waar we rekening mee moeten houden? (bijv. max aantal posts/week, geen weekends)",
		AnswerType: "text",
	},
}

// QuestionByKey looks up a foundation question.
func QuestionByKey(key string) (Question, bool) {
	q, ok := questionBank[key]
	return q, ok
}

// IsFoundationKey reports whether key belongs to the foundation set.
func IsFoundationKey(key string) bool {
	_, ok := questionBank[key]
	return ok
}

// NextQuestion returns the first unanswered foundation question in interview
// order, or ok=false when all foundations are answered.
func NextQuestion(answered map[string]bool) (Question, bool) {
	for _, key := range FoundationKeys {
		if !answered[key] {
			return questionBank[key], true
		}
	}
	return Question{}, false
}

// FoundationsComplete reports whether every foundation key has an answer.
func FoundationsComplete(answers map[string]Answer) bool {
	for _, key := range FoundationKeys {
		if _, ok := answers[key]; !ok {
			return false
		}
	}
	return true
}
