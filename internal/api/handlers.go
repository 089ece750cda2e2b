// Package api exposes the engine over HTTP (chi router, bearer auth) and as
// an MCP stdio server. Error responses follow a uniform envelope with a
// machine code and a user-facing Dutch message plus suggested action.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bureauhq/bureau/internal/generate"
	"github.com/bureauhq/bureau/internal/ingest"
	"github.com/bureauhq/bureau/internal/profile"
	"github.com/bureauhq/bureau/internal/storage"
	"github.com/bureauhq/bureau/internal/synthesis"
)

const maxRequestBodySize = 10 << 20 // 10MB

// DefaultWorkspaceID is used when a request does not name a workspace.
const DefaultWorkspaceID = "default"

// AppDeps holds the wired dependencies for the HTTP surface.
type AppDeps struct {
	Store     *storage.Store
	Tracker   *profile.Tracker
	Resolver  *profile.Resolver
	Generator *generate.Service
	Token     string
}

// NewAppHandler builds the full router. The health endpoint is open; every
// other route requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/profile/answers", handleAnswerQuestion(deps))
		r.Get("/profile/next-question", handleNextQuestion(deps))
		r.Post("/profile/synthesize", handleSynthesize(deps))
		r.Get("/profile/effective", handleEffectiveProfile(deps))

		r.Post("/generate/linkedin", handleGenerate(deps, generate.ChannelLinkedIn))
		r.Post("/generate/blog", handleGenerate(deps, generate.ChannelBlog))

		r.Get("/outputs", handleListOutputs(deps))
		r.Get("/outputs/{id}", handleGetOutput(deps))
		r.Post("/outputs/{id}/feedback", handleFeedback(deps))

		r.Post("/examples", handleAddExample(deps))
		r.Get("/examples", handleListExamples(deps))
	})

	return r
}

// scopeRequest carries the tenant fields shared by most request bodies.
type scopeRequest struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
}

func (s scopeRequest) scope() profile.Scope {
	ws := s.WorkspaceID
	if ws == "" {
		ws = DefaultWorkspaceID
	}
	return profile.Scope{WorkspaceID: ws, ProjectID: s.ProjectID}
}

func scopeFromQuery(r *http.Request) profile.Scope {
	ws := r.URL.Query().Get("workspaceId")
	if ws == "" {
		ws = DefaultWorkspaceID
	}
	return profile.Scope{WorkspaceID: ws, ProjectID: r.URL.Query().Get("projectId")}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST",
			"Ongeldig JSON-formaat in request body.",
			"Controleer de invoer en probeer het opnieuw.")
		return false
	}
	return true
}

func handleAnswerQuestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			scopeRequest
			QuestionKey string          `json:"questionKey"`
			AnswerText  string          `json:"answerText"`
			AnswerJSON  json.RawMessage `json:"answerJson"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.QuestionKey == "" {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST",
				"questionKey is verplicht en moet een niet-lege string zijn.",
				"Stuur een geldige questionKey mee, bijvoorbeeld 'foundations.target_audience'.")
			return
		}

		answerJSON := ""
		if len(req.AnswerJSON) > 0 && string(req.AnswerJSON) != "null" {
			answerJSON = string(req.AnswerJSON)
		}

		state, err := deps.Tracker.RecordAnswer(req.scope(), req.QuestionKey, req.AnswerText, answerJSON)
		if errors.Is(err, profile.ErrUnknownQuestion) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST",
				"questionKey moet een geldige foundations- of adaptive-sleutel zijn.",
				"Gebruik een foundations key (bijv. 'foundations.target_audience') of een adaptive key die begint met 'adaptive.'.")
			return
		}
		if errors.Is(err, profile.ErrEmptyAnswer) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST",
				"answerText is verplicht en mag niet leeg zijn.",
				"Vul een inhoudelijk antwoord in en probeer het opnieuw.")
			return
		}
		if err != nil {
			internalError(w, "Er is een onverwachte fout opgetreden bij het opslaan van je antwoord.")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": state})
	}
}

func handleNextQuestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok, err := deps.Tracker.NextQuestion(scopeFromQuery(r))
		if err != nil {
			internalError(w, "Er is een onverwachte fout opgetreden bij het bepalen van de volgende vraag.")
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"stop": true})
			return
		}

		options := q.Options
		if options == nil {
			options = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"questionKey":  q.Key,
			"questionText": q.Text,
			"answerType":   q.AnswerType,
			"options":      options,
			"stop":         false,
		})
	}
}

func handleSynthesize(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scopeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		version, err := deps.Generator.Synthesize(r.Context(), req.scope())
		switch {
		case errors.Is(err, generate.ErrProfileIncomplete):
			writeError(w, http.StatusBadRequest, "PROFILE_INCOMPLETE",
				"Je profiel is nog niet compleet. Vul eerst alle vragen in via Account → Personalisatie.",
				"Ga naar /account/personalization om je profiel af te maken.")
		case errors.Is(err, synthesis.ErrMalformedOutput):
			writeError(w, http.StatusInternalServerError, "SYNTHESIS_PARSE_ERROR",
				"Kon gesynthetiseerd profiel niet verwerken. Probeer het opnieuw.",
				"Als het probleem blijft, neem contact op met de ondersteuning.")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "SYNTHESIS_ERROR",
				"Er is een fout opgetreden bij het synthetiseren van je profiel.",
				"Probeer het later opnieuw of neem contact op met de ondersteuning.")
		default:
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": version})
		}
	}
}

func handleEffectiveProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		effective, err := deps.Resolver.Resolve(r.Context(), scopeFromQuery(r))
		if err != nil {
			internalError(w, "Er is een onverwachte fout opgetreden bij het ophalen van je profiel.")
			return
		}

		type exampleView struct {
			Kind    string `json:"kind"`
			Content string `json:"content"`
		}
		examples := make([]exampleView, 0, len(effective.Examples))
		for _, e := range effective.Examples {
			examples = append(examples, exampleView{Kind: e.Kind, Content: e.Content})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"workspaceCardVersion": effective.WorkspaceCardVersion,
			"projectCardVersion":   effective.ProjectCardVersion,
			"voiceCard":            effective.Cards.Voice,
			"audienceCard":         effective.Cards.Audience,
			"offerCard":            effective.Cards.Offer,
			"constraints":          effective.Cards.Constraints,
			"examples":             examples,
		})
	}
}

func handleGenerate(deps AppDeps, channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			scopeRequest
			Thought string `json:"thought"`
			Length  string `json:"length"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := deps.Generator.Generate(r.Context(), req.scope(), generate.Request{
			Channel: channel,
			Thought: req.Thought,
			Length:  req.Length,
		})
		if err != nil {
			writeGenerateError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"content": res.Content,
			"quality": map[string]any{
				"score":       res.Quality.Score,
				"issues":      res.Quality.Issues,
				"suggestions": res.Quality.Suggestions,
			},
			"outputId":           res.OutputID,
			"profileCardVersion": res.ProfileCardVersion,
		})
	}
}

func writeGenerateError(w http.ResponseWriter, err error) {
	var qerr *generate.QualityRejectedError
	switch {
	case errors.Is(err, generate.ErrInvalidThought):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST",
			"thought is verplicht en moet minimaal 10 tekens lang zijn.",
			"Vul een duidelijke gedachte in en probeer het opnieuw.")
	case errors.Is(err, generate.ErrProfileIncomplete):
		writeError(w, http.StatusBadRequest, "PROFILE_INCOMPLETE",
			"Je profiel is nog niet compleet. Vul eerst alle vragen in via Account → Personalisatie.",
			"Ga naar /account/personalization om je profiel af te maken.")
	case errors.As(err, &qerr):
		writeError(w, http.StatusBadRequest, "QUALITY_REJECTED",
			"De gegenereerde post voldoet niet aan je profiel en contentregels.",
			"Pas je thought aan of verfijn je profiel.")
	case errors.Is(err, synthesis.ErrMalformedOutput):
		writeError(w, http.StatusInternalServerError, "SYNTHESIS_PARSE_ERROR",
			"Kon gesynthetiseerd profiel niet verwerken. Probeer het opnieuw.",
			"Als het probleem blijft, neem contact op met de ondersteuning.")
	case errors.Is(err, generate.ErrLLM):
		writeError(w, http.StatusInternalServerError, "LLM_ERROR",
			"De AI kon geen content genereren door een fout in het taalmodel.",
			"Probeer het later opnieuw. Als het probleem blijft terugkomen, neem contact op met de ondersteuning.")
	default:
		internalError(w, "Er is een onverwachte fout opgetreden bij het genereren van content.")
	}
}

func handleListOutputs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := scopeFromQuery(r)
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		outputs, err := deps.Store.ListOutputs(scope.WorkspaceID, limit, offset)
		if err != nil {
			internalError(w, "Er is een onverwachte fout opgetreden bij het ophalen van outputs.")
			return
		}
		if outputs == nil {
			outputs = []storage.Output{}
		}
		writeJSON(w, http.StatusOK, outputs)
	}
}

func handleGetOutput(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := scopeFromQuery(r)
		output, err := deps.Store.GetOutput(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) || (err == nil && output.WorkspaceID != scope.WorkspaceID) {
			writeError(w, http.StatusNotFound, "OUTPUT_NOT_FOUND",
				"De opgegeven output kon niet worden gevonden.",
				"Ververs de pagina en probeer het opnieuw.")
			return
		}
		if err != nil {
			internalError(w, "Er is een onverwachte fout opgetreden bij het ophalen van de output.")
			return
		}
		writeJSON(w, http.StatusOK, output)
	}
}

func handleFeedback(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WorkspaceID string `json:"workspaceId"`
			Rating      int    `json:"rating"`
			Notes       string `json:"notes"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.WorkspaceID == "" {
			req.WorkspaceID = DefaultWorkspaceID
		}

		version, err := deps.Generator.SubmitFeedback(r.Context(), req.WorkspaceID, chi.URLParam(r, "id"), req.Rating, req.Notes)
		switch {
		case errors.Is(err, generate.ErrInvalidRating):
			writeError(w, http.StatusBadRequest, "BAD_REQUEST",
				"rating moet tussen 1 en 5 liggen.",
				"Pas je rating aan naar een waarde tussen 1 en 5.")
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "OUTPUT_NOT_FOUND",
				"De opgegeven output kon niet worden gevonden.",
				"Ververs de pagina en probeer het opnieuw.")
		case errors.Is(err, generate.ErrOutputHasNoProfile):
			writeError(w, http.StatusBadRequest, "OUTPUT_HAS_NO_PROFILE",
				"Deze output is niet gekoppeld aan een profielkaart en kan niet worden gebruikt voor personalisatie-updates.",
				"Genereer eerst content met een gesynthetiseerd profiel.")
		case err != nil:
			internalError(w, "Er is een onverwachte fout opgetreden bij het verwerken van je feedback.")
		default:
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "newProfileVersion": version})
		}
	}
}

func handleAddExample(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			scopeRequest
			Kind      string `json:"kind"`
			Content   string `json:"content"`
			URL       string `json:"url"`
			PDFBase64 string `json:"pdfBase64"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		scope := req.scope()

		kind := req.Kind
		if kind != "bad" {
			kind = "good"
		}

		switch {
		case strings.TrimSpace(req.Content) != "":
			example := storage.Example{
				ID:          uuid.NewString(),
				WorkspaceID: scope.WorkspaceID,
				ProjectID:   scope.ProjectID,
				Kind:        kind,
				Content:     strings.TrimSpace(req.Content),
				Source:      "api",
			}
			if err := deps.Store.SaveExample(example); err != nil {
				internalError(w, "Er is een onverwachte fout opgetreden bij het opslaan van het voorbeeld.")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": example.ID})

		case req.URL != "" || req.PDFBase64 != "":
			payload := ingest.Payload{
				WorkspaceID: scope.WorkspaceID,
				ProjectID:   scope.ProjectID,
				Kind:        kind,
			}
			if req.URL != "" {
				payload.Source = "url"
				payload.URL = req.URL
			} else {
				payload.Source = "pdf"
				payload.Data = req.PDFBase64
			}
			job, err := ingest.NewJob(payload)
			if err != nil {
				internalError(w, "Er is een onverwachte fout opgetreden bij het aanmaken van de verwerkingsopdracht.")
				return
			}
			if err := deps.Store.EnqueueJob(job); err != nil {
				internalError(w, "Er is een onverwachte fout opgetreden bij het inplannen van de verwerking.")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobId": job.ID, "status": "queued"})

		default:
			writeError(w, http.StatusBadRequest, "BAD_REQUEST",
				"Minstens één van content, url of pdfBase64 is verplicht.",
				"Stuur de voorbeeldtekst, een URL of een base64-gecodeerde PDF mee.")
		}
	}
}

func handleListExamples(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := scopeFromQuery(r)
		examples, err := deps.Store.ListExamples(scope.WorkspaceID, scope.ProjectID)
		if err != nil {
			internalError(w, "Er is een onverwachte fout opgetreden bij het ophalen van voorbeelden.")
			return
		}
		if examples == nil {
			examples = []storage.Example{}
		}
		writeJSON(w, http.StatusOK, examples)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
