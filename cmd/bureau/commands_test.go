package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureauhq/bureau/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"ok":false,"code":"OUTPUT_NOT_FOUND","message":"niet gevonden"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestGenerateRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /generate/linkedin": `{"ok":true,"content":"Een post.","quality":{"score":1,"issues":[],"suggestions":[]},"outputId":"out-123","profileCardVersion":2}`,
	})

	client := ts.client()

	body := map[string]any{
		"thought": "Waarom wij alleen nog fixed-price offertes doen",
	}
	resp, err := client.post(ctx, "/generate/linkedin", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		OK       bool   `json:"ok"`
		Content  string `json:"content"`
		OutputID string `json:"outputId"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if !result.OK {
		t.Error("expected ok response")
	}
	if result.OutputID != "out-123" {
		t.Errorf("outputId = %q, want out-123", result.OutputID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Method != "POST" {
		t.Errorf("method = %q, want POST", r.Method)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(r.Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sent["thought"] != "Waarom wij alleen nog fixed-price offertes doen" {
		t.Errorf("body.thought = %v", sent["thought"])
	}
}

func TestGenerateCommand_MissingThought(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"generate", "linkedin"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing thought")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestGenerateCommand_UnknownChannel(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"generate", "twitter", "--thought", "iets over klanten"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if !strings.Contains(err.Error(), "twitter") {
		t.Errorf("error = %q, want it to name the channel", err.Error())
	}
}

func TestProfileShowRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profile/effective": `{"workspaceCardVersion":3,"projectCardVersion":0,"voiceCard":{"tone":{"formality":"informeel"}},"examples":[]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/profile/effective")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var effective map[string]any
	if err := decodeJSON(resp, &effective); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if effective["workspaceCardVersion"] != float64(3) {
		t.Errorf("workspaceCardVersion = %v, want 3", effective["workspaceCardVersion"])
	}
	voice, ok := effective["voiceCard"].(map[string]any)
	if !ok {
		t.Fatal("expected voiceCard to be a map")
	}
	if voice["tone"] == nil {
		t.Error("expected voiceCard.tone to be present")
	}
}

func TestProfileAnswerRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /profile/answers": `{"ok":true,"state":{"knownKeys":["foundations.target_audience"],"missingKeys":[],"confidenceScore":0.1,"lastQuestionKey":"foundations.target_audience"}}`,
	})

	client := ts.client()
	body := map[string]any{
		"questionKey": "foundations.target_audience",
		"answerText":  "MKB-eigenaren in de bouw",
	}
	resp, err := client.post(ctx, "/profile/answers", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		OK    bool `json:"ok"`
		State struct {
			Confidence float64 `json:"confidenceScore"`
		} `json:"state"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if !result.OK {
		t.Error("expected ok response")
	}
	if result.State.Confidence != 0.1 {
		t.Errorf("confidence = %v, want 0.1", result.State.Confidence)
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sent["questionKey"] != "foundations.target_audience" {
		t.Errorf("body.questionKey = %v", sent["questionKey"])
	}
}

func TestFeedbackRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /outputs/out-1/feedback": `{"ok":true,"newProfileVersion":4}`,
	})

	client := ts.client()
	body := map[string]any{"rating": 2, "notes": "te salesy"}
	resp, err := client.post(ctx, "/outputs/out-1/feedback", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		OK                bool `json:"ok"`
		NewProfileVersion int  `json:"newProfileVersion"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.NewProfileVersion != 4 {
		t.Errorf("newProfileVersion = %d, want 4", result.NewProfileVersion)
	}
}

func TestFeedbackCommand_MissingRating(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"feedback", "out-1"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing rating")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestExamplesAddCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"examples", "add"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestStatusCommand_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	_, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"ok":false,"code":"UNAUTHORIZED","message":"Geen toegang."}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/profile/effective")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestScopeQueryEncoding(t *testing.T) {
	oldWS, oldPJ := workspaceFlag, projectFlag
	defer func() { workspaceFlag, projectFlag = oldWS, oldPJ }()

	workspaceFlag = "acme"
	projectFlag = "najaarscampagne"

	path := withQuery("/profile/effective", scopeValues())
	if !strings.Contains(path, "workspaceId=acme") {
		t.Errorf("path = %q, want workspaceId=acme", path)
	}
	if !strings.Contains(path, "projectId=najaarscampagne") {
		t.Errorf("path = %q, want projectId=najaarscampagne", path)
	}

	workspaceFlag, projectFlag = "", ""
	if got := withQuery("/examples", scopeValues()); got != "/examples" {
		t.Errorf("empty scope path = %q, want /examples", got)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.LLM.Model = "gpt-4o"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		got := countLabel(tt.count, tt.limit)
		if got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}
