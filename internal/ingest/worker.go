// Package ingest pulls example content into the store: raw text directly,
// URLs and PDFs through the background job queue with text extraction.
package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureauhq/bureau/internal/storage"
)

// JobTypeExampleIngest is the queue type for url/pdf example extraction.
const JobTypeExampleIngest = "example_ingest"

const maxFetchSize = 5 << 20 // 5MB

// JobStore abstracts the queue and example operations the worker needs.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	SaveExample(e storage.Example) error
}

// Payload describes one queued example to ingest. Data carries base64 PDF
// bytes for pdf jobs; URL carries the page address for url jobs.
type Payload struct {
	WorkspaceID string `json:"workspace_id"`
	ProjectID   string `json:"project_id"`
	Kind        string `json:"kind"`
	Source      string `json:"source"` // "url" or "pdf"
	URL         string `json:"url"`
	Data        string `json:"data"`
}

// NewJob builds a queue job for a payload.
func NewJob(p Payload) (storage.Job, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return storage.Job{}, fmt.Errorf("encoding payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.NewString(),
		Type:        JobTypeExampleIngest,
		PayloadJSON: string(raw),
	}, nil
}

// Worker processes example_ingest jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	client *http.Client
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
// A nil httpClient falls back to a client with a 10s timeout.
func NewWorker(store JobStore, httpClient *http.Client, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Worker{
		store:  store,
		client: httpClient,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. Returns true if a job was
// processed, regardless of success or failure.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeExampleIngest})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	var content string
	var err error
	switch payload.Source {
	case "url":
		content, err = w.fetchURL(ctx, payload.URL)
	case "pdf":
		content, err = extractPDFPayload(payload.Data)
	default:
		return fmt.Errorf("unknown ingest source %q", payload.Source)
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("no text extracted from %s source", payload.Source)
	}

	kind := payload.Kind
	if kind != "bad" {
		kind = "good"
	}
	return w.store.SaveExample(storage.Example{
		ID:          uuid.NewString(),
		WorkspaceID: payload.WorkspaceID,
		ProjectID:   payload.ProjectID,
		Kind:        kind,
		Content:     content,
		Source:      payload.Source,
	})
}

func (w *Worker) fetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchSize)
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") || contentType == "" {
		return ExtractHTMLText(body)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading url response: %w", err)
	}
	return normalizeWhitespace(string(raw)), nil
}

func extractPDFPayload(data string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decoding pdf payload: %w", err)
	}
	return ExtractPDFText(decoded)
}
