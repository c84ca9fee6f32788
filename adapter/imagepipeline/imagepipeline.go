// Package imagepipeline implements the image-pipeline tools adapter (§4.3):
// POST a prompt to a queueing endpoint, then either hand back a job
// immediately for async specs or poll the history endpoint until the
// rendered artifacts appear. Grounded structurally on the donor's rpc-tool
// HTTP transport (same POST-then-poll shape as runtime/mcp/ssecaller.go's
// non-streaming fallback), adapted to a queue/history API instead of
// JSON-RPC.
package imagepipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/jobs"
	"toolhub.dev/hub/toolerrors"
)

// Config points the adapter at a queueing back-end's HTTP endpoints.
type Config struct {
	// QueueURL accepts a POST of the prompt JSON and returns {"promptId": "..."}.
	QueueURL string
	// HistoryURL, with promptId appended, returns the render history/status
	// for one prompt once it has been processed.
	HistoryURL string
	// PollInterval is the fixed delay between history polls for a
	// synchronous (non-async) spec. Defaults to 500ms.
	PollInterval time.Duration
	// MaxPollAttempts caps how many times a synchronous spec is polled
	// before giving up. Defaults to 120 (one minute at the default interval).
	MaxPollAttempts int
	Client          *http.Client
}

func (c Config) defaulted() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 120
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Adapter implements the image-pipeline tool kind.
type Adapter struct {
	cfg    Config
	jobMgr *jobs.Manager
}

// New returns an image-pipeline Adapter. jobMgr may be nil if no spec this
// adapter serves declares costHints.isAsync.
func New(cfg Config, jobMgr *jobs.Manager) *Adapter {
	return &Adapter{cfg: cfg.defaulted(), jobMgr: jobMgr}
}

// Kind implements adapter.Adapter.
func (a *Adapter) Kind() toolhub.ToolKind { return toolhub.ToolKindImagePipeline }

// ListTools implements adapter.Adapter; image-pipeline tools are declared
// through Directory Discovery, not queried live from the back-end.
func (a *Adapter) ListTools(context.Context) ([]toolhub.ToolSpec, error) { return nil, nil }

type queueResponse struct {
	PromptID string `json:"promptId"`
}

// Invoke submits args as the prompt JSON, then either returns the queued
// job immediately (async specs) or polls history until artifacts appear.
func (a *Adapter) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (adapter.Outcome, error) {
	promptID, queueNumber, err := a.enqueue(ctx, args)
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("image-pipeline: enqueue failed", err).WithKind(string(toolhub.ErrorUpstream))
	}

	if spec.CostHints != nil && spec.CostHints.IsAsync != nil && *spec.CostHints.IsAsync {
		var jobID string
		if a.jobMgr != nil {
			job := a.jobMgr.Submit(string(spec.Name), execCtx.RequestID, execCtx.TaskID, map[string]any{"promptId": promptID})
			jobID = job.JobID
		} else {
			jobID = promptID
		}
		return adapter.Outcome{Result: map[string]any{
			"jobId":       jobID,
			"status":      string(toolhub.JobStatusQueued),
			"queueNumber": queueNumber,
		}}, nil
	}

	urls, raw, err := a.pollUntilDone(ctx, promptID)
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("image-pipeline: poll failed", err).WithKind(string(toolhub.ErrorUpstream))
	}
	return adapter.Outcome{Result: map[string]any{"urls": urls}, Raw: raw}, nil
}

func (a *Adapter) enqueue(ctx context.Context, prompt map[string]any) (promptID string, queueNumber int, err error) {
	body, err := json.Marshal(prompt)
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.QueueURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.cfg.Client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode >= 400 {
		return "", 0, fmt.Errorf("image-pipeline: queue returned %d: %s", resp.StatusCode, string(data))
	}
	var qr struct {
		queueResponse
		Number int `json:"number"`
	}
	if err := json.Unmarshal(data, &qr); err != nil {
		return "", 0, err
	}
	return qr.PromptID, qr.Number, nil
}

// historyEntry is the minimal shape this adapter extracts from the
// back-end's render history: a map of node output name to a list of
// produced artifacts, each carrying a resolvable URL.
type historyEntry struct {
	Outputs map[string]struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"outputs"`
	Status struct {
		Completed bool `json:"completed"`
	} `json:"status"`
}

func (a *Adapter) pollUntilDone(ctx context.Context, promptID string) ([]string, any, error) {
	for attempt := 0; attempt < a.cfg.MaxPollAttempts; attempt++ {
		entry, done, raw, err := a.fetchHistory(ctx, promptID)
		if err != nil {
			return nil, nil, err
		}
		if done {
			return extractImageURLs(entry), raw, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}
	}
	return nil, nil, fmt.Errorf("image-pipeline: prompt %s did not complete within %d attempts", promptID, a.cfg.MaxPollAttempts)
}

func (a *Adapter) fetchHistory(ctx context.Context, promptID string) (historyEntry, bool, any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.HistoryURL+"/"+promptID, nil)
	if err != nil {
		return historyEntry{}, false, nil, err
	}
	resp, err := a.cfg.Client.Do(req)
	if err != nil {
		return historyEntry{}, false, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return historyEntry{}, false, nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return historyEntry{}, false, nil, nil
	}
	if resp.StatusCode >= 400 {
		return historyEntry{}, false, nil, fmt.Errorf("image-pipeline: history returned %d: %s", resp.StatusCode, string(data))
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return historyEntry{}, false, nil, err
	}
	var entry historyEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return historyEntry{}, false, nil, err
	}
	return entry, entry.Status.Completed, raw, nil
}

func extractImageURLs(entry historyEntry) []string {
	var urls []string
	for _, out := range entry.Outputs {
		for _, img := range out.Images {
			if img.URL != "" {
				urls = append(urls, img.URL)
			}
		}
	}
	return urls
}
