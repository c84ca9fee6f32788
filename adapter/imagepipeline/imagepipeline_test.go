package imagepipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
	"toolhub.dev/hub/jobs"
)

func boolPtr(b bool) *bool { return &b }

func TestInvokeSyncPollsUntilCompleted(t *testing.T) {
	var historyHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"promptId": "p1", "number": 0})
	})
	mux.HandleFunc("/history/p1", func(w http.ResponseWriter, r *http.Request) {
		historyHits++
		if historyHits < 2 {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": map[string]any{"completed": false}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]any{"completed": true},
			"outputs": map[string]any{
				"out1": map[string]any{"images": []map[string]any{{"url": "https://x/img.png"}}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := New(Config{QueueURL: srv.URL + "/queue", HistoryURL: srv.URL + "/history", PollInterval: time.Millisecond}, nil)
	spec := &toolhub.ToolSpec{Name: "demo/render"}

	out, err := a.Invoke(t.Context(), spec, map[string]any{"prompt": "a cat"}, &toolhub.ExecContext{})
	require.NoError(t, err)
	result := out.Result.(map[string]any)
	require.Equal(t, []string{"https://x/img.png"}, result["urls"])
	require.GreaterOrEqual(t, historyHits, 2)
}

func TestInvokeAsyncReturnsJobImmediately(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"promptId": "p2", "number": 3})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	jobMgr := jobs.New(jobs.Options{})
	defer jobMgr.Dispose()

	a := New(Config{QueueURL: srv.URL + "/queue", HistoryURL: srv.URL + "/history"}, jobMgr)
	spec := &toolhub.ToolSpec{Name: "demo/render", CostHints: &toolhub.CostHints{IsAsync: boolPtr(true)}}

	out, err := a.Invoke(t.Context(), spec, map[string]any{"prompt": "a dog"}, &toolhub.ExecContext{RequestID: "r1", TaskID: "t1"})
	require.NoError(t, err)
	result := out.Result.(map[string]any)
	require.Equal(t, string(toolhub.JobStatusQueued), result["status"])
	require.Equal(t, 3, result["queueNumber"])
	require.NotEmpty(t, result["jobId"])

	require.Equal(t, toolhub.JobStatusQueued, jobMgr.GetStatus(result["jobId"].(string)))
}

func TestInvokeEnqueueFailureWrapsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(Config{QueueURL: srv.URL, HistoryURL: srv.URL}, nil)
	spec := &toolhub.ToolSpec{Name: "demo/render"}

	_, err := a.Invoke(t.Context(), spec, map[string]any{}, &toolhub.ExecContext{})
	require.Error(t, err)
}
