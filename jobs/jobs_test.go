package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
)

func TestJobLifecycle(t *testing.T) {
	m := New(Options{TTL: 20 * time.Millisecond, SweepInterval: 5 * time.Millisecond})
	defer m.Dispose()

	job := m.Submit("img/gen", "r1", "t1", nil)
	require.Equal(t, toolhub.JobStatusQueued, m.GetStatus(job.JobID))

	_, ok := m.GetResult(job.JobID)
	require.False(t, ok)

	require.True(t, m.MarkRunning(job.JobID))
	require.True(t, m.Complete(job.JobID, map[string]any{"url": "https://x/1"}))
	require.Equal(t, toolhub.JobStatusCompleted, m.GetStatus(job.JobID))

	result, ok := m.GetResult(job.JobID)
	require.True(t, ok)
	require.Equal(t, map[string]any{"url": "https://x/1"}, result)

	require.Eventually(t, func() bool {
		_, stillThere := m.GetJob(job.JobID)
		return !stillThere
	}, time.Second, time.Millisecond)

	_, ok = m.GetResult(job.JobID)
	require.False(t, ok)
}

func TestIllegalTransitionRejected(t *testing.T) {
	m := New(Options{})
	defer m.Dispose()
	job := m.Submit("t", "r", "t", nil)
	require.False(t, m.Complete(job.JobID, nil))
	require.Equal(t, toolhub.JobStatusQueued, m.GetStatus(job.JobID))
}

func TestCancelFromQueuedAndRunning(t *testing.T) {
	m := New(Options{})
	defer m.Dispose()

	j1 := m.Submit("t", "r", "t", nil)
	require.True(t, m.Cancel(j1.JobID))
	require.Equal(t, toolhub.JobStatusCanceled, m.GetStatus(j1.JobID))

	j2 := m.Submit("t", "r", "t", nil)
	require.True(t, m.MarkRunning(j2.JobID))
	require.True(t, m.Cancel(j2.JobID))
	require.Equal(t, toolhub.JobStatusCanceled, m.GetStatus(j2.JobID))
}

func TestEventsEmittedOnSubmitCompleteFail(t *testing.T) {
	m := New(Options{})
	defer m.Dispose()

	var types []toolhub.EventType
	m.log.On("", func(e toolhub.Event) { types = append(types, e.Type) })

	j := m.Submit("t", "r", "t", nil)
	m.MarkRunning(j.JobID)
	m.Complete(j.JobID, "ok")

	j2 := m.Submit("t", "r", "t", nil)
	m.MarkRunning(j2.JobID)
	m.Fail(j2.JobID, &toolhub.ResultError{Kind: toolhub.ErrorUpstream, Message: "x"})

	require.Contains(t, types, toolhub.EventJobSubmitted)
	require.Contains(t, types, toolhub.EventJobCompleted)
	require.Contains(t, types, toolhub.EventJobFailed)
}
