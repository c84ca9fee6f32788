// Package redisstore implements jobs.Store on top of Redis, so a Manager's
// state survives process restarts and can be shared across a multi-process
// deployment (§5 supplemental ambient wiring). The in-memory store remains
// the Manager's default; this is an opt-in substitute behind the same
// interface.
package redisstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"toolhub.dev/hub"
)

// Store persists jobs as JSON-encoded Redis hash entries under one key.
type Store struct {
	client *redis.Client
	key    string
	ctx    func() context.Context
}

// New wraps client, storing every job under a single Redis hash named
// hashKey (default "toolhub:jobs" if empty). ctxFn supplies the context used
// for Redis calls; pass nil to use context.Background.
func New(client *redis.Client, hashKey string, ctxFn func() context.Context) *Store {
	if hashKey == "" {
		hashKey = "toolhub:jobs"
	}
	if ctxFn == nil {
		ctxFn = context.Background
	}
	return &Store{client: client, key: hashKey, ctx: ctxFn}
}

// Put upserts job into the hash.
func (s *Store) Put(job toolhub.Job) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	s.client.HSet(s.ctx(), s.key, job.JobID, data)
}

// Get fetches and decodes jobID from the hash.
func (s *Store) Get(jobID string) (toolhub.Job, bool) {
	raw, err := s.client.HGet(s.ctx(), s.key, jobID).Result()
	if err != nil {
		return toolhub.Job{}, false
	}
	var job toolhub.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return toolhub.Job{}, false
	}
	return job, true
}

// List decodes every job currently in the hash.
func (s *Store) List() []toolhub.Job {
	all, err := s.client.HGetAll(s.ctx(), s.key).Result()
	if err != nil {
		return nil
	}
	out := make([]toolhub.Job, 0, len(all))
	for _, raw := range all {
		var job toolhub.Job
		if err := json.Unmarshal([]byte(raw), &job); err == nil {
			out = append(out, job)
		}
	}
	return out
}

// Delete removes jobID from the hash.
func (s *Store) Delete(jobID string) {
	s.client.HDel(s.ctx(), s.key, jobID)
}
