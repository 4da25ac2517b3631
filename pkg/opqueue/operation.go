package opqueue

import "time"

// Operation types, matching the sync API's set-operation vocabulary.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Operation is one user-visible set edit waiting for remote persistence.
// The caller has already applied it optimistically to local state; the
// queue only guarantees it eventually reaches the server.
type Operation struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	ExerciseID string         `json:"exerciseId"`
	SetID      string         `json:"setId"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	RetryCount int            `json:"retryCount"`
}

// cacheState is the persisted value for one editing session. Failed
// operations stay here after they are dropped from the retry list, until
// the caller clears them.
type cacheState struct {
	Pending []Operation `json:"pending"`
	Failed  []Operation `json:"failed,omitempty"`
}
