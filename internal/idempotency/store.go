// Package idempotency records the lifecycle of each job identity so that a
// duplicate delivery never re-runs the pipeline.
//
// Every backend offers the same compare-and-swap contract: a write names the
// revision it read, and fails with ErrConflict when another writer got there
// first. Revision 0 means "the key must not exist".
package idempotency

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Resolved reports whether s is terminal.
func (s Status) Resolved() bool { return s == StatusSucceeded || s == StatusFailed }

// Result is the cached terminal payload of a job.
type Result struct {
	RepoURL       string `json:"repo_url,omitempty"`
	CommitSHA     string `json:"commit_sha,omitempty"`
	PagesURL      string `json:"pages_url,omitempty"`
	FailureKind   string `json:"failure_kind,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Record is the stored state of one identity.
type Record struct {
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	RunID     string    `json:"run_id,omitempty"`
	Task      string    `json:"task,omitempty"`
	Round     int       `json:"round,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Revision is assigned by the store and is not serialized.
	Revision uint64 `json:"-"`
}

// ErrConflict is returned when the expected revision does not match.
var ErrConflict = stderrors.New("idempotency record revision conflict")

// Store is the injected idempotency store.
type Store interface {
	// Get returns the record for key. ok is false when no record exists.
	Get(ctx context.Context, key string) (rec Record, ok bool, err error)
	// CompareAndSwap writes next when the stored revision equals expected
	// and returns the stored record with its new revision.
	CompareAndSwap(ctx context.Context, key string, expected uint64, next Record) (Record, error)
	// Delete removes key when the stored revision equals expected.
	Delete(ctx context.Context, key string, expected uint64) error
	Close() error
}

// Pruner is implemented by stores that can drop old records.
type Pruner interface {
	// Prune removes resolved records last updated before resolvedBefore and
	// pending records last updated before pendingBefore.
	Prune(ctx context.Context, resolvedBefore, pendingBefore time.Time) (int, error)
}

func expired(r Record, resolvedBefore, pendingBefore time.Time) bool {
	if r.Status.Resolved() {
		return r.UpdatedAt.Before(resolvedBefore)
	}
	return r.UpdatedAt.Before(pendingBefore)
}

func encode(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, storeError("failed to encode record", err)
	}
	return b, nil
}

func decode(b []byte, rev uint64) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, storeError("failed to decode record", err)
	}
	r.Revision = rev
	return r, nil
}

func storeError(msg string, err error) error {
	return errors.StoreError(msg).WithCause(err).Build()
}
