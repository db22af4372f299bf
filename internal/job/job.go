// Package job defines the typed unit of work accepted at the intake boundary.
package job

import (
	"fmt"
	"strings"
)

// Mode distinguishes a first build from a follow-up edit.
type Mode string

const (
	ModeCreate Mode = "CREATE"
	ModeRevise Mode = "REVISE"
)

// Identity names one job attempt. Re-delivery of the same identity and round
// is a retry of the same job.
type Identity struct {
	Email string
	Task  string
	Nonce string
}

// Job is constructed once by FromRequest and only read afterwards.
type Job struct {
	Identity
	Round          int // 1 is CREATE; every later round is REVISE
	Brief          string
	Checks         []string
	EvaluationURL  string
	Attachments    []Attachment
	RepositoryName string
}

// Mode reports whether the job creates or revises its repository.
func (j Job) Mode() Mode {
	if j.Round <= 1 {
		return ModeCreate
	}
	return ModeRevise
}

// Key is the idempotency key. The round is part of it so that a revision
// delivered with a reused nonce is not mistaken for a duplicate.
func (j Job) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", strings.ToLower(j.Email), j.Task, j.Round, j.Nonce)
}

// Clone returns a deep copy so collaborators never share slices.
func (j Job) Clone() Job {
	out := j
	out.Checks = append([]string(nil), j.Checks...)
	out.Attachments = make([]Attachment, len(j.Attachments))
	copy(out.Attachments, j.Attachments)
	return out
}

// String is a short label for logs.
func (j Job) String() string {
	return fmt.Sprintf("%s round %d (%s)", j.Task, j.Round, j.Mode())
}
