package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyEmail       = "email"
	KeyTask        = "task"
	KeyRound       = "round"
	KeyNonce       = "nonce"
	KeyState       = "state"
	KeyStage       = "stage"
	KeyKind        = "failure_kind"
	KeyDurationMS  = "duration_ms"
	KeyAttempt     = "attempt"
	KeyRepo        = "repository"
	KeyCommit      = "commit_sha"
	KeyURL         = "url"
	KeyFiles       = "files"
	KeyWorker      = "worker"
	KeyMethod      = "method"
	KeyPath        = "path"
	KeyStatus      = "status"
	KeyRemoteAddr  = "remote_addr"
	KeyProvider    = "provider"
	KeyBackend     = "backend"
	KeyScheduleJob = "schedule_job"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Email(e string) slog.Attr         { return slog.String(KeyEmail, e) }
func Task(t string) slog.Attr          { return slog.String(KeyTask, t) }
func Round(r int) slog.Attr            { return slog.Int(KeyRound, r) }
func Nonce(n string) slog.Attr         { return slog.String(KeyNonce, n) }
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func Repository(r string) slog.Attr    { return slog.String(KeyRepo, r) }
func Commit(sha string) slog.Attr      { return slog.String(KeyCommit, sha) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Files(n int) slog.Attr            { return slog.Int(KeyFiles, n) }
func Worker(w string) slog.Attr        { return slog.String(KeyWorker, w) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func Provider(p string) slog.Attr      { return slog.String(KeyProvider, p) }
func Backend(b string) slog.Attr       { return slog.String(KeyBackend, b) }
func ScheduleJob(name string) slog.Attr { return slog.String(KeyScheduleJob, name) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
