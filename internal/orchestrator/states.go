package orchestrator

// State is a pipeline state of one job.
type State string

const (
	StateReceived    State = "RECEIVED"
	StateGenerating  State = "GENERATING"
	StateSyncingRepo State = "SYNCING_REPO"
	StateDeploying   State = "DEPLOYING"
	StateVerifying   State = "VERIFYING"
	StateNotifying   State = "NOTIFYING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// stage is the lowercase label used in metrics and logs.
func (s State) stage() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateSyncingRepo:
		return "syncing_repo"
	case StateDeploying:
		return "deploying"
	case StateVerifying:
		return "verifying"
	case StateNotifying:
		return "notifying"
	default:
		return string(s)
	}
}
