package model

import (
	"strings"
	"time"
)

type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunDone      RunState = "done"
	RunCancelled RunState = "cancelled"
	RunError     RunState = "error"
)

func (s RunState) Terminal() bool {
	return s == RunDone || s == RunCancelled || s == RunError
}

type SyncResult struct {
	RunID      string    `json:"run_id"`
	Status     RunState  `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Log           []string `json:"log"`
	Successes     int      `json:"successes"`
	Failures      int      `json:"failures"`
	Paused        int      `json:"paused"`
	PauseFailures int      `json:"pause_failures"`
	ErrorKinds    []string `json:"error_kinds"`
}

func (r *SyncResult) Append(line string) {
	r.Log = append(r.Log, line)
}

// AddErrorKind records kind once, keeping first-seen order.
func (r *SyncResult) AddErrorKind(kind string) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return
	}
	for _, existing := range r.ErrorKinds {
		if existing == kind {
			return
		}
	}
	r.ErrorKinds = append(r.ErrorKinds, kind)
}

func (r SyncResult) Text() string {
	if len(r.Log) == 0 {
		return ""
	}
	return strings.Join(r.Log, "\n") + "\n"
}
