package usecases

import (
	"sync"
	"sync/atomic"
	"time"

	"meli-inventory-sync/internal/domain/model"
)

type JobKind string

const (
	JobExtract JobKind = "extract"
	JobSync    JobKind = "sync"
)

// Progress is the status record of one run. The worker writes it, pollers
// read it through Snapshot. The cancel flag is checked by the worker at each
// item boundary.
type Progress struct {
	mu         sync.Mutex
	state      model.RunState
	kind       JobKind
	total      int
	processed  int
	current    string
	message    string
	err        string
	startedAt  time.Time
	finishedAt time.Time

	cancel atomic.Bool
}

type ProgressSnapshot struct {
	State           model.RunState `json:"state"`
	Kind            JobKind        `json:"kind,omitempty"`
	Total           int            `json:"total"`
	Processed       int            `json:"processed"`
	Current         string         `json:"current,omitempty"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	CancelRequested bool           `json:"cancel_requested"`
}

func NewProgress() *Progress {
	return &Progress{state: model.RunIdle}
}

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := ProgressSnapshot{
		State:           p.state,
		Kind:            p.kind,
		Total:           p.total,
		Processed:       p.processed,
		Current:         p.current,
		Message:         p.message,
		Error:           p.err,
		CancelRequested: p.cancel.Load(),
	}
	if !p.startedAt.IsZero() {
		started := p.startedAt
		snap.StartedAt = &started
	}
	if !p.finishedAt.IsZero() {
		finished := p.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

func (p *Progress) RequestCancel() {
	p.cancel.Store(true)
}

func (p *Progress) CancelRequested() bool {
	return p.cancel.Load()
}

func (p *Progress) State() model.RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Progress) begin(kind JobKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = model.RunRunning
	p.kind = kind
	p.total = 0
	p.processed = 0
	p.current = ""
	p.message = ""
	p.err = ""
	p.startedAt = time.Now()
	p.finishedAt = time.Time{}
	p.cancel.Store(false)
}

func (p *Progress) finish(state model.RunState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.current = ""
	if err != nil {
		p.err = err.Error()
	}
	p.finishedAt = time.Now()
}

// SetTotal resets the counter for a new phase of the job.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.processed = 0
}

func (p *Progress) SetMessage(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message = message
}

func (p *Progress) SetCurrent(current string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
}

func (p *Progress) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
}
