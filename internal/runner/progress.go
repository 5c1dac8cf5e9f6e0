package runner

import (
	"sync"
	"time"

	"github.com/maltedev/listing-scraper/internal/models"
)

// RunState is the coarse lifecycle of a run.
type RunState string

const (
	StateIdle     RunState = "idle"
	StateRunning  RunState = "running"
	StateFinished RunState = "finished"
	StateFailed   RunState = "failed"
)

// ProgressSnapshot is a point-in-time copy of the run progress.
type ProgressSnapshot struct {
	State      RunState       `json:"state"`
	CurrentURL string         `json:"current_url,omitempty"`
	Attempt    int            `json:"attempt,omitempty"`
	Error      string         `json:"error,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Summary    models.Summary `json:"summary"`
}

// Progress is written by the run loop and read by the status server.
type Progress struct {
	mu   sync.RWMutex
	snap ProgressSnapshot
}

func NewProgress() *Progress {
	return &Progress{snap: ProgressSnapshot{State: StateIdle, UpdatedAt: time.Now()}}
}

// Snapshot returns a copy safe to use from another goroutine.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.snap
	s.Summary.SkippedURL = append([]string(nil), p.snap.Summary.SkippedURL...)
	return s
}

func (p *Progress) update(fn func(s *ProgressSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.snap)
	p.snap.UpdatedAt = time.Now()
}

func (p *Progress) start(summary models.Summary) {
	p.update(func(s *ProgressSnapshot) {
		s.State = StateRunning
		s.Error = ""
		s.Summary = summary
	})
}

func (p *Progress) attempt(url string, n int) {
	p.update(func(s *ProgressSnapshot) {
		s.CurrentURL = url
		s.Attempt = n
	})
}

func (p *Progress) record(summary models.Summary) {
	p.update(func(s *ProgressSnapshot) {
		s.Summary = summary
		s.Summary.SkippedURL = append([]string(nil), summary.SkippedURL...)
	})
}

func (p *Progress) finish(summary models.Summary, err error) {
	p.update(func(s *ProgressSnapshot) {
		s.State = StateFinished
		s.CurrentURL = ""
		s.Attempt = 0
		s.Summary = summary
		s.Summary.SkippedURL = append([]string(nil), summary.SkippedURL...)
		if err != nil {
			s.State = StateFailed
			s.Error = err.Error()
		}
	})
}
