package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskpilot/internal/api"
)

// SyncState represents the current state of a background job.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// Job is a refresh the poller runs on an interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// SyncStatus holds the state of a single job.
type SyncStatus struct {
	Job      string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a job run completes.
type SyncResultMsg struct {
	Job   string
	Error error
	// Unauthorized is set when the run failed because the session ended.
	Unauthorized bool
}

// fetchTimeout is the maximum time allowed for a single job run.
const fetchTimeout = 30 * time.Second

// defaultInterval applies to jobs registered without an interval.
const defaultInterval = 60 * time.Second

// Poller runs registered jobs in the background and reports each run to
// the Bubble Tea program. It can be started again after Stop.
type Poller struct {
	jobs     []Job
	statuses map[string]*SyncStatus
	resultCh chan SyncResultMsg
	triggers map[string]chan struct{}
	stopCh   chan struct{}
	log      *logrus.Entry
	mu       gosync.Mutex
	running  bool
}

// New creates a Poller with no jobs.
func New(log logrus.FieldLogger) *Poller {
	return &Poller{
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		triggers: make(map[string]chan struct{}),
		log:      log.WithField("component", "poller"),
	}
}

// Register adds a job. Jobs registered while running start with the next
// Start.
func (p *Poller) Register(job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if job.Interval <= 0 {
		job.Interval = defaultInterval
	}
	p.jobs = append(p.jobs, job)
	p.triggers[job.Name] = make(chan struct{}, 1)
	p.statuses[job.Name] = &SyncStatus{Job: job.Name, State: SyncIdle}
}

// Start launches one goroutine per job and returns a command that waits
// for the first result. The first run of each job happens after one
// interval; views load their own data on entry.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	jobs := append([]Job(nil), p.jobs...)
	triggers := make([]chan struct{}, len(jobs))
	for i, job := range jobs {
		triggers[i] = p.triggers[job.Name]
	}
	p.mu.Unlock()

	for i, job := range jobs {
		go p.pollJob(job, triggers[i], stop)
	}

	return p.waitForResult()
}

// Stop halts all job goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Running reports whether the poller has been started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger requests an immediate run of the named job. Unknown names are
// ignored.
func (p *Poller) Trigger(name string) {
	p.mu.Lock()
	ch, ok := p.triggers[name]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// A run is already pending.
	}
}

// GetStatuses returns the current status of every job in registration order.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.jobs))
	for _, j := range p.jobs {
		statuses = append(statuses, *p.statuses[j.Name])
	}
	return statuses
}

// pollJob runs the loop for a single job.
func (p *Poller) pollJob(job Job, trigger <-chan struct{}, stop <-chan struct{}) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.runJob(job)
		case <-trigger:
			p.runJob(job)
		}
	}
}

// runJob performs a single run and reports it on the result channel.
func (p *Poller) runJob(job Job) {
	p.setStatus(job.Name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	err := job.Run(ctx)
	if err != nil {
		p.setStatus(job.Name, SyncError, err)
		p.log.WithError(err).WithField("job", job.Name).Warn("background refresh failed")
		p.sendResult(SyncResultMsg{
			Job:          job.Name,
			Error:        err,
			Unauthorized: api.IsUnauthorized(err),
		})
		return
	}

	p.setStatus(job.Name, SyncIdle, nil)
	p.sendResult(SyncResultMsg{Job: job.Name})
}

// setStatus updates the status of a job.
func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-p.resultCh
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next job result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
