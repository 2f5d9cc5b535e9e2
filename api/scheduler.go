/*
scheduler.go - Periodic SLA escalation of review cases

PURPOSE:
  Sweeps the review queue on a cron schedule and escalates every open case
  whose SLA deadline has passed. Escalation raises the priority one tier
  and restarts the SLA, so a case that keeps slipping climbs to high.

DESIGN:
  - Runs a background goroutine that sleeps until the next cron time
  - The schedule is a standard 5-field cron expression evaluated in the
    configured timezone
  - A sweep that fails is logged; the next one runs on schedule

CONFIGURATION:
  - scheduler.sla_monitor: cron spec, empty disables the monitor
  - scheduler.timezone:    where the cron spec is evaluated

USAGE:
  monitor, err := NewSLAMonitor(queue, "0 * * * *", time.UTC, log)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: POST /api/reviews/escalate (manual sweep)
  - compliance/review.go: ReviewQueue.EscalateOverdue
*/
package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/wage-compliance/compliance"
)

// SLAMonitor escalates overdue review cases on a schedule.
type SLAMonitor struct {
	Queue   *compliance.ReviewQueue
	Enabled bool

	schedule cron.Schedule
	spec     string
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time

	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSLAMonitor parses spec and builds a monitor. An empty spec yields a
// disabled monitor whose Start does nothing.
func NewSLAMonitor(queue *compliance.ReviewQueue, spec string, loc *time.Location, log *zap.Logger) (*SLAMonitor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	m := &SLAMonitor{Queue: queue, spec: strings.TrimSpace(spec), loc: loc, log: log, now: time.Now}
	if m.spec == "" {
		return m, nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(m.spec)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA monitor schedule '%s': %w", m.spec, err)
	}
	m.schedule = sched
	m.Enabled = true
	return m, nil
}

// Start begins the monitor.
func (m *SLAMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		m.log.Info("SLA monitor disabled, not starting")
		return
	}
	if m.running {
		return
	}
	m.stop = make(chan struct{})
	m.running = true
	m.wg.Add(1)

	go m.run()

	m.log.Info("SLA monitor started", zap.String("schedule", m.spec), zap.String("timezone", m.loc.String()))
}

// Stop stops the monitor and waits for a sweep in progress to finish.
func (m *SLAMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	close(m.stop)
	m.wg.Wait()
	m.running = false
	m.log.Info("SLA monitor stopped")
}

func (m *SLAMonitor) run() {
	defer m.wg.Done()

	for {
		next := m.NextRun()
		wait := time.Until(next)
		m.log.Debug("next SLA sweep", zap.Time("at", next), zap.Duration("in", wait.Round(time.Second)))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			m.RunNow(ctx)
			cancel()
		case <-m.stop:
			timer.Stop()
			return
		}
	}
}

// RunNow performs one sweep and returns how many cases were escalated.
func (m *SLAMonitor) RunNow(ctx context.Context) int {
	escalated, err := m.Queue.EscalateOverdue(ctx)
	if err != nil {
		m.log.Error("SLA sweep failed", zap.Int("escalated", len(escalated)), zap.Error(err))
		return len(escalated)
	}
	if len(escalated) > 0 {
		ids := make([]string, 0, len(escalated))
		for _, s := range escalated {
			ids = append(ids, string(s.Case.ID))
		}
		m.log.Warn("overdue review cases escalated", zap.Int("count", len(ids)), zap.Strings("case_ids", ids))
	}
	return len(escalated)
}

// NextRun returns when the next sweep will occur. Zero when disabled.
func (m *SLAMonitor) NextRun() time.Time {
	if m.schedule == nil {
		return time.Time{}
	}
	return m.schedule.Next(m.now().In(m.loc))
}
