// Package scheduler runs the polling jobs of the bot on a cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	bot_errors "github.com/PancyStudios/PancyCommunityGo/pkg/errors"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/robfig/cron/v3"
)

// JobFunc is a polled task. The context is cancelled when the scheduler stops.
type JobFunc func(ctx context.Context)

// Scheduler wraps a cron instance. A job never overlaps with its own previous run.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	jobs   map[string]cron.EntryID
}

// New creates a stopped scheduler. Schedules are evaluated in UTC.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Every registers fn to run each interval
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) error {
	return s.Add(name, fmt.Sprintf("@every %s", interval), fn)
}

// Add registers fn with a cron spec such as "* * * * *" or "@every 5m"
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("la tarea %q ya está registrada", name)
	}

	id, err := s.cron.AddFunc(spec, func() {
		defer bot_errors.RecoverMiddleware()()
		start := time.Now()
		fn(s.ctx)
		logger.Debug(fmt.Sprintf("Tarea '%s' completada en %v", name, time.Since(start)), "Scheduler")
	})
	if err != nil {
		return fmt.Errorf("tarea %q: %w", name, err)
	}

	s.jobs[name] = id
	logger.System(fmt.Sprintf("Tarea '%s' programada (%s)", name, spec), "Scheduler")
	return nil
}

// RunNow executes a registered job synchronously
func (s *Scheduler) RunNow(name string) bool {
	s.mu.Lock()
	id, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return false
	}
	s.cron.Entry(id).WrappedJob.Run()
	return true
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Success("Planificador iniciado", "Scheduler")
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Warn("Planificador detenido", "Scheduler")
}
