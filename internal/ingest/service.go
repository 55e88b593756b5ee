package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("ingest run already in progress elsewhere")

// Runner is satisfied by Coordinator.
type Runner interface {
	Run(ctx context.Context) (RunOutcome, error)
}

// RunLock excludes concurrent runs across processes. TryRun reports false
// without calling run when the lock is held elsewhere.
type RunLock interface {
	TryRun(ctx context.Context, run func(ctx context.Context) error) (bool, error)
}

// Service coalesces concurrent run requests so that at most one ingest run is
// in flight per process, and per deployment when a RunLock is set.
type Service struct {
	runner   Runner
	lock     RunLock
	lifetime context.Context
	group    singleflight.Group

	mu   sync.RWMutex
	last *RunOutcome
}

type ServiceOption func(*Service)

func WithRunLock(lock RunLock) ServiceOption {
	return func(s *Service) { s.lock = lock }
}

// WithLifetime bounds every run by ctx. Runs never stop because a single
// caller went away; they stop when ctx is done.
func WithLifetime(ctx context.Context) ServiceOption {
	return func(s *Service) { s.lifetime = ctx }
}

func NewService(runner Runner, opts ...ServiceOption) *Service {
	s := &Service{runner: runner, lifetime: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger starts a run, or joins the one already in progress. Joined callers
// receive the shared outcome. A caller whose ctx ends first gets ctx.Err()
// while the run carries on for everyone else.
func (s *Service) Trigger(ctx context.Context, reason string) (RunOutcome, error) {
	ch := s.group.DoChan("ingest", func() (interface{}, error) {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(s.lifetime, cancel)
		defer stop()

		log.Info("Ingest run starting", "reason", reason)
		outcome, err := s.run(runCtx)
		if err == nil {
			s.mu.Lock()
			s.last = &outcome
			s.mu.Unlock()
		}
		return outcome, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debug("Ingest trigger joined running ingest", "reason", reason)
		}
		outcome, _ := res.Val.(RunOutcome)
		return outcome, res.Err
	case <-ctx.Done():
		log.Warn("Ingest trigger abandoned, run continues", "reason", reason, "error", ctx.Err())
		return RunOutcome{}, ctx.Err()
	}
}

func (s *Service) run(ctx context.Context) (RunOutcome, error) {
	if s.lock == nil {
		return s.runner.Run(ctx)
	}

	var outcome RunOutcome
	acquired, err := s.lock.TryRun(ctx, func(lockCtx context.Context) error {
		var runErr error
		outcome, runErr = s.runner.Run(lockCtx)
		return runErr
	})
	if err != nil {
		return outcome, err
	}
	if !acquired {
		return RunOutcome{}, ErrRunInProgress
	}
	return outcome, nil
}

// LastOutcome returns the most recent successful run, if any.
func (s *Service) LastOutcome() (RunOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunOutcome{}, false
	}
	return *s.last, true
}
