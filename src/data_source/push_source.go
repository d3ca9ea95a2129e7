package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"runtime-observer/src/logger"
	"runtime-observer/src/models"
)

// ErrSourceNotRunning is returned by Submit before Start or after Stop.
var ErrSourceNotRunning = errors.New("push source is not running")

// PushSnapshotSource forwards snapshots submitted by the REST API into the
// same fan-in channel the polling and NATS sources use.
type PushSnapshotSource struct {
	name   string
	Logger *logger.Logger
	Now    func() time.Time

	mu         sync.RWMutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	outputChan chan<- models.MSnapshot
}

// -----------------------------------------------------------------------------

func NewPushSnapshotSource(name string, log *logger.Logger) *PushSnapshotSource {
	return &PushSnapshotSource{name: name, Logger: log.Named(name), Now: time.Now}
}

func (s *PushSnapshotSource) Name() string {
	return s.name
}

func (s *PushSnapshotSource) IsRealTime() bool {
	return true
}

// -----------------------------------------------------------------------------

func (s *PushSnapshotSource) Start(parentCtx context.Context, outputChan chan<- models.MSnapshot, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("source %s is already running", s.name)
	}
	s.ctx, s.cancelFunc = context.WithCancel(parentCtx)
	s.outputChan = outputChan

	ctx := s.ctx
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.mu.Lock()
		s.ctx, s.cancelFunc, s.outputChan = nil, nil, nil
		s.mu.Unlock()
	}()
	return nil
}

func (s *PushSnapshotSource) Stop() error {
	s.mu.RLock()
	cancel := s.cancelFunc
	s.mu.RUnlock()

	if cancel == nil {
		return fmt.Errorf("source %s is not running", s.name)
	}
	cancel()
	return nil
}

// -----------------------------------------------------------------------------

// Submit queues a snapshot, waiting while the queue is full until ctx is done.
func (s *PushSnapshotSource) Submit(ctx context.Context, snap models.MSnapshot) error {
	s.mu.RLock()
	runCtx, out := s.ctx, s.outputChan
	s.mu.RUnlock()

	if runCtx == nil {
		return ErrSourceNotRunning
	}
	if snap.Source == "" {
		snap.Source = s.name
	}
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = s.Now().UTC()
	}

	select {
	case out <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-runCtx.Done():
		return ErrSourceNotRunning
	}
}
