package datasource

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"runtime-observer/src/interfaces"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/serializers"
	"runtime-observer/src/utils"
)

// strategyPlaceholder in an endpoint is replaced by the strategy id; otherwise
// the id is sent as the "strategy" query parameter.
const strategyPlaceholder = "{strategy}"

// HTTPSnapshotSource polls a strategy runtime endpoint for each configured strategy.
type HTTPSnapshotSource struct {
	SourceConfig    models.MSourceConfig
	Network         interfaces.INetworkManager
	Serializer      interfaces.ISerializer
	Logger          *logger.Logger
	MarketScheduler *utils.MarketScheduler
	Now             func() time.Time

	strategies atomic.Value // []string
	lastHashes map[string]uint64
	cancelFunc context.CancelFunc
	ctx        context.Context
	outputChan chan<- models.MSnapshot
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewHTTPSnapshotSource(sourceCfg models.MSourceConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *HTTPSnapshotSource {
	named := log.Named(sourceCfg.Name)
	s := &HTTPSnapshotSource{
		SourceConfig: sourceCfg,
		Network:      netMgr,
		Serializer:   serializers.NewJSONSerializer(),
		Logger:       named,
		Now:          time.Now,
		lastHashes:   make(map[string]uint64),
	}
	if sourceCfg.MarketHoursOnly {
		s.MarketScheduler = utils.NewMarketScheduler(sourceCfg.Symbols, named.Named("market"))
	}
	s.strategies.Store(append([]string(nil), sourceCfg.Strategies...))
	return s
}

// -----------------------------------------------------------------------------

func (s *HTTPSnapshotSource) Name() string {
	return s.SourceConfig.Name
}

// IsRealTime returns false because the endpoint is polled on an interval
func (s *HTTPSnapshotSource) IsRealTime() bool {
	return false
}

// -----------------------------------------------------------------------------

// UpdateStrategies swaps the polled strategy list
func (s *HTTPSnapshotSource) UpdateStrategies(strategies []string) {
	s.strategies.Store(append([]string(nil), strategies...))
	s.Logger.Info("Updated strategy list. New count: %d", len(strategies))
}

func (s *HTTPSnapshotSource) getStrategies() []string {
	return s.strategies.Load().([]string)
}

// -----------------------------------------------------------------------------

// Start begins the polling loop
func (s *HTTPSnapshotSource) Start(parentCtx context.Context, outputChan chan<- models.MSnapshot, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.ctx = ctx
	s.outputChan = outputChan
	s.isRunning.Store(true)

	wg.Add(1)
	go s.runLoop(ctx, wg)
	s.Logger.Info("Started HTTP snapshot source: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (s *HTTPSnapshotSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	s.Logger.Info("Stopped HTTP snapshot source: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

func (s *HTTPSnapshotSource) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer s.isRunning.Store(false)

	ticker := time.NewTicker(utils.PollInterval(s.SourceConfig.UpdateIntervalSeconds))
	defer ticker.Stop()

	for {
		if s.MarketScheduler != nil && !s.MarketScheduler.AnyMarketOpen() {
			s.Logger.Info("All markets are closed. Pausing for %v...", utils.ClosedMarketPause)
			select {
			case <-time.After(utils.ClosedMarketPause):
				continue
			case <-ctx.Done():
				return
			}
		}

		if err := s.PollOnce(ctx); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// -----------------------------------------------------------------------------

// PollOnce fetches every strategy once and pushes the snapshots that changed.
// It only returns an error when the context is done.
func (s *HTTPSnapshotSource) PollOnce(ctx context.Context) error {
	for _, strategy := range s.getStrategies() {
		if err := ctx.Err(); err != nil {
			return err
		}

		url, params := s.requestFor(strategy)
		body, err := s.Network.Get(ctx, url, params)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Logger.Warning("Error fetching snapshot for %s: %v", strategy, err)
			continue
		}

		if !s.changed(strategy, body) {
			continue
		}

		payload, err := serializers.DecodeSnapshot(s.Serializer, body)
		if err != nil {
			s.Logger.Warning("Discarding snapshot for %s: %v", strategy, err)
			continue
		}

		snap := models.MSnapshot{
			StrategyID: strategy,
			Source:     s.Name(),
			ReceivedAt: s.Now().UTC(),
			Payload:    payload,
		}
		if err := s.push(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

func (s *HTTPSnapshotSource) requestFor(strategy string) (string, map[string]string) {
	endpoint := s.SourceConfig.Endpoint
	if strings.Contains(endpoint, strategyPlaceholder) {
		return strings.ReplaceAll(endpoint, strategyPlaceholder, strategy), nil
	}
	return endpoint, map[string]string{"strategy": strategy}
}

// changed records the body hash and reports whether it differs from the last poll.
func (s *HTTPSnapshotSource) changed(strategy string, body []byte) bool {
	h := fnv.New64a()
	_, _ = h.Write(body)
	sum := h.Sum64()

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.lastHashes[strategy]; ok && prev == sum {
		return false
	}
	s.lastHashes[strategy] = sum
	return true
}

// -----------------------------------------------------------------------------

func (s *HTTPSnapshotSource) push(ctx context.Context, snap models.MSnapshot) error {
	select {
	case s.outputChan <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
