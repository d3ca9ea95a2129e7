package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
	"runtime-observer/src/serializers"

	"github.com/nats-io/nats.go"
)

var strategyIDKeys = []string{"strategy_id", "strategyId"}

// NATSSnapshotSource subscribes to "<subject>.>" and turns every message into a snapshot.
type NATSSnapshotSource struct {
	SourceConfig models.MSourceConfig
	NatsConfig   models.MNatsConfig
	Logger       *logger.Logger
	Now          func() time.Time

	nc         *nats.Conn
	sub        *nats.Subscription
	ctx        context.Context
	cancelFunc context.CancelFunc
	outputChan chan<- models.MSnapshot
	connected  atomic.Bool
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewNATSSnapshotSource(sourceCfg models.MSourceConfig, natsCfg models.MNatsConfig, log *logger.Logger) *NATSSnapshotSource {
	return &NATSSnapshotSource{
		SourceConfig: sourceCfg,
		NatsConfig:   natsCfg,
		Logger:       log.Named(sourceCfg.Name),
		Now:          time.Now,
	}
}

// -----------------------------------------------------------------------------

func (s *NATSSnapshotSource) Name() string {
	return s.SourceConfig.Name
}

// IsRealTime returns true, snapshots are pushed by the strategies
func (s *NATSSnapshotSource) IsRealTime() bool {
	return true
}

// IsConnected reports the current NATS connection state
func (s *NATSSnapshotSource) IsConnected() bool {
	return s.connected.Load()
}

// -----------------------------------------------------------------------------

func (s *NATSSnapshotSource) connect() error {
	cfg := s.NatsConfig
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "runtime-observer-" + s.Name()
	}

	opts := []nats.Option{
		nats.Name(clientID),
		nats.RetryOnFailedConnect(true),
		nats.ClosedHandler(func(nc *nats.Conn) {
			s.Logger.Warning("NATS connection closed")
			s.connected.Store(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			s.Logger.Warning("NATS disconnected, attempting reconnect: %v", err)
			s.connected.Store(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.Logger.Info("NATS successfully reconnected to %s", nc.ConnectedUrl())
			s.connected.Store(true)
		}),
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(time.Duration(cfg.ConnectTimeout)*time.Second))
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second))
	}
	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}

	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	s.nc = nc
	s.connected.Store(nc.IsConnected())
	return nil
}

// -----------------------------------------------------------------------------

// Start connects and subscribes. Messages are forwarded until ctx is done.
func (s *NATSSnapshotSource) Start(parentCtx context.Context, outputChan chan<- models.MSnapshot, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	if err := s.connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancelFunc = cancel
	s.outputChan = outputChan

	subject := s.NatsConfig.Subject + ".>"
	sub, err := s.nc.Subscribe(subject, s.handleMessage)
	if err != nil {
		cancel()
		s.nc.Close()
		return fmt.Errorf("nats subscribe %s failed: %w", subject, err)
	}
	s.sub = sub
	s.isRunning.Store(true)
	s.Logger.Info("Subscribed to %s", subject)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.shutdown()
	}()
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels this source only; the shutdown goroutine drains the connection
func (s *NATSSnapshotSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	return nil
}

func (s *NATSSnapshotSource) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
		s.nc = nil
	}
	s.isRunning.Store(false)
	s.connected.Store(false)
	s.Logger.Info("Stopped NATS snapshot source: %s", s.Name())
}

// -----------------------------------------------------------------------------

func (s *NATSSnapshotSource) handleMessage(msg *nats.Msg) {
	snap, err := s.decodeMessage(msg.Subject, msg.Header.Get("Content-Type"), msg.Data)
	if err != nil {
		s.Logger.Warning("Discarding message on %s: %v", msg.Subject, err)
		return
	}

	select {
	case s.outputChan <- snap:
	case <-s.ctx.Done():
	}
}

// decodeMessage picks the codec from the Content-Type header and resolves the
// strategy id from the payload, falling back to the last subject token.
func (s *NATSSnapshotSource) decodeMessage(subject, contentType string, data []byte) (models.MSnapshot, error) {
	payload, err := serializers.DecodeSnapshot(serializers.ForContentType(contentType), data)
	if err != nil {
		return models.MSnapshot{}, err
	}

	strategy := subject[strings.LastIndex(subject, ".")+1:]
	if record, ok := core.AsMap(payload); ok {
		if id, ok := core.PickString(core.Field(record, strategyIDKeys...)...); ok {
			strategy = id
		}
	}
	if strategy == "" || strategy == ">" || strategy == "*" {
		return models.MSnapshot{}, fmt.Errorf("no strategy id in subject %q or payload", subject)
	}

	return models.MSnapshot{
		StrategyID: strategy,
		Source:     s.Name(),
		ReceivedAt: s.Now().UTC(),
		Payload:    payload,
	}, nil
}
