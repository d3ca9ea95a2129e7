package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/network"
	"runtime-observer/src/serializers"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(nil, "test")
}

func newPoller(t *testing.T, endpoint string, strategies ...string) (*HTTPSnapshotSource, chan models.MSnapshot) {
	t.Helper()
	cfg := &models.MConfig{Network: models.MNetworkConfig{RequestTimeout: 2}}
	src := NewHTTPSnapshotSource(models.MSourceConfig{
		Name:                  "gateway",
		Type:                  models.SourceTypeHTTP,
		Endpoint:              endpoint,
		Strategies:            strategies,
		UpdateIntervalSeconds: 1,
	}, network.NewAsyncNetworkManager(cfg, testLogger()), testLogger())
	out := make(chan models.MSnapshot, 8)
	src.outputChan = out
	return src, out
}

func TestHTTPPollOnceDeduplicates(t *testing.T) {
	t.Parallel()

	var version atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		strategy := r.URL.Query().Get("strategy")
		_, _ = w.Write([]byte(`{"strategy":"` + strategy + `","version":` + string(rune('0'+version.Load())) + `}`))
	}))
	defer srv.Close()

	src, out := newPoller(t, srv.URL, "alpha", "beta")
	ctx := context.Background()

	if err := src.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("first poll should emit both strategies, got %d", len(out))
	}
	first := <-out
	if first.StrategyID != "alpha" || first.Source != "gateway" {
		t.Fatalf("unexpected snapshot %+v", first)
	}
	if payload, ok := first.Payload.(map[string]any); !ok || payload["strategy"] != "alpha" {
		t.Fatalf("payload = %#v", first.Payload)
	}
	<-out

	if err := src.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("unchanged bodies must not be re-emitted, got %d", len(out))
	}

	version.Store(1)
	if err := src.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("changed bodies should be emitted again, got %d", len(out))
	}
}

func TestHTTPEndpointPlaceholder(t *testing.T) {
	t.Parallel()

	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	src, out := newPoller(t, srv.URL+"/runtime/{strategy}/snapshot", "gamma")
	if err := src.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if got := path.Load(); got != "/runtime/gamma/snapshot" {
		t.Fatalf("requested path = %v", got)
	}
	if len(out) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(out))
	}
}

func TestHTTPPollSkipsUndecodableBodies(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	src, out := newPoller(t, srv.URL, "alpha")
	if err := src.PollOnce(context.Background()); err != nil {
		t.Fatalf("decode failures are not fatal: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("nothing should be emitted")
	}
}

func TestNATSDecodeMessage(t *testing.T) {
	t.Parallel()

	src := NewNATSSnapshotSource(models.MSourceConfig{Name: "bus", Type: models.SourceTypeNATS},
		models.MNatsConfig{Subject: "runtime.snapshots"}, testLogger())
	src.Now = func() time.Time { return time.Unix(1700000000, 0) }

	snap, err := src.decodeMessage("runtime.snapshots.alpha", "", []byte(`{"summary":{"status":"ok"}}`))
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if snap.StrategyID != "alpha" || snap.Source != "bus" || snap.ReceivedAt.Unix() != 1700000000 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	snap, err = src.decodeMessage("runtime.snapshots.any", "", []byte(`{"strategyId":"beta"}`))
	if err != nil || snap.StrategyID != "beta" {
		t.Fatalf("payload strategy id should win: %+v, %v", snap, err)
	}

	data, err := serializers.NewProtoStructSerializer().Marshal(map[string]any{"strategy_id": "delta"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	snap, err = src.decodeMessage("runtime.snapshots.x", serializers.ContentTypeProtobuf, data)
	if err != nil || snap.StrategyID != "delta" {
		t.Fatalf("protobuf payload: %+v, %v", snap, err)
	}

	if _, err := src.decodeMessage("runtime.snapshots.alpha", "", []byte(`{`)); err == nil {
		t.Fatalf("broken payload should fail")
	}
}

// -----------------------------------------------------------------------------

type fakeSource struct {
	name    string
	started atomic.Int32
	stopped atomic.Int32
}

func (f *fakeSource) Name() string     { return f.name }
func (f *fakeSource) IsRealTime() bool { return true }
func (f *fakeSource) Stop() error      { f.stopped.Add(1); return nil }

func (f *fakeSource) Start(ctx context.Context, out chan<- models.MSnapshot, wg *sync.WaitGroup) error {
	f.started.Add(1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case out <- models.MSnapshot{StrategyID: f.name}:
		case <-ctx.Done():
		}
		<-ctx.Done()
	}()
	return nil
}

func TestMultiSourceManagerLifecycle(t *testing.T) {
	t.Parallel()

	a, b := &fakeSource{name: "a"}, &fakeSource{name: "b"}
	m := NewMultiSourceManager(nil, testLogger())
	if err := m.AddSource(a); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if err := m.AddSource(&fakeSource{name: "a"}); err == nil {
		t.Fatalf("duplicate names must be rejected")
	}

	out := make(chan models.MSnapshot, 4)
	var wg sync.WaitGroup
	if err := m.Start(context.Background(), out, &wg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background(), out, &wg); err == nil {
		t.Fatalf("second Start must fail")
	}
	if err := m.AddSource(b); err != nil {
		t.Fatalf("AddSource while running: %v", err)
	}
	if a.started.Load() != 1 || b.started.Load() != 1 || !m.IsRealTime() {
		t.Fatalf("sources not started")
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[(<-out).StrategyID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("fan-in missed a source: %v", seen)
	}

	if err := m.RemoveSource("b"); err != nil || b.stopped.Load() != 1 {
		t.Fatalf("RemoveSource: %v", err)
	}
	if names := m.SourceNames(); len(names) != 1 || names[0] != "a" {
		t.Fatalf("SourceNames = %v", names)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	wg.Wait()
}

func TestNewSources(t *testing.T) {
	t.Parallel()

	cfg := &models.MConfig{
		Network: models.MNetworkConfig{RequestTimeout: 1},
		Nats:    models.MNatsConfig{Servers: []string{"nats://127.0.0.1:4222"}, Subject: "runtime"},
		Sources: []models.MSourceConfig{
			{Name: "gw", Type: models.SourceTypeHTTP, Endpoint: "http://x", Strategies: []string{"a"}},
			{Name: "bus", Type: models.SourceTypeNATS},
		},
	}
	netMgr := network.NewAsyncNetworkManager(cfg, testLogger())
	sources, err := NewSources(cfg, netMgr, testLogger())
	if err != nil {
		t.Fatalf("NewSources: %v", err)
	}
	if sources[0].IsRealTime() || !sources[1].IsRealTime() {
		t.Fatalf("unexpected source kinds")
	}

	cfg.Sources = append(cfg.Sources, models.MSourceConfig{Name: "ftp", Type: "ftp"})
	if _, err := NewSources(cfg, netMgr, testLogger()); err == nil {
		t.Fatalf("unknown type should fail")
	}
}

func TestPushSourceSubmit(t *testing.T) {
	t.Parallel()

	src := NewPushSnapshotSource("rest", testLogger())
	if err := src.Submit(context.Background(), models.MSnapshot{StrategyID: "a"}); err != ErrSourceNotRunning {
		t.Fatalf("Submit before Start = %v", err)
	}

	out := make(chan models.MSnapshot, 1)
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx, out, &wg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Submit(context.Background(), models.MSnapshot{StrategyID: "a"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := <-out
	if snap.Source != "rest" || snap.ReceivedAt.IsZero() {
		t.Fatalf("submitted snapshot not stamped: %+v", snap)
	}

	out <- models.MSnapshot{}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	if err := src.Submit(waitCtx, models.MSnapshot{StrategyID: "b"}); err == nil {
		t.Fatalf("a full queue should time out")
	}

	cancel()
	wg.Wait()
	if err := src.Submit(context.Background(), models.MSnapshot{StrategyID: "c"}); err != ErrSourceNotRunning {
		t.Fatalf("Submit after stop = %v", err)
	}
}
