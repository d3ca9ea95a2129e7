package grpc_control

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"runtime-observer/src/config"
	datasource "runtime-observer/src/data_source"
	"runtime-observer/src/interfaces"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/network"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func startService(t *testing.T, healthy func() bool) (*GRPCService, *grpc.ClientConn, *datasource.MultiSourceManager) {
	t.Helper()
	log := logger.NewLogger(nil, "test")
	cfg := &config.Config{MConfig: &models.MConfig{Network: models.MNetworkConfig{RequestTimeout: 1}}}
	manager := datasource.NewMultiSourceManager(
		[]interfaces.ISnapshotSource{datasource.NewPushSnapshotSource("rest", log)}, log)
	control := NewControlService(cfg, manager, "", log, network.NewAsyncNetworkManager(cfg.MConfig, log))

	lis := bufconn.Listen(1 << 20)
	svc := NewGRPCServiceOn(lis, control, healthy, log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return svc, conn, manager
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, in any) (*structpb.Struct, error) {
	t.Helper()
	out := new(structpb.Struct)
	err := conn.Invoke(context.Background(), "/"+ControlServiceName+"/"+method, in, out)
	return out, err
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestHealthMirrorsObserver(t *testing.T) {
	t.Parallel()

	var ok atomic.Bool
	ok.Store(true)
	svc, conn, _ := startService(t, ok.Load)
	client := grpc_health_v1.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("Check = %v, %v", resp.GetStatus(), err)
	}

	ok.Store(false)
	svc.updateHealth()
	resp, err = client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ControlServiceName})
	if err != nil || resp.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("Check after failure = %v, %v", resp.GetStatus(), err)
	}
}

func TestControlSourceLifecycle(t *testing.T) {
	t.Parallel()

	_, conn, manager := startService(t, nil)

	list, err := invoke(t, conn, "ListSources", &emptypb.Empty{})
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	sources := list.GetFields()["sources"].GetListValue().GetValues()
	if len(sources) != 1 || sources[0].GetStructValue().GetFields()["type"].GetStringValue() != "push" {
		t.Fatalf("sources = %v", sources)
	}

	add := mustStruct(t, map[string]any{
		"name":                    "gw",
		"type":                    "http",
		"endpoint":                "http://127.0.0.1:1/runtime",
		"strategies":              []any{"alpha"},
		"update_interval_seconds": 5,
	})
	resp, err := invoke(t, conn, "AddSource", add)
	if err != nil || !resp.GetFields()["success"].GetBoolValue() {
		t.Fatalf("AddSource = %v, %v", resp, err)
	}
	if _, err := invoke(t, conn, "AddSource", add); status.Code(err) != codes.AlreadyExists {
		t.Fatalf("duplicate AddSource = %v", err)
	}
	if _, err := invoke(t, conn, "AddSource", mustStruct(t, map[string]any{"name": "x"})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("incomplete AddSource = %v", err)
	}

	update := mustStruct(t, map[string]any{"name": "gw", "strategies": []any{"alpha", "beta"}})
	if resp, err := invoke(t, conn, "UpdateStrategies", update); err != nil || !resp.GetFields()["success"].GetBoolValue() {
		t.Fatalf("UpdateStrategies = %v, %v", resp, err)
	}
	if _, err := invoke(t, conn, "UpdateStrategies", mustStruct(t, map[string]any{"name": "rest", "strategies": []any{"a"}})); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("push sources have no strategy list: %v", err)
	}

	if resp, err := invoke(t, conn, "RemoveSource", mustStruct(t, map[string]any{"name": "gw"})); err != nil || !resp.GetFields()["success"].GetBoolValue() {
		t.Fatalf("RemoveSource = %v, %v", resp, err)
	}
	if names := manager.SourceNames(); len(names) != 1 || names[0] != "rest" {
		t.Fatalf("remaining sources = %v", names)
	}
}
