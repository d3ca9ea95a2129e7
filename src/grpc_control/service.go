package grpc_control

import (
	"context"
	"fmt"

	"runtime-observer/src/config"
	datasource "runtime-observer/src/data_source"
	"runtime-observer/src/interfaces"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlServiceName is the fully qualified gRPC service name.
const ControlServiceName = "runtime_observer.Control"

// ControlServer is the source management API. Requests and responses are
// google.protobuf.Struct so no generated stubs are needed.
type ControlServer interface {
	ListSources(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AddSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateStrategies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ControlService implements ControlServer on top of the MultiSourceManager
type ControlService struct {
	Config         *config.Config
	DataSource     *datasource.MultiSourceManager
	ConfigPath     string
	Logger         *logger.Logger
	NetworkManager interfaces.INetworkManager
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	cfg *config.Config,
	ds *datasource.MultiSourceManager,
	cfgPath string,
	log *logger.Logger,
	netMgr interfaces.INetworkManager,
) *ControlService {
	return &ControlService{
		Config:         cfg,
		DataSource:     ds,
		ConfigPath:     cfgPath,
		Logger:         log,
		NetworkManager: netMgr,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSources(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	sources := make([]any, 0)
	for _, name := range s.DataSource.SourceNames() {
		src, err := s.DataSource.GetSource(name)
		if err != nil {
			continue
		}
		sources = append(sources, map[string]any{
			"name":         src.Name(),
			"type":         sourceType(src),
			"is_real_time": src.IsRealTime(),
		})
	}
	return structpb.NewStruct(map[string]any{"sources": sources})
}

func sourceType(src interfaces.ISnapshotSource) string {
	switch src.(type) {
	case *datasource.HTTPSnapshotSource:
		return models.SourceTypeHTTP
	case *datasource.NATSSnapshotSource:
		return models.SourceTypeNATS
	case *datasource.PushSnapshotSource:
		return "push"
	}
	return "unknown"
}

// -----------------------------------------------------------------------------

func (s *ControlService) AddSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sourceCfg := models.MSourceConfig{
		Name:                  stringField(req, "name"),
		Type:                  stringField(req, "type"),
		Endpoint:              stringField(req, "endpoint"),
		Strategies:            listField(req, "strategies"),
		Symbols:               listField(req, "symbols"),
		UpdateIntervalSeconds: int(req.GetFields()["update_interval_seconds"].GetNumberValue()),
		MarketHoursOnly:       req.GetFields()["market_hours_only"].GetBoolValue(),
	}
	if sourceCfg.Name == "" || sourceCfg.Type == "" {
		return nil, status.Error(codes.InvalidArgument, "name and type are required")
	}
	if _, err := s.DataSource.GetSource(sourceCfg.Name); err == nil {
		return nil, status.Errorf(codes.AlreadyExists, "source %s already exists", sourceCfg.Name)
	}
	if sourceCfg.Type == models.SourceTypeHTTP && (sourceCfg.Endpoint == "" || len(sourceCfg.Strategies) == 0) {
		return nil, status.Error(codes.InvalidArgument, "http sources need an endpoint and strategies")
	}

	newSource, err := datasource.NewSource(s.Config.MConfig, sourceCfg, s.NetworkManager, s.Logger)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.DataSource.AddSource(newSource); err != nil {
		s.Logger.Error("Failed to add source: %v", err)
		return response(false, fmt.Sprintf("Failed to add source: %v", err), "stopped")
	}

	s.Config.Sources = append(s.Config.Sources, sourceCfg)
	s.persist()

	return response(true, fmt.Sprintf("Added source %s", sourceCfg.Name), "running")
}

// -----------------------------------------------------------------------------

func (s *ControlService) RemoveSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "name")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	if err := s.DataSource.RemoveSource(name); err != nil {
		return response(false, fmt.Sprintf("Failed to remove source: %v", err), "unknown")
	}

	kept := []models.MSourceConfig{}
	for _, src := range s.Config.Sources {
		if src.Name != name {
			kept = append(kept, src)
		}
	}
	s.Config.Sources = kept
	s.persist()

	return response(true, fmt.Sprintf("Removed source %s", name), "removed")
}

// -----------------------------------------------------------------------------

// UpdateStrategies swaps the strategy list of an HTTP poller
func (s *ControlService) UpdateStrategies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "name")
	strategies := listField(req, "strategies")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	if len(strategies) == 0 {
		return nil, status.Error(codes.InvalidArgument, "strategies list cannot be empty")
	}

	source, err := s.DataSource.GetSource(name)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "source %s not found", name)
	}
	poller, ok := source.(*datasource.HTTPSnapshotSource)
	if !ok {
		return nil, status.Errorf(codes.FailedPrecondition, "source %s does not poll strategies", name)
	}
	poller.UpdateStrategies(strategies)

	for i := range s.Config.Sources {
		if s.Config.Sources[i].Name == name {
			s.Config.Sources[i].Strategies = strategies
		}
	}
	s.persist()

	s.Logger.Info("gRPC: UpdateStrategies success for %s. Count: %d", name, len(strategies))
	return response(true, fmt.Sprintf("Successfully updated %s with %d strategies", name, len(strategies)), "running")
}

// -----------------------------------------------------------------------------

func (s *ControlService) persist() {
	if s.ConfigPath == "" {
		return
	}
	if err := s.Config.Save(s.ConfigPath); err != nil {
		s.Logger.Error("gRPC: failed to save config: %v", err)
	}
}

func response(success bool, message, state string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"success":       success,
		"message":       message,
		"current_state": state,
	})
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func listField(req *structpb.Struct, key string) []string {
	var out []string
	for _, v := range req.GetFields()[key].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Service registration
// -----------------------------------------------------------------------------

func RegisterControlServer(registrar grpc.ServiceRegistrar, srv ControlServer) {
	registrar.RegisterService(&controlServiceDesc, srv)
}

func structHandler(call func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ControlServiceName + "/" + method}
		return interceptor(ctx, in, info, handler)
	}
}

func listSourcesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).ListSources(ctx, req.(*emptypb.Empty))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ControlServiceName + "/ListSources"}
	return interceptor(ctx, in, info, handler)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSources", Handler: listSourcesHandler},
		{MethodName: "AddSource", Handler: structHandler(ControlServer.AddSource, "AddSource")},
		{MethodName: "RemoveSource", Handler: structHandler(ControlServer.RemoveSource, "RemoveSource")},
		{MethodName: "UpdateStrategies", Handler: structHandler(ControlServer.UpdateStrategies, "UpdateStrategies")},
	},
	Streams: []grpc.StreamDesc{},
}
