package datasource

import (
	"fmt"

	"runtime-observer/src/interfaces"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"
)

// -----------------------------------------------------------------------------

// NewSource creates the snapshot source described by one config entry.
func NewSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, netMgr interfaces.INetworkManager, log *logger.Logger) (interfaces.ISnapshotSource, error) {
	switch sourceCfg.Type {
	case models.SourceTypeHTTP, "":
		return NewHTTPSnapshotSource(sourceCfg, netMgr, log), nil
	case models.SourceTypeNATS:
		return NewNATSSnapshotSource(sourceCfg, cfg.Nats, log), nil
	}
	return nil, fmt.Errorf("unknown source type %q for source %s", sourceCfg.Type, sourceCfg.Name)
}

// -----------------------------------------------------------------------------

// NewSources builds every configured source, failing on the first bad entry.
func NewSources(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) ([]interfaces.ISnapshotSource, error) {
	sources := make([]interfaces.ISnapshotSource, 0, len(cfg.Sources))
	for _, sourceCfg := range cfg.Sources {
		src, err := NewSource(cfg, sourceCfg, netMgr, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
		log.Info("Created %s source %s", sourceCfg.Type, sourceCfg.Name)
	}
	return sources, nil
}
