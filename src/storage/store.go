package storage

import (
	"fmt"

	"runtime-observer/src/interfaces"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/serializers"
)

// payloadCodec stores raw payloads as JSON text in both backends.
var payloadCodec = serializers.NewJSONSerializer()

// -----------------------------------------------------------------------------

// NewStore picks the backend named by storage.db_type. The store still needs Initialize.
func NewStore(cfg *models.MConfig, log *logger.Logger) (interfaces.ISnapshotStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewAsyncSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.Storage.DBType)
}

// -----------------------------------------------------------------------------

func encodePayload(snap models.MSnapshot) ([]byte, error) {
	if snap.StrategyID == "" {
		return nil, fmt.Errorf("snapshot has no strategy id")
	}
	return payloadCodec.Marshal(snap.Payload)
}

func decodePayload(data []byte) (any, error) {
	return serializers.DecodeSnapshot(payloadCodec, data)
}
