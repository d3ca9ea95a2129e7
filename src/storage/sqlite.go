package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"runtime-observer/src/helpers"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	// One writer; database/sql would otherwise open concurrent connections
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: INTEGER for unix nanos, TEXT for the JSON payload
	query := `
		CREATE TABLE IF NOT EXISTS latest_snapshots (
			strategy_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			received_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create latest_snapshots", err)
	}
	d.Logger.Info("SQLite snapshot store ready at %s", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

// SaveSnapshot upserts the latest snapshot for the strategy
func (d *AsyncSQLiteDB) SaveSnapshot(ctx context.Context, snap models.MSnapshot) error {
	payload, err := encodePayload(snap)
	if err != nil {
		return helpers.NewDatabaseError("save snapshot", err)
	}

	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO latest_snapshots (strategy_id, source, received_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(strategy_id) DO UPDATE SET
			source = excluded.source,
			received_at = excluded.received_at,
			payload = excluded.payload
	`, snap.StrategyID, snap.Source, snap.ReceivedAt.UnixNano(), string(payload))
	if err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("save snapshot %s", snap.StrategyID), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadLatest(ctx context.Context, strategyID string) (models.MSnapshot, bool, error) {
	var (
		source     string
		receivedAt int64
		payload    string
	)
	err := d.DB.QueryRowContext(ctx,
		"SELECT source, received_at, payload FROM latest_snapshots WHERE strategy_id = ?", strategyID,
	).Scan(&source, &receivedAt, &payload)
	if err == sql.ErrNoRows {
		return models.MSnapshot{}, false, nil
	}
	if err != nil {
		return models.MSnapshot{}, false, helpers.NewDatabaseError(fmt.Sprintf("load snapshot %s", strategyID), err)
	}

	decoded, err := decodePayload([]byte(payload))
	if err != nil {
		return models.MSnapshot{}, false, err
	}
	return models.MSnapshot{
		StrategyID: strategyID,
		Source:     source,
		ReceivedAt: time.Unix(0, receivedAt).UTC(),
		Payload:    decoded,
	}, true, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListStrategies(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, "SELECT strategy_id FROM latest_snapshots ORDER BY strategy_id")
	if err != nil {
		return nil, helpers.NewDatabaseError("list strategies", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, helpers.NewDatabaseError("list strategies", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
