package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"runtime-observer/src/helpers"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB keeps each deployment in a schema named after the executable.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return pq.QuoteIdentifier(d.Schema) + ".latest_snapshots"
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	if _, err := d.DB.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("create schema %s", d.Schema), err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			strategy_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create latest_snapshots", err)
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSnapshot(ctx context.Context, snap models.MSnapshot) error {
	payload, err := encodePayload(snap)
	if err != nil {
		return helpers.NewDatabaseError("save snapshot", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (strategy_id, source, received_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (strategy_id) DO UPDATE SET
			source = EXCLUDED.source,
			received_at = EXCLUDED.received_at,
			payload = EXCLUDED.payload
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query, snap.StrategyID, snap.Source, snap.ReceivedAt.UTC(), string(payload)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("save snapshot %s", snap.StrategyID), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadLatest(ctx context.Context, strategyID string) (models.MSnapshot, bool, error) {
	var (
		source     string
		receivedAt time.Time
		payload    []byte
	)
	query := fmt.Sprintf("SELECT source, received_at, payload FROM %s WHERE strategy_id = $1", d.table())
	err := d.DB.QueryRowContext(ctx, query, strategyID).Scan(&source, &receivedAt, &payload)
	if err == sql.ErrNoRows {
		return models.MSnapshot{}, false, nil
	}
	if err != nil {
		return models.MSnapshot{}, false, helpers.NewDatabaseError(fmt.Sprintf("load snapshot %s", strategyID), err)
	}

	decoded, err := decodePayload(payload)
	if err != nil {
		return models.MSnapshot{}, false, err
	}
	return models.MSnapshot{
		StrategyID: strategyID,
		Source:     source,
		ReceivedAt: receivedAt.UTC(),
		Payload:    decoded,
	}, true, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListStrategies(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT strategy_id FROM %s ORDER BY strategy_id", d.table())
	rows, err := d.DB.QueryContext(ctx, query)
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

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
