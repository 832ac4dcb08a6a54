package export

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/vessel-monitor/backend/internal/models"
)

// DuckDBSink mirrors the latest snapshot into a DuckDB table keyed by mmsi.
type DuckDBSink struct {
	db   *sql.DB
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

const vesselColumns = `
	mmsi        BIGINT PRIMARY KEY,
	name        VARCHAR,
	latitude    DOUBLE NOT NULL,
	longitude   DOUBLE NOT NULL,
	speed       DOUBLE,
	observed_at TIMESTAMP NOT NULL,
	ship_type   VARCHAR,
	destination VARCHAR,
	eta         TIMESTAMP,
	exported_at TIMESTAMP NOT NULL`

// NewDuckDBSink opens (or creates) the database at path. An empty path opens an in-memory database.
func NewDuckDBSink(path string, log *zap.Logger) (*DuckDBSink, error) {
	if log == nil {
		log = zap.NewNop()
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS vessels (" + vesselColumns + ")",
		"CREATE TABLE IF NOT EXISTS vessels_staging (" + vesselColumns + ")",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Info("duckdb export ready", zap.String("path", path))
	return &DuckDBSink{db: db, path: path, log: log}, nil
}

// Name identifies the sink in logs and metrics.
func (s *DuckDBSink) Name() string { return "duckdb" }

// Export stages the snapshot with the Appender API and upserts it into vessels.
func (s *DuckDBSink) Export(ctx context.Context, snapshot []models.VesselObservation, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "DELETE FROM vessels_staging"); err != nil {
		return fmt.Errorf("failed to clear staging: %w", err)
	}

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "vessels_staging")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		exportedAt := at.UTC()
		for i, o := range snapshot {
			var speed, eta driver.Value
			if o.HasSpeed() {
				speed = o.Speed()
			}
			if !o.EstimatedArrival.IsZero() {
				eta = o.EstimatedArrival.UTC()
			}
			err := appender.AppendRow(
				o.ID,
				o.Name,
				o.Latitude,
				o.Longitude,
				speed,
				o.ObservedAt.UTC(),
				o.VesselKind,
				o.Destination,
				eta,
				exportedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "INSERT OR REPLACE INTO vessels SELECT * FROM vessels_staging"); err != nil {
		return fmt.Errorf("failed to upsert vessels: %w", err)
	}

	s.log.Debug("duckdb export complete", zap.Int("rows", len(snapshot)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Count returns the number of vessels in the mirror.
func (s *DuckDBSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vessels").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Position returns the stored coordinates for mmsi.
func (s *DuckDBSink) Position(ctx context.Context, mmsi int64) (lat, lon float64, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT latitude, longitude FROM vessels WHERE mmsi = ?", mmsi).Scan(&lat, &lon)
	return lat, lon, err
}

// Close closes the database.
func (s *DuckDBSink) Close() error {
	return s.db.Close()
}
