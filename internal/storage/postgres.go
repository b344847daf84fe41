package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bmsengine/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_history (
	id             TEXT PRIMARY KEY,
	alert_type     TEXT NOT NULL,
	severity       TEXT NOT NULL,
	source         TEXT NOT NULL,
	subject        TEXT NOT NULL,
	equipment_id   TEXT,
	location_id    TEXT,
	equipment_type TEXT,
	message        TEXT NOT NULL,
	value          DOUBLE PRECISION NOT NULL,
	threshold      DOUBLE PRECISION NOT NULL,
	health_status  TEXT,
	hourly_cost    DOUBLE PRECISION,
	total_power_kw DOUBLE PRECISION,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alert_history_subject_idx ON alert_history (subject, created_at DESC);
`

// Postgres stores alert history rows.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects through the pgx driver and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, ErrNotConfigured
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := NewPostgres(db)
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create alert_history: %w", err)
	}
	return nil
}

func (p *Postgres) Name() string { return "postgres" }

// Persist inserts one row per call. Candidate ids are unique, so a retried insert is a no-op.
func (p *Postgres) Persist(ctx context.Context, c *models.Candidate) error {
	f := c.Fact()
	_, err := p.db.ExecContext(ctx, `
INSERT INTO alert_history (
	id, alert_type, severity, source, subject, equipment_id, location_id, equipment_type,
	message, value, threshold, health_status, hourly_cost, total_power_kw, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING`,
		f.ID, f.Kind, string(f.Severity), string(f.Source), f.Subject,
		nullString(f.EquipmentID), nullString(f.LocationID), nullString(string(f.EquipmentType)),
		f.Message, f.Value, f.Threshold, nullString(f.HealthStatus),
		f.HourlyCost, f.TotalPowerKW, f.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert alert_history: %w", err)
	}
	return nil
}

// Recent lists the newest facts, optionally for one subject.
func (p *Postgres) Recent(ctx context.Context, subject string, limit int) ([]models.AlertFact, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := p.db.QueryContext(ctx, `
SELECT id, alert_type, severity, source, subject, equipment_id, location_id, equipment_type,
	message, value, threshold, health_status, hourly_cost, total_power_kw, created_at
FROM alert_history
WHERE $1 = '' OR subject = $1
ORDER BY created_at DESC
LIMIT $2`, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("query alert_history: %w", err)
	}
	defer rows.Close()

	var out []models.AlertFact
	for rows.Next() {
		var (
			f                                 models.AlertFact
			severity, source                  string
			equipment, location, kind, status sql.NullString
			cost, power                       sql.NullFloat64
		)
		if err := rows.Scan(&f.ID, &f.Kind, &severity, &source, &f.Subject, &equipment, &location, &kind,
			&f.Message, &f.Value, &f.Threshold, &status, &cost, &power, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert_history: %w", err)
		}
		f.Severity = models.Severity(severity)
		f.Source = models.Source(source)
		f.EquipmentID = equipment.String
		f.LocationID = location.String
		f.EquipmentType = models.Category(kind.String)
		f.HealthStatus = status.String
		if cost.Valid {
			f.HourlyCost = models.Float(cost.Float64)
		}
		if power.Valid {
			f.TotalPowerKW = models.Float(power.Float64)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read alert_history: %w", err)
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
