package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kitbuilder587/webagent/internal/analytics"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the requests table. Idempotent, run at startup.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS requests (
            id BIGSERIAL PRIMARY KEY,
            question TEXT NOT NULL,
            kind TEXT NOT NULL,
            result_count INT NOT NULL,
            status TEXT NOT NULL,
            duration_ms BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("migrate requests: %w", err)
	}
	return nil
}

type Recorder struct {
	db *DB
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(ctx context.Context, rec analytics.RequestRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
        INSERT INTO requests (question, kind, result_count, status, duration_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := r.db.Pool.Exec(ctx, query,
		rec.Question,
		rec.Kind,
		rec.ResultCount,
		rec.Status,
		rec.Duration.Milliseconds(),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}

	return nil
}

// Stats aggregates the last n days of usage, newest first.
type DailyStats struct {
	Day           time.Time
	Requests      int64
	AvgDurationMS float64
}

func (r *Recorder) LastNDays(ctx context.Context, n int) ([]DailyStats, error) {
	query := `
        SELECT date_trunc('day', created_at) AS day,
               count(*) AS requests,
               avg(duration_ms) AS avg_duration_ms
        FROM requests
        WHERE created_at >= NOW() - ($1 || ' days')::interval
        GROUP BY day
        ORDER BY day DESC
    `

	rows, err := r.db.Pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var out []DailyStats
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(&s.Day, &s.Requests, &s.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

var _ analytics.Recorder = (*Recorder)(nil)
