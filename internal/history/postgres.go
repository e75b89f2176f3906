package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ride-search/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveSearch(ctx context.Context, rec *Record) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO searches(id, session_id, origin_city, destiny_city, trip_date, status, total_results, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.SessionID, rec.OriginCity, rec.DestinyCity,
		fmt.Sprintf("%04d-%02d-%02d", rec.Date.Year, rec.Date.Month, rec.Date.Day),
		string(rec.Status), rec.TotalResults, rec.CreatedAt)
	return err
}

func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, session_id, origin_city, destiny_city, trip_date, status, total_results, created_at
		 FROM searches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var date string
		var status string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.OriginCity, &rec.DestinyCity,
			&date, &status, &rec.TotalResults, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = models.MatchStatus(status)
		fmt.Sscanf(date, "%04d-%02d-%02d", &rec.Date.Year, &rec.Date.Month, &rec.Date.Day)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }
