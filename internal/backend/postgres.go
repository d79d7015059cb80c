package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"entcal/internal/model"
)

// Postgres calls the calendar functions directly over a database
// connection, bypassing PostgREST.
type Postgres struct {
	db  *sql.DB
	loc *time.Location
}

// OpenPostgres opens a lib/pq connection pool for dsn.
func OpenPostgres(dsn string, loc *time.Location) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("backend: postgres dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("backend: open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPostgres(db, loc), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(db *sql.DB, loc *time.Location) *Postgres {
	if loc == nil {
		loc = time.Local
	}
	return &Postgres{db: db, loc: loc}
}

// FetchMonth implements Source.
func (p *Postgres) FetchMonth(ctx context.Context, key model.Key) (model.DayMap, error) {
	query := fmt.Sprintf("SELECT %s($1, $2, $3)::text", pq.QuoteIdentifier(key.Kind.RPC()))

	var body sql.NullString
	err := p.db.QueryRowContext(ctx, query, key.EntityID, key.Year, int(key.Month)).Scan(&body)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return nil, fmt.Errorf("backend: %s (sqlstate %s): %w", key.Kind.RPC(), pqErr.Code, err)
		}
		return nil, fmt.Errorf("backend: %s: %w", key.Kind.RPC(), err)
	}
	if !body.Valid {
		return model.DayMap{}, nil
	}
	return Decode([]byte(body.String), key.Window(p.loc))
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
