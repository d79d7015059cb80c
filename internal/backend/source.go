package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"entcal/internal/model"
)

// Source fetches one month of an entity's calendar from the backend.
type Source interface {
	FetchMonth(ctx context.Context, key model.Key) (model.DayMap, error)
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("backend: %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, key model.Key) (model.DayMap, error)

func (f SourceFunc) FetchMonth(ctx context.Context, key model.Key) (model.DayMap, error) {
	return f(ctx, key)
}

// Options configures the concrete sources built by Open.
type Options struct {
	// Driver is "rest" (Supabase PostgREST RPC), "postgres" or "dir".
	Driver string

	// URL is the project URL for rest, a DSN for postgres and a
	// directory for dir.
	URL string
	// APIKey is sent as apikey and bearer token by the rest driver.
	APIKey string

	Timeout  time.Duration
	Location *time.Location
}

// Open builds the Source selected by opts.Driver. The returned close
// function releases driver resources and is never nil.
func Open(opts Options) (Source, func() error, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	noop := func() error { return nil }

	switch opts.Driver {
	case "", "rest":
		return NewREST(opts.URL, opts.APIKey, opts.Timeout, opts.Location), noop, nil
	case "postgres":
		pg, err := OpenPostgres(opts.URL, opts.Location)
		if err != nil {
			return nil, noop, err
		}
		return pg, pg.Close, nil
	case "dir":
		return NewDir(opts.URL, opts.Location), noop, nil
	default:
		return nil, noop, fmt.Errorf("backend: unknown driver %q", opts.Driver)
	}
}
