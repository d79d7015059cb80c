package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "entcal/internal/log"
	"entcal/internal/model"
)

const maxErrorBody = 512

// REST calls calendar RPCs through a Supabase PostgREST endpoint:
//
//	POST {baseURL}/rest/v1/rpc/get_<kind>_calendar
//	{"<kind>_id": "...", "year": 2024, "month": 3}
type REST struct {
	client  *http.Client
	baseURL string
	apiKey  string
	loc     *time.Location
}

// NewREST creates a REST source. A zero timeout means 15 seconds.
func NewREST(baseURL, apiKey string, timeout time.Duration, loc *time.Location) *REST {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	return &REST{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		loc:     loc,
	}
}

// FetchMonth implements Source.
func (r *REST) FetchMonth(ctx context.Context, key model.Key) (model.DayMap, error) {
	if r.baseURL == "" {
		return nil, errors.New("backend: rest url is empty")
	}

	payload, err := json.Marshal(map[string]any{
		key.Kind.IDParam(): key.EntityID,
		"year":             key.Year,
		"month":            int(key.Month),
	})
	if err != nil {
		return nil, err
	}

	endpoint := r.baseURL + "/rest/v1/rpc/" + key.Kind.RPC()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	appLog.Debug("backend rpc start", "rpc", key.Kind.RPC(), "key", key.String(), "host", redactURL(r.baseURL))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	days, err := Decode(body, key.Window(r.loc))
	if err != nil {
		return nil, err
	}
	appLog.Debug("backend rpc success", "key", key.String(), "days", len(days), "events", days.Count())
	return days, nil
}

// redactURL hides everything after the host for logging purposes.
//
//	https://abc.supabase.co/rest/v1?apikey=... -> https://abc.supabase.co/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		return u[:i+3+j] + redactedSuffix
	}
	return u
}
