package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entcal/internal/backend"
	"entcal/internal/cache"
	"entcal/internal/config"
	"entcal/internal/gateway"
	"entcal/internal/model"
)

const eventUUID = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

var fixedNow = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

// marchDays has five events on the 2nd and a linkable one on the 10th.
func marchDays() model.DayMap {
	busy := make([]model.RawEvent, 0, 5)
	for i := range 5 {
		busy = append(busy, model.RawEvent{ID: fmt.Sprint(100 + i), Name: fmt.Sprintf("Set %d", i+1), Time: fmt.Sprintf("%02d:00", 18+i)})
	}
	return model.DayMap{
		"2024-03-02": busy,
		"2024-03-10": {{ID: eventUUID, Name: "Headliner", Status: "cancelled", VenueName: "Main Hall", City: "Berlin"}},
	}
}

type fakeCapturer struct {
	url string
	err error
}

func (f *fakeCapturer) Capture(ctx context.Context, url string) ([]byte, error) {
	f.url = url
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG"), nil
}

type testServer struct {
	srv *Server
	cfg *config.Config
}

func newTestServer(t *testing.T, src backend.Source, capt Capturer) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Backend.URL = "https://example.supabase.co"
	cfg.PublicURL = "http://calendar.test"

	gw := gateway.New(src, gateway.NewMonthCache(cache.Options{}), gateway.Options{Dedupe: true})
	t.Cleanup(gw.Close)

	opts := Options{
		Config: func() *config.Config { return cfg },
		Loader: gw,
		Now:    func() time.Time { return fixedNow },
	}
	if capt != nil {
		opts.Capturer = capt
	}
	return &testServer{srv: NewServer(opts), cfg: cfg}
}

func (ts *testServer) get(t *testing.T, target string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

var marchSource = backend.SourceFunc(func(ctx context.Context, key model.Key) (model.DayMap, error) {
	if key.Month != time.March {
		return model.DayMap{}, nil
	}
	return marchDays(), nil
})

func TestHealth(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAPIMonthReady(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/api/calendar/venue/v1?month=2024-03&selected=2024-03-02")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp monthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.State)
	assert.Equal(t, "2024-03", resp.Month)
	assert.Equal(t, "March 2024", resp.Label)
	assert.Equal(t, "2024-03-01", resp.Start)
	assert.Equal(t, "2024-03-31", resp.End)
	assert.Len(t, resp.Weeks, 6)
	assert.Len(t, resp.Entries, 6)
	assert.Equal(t, "2024-03-02", resp.Selected)
	assert.Len(t, resp.SelectedEntries, 5)

	// Saturday 2024-03-02 is the last cell of the first week.
	busy := resp.Weeks[0][6]
	assert.Len(t, busy.Preview, 2)
	assert.Equal(t, 3, busy.Overflow)

	last := resp.Entries[len(resp.Entries)-1]
	assert.Equal(t, eventUUID, last.ID)
	assert.Equal(t, model.StatusCancelled, last.Status)
	assert.Empty(t, last.VenueName, "venue calendars carry no venue fields")
}

func TestAPIMonthEmpty(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/api/calendar/artist/a1?month=2024-04")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp monthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "empty", resp.State)
	assert.Equal(t, "No events this month.", resp.Message)
	assert.NotNil(t, resp.Entries)
	assert.Empty(t, resp.Entries)
}

func TestAPIMonthDefaultsToCurrentMonth(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/api/calendar/venue/v1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp monthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-03", resp.Month)
}

func TestAPIBadRequests(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	for _, target := range []string{
		"/api/calendar/band/x?month=2024-03",
		"/api/calendar/venue/v1?month=March",
		"/api/calendar/venue/v1?month=2024-03&selected=tomorrow",
		"/api/calendar/venue/v1/days/2024-3-2",
	} {
		rec := ts.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
	}
}

func TestAPIMonthFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"backend down", &backend.StatusError{Code: 502}, http.StatusBadGateway},
		{"unparseable", fmt.Errorf("decode: %w", model.ErrUnparseablePayload), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := backend.SourceFunc(func(ctx context.Context, key model.Key) (model.DayMap, error) {
				return nil, tt.err
			})
			ts := newTestServer(t, src, nil)
			rec := ts.get(t, "/api/calendar/venue/v1?month=2024-03")
			assert.Equal(t, tt.want, rec.Code)

			var resp monthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.State)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestAPIDay(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/api/calendar/venue/v1/days/2024-03-02")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-03-02", resp.Date)
	require.Len(t, resp.Entries, 5)
	assert.Equal(t, "Set 1", resp.Entries[0].Name)

	rec = ts.get(t, "/api/calendar/venue/v1/days/2024-03-03")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Entries)
}

func TestAPINavigate(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	for _, id := range []string{"", "NaN", "undefined", "abc"} {
		rec := ts.get(t, "/api/navigate?event_id="+id)
		assert.Equal(t, http.StatusNoContent, rec.Code, id)
		assert.Empty(t, rec.Body.String(), id)
	}

	rec := ts.get(t, "/api/navigate?event_id="+eventUUID)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp navigateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/events/"+eventUUID, resp.Route)
}

func TestCalendarPage(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/calendar/venue/v1?month=2024-03&selected=2024-03-10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, `data-state="ready"`)
	assert.Contains(t, body, "March 2024")
	assert.Contains(t, body, "+3 more")
	assert.Contains(t, body, `href="/events/`+eventUUID+`"`)
	assert.Contains(t, body, "status-cancelled")
	assert.Contains(t, body, "?month=2024-02")
	assert.Contains(t, body, "?month=2024-04")
	assert.Contains(t, body, "<aside>")
	// Numeric ids are not routable and render as plain text.
	assert.NotContains(t, body, `href="/events/100"`)
}

func TestCalendarPageFailure(t *testing.T) {
	src := backend.SourceFunc(func(ctx context.Context, key model.Key) (model.DayMap, error) {
		return nil, errors.New("connection refused")
	})
	ts := newTestServer(t, src, nil)
	rec := ts.get(t, "/calendar/venue/v1?month=2024-03")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to load calendar events.")
}

func TestCalendarICS(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/calendar/venue/v1.ics?month=2024-03")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "venue-2024-03.ics")

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Equal(t, 6, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, eventUUID+"@entcal")
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	rec := ts.get(t, "/calendar/venue/v1/preview.png?month=2024-03")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	capt := &fakeCapturer{}
	ts = newTestServer(t, marchSource, capt)
	rec = ts.get(t, "/calendar/venue/v1/preview.png?month=2024-03")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "http://calendar.test/calendar/venue/v1?month=2024-03", capt.url)

	capt.err = errors.New("chrome crashed")
	rec = ts.get(t, "/calendar/venue/v1/preview.png?month=2024-03")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	ts.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}

	assert.Equal(t, http.StatusOK, ts.get(t, "/health").Code)

	rec := ts.get(t, "/api/calendar/venue/v1?month=2024-03")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `realm="entcal"`)

	rec = ts.get(t, "/api/calendar/venue/v1?month=2024-03", func(r *http.Request) { r.SetBasicAuth("admin", "wrong") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.get(t, "/api/calendar/venue/v1?month=2024-03", func(r *http.Request) { r.SetBasicAuth("admin", "s3cret") })
	assert.Equal(t, http.StatusOK, rec.Code)

	// An empty password disables auth.
	ts.cfg.BasicAuth.Password = ""
	assert.Equal(t, http.StatusOK, ts.get(t, "/api/calendar/venue/v1?month=2024-03").Code)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)

	rec := ts.get(t, "/health")
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	rec = ts.get(t, "/health", func(r *http.Request) { r.Header.Set(RequestIDHeader, eventUUID) })
	assert.Equal(t, eventUUID, rec.Header().Get(RequestIDHeader))

	rec = ts.get(t, "/health", func(r *http.Request) { r.Header.Set(RequestIDHeader, "<script>") })
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, marchSource, nil)
	ts.get(t, "/api/calendar/venue/v1?month=2024-03")

	rec := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "entcal_http_requests_total")
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/calendar/artist/a%2F1?month=2024-03",
		PageURL("http://localhost:8080/", model.KindArtist, "a/1", "2024-03"))
	assert.Equal(t, "http://h/calendar/venue/v1", PageURL("http://h", model.KindVenue, "v1", ""))
}
