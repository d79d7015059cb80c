package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entcal/internal/model"
)

func TestRESTFetchMonth(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/get_venue_calendar", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"2024-03-05": [{"id": "e1", "name": "Quiz Night", "time": "19:30"}]}`))
	}))
	defer srv.Close()

	src := NewREST(srv.URL+"/", "anon-key", time.Second, time.UTC)
	key := model.Key{Kind: model.KindVenue, EntityID: "v1", Year: 2024, Month: time.March}

	days, err := src.FetchMonth(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, days["2024-03-05"], 1)
	assert.Equal(t, "Quiz Night", days["2024-03-05"][0].Name)

	assert.Equal(t, map[string]any{"venue_id": "v1", "year": float64(2024), "month": float64(3)}, gotBody)
}

func TestRESTStatusError(t *testing.T) {
	tests := []struct {
		code      int
		temporary bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusNotFound, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"nope"}`, tt.code)
			}))
			defer srv.Close()

			src := NewREST(srv.URL, "", time.Second, time.UTC)
			_, err := src.FetchMonth(context.Background(), model.Key{Kind: model.KindArtist, EntityID: "a", Year: 2024, Month: 1})

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.temporary, se.Temporary())
			assert.Contains(t, se.Body, "nope")
		})
	}
}

func TestRESTUnparseable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"2024-03-05": [{"id": "e1", "status": "maybe"}]}`))
	}))
	defer srv.Close()

	src := NewREST(srv.URL, "", time.Second, time.UTC)
	_, err := src.FetchMonth(context.Background(), model.Key{Kind: model.KindVenue, EntityID: "v1", Year: 2024, Month: time.March})
	assert.True(t, errors.Is(err, model.ErrUnparseablePayload))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://abc.supabase.co/...(redacted)", redactURL("https://abc.supabase.co/rest/v1?apikey=secret"))
	assert.Equal(t, "https://abc.supabase.co", redactURL("https://abc.supabase.co"))
	assert.Equal(t, "...(redacted)", redactURL("not a url"))
}

func TestDirFetchMonth(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "artist", "a1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03.json"),
		[]byte(`{"2024-03-10": [{"id": "e1", "name": "Tour Stop", "venue_name": "Arena"}]}`), 0o644))

	src := NewDir(root, time.UTC)

	days, err := src.FetchMonth(context.Background(), model.Key{Kind: model.KindArtist, EntityID: "a1", Year: 2024, Month: time.March})
	require.NoError(t, err)
	assert.Equal(t, 1, days.Count())

	days, err = src.FetchMonth(context.Background(), model.Key{Kind: model.KindArtist, EntityID: "a1", Year: 2024, Month: time.April})
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, closeFn, err := Open(Options{Driver: "mongo"})
	require.Error(t, err)
	assert.NoError(t, closeFn())
}
