package backend

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entcal/internal/model"
)

var march2024 = model.WindowFor(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))

func TestDecode(t *testing.T) {
	body := []byte(`{
		"2024-03-02": [
			{"id": "3fa85f64-5717-4562-b3fc-2c963f66afa6", "name": "Late Show", "time": "22:00:00",
			 "status": null, "has_tickets": true, "venue_name": "The Hall", "city": "Leeds"},
			{"id": 42, "name": "Matinee", "time": "14:00", "status": "sold_out"}
		],
		"2024-03-09": [],
		"2024-03-15": [{"name": "No id", "status": "cancelled", "genre": "jazz"}]
	}`)

	got, err := Decode(body, march2024)
	require.NoError(t, err)

	want := model.DayMap{
		"2024-03-02": {
			{ID: "3fa85f64-5717-4562-b3fc-2c963f66afa6", Name: "Late Show", Time: "22:00:00", HasTickets: true, VenueName: "The Hall", City: "Leeds"},
			{ID: "42", Name: "Matinee", Time: "14:00", Status: "sold_out"},
		},
		"2024-03-15": {
			{Name: "No id", Status: "cancelled", Genre: "jazz"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, body := range []string{"", "null", "  null\n", "{}"} {
		got, err := Decode([]byte(body), march2024)
		require.NoError(t, err, "body %q", body)
		assert.Empty(t, got, "body %q", body)
	}
}

func TestDecodeUnparseable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array body", `[{"id": 1}]`},
		{"string body", `"oops"`},
		{"bad json", `{"2024-03-01": [`},
		{"bad date key", `{"March 1": []}`},
		{"date outside window", `{"2024-04-01": [{"id": "a"}]}`},
		{"unknown status", `{"2024-03-01": [{"id": "a", "status": "rescheduled"}]}`},
		{"bad time", `{"2024-03-01": [{"id": "a", "time": "8pm"}]}`},
		{"object id", `{"2024-03-01": [{"id": {"uuid": "a"}}]}`},
		{"bool id", `{"2024-03-01": [{"id": true}]}`},
		{"days not a list", `{"2024-03-01": {"id": "a"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), march2024)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrUnparseablePayload), "got %v", err)
		})
	}
}

func TestCoerceIDLargeNumber(t *testing.T) {
	got, err := coerceID([]byte(`12345678901234567890`))
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", got)

	got, err = coerceID([]byte(`1.5`))
	require.NoError(t, err)
	assert.Equal(t, "1.5", got)
}
