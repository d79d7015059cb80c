package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityKind(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityKind
		wantErr bool
	}{
		{in: "artist", want: KindArtist},
		{in: "Venues", want: KindVenue},
		{in: " PROMOTER ", want: KindPromoter},
		{in: "promoters", want: KindPromoter},
		{in: "festival", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntityKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownEntityKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityKindRPC(t *testing.T) {
	assert.Equal(t, "get_artist_calendar", KindArtist.RPC())
	assert.Equal(t, "venue_id", KindVenue.IDParam())

	assert.True(t, KindArtist.HasVenueFields())
	assert.False(t, KindArtist.HasGenre())
	assert.False(t, KindVenue.HasVenueFields())
	assert.True(t, KindVenue.HasGenre())
	assert.True(t, KindPromoter.HasVenueFields())
	assert.True(t, KindPromoter.HasGenre())
}

func TestDayMapCount(t *testing.T) {
	d := DayMap{
		"2024-03-01": {{ID: "a"}, {ID: "b"}},
		"2024-03-02": nil,
		"2024-03-09": {{ID: "c"}},
	}
	assert.Equal(t, 3, d.Count())
}

func TestStatusJSON(t *testing.T) {
	e := Entry{ID: "x", Status: StatusSoldOut, StartsAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"sold_out"`)

	var back Entry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, StatusSoldOut, back.Status)

	var s Status
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &s))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "On Sale", StatusOnSale.Label())
	assert.Equal(t, "Unlisted", StatusUnlisted.Label())
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestIsRawStatus(t *testing.T) {
	for _, s := range []string{"", RawStatusCancelled, RawStatusSoldOut, RawStatusPostponed} {
		assert.True(t, IsRawStatus(s), s)
	}
	for _, s := range []string{"Cancelled", "sold-out", "on_sale", "unlisted", " postponed"} {
		assert.False(t, IsRawStatus(s), s)
	}
	assert.Equal(t, RawStatusSoldOut, StatusSoldOut.String())
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("20:30")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Hour+30*time.Minute, d)

	d, err = ParseClock("09:05:07")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+5*time.Minute+7*time.Second, d)

	_, err = ParseClock("8pm")
	assert.Error(t, err)
}
