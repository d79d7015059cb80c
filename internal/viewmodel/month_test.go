package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entcal/internal/calendar"
	"entcal/internal/gateway"
	"entcal/internal/model"
)

type loaderFunc func(ctx context.Context, key model.Key) (gateway.Result, error)

func (f loaderFunc) Load(ctx context.Context, key model.Key) (gateway.Result, error) {
	return f(ctx, key)
}

// monthLoader answers every month with one event on the 10th named after
// the month.
var monthLoader = loaderFunc(func(ctx context.Context, key model.Key) (gateway.Result, error) {
	date := fmt.Sprintf("%04d-%02d-10", key.Year, int(key.Month))
	return gateway.Result{Key: key, Days: model.DayMap{
		date: {{ID: "3fa85f64-5717-4562-b3fc-2c963f66afa6", Name: key.Month.String(), HasTickets: true}},
	}}, nil
})

func newMonth(onClick func(string)) *Month {
	return New(model.KindArtist, "a1", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), Options{
		Location:     time.UTC,
		Now:          func() time.Time { return time.Date(2024, time.March, 20, 10, 0, 0, 0, time.UTC) },
		OnEventClick: onClick,
	})
}

func fetch(req Request) Response {
	return Fetch(context.Background(), monthLoader, calendar.NewNormalizer(time.UTC), req)
}

func TestMonthLoadAndApply(t *testing.T) {
	m := newMonth(nil)
	assert.Equal(t, Loading, m.State())
	assert.Equal(t, "Loading calendar...", m.Message())

	req := m.Load()
	assert.Equal(t, model.Key{Kind: model.KindArtist, EntityID: "a1", Year: 2024, Month: time.March}, req.Key)

	require.True(t, m.Apply(fetch(req)))
	assert.Equal(t, Ready, m.State())
	require.Len(t, m.Entries(), 1)
	assert.Equal(t, "March", m.Entries()[0].Name)
	assert.Equal(t, model.StatusOnSale, m.Entries()[0].Status)
	assert.Empty(t, m.Message())
}

func TestMonthDropsSupersededResponse(t *testing.T) {
	m := newMonth(nil)
	march := m.Load()
	april := m.Next()

	// The March response arrives after the user moved to April.
	assert.False(t, m.Apply(fetch(march)))
	assert.Equal(t, Loading, m.State())
	assert.Equal(t, time.April, m.Cursor().Month())

	require.True(t, m.Apply(fetch(april)))
	assert.Equal(t, "April", m.Entries()[0].Name)
}

func TestMonthRapidNavigation(t *testing.T) {
	m := newMonth(nil)
	reqs := []Request{m.Load(), m.Next(), m.Next(), m.Prev()}
	assert.Equal(t, time.April, m.Cursor().Month())

	// Responses arrive in reverse order; only the last request applies.
	applied := 0
	for i := len(reqs) - 1; i >= 0; i-- {
		if m.Apply(fetch(reqs[i])) {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, "April", m.Entries()[0].Name)
	assert.Equal(t, reqs[3].Gen, m.Generation())
}

func TestMonthEmptyAndError(t *testing.T) {
	m := newMonth(nil)

	req := m.Load()
	require.True(t, m.Apply(Response{Gen: req.Gen, Key: req.Key}))
	assert.Equal(t, Empty, m.State())
	assert.Equal(t, "No events this month.", m.Message())

	req = m.Load()
	require.True(t, m.Apply(Response{Gen: req.Gen, Key: req.Key, Err: gateway.ErrFetchFailed}))
	assert.Equal(t, Failed, m.State())
	assert.Equal(t, "Failed to load calendar events.", m.Message())
	assert.Nil(t, m.Entries())

	req = m.Load()
	require.True(t, m.Apply(Response{Gen: req.Gen, Key: req.Key, Err: fmt.Errorf("x: %w", model.ErrUnparseablePayload)}))
	assert.Equal(t, Failed, m.State())
	assert.True(t, errors.Is(m.Err(), model.ErrUnparseablePayload))
	assert.NotEqual(t, "Failed to load calendar events.", m.Message())
}

func TestFetchPropagatesLoaderError(t *testing.T) {
	failing := loaderFunc(func(ctx context.Context, key model.Key) (gateway.Result, error) {
		return gateway.Result{}, gateway.ErrFetchFailed
	})
	m := newMonth(nil)
	resp := Fetch(context.Background(), failing, calendar.NewNormalizer(time.UTC), m.Load())
	assert.ErrorIs(t, resp.Err, gateway.ErrFetchFailed)
	assert.Nil(t, resp.Entries)
}

func TestMonthSelection(t *testing.T) {
	m := newMonth(nil)
	require.True(t, m.Apply(fetch(m.Load())))

	m.SelectDay(time.Date(2024, time.March, 10, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), m.Selected())
	require.Len(t, m.SelectedEntries(), 1)

	g := m.Grid()
	c, ok := g.Cell(m.Selected())
	require.True(t, ok)
	assert.True(t, c.IsSelected)
	today, _ := g.Cell(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC))
	assert.True(t, today.IsToday)

	// Moving away drops a selection outside the new month.
	m.Next()
	assert.True(t, m.Selected().IsZero())
	assert.Nil(t, m.SelectedEntries())
}

func TestMonthGotoKeepsSelectionInsideMonth(t *testing.T) {
	m := newMonth(nil)
	m.SelectDay(time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC))
	m.Goto(time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC))
	assert.False(t, m.Selected().IsZero())
}

func TestMonthClickEvent(t *testing.T) {
	var clicked []string
	m := newMonth(func(id string) { clicked = append(clicked, id) })

	for _, id := range []string{"abc", "", "NaN", "undefined"} {
		_, ok := m.ClickEvent(id)
		assert.False(t, ok, id)
	}
	assert.Empty(t, clicked)

	route, ok := m.ClickEvent("3fa85f64-5717-4562-b3fc-2c963f66afa6")
	assert.True(t, ok)
	assert.Equal(t, "/events/3fa85f64-5717-4562-b3fc-2c963f66afa6", route)
	assert.Len(t, clicked, 1)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "error", Failed.String())
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "ready", Ready.String())
}
