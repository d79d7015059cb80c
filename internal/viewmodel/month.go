// Package viewmodel holds the state behind an interactive month calendar:
// the month cursor, the load state of the displayed month and the
// selected day. Loads are tagged with generations so that a response
// for a month the user already left is dropped instead of rendered.
package viewmodel

import (
	"context"
	"errors"
	"time"

	"entcal/internal/calendar"
	"entcal/internal/gateway"
	appLog "entcal/internal/log"
	"entcal/internal/metrics"
	"entcal/internal/model"
)

// State is the load state of the displayed month.
type State int

const (
	Loading State = iota
	Failed
	Empty
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "error"
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Request asks for one month on behalf of one view generation.
type Request struct {
	Gen uint64
	Key model.Key
}

// Response carries the outcome of a Request.
type Response struct {
	Gen     uint64
	Key     model.Key
	Entries []model.Entry
	Stale   bool
	Err     error
}

// Loader is the gateway surface the view depends on.
type Loader interface {
	Load(ctx context.Context, key model.Key) (gateway.Result, error)
}

// Options configures a Month.
type Options struct {
	Location *time.Location
	// Now overrides the clock for the today marker.
	Now func() time.Time
	// OnEventClick receives validated event identifiers only.
	OnEventClick func(id string)
}

// Month is the view model for one entity's calendar. It is not safe for
// concurrent use; drive it from a single goroutine (an event loop) and
// run Fetch elsewhere.
type Month struct {
	kind     model.EntityKind
	entityID string
	loc      *time.Location
	now      func() time.Time
	clicks   calendar.ClickHandler

	cursor   time.Time
	gen      uint64
	state    State
	entries  []model.Entry
	err      error
	stale    bool
	selected time.Time
}

// New creates a view on the month containing cursor. Call Load to issue
// the first request.
func New(kind model.EntityKind, entityID string, cursor time.Time, opts Options) *Month {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := cursor.In(opts.Location)
	return &Month{
		kind:     kind,
		entityID: entityID,
		loc:      opts.Location,
		now:      opts.Now,
		clicks:   calendar.ClickHandler{OnEventClick: opts.OnEventClick},
		cursor:   time.Date(c.Year(), c.Month(), 1, 0, 0, 0, 0, opts.Location),
		state:    Loading,
	}
}

func (m *Month) Kind() model.EntityKind { return m.kind }
func (m *Month) EntityID() string { return m.entityID }
func (m *Month) Cursor() time.Time { return m.cursor }
func (m *Month) Window() model.MonthWindow { return model.WindowFor(m.cursor) }
func (m *Month) State() State { return m.state }
func (m *Month) Err() error { return m.err }
func (m *Month) Entries() []model.Entry { return m.entries }
func (m *Month) Stale() bool { return m.stale }
func (m *Month) Selected() time.Time { return m.selected }
func (m *Month) Key() model.Key { return model.KeyFor(m.kind, m.entityID, m.cursor) }
func (m *Month) Generation() uint64 { return m.gen }

// Load (re)issues the request for the current month.
func (m *Month) Load() Request {
	m.gen++
	m.state = Loading
	m.entries = nil
	m.err = nil
	m.stale = false
	return Request{Gen: m.gen, Key: m.Key()}
}

// Next advances to the following month.
func (m *Month) Next() Request {
	return m.Goto(m.cursor.AddDate(0, 1, 0))
}

// Prev goes back one month.
func (m *Month) Prev() Request {
	return m.Goto(m.cursor.AddDate(0, -1, 0))
}

// Goto moves the cursor to the month containing t. The selected day is
// kept only if it lies in the new month.
func (m *Month) Goto(t time.Time) Request {
	t = t.In(m.loc)
	m.cursor = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, m.loc)
	if !m.selected.IsZero() && !m.Window().Contains(m.selected) {
		m.selected = time.Time{}
	}
	return m.Load()
}

// Apply installs resp if it answers the latest request and reports
// whether it did. Superseded responses are dropped.
func (m *Month) Apply(resp Response) bool {
	if resp.Gen != m.gen {
		metrics.StaleResponsesDropped.Inc()
		appLog.Debug("view: dropped superseded response", "key", resp.Key.String(), "gen", resp.Gen, "current", m.gen)
		return false
	}
	m.stale = resp.Stale
	switch {
	case resp.Err != nil:
		m.state = Failed
		m.err = resp.Err
		m.entries = nil
	case len(resp.Entries) == 0:
		m.state = Empty
		m.entries = nil
	default:
		m.state = Ready
		m.entries = resp.Entries
	}
	return true
}

// SelectDay marks a day for the side panel. It never navigates.
func (m *Month) SelectDay(d time.Time) {
	d = d.In(m.loc)
	m.selected = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, m.loc)
}

// Grid lays out the current month.
func (m *Month) Grid() calendar.Grid {
	return calendar.BuildGrid(m.cursor, m.entries, m.now().In(m.loc), m.selected)
}

// SelectedEntries lists every entry of the selected day.
func (m *Month) SelectedEntries() []model.Entry {
	if m.selected.IsZero() {
		return nil
	}
	return m.Grid().DayEntries(m.selected)
}

// ClickEvent navigates to the event's detail route if id is valid.
func (m *Month) ClickEvent(id string) (string, bool) {
	route, ok := m.clicks.Click(id)
	if ok {
		metrics.EventClicks.WithLabelValues("accepted").Inc()
	} else {
		metrics.EventClicks.WithLabelValues("rejected").Inc()
	}
	return route, ok
}

// Fetch runs req through the loader and normalizer. It is safe to call
// from any goroutine; hand the Response back to Apply on the owner.
func Fetch(ctx context.Context, l Loader, n *calendar.Normalizer, req Request) Response {
	resp := Response{Gen: req.Gen, Key: req.Key}
	res, err := l.Load(ctx, req.Key)
	if err != nil {
		resp.Err = err
		return resp
	}
	entries, err := n.Normalize(req.Key.Kind, res.Days)
	if err != nil {
		resp.Err = err
		return resp
	}
	resp.Entries = entries
	resp.Stale = res.Stale
	return resp
}

// Message is the user-facing text for non-ready states.
func (m *Month) Message() string {
	switch m.state {
	case Loading:
		return "Loading calendar..."
	case Failed:
		if errors.Is(m.err, model.ErrUnparseablePayload) {
			return "The calendar data for this month could not be read."
		}
		return "Failed to load calendar events."
	case Empty:
		return "No events this month."
	}
	return ""
}
