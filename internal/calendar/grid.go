package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "entcal/internal/log"
	"entcal/internal/model"
)

// PreviewLimit is how many entries a cell shows before "+N more".
const PreviewLimit = 2

// Cell is one day of the month grid.
type Cell struct {
	Date       time.Time     `json:"date"`
	InMonth    bool          `json:"in_month"`
	IsToday    bool          `json:"is_today"`
	IsSelected bool          `json:"is_selected"`
	Entries    []model.Entry `json:"-"`
	Preview    []model.Entry `json:"preview"`
	Overflow   int           `json:"overflow"`
}

// Key is the cell's date in model.DateLayout.
func (c Cell) Key() string {
	return c.Date.Format(model.DateLayout)
}

// Day is the day-of-month number.
func (c Cell) Day() int {
	return c.Date.Day()
}

// Grid is a Sunday-first month layout. len(Cells) is always a multiple of 7.
type Grid struct {
	Window model.MonthWindow `json:"-"`
	Cells  []Cell            `json:"cells"`

	byDate map[string]int
}

// Weeks splits the cells into rows of seven.
func (g Grid) Weeks() [][]Cell {
	weeks := make([][]Cell, 0, len(g.Cells)/7)
	for i := 0; i+7 <= len(g.Cells); i += 7 {
		weeks = append(weeks, g.Cells[i:i+7])
	}
	return weeks
}

// DayEntries returns every entry of the given date, uncapped, for the
// side panel. Dates outside the grid yield nil.
func (g Grid) DayEntries(date time.Time) []model.Entry {
	idx, ok := g.byDate[date.Format(model.DateLayout)]
	if !ok {
		return nil
	}
	return g.Cells[idx].Entries
}

// Cell returns the cell for date.
func (g Grid) Cell(date time.Time) (Cell, bool) {
	idx, ok := g.byDate[date.Format(model.DateLayout)]
	if !ok {
		return Cell{}, false
	}
	return g.Cells[idx], true
}

// BuildGrid lays out the month containing cursor from the Sunday on or
// before the 1st through the Saturday on or after the last day. Entries
// are bucketed by their Date. today and selected mark cells; pass the
// zero time to mark nothing.
func BuildGrid(cursor time.Time, entries []model.Entry, today, selected time.Time) Grid {
	window := model.WindowFor(cursor)
	days := gridDays(window)

	buckets := make(map[string][]model.Entry)
	for _, e := range entries {
		buckets[e.Date] = append(buckets[e.Date], e)
	}

	todayKey, selectedKey := "", ""
	if !today.IsZero() {
		todayKey = today.In(cursor.Location()).Format(model.DateLayout)
	}
	if !selected.IsZero() {
		selectedKey = selected.In(cursor.Location()).Format(model.DateLayout)
	}

	g := Grid{
		Window: window,
		Cells:  make([]Cell, 0, len(days)),
		byDate: make(map[string]int, len(days)),
	}
	for _, d := range days {
		key := d.Format(model.DateLayout)
		dayEntries := buckets[key]
		c := Cell{
			Date:       d,
			InMonth:    d.Month() == window.Start.Month(),
			IsToday:    key == todayKey,
			IsSelected: key == selectedKey,
			Entries:    dayEntries,
			Preview:    dayEntries,
		}
		if len(dayEntries) > PreviewLimit {
			c.Preview = dayEntries[:PreviewLimit]
			c.Overflow = len(dayEntries) - PreviewLimit
		}
		g.byDate[key] = len(g.Cells)
		g.Cells = append(g.Cells, c)
	}
	return g
}

// gridDays enumerates the grid's days with a daily rule. The rule
// produces wall-clock midnights, so DST transitions never shift a day.
func gridDays(window model.MonthWindow) []time.Time {
	start, end := window.GridStart(), window.GridEnd()
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Until:   end,
	})
	if err != nil {
		appLog.Error("grid: daily rule rejected; enumerating manually", err, "start", start)
		return enumerateDays(start, end)
	}
	return r.All()
}

func enumerateDays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
