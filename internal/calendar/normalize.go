// Package calendar turns backend month payloads into UI-ready entries and
// lays them out on a Sunday-first month grid.
package calendar

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"entcal/internal/model"
)

// Normalizer converts DayMaps into sorted entries.
type Normalizer struct {
	// Location is where date keys and times are interpreted.
	Location *time.Location
	// Fallback is the status of events with no status and no tickets.
	Fallback model.Status
}

// NewNormalizer returns a Normalizer with the Cancelled fallback.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{Location: loc, Fallback: model.StatusCancelled}
}

// InferStatus applies the status priority: cancelled, sold out,
// postponed, tickets on sale, then fallback.
func InferStatus(ev model.RawEvent, fallback model.Status) model.Status {
	switch ev.Status {
	case model.RawStatusCancelled:
		return model.StatusCancelled
	case model.RawStatusSoldOut:
		return model.StatusSoldOut
	case model.RawStatusPostponed:
		return model.StatusPostponed
	}
	if ev.HasTickets {
		return model.StatusOnSale
	}
	return fallback
}

// Normalize flattens days into entries sorted by StartsAt. Events on the
// same instant keep date-key then payload order. Only fields that kind
// carries are copied.
func (n *Normalizer) Normalize(kind model.EntityKind, days model.DayMap) ([]model.Entry, error) {
	loc := n.Location
	if loc == nil {
		loc = time.Local
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.Entry, 0, days.Count())
	for _, dateKey := range keys {
		evs := days[dateKey]
		if len(evs) == 0 {
			continue
		}
		day, err := time.ParseInLocation(model.DateLayout, dateKey, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: date key %q", model.ErrUnparseablePayload, dateKey)
		}

		for _, ev := range evs {
			startsAt := day
			if ev.Time != "" {
				offset, err := model.ParseClock(ev.Time)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", model.ErrUnparseablePayload, dateKey, err)
				}
				h, m, sec := int(offset/time.Hour), int(offset/time.Minute)%60, int(offset/time.Second)%60
				startsAt = time.Date(day.Year(), day.Month(), day.Day(), h, m, sec, 0, loc)
			}

			e := model.Entry{
				ID:         ev.ID,
				Name:       ev.Name,
				Date:       dateKey,
				Time:       ev.Time,
				Status:     InferStatus(ev, n.Fallback),
				HasTickets: ev.HasTickets,
				StartsAt:   startsAt,
			}
			if kind.HasVenueFields() {
				e.VenueName = ev.VenueName
				e.City = ev.City
			}
			if kind.HasGenre() {
				e.Genre = ev.Genre
			}
			out = append(out, e)
		}
	}

	slices.SortStableFunc(out, func(a, b model.Entry) int {
		return a.StartsAt.Compare(b.StartsAt)
	})
	return out, nil
}
