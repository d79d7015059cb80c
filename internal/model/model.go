package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of the date keys in backend calendar payloads.
const DateLayout = "2006-01-02"

// MonthLayout is the layout used for month cursors in URLs and flags.
const MonthLayout = "2006-01"

var ErrUnknownEntityKind = errors.New("unknown entity kind")

// EntityKind is the subject whose calendar is displayed.
type EntityKind string

const (
	KindArtist   EntityKind = "artist"
	KindVenue    EntityKind = "venue"
	KindPromoter EntityKind = "promoter"
)

// Kinds lists every supported entity kind.
var Kinds = []EntityKind{KindArtist, KindVenue, KindPromoter}

// ParseEntityKind accepts the singular or plural form, case-insensitively.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch k {
	case KindArtist, KindVenue, KindPromoter:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityKind, s)
}

// RPC returns the backend function name serving this kind's calendar.
func (k EntityKind) RPC() string {
	return "get_" + string(k) + "_calendar"
}

// IDParam is the named RPC argument carrying the entity identifier.
func (k EntityKind) IDParam() string {
	return string(k) + "_id"
}

// HasVenueFields reports whether raw events for this kind carry venue name/city.
func (k EntityKind) HasVenueFields() bool {
	return k == KindArtist || k == KindPromoter
}

// HasGenre reports whether raw events for this kind carry a genre.
func (k EntityKind) HasGenre() bool {
	return k == KindVenue || k == KindPromoter
}

// RawEvent is a calendar event as returned by the backend, before
// normalization. ID has already been coerced to a string.
type RawEvent struct {
	ID         string
	Name       string
	Time       string // "15:04" or "15:04:05"; empty when unknown
	Status     string // raw token; empty when absent
	HasTickets bool

	VenueName string
	City      string
	Genre     string
}

// DayMap is the sparse date-keyed payload: absent dates have no events.
type DayMap map[string][]RawEvent

// Count returns the number of events across all days.
func (d DayMap) Count() int {
	n := 0
	for _, evs := range d {
		n += len(evs)
	}
	return n
}

// Entry is a UI-ready calendar entry.
type Entry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Date       string `json:"date"`
	Time       string `json:"time,omitempty"`
	Status     Status `json:"status"`
	HasTickets bool   `json:"has_tickets"`

	VenueName string `json:"venue_name,omitempty"`
	City      string `json:"city,omitempty"`
	Genre     string `json:"genre,omitempty"`

	// StartsAt is date + time (midnight when time is absent) and exists
	// only for ordering.
	StartsAt time.Time `json:"starts_at"`
}

// Key identifies one month of one entity's calendar.
type Key struct {
	Kind     EntityKind
	EntityID string
	Year     int
	Month    time.Month
}

// KeyFor builds the key for the month containing cursor.
func KeyFor(kind EntityKind, entityID string, cursor time.Time) Key {
	return Key{Kind: kind, EntityID: entityID, Year: cursor.Year(), Month: cursor.Month()}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%04d-%02d", k.Kind, k.EntityID, k.Year, int(k.Month))
}

// Window returns the month window of the key in loc.
func (k Key) Window(loc *time.Location) MonthWindow {
	return WindowFor(time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, loc))
}
