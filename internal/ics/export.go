// Package ics exports a month of calendar entries as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"entcal/internal/calendar"
	appLog "entcal/internal/log"
	"entcal/internal/model"
)

// ProductID identifies feeds produced by this package.
const ProductID = "-//entcal//Entertainment Calendar//EN"

// FeedOptions describes the calendar the entries belong to.
type FeedOptions struct {
	// Name is shown by clients as the calendar title.
	Name string
	// Timezone is the IANA name advertised as X-WR-TIMEZONE.
	Timezone string
	// BaseURL, when set, is used to build per-event URLs for entries
	// whose ID passes calendar.ValidateEventID.
	BaseURL string
	// Stamp is the DTSTAMP of every event; zero means time.Now.
	Stamp time.Time
}

// Build converts entries into a calendar. Entries without a time become
// all-day events. Cancelled entries are kept with STATUS:CANCELLED so that
// subscribed clients drop them.
func Build(entries []model.Entry, opts FeedOptions) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for i, e := range entries {
		ev := cal.AddEvent(eventUID(e, i))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(e.Name)

		if e.Time == "" {
			ev.SetAllDayStartAt(e.StartsAt)
			ev.SetAllDayEndAt(e.StartsAt.AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(e.StartsAt.UTC())
		}

		if loc := location(e); loc != "" {
			ev.SetLocation(loc)
		}
		if e.Genre != "" {
			ev.AddProperty(ical.ComponentPropertyCategories, e.Genre)
		}
		ev.SetDescription(e.Status.Label())
		ev.SetProperty(ical.ComponentPropertyStatus, icalStatus(e.Status))
		if opts.BaseURL != "" && calendar.ValidateEventID(e.ID) == nil {
			ev.SetURL(strings.TrimRight(opts.BaseURL, "/") + calendar.EventRoute(e.ID))
		}
	}
	return cal
}

// Write serializes entries as an iCalendar feed to w.
func Write(w io.Writer, entries []model.Entry, opts FeedOptions) error {
	cal := Build(entries, opts)
	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("ics: write feed: %w", err)
	}
	appLog.Debug("ics feed written", "name", opts.Name, "event_count", len(entries))
	return nil
}

// eventUID is stable for a given entry so that clients update rather than
// duplicate events across refreshes.
func eventUID(e model.Entry, i int) string {
	if e.ID != "" {
		return e.ID + "@entcal"
	}
	return fmt.Sprintf("%s-%d@entcal", e.Date, i)
}

func location(e model.Entry) string {
	switch {
	case e.VenueName != "" && e.City != "":
		return e.VenueName + ", " + e.City
	case e.VenueName != "":
		return e.VenueName
	}
	return e.City
}

func icalStatus(s model.Status) string {
	switch s {
	case model.StatusCancelled:
		return "CANCELLED"
	case model.StatusPostponed:
		return "TENTATIVE"
	}
	return "CONFIRMED"
}
