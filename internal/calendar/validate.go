package calendar

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	appLog "entcal/internal/log"
)

var ErrInvalidEventID = errors.New("invalid event id")

// canonicalLen is the length of the hyphenated 8-4-4-4-12 form. uuid.Parse
// also takes braced, urn: and bare-hex forms, which are not routable.
const canonicalLen = 36

// ValidateEventID checks that id can safely be routed to an event detail
// page. Identifiers arrive through an untyped hop, so stringified
// placeholders are rejected explicitly.
func ValidateEventID(id string) error {
	switch id {
	case "":
		return fmt.Errorf("%w: empty", ErrInvalidEventID)
	case "NaN", "undefined":
		return fmt.Errorf("%w: placeholder %q", ErrInvalidEventID, id)
	}
	if len(id) != canonicalLen {
		return fmt.Errorf("%w: %q is not a uuid", ErrInvalidEventID, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q is not a uuid", ErrInvalidEventID, id)
	}
	return nil
}

// EventRoute is the detail page path for a validated id.
func EventRoute(id string) string {
	return "/events/" + id
}

// ClickHandler gates event clicks behind ValidateEventID. OnEventClick is
// only ever called with valid identifiers; rejected clicks are logged and
// dropped.
type ClickHandler struct {
	OnEventClick func(id string)
}

// Click returns the route navigated to, or false when the click was
// suppressed.
func (h ClickHandler) Click(id string) (string, bool) {
	if err := ValidateEventID(id); err != nil {
		appLog.Warn("event click suppressed", "reason", err.Error())
		return "", false
	}
	if h.OnEventClick != nil {
		h.OnEventClick(id)
	}
	return EventRoute(id), true
}
