package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"entcal/internal/model"
)

// wireEvent mirrors one element of a day list in the RPC response.
type wireEvent struct {
	ID         json.RawMessage `json:"id"`
	Name       string          `json:"name"`
	Time       *string         `json:"time"`
	Status     *string         `json:"status"`
	HasTickets *bool           `json:"has_tickets"`
	VenueName  *string         `json:"venue_name"`
	City       *string         `json:"city"`
	Genre      *string         `json:"genre"`
}

// Decode parses a get_<kind>_calendar response into a DayMap.
//
// A JSON null body is an empty month. Every date key must parse as
// 2006-01-02 and fall inside window; ids must be strings or numbers;
// statuses must be absent or one of the known tokens; times must be
// 15:04 or 15:04:05. Violations wrap model.ErrUnparseablePayload.
func Decode(body []byte, window model.MonthWindow) (model.DayMap, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return model.DayMap{}, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected object, got %s", model.ErrUnparseablePayload, preview(trimmed))
	}

	var wire map[string][]wireEvent
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnparseablePayload, err)
	}

	loc := window.Start.Location()
	out := make(model.DayMap, len(wire))
	for dateKey, list := range wire {
		day, err := time.ParseInLocation(model.DateLayout, dateKey, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: date key %q", model.ErrUnparseablePayload, dateKey)
		}
		if !window.Contains(day) {
			return nil, fmt.Errorf("%w: date key %q outside %s..%s", model.ErrUnparseablePayload,
				dateKey, window.Start.Format(model.DateLayout), window.End.Format(model.DateLayout))
		}
		if len(list) == 0 {
			continue
		}

		events := make([]model.RawEvent, 0, len(list))
		for i, we := range list {
			ev, err := decodeEvent(we)
			if err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %v", model.ErrUnparseablePayload, dateKey, i, err)
			}
			events = append(events, ev)
		}
		out[dateKey] = events
	}
	return out, nil
}

func decodeEvent(we wireEvent) (model.RawEvent, error) {
	id, err := coerceID(we.ID)
	if err != nil {
		return model.RawEvent{}, err
	}
	ev := model.RawEvent{
		ID:         id,
		Name:       we.Name,
		HasTickets: we.HasTickets != nil && *we.HasTickets,
		VenueName:  deref(we.VenueName),
		City:       deref(we.City),
		Genre:      deref(we.Genre),
	}

	if we.Status != nil {
		s := strings.TrimSpace(*we.Status)
		if !model.IsRawStatus(s) {
			return model.RawEvent{}, fmt.Errorf("unknown status %q", s)
		}
		ev.Status = s
	}

	if we.Time != nil {
		t := strings.TrimSpace(*we.Time)
		if t != "" {
			if _, err := model.ParseClock(t); err != nil {
				return model.RawEvent{}, err
			}
		}
		ev.Time = t
	}
	return ev, nil
}

// coerceID turns a JSON string or number into its string form. The value
// is not validated beyond its JSON type; a missing id becomes "".
func coerceID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		// Left for the click validator to reject.
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("id: %v", err)
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("id: %v", err)
		}
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("id must be string or number, got %s", preview(raw))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func preview(b []byte) string {
	const limit = 32
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
