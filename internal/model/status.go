package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the display status of a calendar entry.
type Status int

const (
	StatusUnlisted Status = iota
	StatusOnSale
	StatusSoldOut
	StatusCancelled
	StatusPostponed
)

// Raw status tokens sent by the backend, matched exactly. An absent
// status is the empty string.
const (
	RawStatusCancelled = "cancelled"
	RawStatusSoldOut   = "sold_out"
	RawStatusPostponed = "postponed"
)

// IsRawStatus reports whether s may appear in a backend status field.
func IsRawStatus(s string) bool {
	switch s {
	case "", RawStatusCancelled, RawStatusSoldOut, RawStatusPostponed:
		return true
	}
	return false
}

var statusNames = map[Status]string{
	StatusUnlisted:  "unlisted",
	StatusOnSale:    "on_sale",
	StatusSoldOut:   RawStatusSoldOut,
	StatusCancelled: RawStatusCancelled,
	StatusPostponed: RawStatusPostponed,
}

var statusLabels = map[Status]string{
	StatusUnlisted:  "Unlisted",
	StatusOnSale:    "On Sale",
	StatusSoldOut:   "Sold Out",
	StatusCancelled: "Cancelled",
	StatusPostponed: "Postponed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Label is the human-readable form shown in the grid.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return s.String()
}

// ParseStatus parses a status name as written by String.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return StatusUnlisted, fmt.Errorf("unknown status %q", s)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	st, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s Status) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
