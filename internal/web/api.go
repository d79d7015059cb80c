package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"entcal/internal/calendar"
	appLog "entcal/internal/log"
	"entcal/internal/metrics"
	"entcal/internal/model"
	"entcal/internal/viewmodel"
)

// monthResponse is the JSON response shape for /api/calendar/{kind}/{id}.
type monthResponse struct {
	Kind     model.EntityKind `json:"kind"`
	EntityID string           `json:"entity_id"`
	Month    string           `json:"month"`
	Label    string           `json:"label"`
	Start    string           `json:"window_start"`
	End      string           `json:"window_end"`
	Timezone string           `json:"timezone"`

	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Stale   bool   `json:"stale"`

	Weeks   [][]calendar.Cell `json:"weeks"`
	Entries []model.Entry     `json:"entries"`

	Selected        string        `json:"selected,omitempty"`
	SelectedEntries []model.Entry `json:"selected_entries,omitempty"`
}

// dayResponse is the side panel for one date.
type dayResponse struct {
	Date    string        `json:"date"`
	State   string        `json:"state"`
	Message string        `json:"message,omitempty"`
	Entries []model.Entry `json:"entries"`
}

type navigateResponse struct {
	Route string `json:"route"`
}

// badRequest is returned by request parsing helpers.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// monthFromRequest builds the view for the request's kind, id and month
// query, and loads it synchronously.
func (s *Server) monthFromRequest(r *http.Request, cursor time.Time) (*viewmodel.Month, error) {
	kind, err := model.ParseEntityKind(r.PathValue("kind"))
	if err != nil {
		return nil, badRequest{err.Error()}
	}
	id := r.PathValue("id")
	if id == "" {
		return nil, badRequest{"entity id is required"}
	}

	loc := s.cfg().Location()
	if cursor.IsZero() {
		cursor, err = parseMonth(r.URL.Query().Get("month"), s.now().In(loc), loc)
		if err != nil {
			return nil, badRequest{err.Error()}
		}
	}

	vm := viewmodel.New(kind, id, cursor, viewmodel.Options{Location: loc, Now: s.now})
	req := vm.Load()
	vm.Apply(viewmodel.Fetch(r.Context(), s.loader, s.normalizer(), req))
	return vm, nil
}

// parseMonth parses YYYY-MM, defaulting to the month of now.
func parseMonth(v string, now time.Time, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(model.MonthLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("month %q: want YYYY-MM", v)
	}
	return t, nil
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", v)
	}
	return t, nil
}

// failureStatus maps a failed view to an HTTP status.
func failureStatus(vm *viewmodel.Month) int {
	if errors.Is(vm.Err(), model.ErrUnparseablePayload) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func writeRequestError(w http.ResponseWriter, err error) {
	var br badRequest
	if errors.As(err, &br) {
		writeError(w, http.StatusBadRequest, br.msg)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

// handleMonth returns the month view.
//
// GET /api/calendar/{kind}/{id}?month=YYYY-MM&selected=YYYY-MM-DD
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	vm, err := s.monthFromRequest(r, time.Time{})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if sel := r.URL.Query().Get("selected"); sel != "" {
		d, err := parseDate(sel, s.cfg().Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		vm.SelectDay(d)
	}

	resp := buildMonthResponse(vm, s.cfg().Location())
	status := http.StatusOK
	if vm.State() == viewmodel.Failed {
		status = failureStatus(vm)
		appLog.Error("api month request failed", vm.Err(),
			"request_id", RequestID(r.Context()),
			"key", vm.Key().String(),
		)
	}
	writeJSON(w, status, resp)
}

func buildMonthResponse(vm *viewmodel.Month, loc *time.Location) monthResponse {
	window := vm.Window()
	grid := vm.Grid()
	resp := monthResponse{
		Kind:     vm.Kind(),
		EntityID: vm.EntityID(),
		Month:    vm.Cursor().Format(model.MonthLayout),
		Label:    window.Label(),
		Start:    window.Start.Format(model.DateLayout),
		End:      window.End.Format(model.DateLayout),
		Timezone: loc.String(),
		State:    vm.State().String(),
		Message:  vm.Message(),
		Stale:    vm.Stale(),
		Weeks:    grid.Weeks(),
		Entries:  vm.Entries(),
	}
	if resp.Entries == nil {
		resp.Entries = []model.Entry{}
	}
	if sel := vm.Selected(); !sel.IsZero() {
		resp.Selected = sel.Format(model.DateLayout)
		resp.SelectedEntries = vm.SelectedEntries()
	}
	return resp
}

// handleDay lists every entry of one date.
//
// GET /api/calendar/{kind}/{id}/days/{date}
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	d, err := parseDate(r.PathValue("date"), s.cfg().Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vm, err := s.monthFromRequest(r, d)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	vm.SelectDay(d)

	resp := dayResponse{
		Date:    d.Format(model.DateLayout),
		State:   vm.State().String(),
		Message: vm.Message(),
		Entries: vm.SelectedEntries(),
	}
	if resp.Entries == nil {
		resp.Entries = []model.Entry{}
	}
	if vm.State() == viewmodel.Failed {
		writeJSON(w, failureStatus(vm), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNavigate resolves an event click to its detail route. Invalid
// identifiers are a silent no-op.
//
// GET /api/navigate?event_id=<uuid>
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	route, ok := calendar.ClickHandler{}.Click(r.URL.Query().Get("event_id"))
	if !ok {
		metrics.EventClicks.WithLabelValues("rejected").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	metrics.EventClicks.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, navigateResponse{Route: route})
}
