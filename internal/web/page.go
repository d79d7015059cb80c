package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"entcal/internal/calendar"
	"entcal/internal/ics"
	appLog "entcal/internal/log"
	"entcal/internal/model"
	"entcal/internal/viewmodel"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"eventHref": eventHref,
	"weekdays":  func() []string { return []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"} },
}).ParseFS(templateFS, "templates/*.html"))

// eventHref is the detail link of an entry, or "" when its id is not
// routable. Such entries render as plain text.
func eventHref(id string) string {
	if calendar.ValidateEventID(id) != nil {
		return ""
	}
	return calendar.EventRoute(id)
}

// monthPage is the data of templates/month.html.
type monthPage struct {
	Title    string
	Month    string
	Label    string
	State    string
	Message  string
	Stale    bool
	Weeks    [][]calendar.Cell
	Selected string
	Panel    []model.Entry

	PrevURL string
	NextURL string
	ICSURL  string
}

// handleCalendar renders the month page, or the ICS feed for ids ending
// in ".ics".
//
// GET /calendar/{kind}/{id}?month=YYYY-MM&selected=YYYY-MM-DD
// GET /calendar/{kind}/{id}.ics?month=YYYY-MM
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if id, ok := strings.CutSuffix(r.PathValue("id"), ".ics"); ok {
		r.SetPathValue("id", id)
		s.handleICS(w, r)
		return
	}

	vm, err := s.monthFromRequest(r, time.Time{})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if sel := r.URL.Query().Get("selected"); sel != "" {
		if d, err := parseDate(sel, s.cfg().Location()); err == nil {
			vm.SelectDay(d)
		}
	}

	base := "/calendar/" + string(vm.Kind()) + "/" + url.PathEscape(vm.EntityID())
	window := vm.Window()
	page := monthPage{
		Title:   strings.ToUpper(string(vm.Kind())[:1]) + string(vm.Kind())[1:] + " calendar",
		Month:   window.Start.Format(model.MonthLayout),
		Label:   window.Label(),
		State:   vm.State().String(),
		Message: vm.Message(),
		Stale:   vm.Stale(),
		Weeks:   vm.Grid().Weeks(),
		PrevURL: base + "?month=" + window.Prev().Start.Format(model.MonthLayout),
		NextURL: base + "?month=" + window.Next().Start.Format(model.MonthLayout),
		ICSURL:  base + ".ics?month=" + window.Start.Format(model.MonthLayout),
	}
	if sel := vm.Selected(); !sel.IsZero() {
		page.Selected = sel.Format("Monday, January 2")
		page.Panel = vm.SelectedEntries()
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "month.html", page); err != nil {
		appLog.Error("render month page failed", err, "key", vm.Key().String())
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if vm.State() == viewmodel.Failed {
		status = failureStatus(vm)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// handleICS serves the month as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	vm, err := s.monthFromRequest(r, time.Time{})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if vm.State() == viewmodel.Failed {
		writeError(w, failureStatus(vm), vm.Message())
		return
	}

	cfg := s.cfg()
	var buf bytes.Buffer
	err = ics.Write(&buf, vm.Entries(), ics.FeedOptions{
		Name:     string(vm.Kind()) + " " + vm.EntityID() + " " + vm.Window().Label(),
		Timezone: cfg.Location().String(),
		BaseURL:  cfg.PublicURL,
		Stamp:    s.now(),
	})
	if err != nil {
		appLog.Error("ics export failed", err, "key", vm.Key().String())
		writeError(w, http.StatusInternalServerError, "ics export failed")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(vm.Kind())+"-"+vm.Cursor().Format(model.MonthLayout)+`.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// handlePreview captures the month page with a headless browser.
//
// GET /calendar/{kind}/{id}/preview.png?month=YYYY-MM
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.capturer == nil {
		writeError(w, http.StatusServiceUnavailable, "preview capture is not configured")
		return
	}
	kind, err := model.ParseEntityKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	target := PageURL(s.cfg().PublicURL, kind, r.PathValue("id"), r.URL.Query().Get("month"))
	png, err := s.capturer.Capture(r.Context(), target)
	if err != nil {
		appLog.Error("preview capture failed", err, "request_id", RequestID(r.Context()), "url", target)
		writeError(w, http.StatusBadGateway, "preview capture failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// PageURL is the absolute URL of a month page under publicURL.
func PageURL(publicURL string, kind model.EntityKind, id, month string) string {
	u := strings.TrimRight(publicURL, "/") + "/calendar/" + string(kind) + "/" + url.PathEscape(id)
	if month != "" {
		u += "?month=" + url.QueryEscape(month)
	}
	return u
}
