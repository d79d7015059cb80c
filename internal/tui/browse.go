// Package tui is the terminal month browser.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"entcal/internal/calendar"
	"entcal/internal/viewmodel"
)

// responseMsg delivers a finished fetch to the event loop.
type responseMsg viewmodel.Response

// Model is the bubbletea model of the browser. The focused day is always
// the view's selected day.
type Model struct {
	ctx    context.Context
	vm     *viewmodel.Month
	loader viewmodel.Loader
	norm   *calendar.Normalizer
	styles Styles

	spinner spinner.Model
	focus   time.Time
	entry   int
	notice  string
}

// NewModel creates a browser over vm, focused on today when it lies in
// the view's month and on the 1st otherwise.
func NewModel(ctx context.Context, vm *viewmodel.Month, loader viewmodel.Loader, norm *calendar.Normalizer) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	focus := vm.Cursor()
	if today := time.Now().In(focus.Location()); vm.Window().Contains(today) {
		focus = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, focus.Location())
	}
	vm.SelectDay(focus)

	return Model{
		ctx:     ctx,
		vm:      vm,
		loader:  loader,
		norm:    norm,
		styles:  DefaultStyles(),
		spinner: sp,
		focus:   focus,
	}
}

// Init issues the first load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(m.vm.Load()))
}

func (m Model) fetch(req viewmodel.Request) tea.Cmd {
	ctx, loader, norm := m.ctx, m.loader, m.norm
	return func() tea.Msg {
		return responseMsg(viewmodel.Fetch(ctx, loader, norm, req))
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case responseMsg:
		// Responses for months the user already left are dropped here.
		m.vm.Apply(viewmodel.Response(msg))
		m.entry = 0
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "n", "pgdown", "]":
		return m.moveFocus(shiftMonth(m.focus, 1))
	case "p", "pgup", "[":
		return m.moveFocus(shiftMonth(m.focus, -1))
	case "right", "l":
		return m.moveFocus(m.focus.AddDate(0, 0, 1))
	case "left", "h":
		return m.moveFocus(m.focus.AddDate(0, 0, -1))
	case "down", "j":
		return m.moveFocus(m.focus.AddDate(0, 0, 7))
	case "up", "k":
		return m.moveFocus(m.focus.AddDate(0, 0, -7))
	case "tab":
		if n := len(m.vm.SelectedEntries()); n > 0 {
			m.entry = (m.entry + 1) % n
		}
		return m, nil
	case "r":
		return m, m.fetch(m.vm.Load())
	case "enter":
		entries := m.vm.SelectedEntries()
		if m.entry >= len(entries) {
			return m, nil
		}
		if route, ok := m.vm.ClickEvent(entries[m.entry].ID); ok {
			m.notice = "open " + route
		} else {
			m.notice = "event has no valid id; not opened"
		}
		return m, nil
	}
	return m, nil
}

// moveFocus selects day, switching months (and fetching) when day lies
// outside the displayed month.
func (m Model) moveFocus(day time.Time) (tea.Model, tea.Cmd) {
	m.focus = day
	m.entry = 0
	m.notice = ""
	var cmd tea.Cmd
	if !m.vm.Window().Contains(day) {
		cmd = tea.Batch(m.spinner.Tick, m.fetch(m.vm.Goto(day)))
	}
	m.vm.SelectDay(day)
	return m, cmd
}

// shiftMonth moves d by n months, clamping the day to the target month's
// length so Jan 31 + 1 lands on the last day of February.
func shiftMonth(d time.Time, n int) time.Time {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d.Day(), last)-1)
}

// View renders the browser.
func (m Model) View() string {
	var sb strings.Builder
	title := strings.ToUpper(string(m.vm.Kind())) + " " + m.vm.EntityID()
	sb.WriteString(m.styles.Muted.Render(title))
	sb.WriteString("\n")

	switch m.vm.State() {
	case viewmodel.Loading:
		sb.WriteString(m.spinner.View() + " " + m.vm.Message() + "\n")
		return sb.String()
	case viewmodel.Failed:
		sb.WriteString(m.styles.Title.Render(m.vm.Window().Label()))
		sb.WriteString("\n")
		sb.WriteString(m.styles.Error.Render(m.vm.Message()))
		sb.WriteString("\n\n" + m.help())
		return sb.String()
	}

	sb.WriteString(RenderGrid(m.vm.Grid(), m.styles))
	if m.vm.State() == viewmodel.Empty {
		sb.WriteString(m.styles.Muted.Render(m.vm.Message()))
		sb.WriteString("\n")
	}
	if m.vm.Stale() {
		sb.WriteString(m.styles.Muted.Render("(cached; refreshing)"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.Focus.Render(m.focus.Format("Monday, January 2")))
	sb.WriteString("\n")
	sb.WriteString(RenderEntries(m.vm.SelectedEntries(), m.entry, m.styles))
	if m.notice != "" {
		sb.WriteString("\n" + m.notice + "\n")
	}
	sb.WriteString("\n" + m.help())
	return sb.String()
}

func (m Model) help() string {
	return m.styles.Muted.Render("←↑↓→ day · n/p month · tab event · enter open · r reload · q quit")
}

// Run starts the browser on the terminal and blocks until it exits.
func Run(ctx context.Context, vm *viewmodel.Month, loader viewmodel.Loader, norm *calendar.Normalizer) error {
	_, err := tea.NewProgram(NewModel(ctx, vm, loader, norm), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
