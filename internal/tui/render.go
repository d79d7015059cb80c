package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"entcal/internal/calendar"
	"entcal/internal/model"
)

const cellWidth = 16

// Styles groups the lipgloss styles used by the calendar views.
type Styles struct {
	Title    lipgloss.Style
	Weekday  lipgloss.Style
	Cell     lipgloss.Style
	OutCell  lipgloss.Style
	Today    lipgloss.Style
	Selected lipgloss.Style
	More     lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Focus    lipgloss.Style

	Status map[model.Status]lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	cell := lipgloss.NewStyle().Width(cellWidth).Height(4).Padding(0, 1)
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Weekday:  lipgloss.NewStyle().Width(cellWidth).Padding(0, 1).Bold(true),
		Cell:     cell,
		OutCell:  cell.Foreground(lipgloss.Color("240")),
		Today:    lipgloss.NewStyle().Bold(true).Underline(true),
		Selected: cell.Background(lipgloss.Color("236")),
		More:     lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Focus:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Status: map[model.Status]lipgloss.Style{
			model.StatusOnSale:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			model.StatusSoldOut:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			model.StatusCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true),
			model.StatusPostponed: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		},
	}
}

// RenderGrid draws the month grid: a weekday header row then one row per
// week, each cell listing its preview entries and the "+N more" marker.
func RenderGrid(g calendar.Grid, st Styles) string {
	var sb strings.Builder
	sb.WriteString(st.Title.Render(g.Window.Label()))
	sb.WriteString("\n")

	header := make([]string, 0, 7)
	for _, d := range []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"} {
		header = append(header, st.Weekday.Render(d))
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
	sb.WriteString("\n")

	for _, week := range g.Weeks() {
		row := make([]string, 0, len(week))
		for _, c := range week {
			row = append(row, renderCell(c, st))
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderCell(c calendar.Cell, st Styles) string {
	style := st.Cell
	switch {
	case c.IsSelected:
		style = st.Selected
	case !c.InMonth:
		style = st.OutCell
	}

	num := fmt.Sprintf("%2d", c.Day())
	if c.IsToday {
		num = st.Today.Render(num)
	}
	lines := []string{num}
	for _, e := range c.Preview {
		lines = append(lines, statusStyle(st, e.Status).Render(truncate(e.Name, cellWidth-2)))
	}
	if c.Overflow > 0 {
		lines = append(lines, st.More.Render(fmt.Sprintf("+%d more", c.Overflow)))
	}
	return style.Render(strings.Join(lines, "\n"))
}

// RenderEntries lists entries for the side panel; focus marks one line,
// or none when negative.
func RenderEntries(entries []model.Entry, focus int, st Styles) string {
	if len(entries) == 0 {
		return st.Muted.Render("No events on this day.")
	}
	var sb strings.Builder
	for i, e := range entries {
		marker := "  "
		if i == focus {
			marker = st.Focus.Render("> ")
		}
		when := e.Time
		if when == "" {
			when = "all day"
		}
		where := e.VenueName
		if e.City != "" {
			where = strings.TrimPrefix(where+", "+e.City, ", ")
		}
		line := fmt.Sprintf("%s%-8s %s", marker, when, statusStyle(st, e.Status).Render(e.Name))
		if where != "" {
			line += st.Muted.Render("  " + where)
		}
		line += st.Muted.Render("  [" + e.Status.Label() + "]")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func statusStyle(st Styles, s model.Status) lipgloss.Style {
	if style, ok := st.Status[s]; ok {
		return style
	}
	return lipgloss.NewStyle()
}

func truncate(s string, l int) string {
	r := []rune(s)
	if len(r) > l {
		return string(r[:l-1]) + "…"
	}
	return s
}
