// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"todo/internal/listsync"
	"todo/internal/service"
)

const (
	// PageWindowSize is the number of page links shown around the current page.
	PageWindowSize = 5

	// DueLayout formats due dates in local time.
	DueLayout = "2006-01-02 15:04"
)

// Printer renders tasks to a writer. Styling is dropped automatically when
// the writer is not a terminal.
type Printer struct {
	w io.Writer

	title    lipgloss.Style
	done     lipgloss.Style
	muted    lipgloss.Style
	overdue  lipgloss.Style
	current  lipgloss.Style
	priority map[service.Priority]lipgloss.Style
}

// NewPrinter creates a Printer writing to w. With plain set, no styling
// is emitted even on a terminal.
func NewPrinter(w io.Writer, plain bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if plain {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		w:       w,
		title:   r.NewStyle(),
		done:    r.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("245")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		overdue: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		current: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		priority: map[service.Priority]lipgloss.Style{
			service.PriorityUrgent: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			service.PriorityHigh:   r.NewStyle().Foreground(lipgloss.Color("214")),
			service.PriorityMedium: r.NewStyle().Foreground(lipgloss.Color("39")),
			service.PriorityLow:    r.NewStyle().Foreground(lipgloss.Color("42")),
		},
	}
}

// Task writes one task line.
// Format: "{N:>4}  [x] {TITLE}  {PRIORITY}[  due {DATE}][  overdue]\n"
func (p *Printer) Task(num int, task service.Task, now time.Time) {
	mark := "[ ]"
	title := p.title.Render(normalizeTitle(task.Title))
	if task.Completed {
		mark = "[x]"
		title = p.done.Render(normalizeTitle(task.Title))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%4d  %s %s  %s", num, mark, title, p.PriorityBadge(task.Priority))
	if task.DueDate != nil {
		b.WriteString("  ")
		b.WriteString(p.muted.Render("due " + task.DueDate.In(now.Location()).Format(DueLayout)))
		if !task.Completed && task.DueDate.Before(now) {
			b.WriteString("  ")
			b.WriteString(p.overdue.Render("overdue"))
		}
	}
	fmt.Fprintln(p.w, b.String())
}

// PriorityBadge returns the styled priority label.
func (p *Printer) PriorityBadge(pr service.Priority) string {
	pr = pr.OrDefault()
	return p.priority[pr].Render(pr.Label())
}

// Snapshot writes the page: a header naming the active filters, one line
// per task numbered from 1, and the pagination bar.
func (p *Printer) Snapshot(snap listsync.Snapshot, now time.Time) {
	if h := FilterSummary(snap.Query); h != "" {
		fmt.Fprintln(p.w, p.muted.Render(h))
	}
	if len(snap.Tasks) == 0 {
		fmt.Fprintln(p.w, "No tasks.")
	}
	for i, task := range snap.Tasks {
		p.Task(i+1, task, now)
	}
	if bar := p.PaginationBar(snap.Pagination); bar != "" {
		fmt.Fprintln(p.w, bar)
	}
}

// PaginationBar renders "« 1 … 4 [5] 6 … 9 »" style navigation, or "" for a
// single page.
func (p *Printer) PaginationBar(pg service.Pagination) string {
	items := PageWindow(pg.CurrentPage, pg.TotalPages, PageWindowSize)
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items)+2)
	if pg.HasPrev {
		parts = append(parts, "«")
	}
	for _, it := range items {
		switch {
		case it.Ellipsis:
			parts = append(parts, "…")
		case it.Current:
			parts = append(parts, p.current.Render("["+strconv.Itoa(it.Page)+"]"))
		default:
			parts = append(parts, strconv.Itoa(it.Page))
		}
	}
	if pg.HasNext {
		parts = append(parts, "»")
	}
	return fmt.Sprintf("page %d of %d  %s", pg.CurrentPage, pg.TotalPages, strings.Join(parts, " "))
}

// PageItem is one entry of a pagination bar.
type PageItem struct {
	Page     int
	Current  bool
	Ellipsis bool
}

// PageWindow returns up to size page numbers centered on current, plus the
// first and last page with ellipses where pages are skipped. It returns nil
// when there is at most one page.
func PageWindow(current, total, size int) []PageItem {
	if total <= 1 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start := current - size/2
	if start < 1 {
		start = 1
	}
	end := start + size - 1
	if end > total {
		end = total
	}
	if end-start+1 < size {
		start = end - size + 1
		if start < 1 {
			start = 1
		}
	}

	var items []PageItem
	if start > 1 {
		items = append(items, PageItem{Page: 1})
		if start > 2 {
			items = append(items, PageItem{Ellipsis: true})
		}
	}
	for i := start; i <= end; i++ {
		items = append(items, PageItem{Page: i, Current: i == current})
	}
	if end < total {
		if end < total-1 {
			items = append(items, PageItem{Ellipsis: true})
		}
		items = append(items, PageItem{Page: total})
	}
	return items
}

// FilterSummary describes the non-default parts of q, or "" if none.
func FilterSummary(q service.Query) string {
	var parts []string
	if q.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", q.Search))
	}
	if q.Status != "" && q.Status != service.StatusAll {
		parts = append(parts, "status "+q.Status)
	}
	if q.Priority != "" && q.Priority != service.PriorityAll {
		parts = append(parts, "priority "+service.Priority(q.Priority).Label())
	}
	if len(parts) == 0 {
		return ""
	}
	return "filter: " + strings.Join(parts, ", ")
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
