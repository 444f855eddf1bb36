package tasklist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/truncate"

	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/theme"
)

// maxTagsShown caps the tag badges drawn on one line.
const maxTagsShown = 2

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.Task
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title }

// Title returns the task title for the list.
func (i TaskItem) Title() string { return i.Task.Title }

// Description returns a short summary line for the list.
func (i TaskItem) Description() string {
	parts := []string{string(i.Task.Priority)}
	if i.Task.DueDate != nil {
		parts = append(parts, "due "+i.Task.DueDate.Format("Jan 02"))
	}
	parts = append(parts, relativeTime(i.Task.UpdatedAt, time.Now()))
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering tasks.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}
	line := renderTask(ti.Task, d.clock(), m.Width())

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

func (d ItemDelegate) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

// renderTask builds the row text for a task: completion mark, priority,
// title, tags, due date and an overdue flag.
func renderTask(t model.Task, now time.Time, width int) string {
	prefix := "○"
	if t.Completed {
		prefix = "✓"
	}

	overdue := t.IsOverdue(now)
	mark := theme.CompletionStyle(t.Completed, overdue).Render(prefix)
	pri := theme.PriorityStyle(t.Priority).Render(priorityLabel(t.Priority))

	title := t.Title
	if width > 30 {
		title = truncate.StringWithTail(title, uint(width/2), "…")
	}

	tagBadge := ""
	if len(t.Tags) > 0 {
		shown := t.Tags
		if len(shown) > maxTagsShown {
			shown = append(append([]string(nil), shown[:maxTagsShown]...), "…")
		}
		tagBadge = theme.TagStyle.Render(" #" + strings.Join(shown, " #"))
	}

	due := ""
	if t.DueDate != nil {
		due = theme.DueDateStyle.Render(" " + t.DueDate.Local().Format("Jan 02"))
	}

	overdueStr := ""
	if overdue {
		overdueStr = theme.OverdueStyle.Render(" OVERDUE")
	}

	line := fmt.Sprintf("%s %s %s%s%s%s", mark, pri, title, tagBadge, due, overdueStr)
	if t.Completed {
		line = theme.DimmedStyle.Render(line)
	}
	return line
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "HIGH"
	case model.PriorityMedium:
		return "MED "
	case model.PriorityLow:
		return "LOW "
	default:
		return "?   "
	}
}
