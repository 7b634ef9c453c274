// Package remind assembles notification payloads per task and reminder
// kind. Presentation logic, plus the progress-ratio computation.
package remind

import (
	"fmt"
	"strings"
	"time"

	"taskden/internal/model"
	"taskden/internal/timeparse"
)

type Kind string

const (
	KindNormal       Kind = "normal"
	KindOverdue      Kind = "overdue"
	KindDailySummary Kind = "daily_summary"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// ComputeSeverity tiers how long a deadline has been blown: under 3
// days mild, 3 to 6 days moderate, 7 days and up severe.
func ComputeSeverity(elapsed time.Duration) Severity {
	switch {
	case elapsed >= 7*24*time.Hour:
		return SeveritySevere
	case elapsed >= 3*24*time.Hour:
		return SeverityModerate
	default:
		return SeverityMild
	}
}

type SummaryLine struct {
	TaskID   string `json:"taskId"`
	Title    string `json:"title"`
	When     string `json:"when,omitempty"`
	Priority string `json:"priority"`
}

// Payload is the structured notification record.
type Payload struct {
	Kind     Kind     `json:"kind"`
	TaskID   string   `json:"taskId,omitempty"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Progress float64  `json:"progress"`
	TimeLeft string   `json:"timeLeft,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Actions  []string `json:"actions,omitempty"`
	Color    string   `json:"color"`
	Icon     string   `json:"icon"`

	DueToday []SummaryLine `json:"dueToday,omitempty"`
	Overdue  []SummaryLine `json:"overdue,omitempty"`
	Dateless []SummaryLine `json:"dateless,omitempty"`
}

// Progress computes the task's completion ratio. Subtasks win; else a
// clamped elapsed fraction between creation and deadline; else binary
// on status. Past the deadline the ratio collapses to the status.
func Progress(t model.Task, now time.Time) float64 {
	if len(t.Subtasks) > 0 {
		done := 0
		for _, st := range t.Subtasks {
			if st.Done {
				done++
			}
		}
		return float64(done) / float64(len(t.Subtasks))
	}
	if t.WhenTime != nil && !t.CreatedAt.IsZero() {
		if !now.Before(*t.WhenTime) {
			if t.Status == model.StatusCompleted {
				return 1
			}
			return 0
		}
		total := t.WhenTime.Sub(t.CreatedAt)
		if total <= 0 {
			return 0
		}
		frac := float64(now.Sub(t.CreatedAt)) / float64(total)
		if frac < 0 {
			return 0
		}
		if frac > 1 {
			return 1
		}
		return frac
	}
	if t.Status == model.StatusCompleted {
		return 1
	}
	return 0
}

func displayHints(p model.Priority) (color, icon string) {
	switch p {
	case model.PriorityHigh:
		return "red", "❗"
	case model.PriorityLow:
		return "green", "🌱"
	default:
		return "yellow", "🔔"
	}
}

// Build produces the payload for a single-task reminder.
func Build(t model.Task, kind Kind, now time.Time) Payload {
	color, icon := displayHints(t.Priority)
	p := Payload{
		Kind:     kind,
		TaskID:   t.ID,
		Title:    t.Title,
		Progress: Progress(t, now),
		Color:    color,
		Icon:     icon,
	}

	switch kind {
	case KindOverdue:
		elapsed := time.Duration(0)
		if t.WhenTime != nil {
			elapsed = now.Sub(*t.WhenTime)
			p.TimeLeft = timeparse.Until(now, *t.WhenTime)
		}
		p.Severity = ComputeSeverity(elapsed)
		p.Icon = "⏰"
		p.Message = fmt.Sprintf("Overdue: %s (%s)", t.Title, p.TimeLeft)
		p.Actions = []string{"complete", "reschedule"}
	default:
		if t.WhenTime != nil {
			p.TimeLeft = timeparse.Until(now, *t.WhenTime)
			p.Message = fmt.Sprintf("Reminder: %s due %s", t.Title, p.TimeLeft)
		} else {
			p.Message = "Reminder: " + t.Title
		}
		p.Actions = []string{"complete", "snooze"}
	}
	return p
}

func summaryLines(tasks []model.Task, now time.Time) []SummaryLine {
	lines := make([]SummaryLine, 0, len(tasks))
	for _, t := range tasks {
		line := SummaryLine{TaskID: t.ID, Title: t.Title, Priority: string(t.Priority)}
		if t.WhenTime != nil {
			line.When = timeparse.Until(now, *t.WhenTime)
		}
		lines = append(lines, line)
	}
	return lines
}

// BuildSummary aggregates the once-a-day digest: tasks due today,
// pending tasks overdue from before today, and dateless pending tasks.
func BuildSummary(dueToday, overdue, dateless []model.Task, now time.Time) Payload {
	return Payload{
		Kind:     KindDailySummary,
		Message:  fmt.Sprintf("Daily summary: %d due today, %d overdue, %d unscheduled", len(dueToday), len(overdue), len(dateless)),
		Color:    "blue",
		Icon:     "📋",
		DueToday: summaryLines(dueToday, now),
		Overdue:  summaryLines(overdue, now),
		Dateless: summaryLines(dateless, now),
	}
}

// Text flattens a payload to the legacy human-readable block.
func (p Payload) Text() string {
	var b strings.Builder
	b.WriteString(p.Icon)
	b.WriteString(" ")
	b.WriteString(p.Message)
	if p.Severity != "" {
		fmt.Fprintf(&b, " [%s]", p.Severity)
	}
	if p.Kind != KindDailySummary {
		fmt.Fprintf(&b, " (%.0f%% done)", p.Progress*100)
	}
	for _, group := range [][]SummaryLine{p.DueToday, p.Overdue, p.Dateless} {
		for _, line := range group {
			b.WriteString("\n- ")
			b.WriteString(line.Title)
			if line.When != "" {
				b.WriteString(" (" + line.When + ")")
			}
		}
	}
	return b.String()
}
