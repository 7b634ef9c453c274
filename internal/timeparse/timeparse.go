// Package timeparse converts natural-language date/time phrases into
// absolute instants relative to a reference time. Parsing is pure: no
// I/O, deterministic given the same reference.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is the time of day assumed when an expression names a day
// but no clock time ("tomorrow" -> tomorrow 09:00).
const DefaultHour = 9

var canonicalLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"thur":      time.Thursday,
	"thurs":     time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
}

var (
	reHourMinOffset = regexp.MustCompile(`(?:in\s+)?(\d+)\s*(minutes?|mins?|hours?|hrs?)\s*(?:from now|later)?`)
	reDayOffset     = regexp.MustCompile(`(?:in\s+)?(\d+)\s*(?:more\s+)?days?\s*(?:from now|later)?`)
	rePlusDays      = regexp.MustCompile(`\+\s*(\d+)\s*(?:more\s+)?days?`)
	reQualifierTime = regexp.MustCompile(`(morning|afternoon|evening|night)\s*(\d{1,2})(?::(\d{2}))?`)
	reTimeQualifier = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)`)
	reOClock        = regexp.MustCompile(`(\d{1,2})\s*o'?clock`)
	reBareTime      = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?`)
)

// Parse interprets text as a natural-language date/time expression
// relative to ref. It returns ok=false on unparseable input.
func Parse(text string, ref time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range canonicalLayouts {
		if t, err := time.ParseInLocation(layout, text, ref.Location()); err == nil {
			if layout == "2006-01-02" || layout == "2006/01/02" {
				t = time.Date(t.Year(), t.Month(), t.Day(), DefaultHour, 0, 0, 0, ref.Location())
			}
			return t, true
		}
	}

	s := strings.ToLower(text)

	dayOffset := 0
	haveDay := false

	// Pure hour/minute offsets resolve immediately and skip the
	// time-of-day defaulting below.
	if m := reHourMinOffset.FindStringSubmatch(s); m != nil && coversDigits(s, reHourMinOffset) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		if strings.HasPrefix(m[2], "h") {
			return ref.Add(time.Duration(n) * time.Hour), true
		}
		return ref.Add(time.Duration(n) * time.Minute), true
	}

	if m := rePlusDays.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		dayOffset, haveDay = n, true
		s = strings.Replace(s, m[0], " ", 1)
	} else if m := reDayOffset.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		dayOffset, haveDay = n, true
		s = strings.Replace(s, m[0], " ", 1)
	}

	if !haveDay {
		switch {
		case strings.Contains(s, "day after tomorrow"):
			dayOffset, haveDay = 2, true
			s = strings.Replace(s, "day after tomorrow", " ", 1)
		case strings.Contains(s, "tomorrow"):
			dayOffset, haveDay = 1, true
			s = strings.Replace(s, "tomorrow", " ", 1)
		case strings.Contains(s, "yesterday"):
			dayOffset, haveDay = -1, true
			s = strings.Replace(s, "yesterday", " ", 1)
		case strings.Contains(s, "today"):
			dayOffset, haveDay = 0, true
			s = strings.Replace(s, "today", " ", 1)
		case strings.Contains(s, "tonight"):
			dayOffset, haveDay = 0, true
			s = strings.Replace(s, "tonight", " evening ", 1)
		}
	}

	if !haveDay {
		if off, rest, ok := weekdayOffset(s, ref); ok {
			dayOffset, haveDay = off, true
			s = rest
		}
	}

	hour, minute, haveTime := clockTime(s, ref)
	if !haveTime {
		hour, minute = DefaultHour, 0
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	// Reject leftover garbage: everything meaningful must have been
	// consumed by a recognized token.
	if !haveDay && !haveTime {
		return time.Time{}, false
	}

	day := ref.AddDate(0, 0, dayOffset)
	out := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, ref.Location())

	// No explicit date and the resolved instant already passed: the
	// speaker meant the next occurrence.
	if !haveDay && !out.After(ref) {
		out = out.AddDate(0, 0, 1)
	}
	return out, true
}

// weekdayOffset resolves a named weekday, optionally qualified by
// "next"/"next week", to a day offset from ref.
func weekdayOffset(s string, ref time.Time) (int, string, bool) {
	next := false
	if strings.Contains(s, "next week") {
		next = true
		s = strings.Replace(s, "next week", " ", 1)
	} else if strings.Contains(s, "next ") {
		next = true
		s = strings.Replace(s, "next ", " ", 1)
	}

	for _, f := range strings.Fields(s) {
		wd, ok := weekdays[f]
		if !ok {
			continue
		}
		delta := (int(wd) - int(ref.Weekday()) + 7) % 7
		if delta == 0 {
			// Same weekday as today rolls to next week.
			delta = 7
		}
		if next {
			delta += 7
			if delta > 13 {
				delta -= 7
			}
		}
		rest := strings.Replace(s, f, " ", 1)
		return delta, rest, true
	}
	return 0, s, false
}

// clockTime extracts an explicit time of day from s. Bare hours without
// an AM/PM qualifier go through the disambiguation heuristic.
func clockTime(s string, ref time.Time) (int, int, bool) {
	if m := reQualifierTime.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[2])
		min := atoiDefault(m[3])
		switch m[1] {
		case "afternoon", "evening", "night":
			if h < 12 {
				h += 12
			}
		case "morning":
			if h == 12 {
				h = 0
			}
		}
		return h, min, true
	}

	if m := reTimeQualifier.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := atoiDefault(m[2])
		pm := strings.HasPrefix(m[3], "p")
		if pm && h < 12 {
			h += 12
		}
		if !pm && h == 12 {
			h = 0
		}
		return h, min, true
	}

	if m := reOClock.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		return disambiguateHour(h), 0, true
	}

	if m := reBareTime.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := atoiDefault(m[2])
		if m[2] == "" {
			return disambiguateHour(h), min, true
		}
		if h <= 23 {
			return disambiguateHour(h), min, true
		}
	}

	return 0, 0, false
}

// disambiguateHour maps a bare hour with no AM/PM marker onto the
// 24-hour clock: 0-7 are taken as afternoon/evening, 8-10 as morning,
// 11-12 stay as spoken, 13-23 are already unambiguous.
func disambiguateHour(h int) int {
	switch {
	case h >= 0 && h <= 7:
		return h + 12
	case h >= 8 && h <= 10:
		return h
	default:
		return h
	}
}

var (
	reOffsetBefore = regexp.MustCompile(`(\d+)\s*(minutes?|mins?|hours?|hrs?)\s*(?:before|earlier)`)
	reOffsetAfter  = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?)\s*(?:after|later)`)
)

// ParseOffset recognizes "N minutes/hours before" (negative) and
// "N minutes after" (positive). Anything else is a zero offset.
func ParseOffset(text string) time.Duration {
	s := strings.ToLower(strings.TrimSpace(text))
	if m := reOffsetBefore.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "h") {
			return -time.Duration(n) * time.Hour
		}
		return -time.Duration(n) * time.Minute
	}
	if m := reOffsetAfter.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * time.Minute
	}
	return 0
}

// ReminderTime computes when + offset. Returns nil when either input is
// missing.
func ReminderTime(when *time.Time, offsetText string) *time.Time {
	if when == nil || strings.TrimSpace(offsetText) == "" {
		return nil
	}
	r := when.Add(ParseOffset(offsetText))
	return &r
}

// DefaultReminder applies the default-reminder policy: when - offset if
// that instant is still strictly in the future, else no reminder.
func DefaultReminder(when time.Time, now time.Time, offset time.Duration) *time.Time {
	r := when.Add(-offset)
	if !r.After(now) {
		return nil
	}
	return &r
}

// Until renders a human-relative description of t seen from now.
func Until(now, t time.Time) string {
	d := t.Sub(now)
	past := d < 0
	if past {
		d = -d
	}
	var s string
	switch {
	case d >= 48*time.Hour:
		s = strconv.Itoa(int(d.Hours()/24)) + " days"
	case d >= 2*time.Hour:
		s = strconv.Itoa(int(d.Hours())) + " hours"
	case d >= time.Minute:
		s = strconv.Itoa(int(d.Minutes())) + " minutes"
	default:
		return "moments"
	}
	if past {
		return s + " ago"
	}
	return "in " + s
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// coversDigits reports whether re's match consumes every digit run in s,
// so "3 days 2pm" is not mistaken for a bare "2pm" offset.
func coversDigits(s string, re *regexp.Regexp) bool {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return false
	}
	for i, r := range s {
		if r >= '0' && r <= '9' && (i < loc[0] || i >= loc[1]) {
			return false
		}
	}
	return true
}
