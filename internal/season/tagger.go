package season

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	PresetDefault  = "default"
	PresetCalendar = "calendar"
)

// Window is an inclusive day range within one month.
type Window struct {
	Label   Festival   `json:"label"`
	Month   time.Month `json:"month"`
	FromDay int        `json:"from_day"`
	ToDay   int        `json:"to_day"`
}

func (w Window) contains(t time.Time) bool {
	return t.Month() == w.Month && t.Day() >= w.FromDay && t.Day() <= w.ToDay
}

func (w Window) overlaps(o Window) bool {
	return w.Month == o.Month && w.FromDay <= o.ToDay && o.FromDay <= w.ToDay
}

// DefaultWindows is the stock festival table.
func DefaultWindows() []Window {
	return []Window{
		{Label: NewYear, Month: time.January, FromDay: 1, ToDay: 15},
		{Label: Holi, Month: time.March, FromDay: 1, ToDay: 20},
		{Label: Eid, Month: time.April, FromDay: 1, ToDay: 25},
		{Label: Independence, Month: time.August, FromDay: 1, ToDay: 30},
		{Label: Dussehra, Month: time.October, FromDay: 1, ToDay: 15},
		{Label: Diwali, Month: time.February, FromDay: 1, ToDay: 15},
		{Label: Christmas, Month: time.December, FromDay: 1, ToDay: 25},
	}
}

// CalendarWindows follows the usual calendar placement of each festival.
func CalendarWindows() []Window {
	return []Window{
		{Label: NewYear, Month: time.January, FromDay: 1, ToDay: 15},
		{Label: Holi, Month: time.March, FromDay: 1, ToDay: 20},
		{Label: Eid, Month: time.April, FromDay: 10, ToDay: 20},
		{Label: Independence, Month: time.August, FromDay: 15, ToDay: 31},
		{Label: Dussehra, Month: time.October, FromDay: 20, ToDay: 31},
		{Label: Diwali, Month: time.November, FromDay: 1, ToDay: 15},
		{Label: Christmas, Month: time.December, FromDay: 20, ToDay: 31},
	}
}

// PresetWindows returns the named window table.
func PresetWindows(name string) ([]Window, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDefault:
		return DefaultWindows(), nil
	case PresetCalendar:
		return CalendarWindows(), nil
	default:
		return nil, fmt.Errorf("unknown festival preset %q", name)
	}
}

// Tagger assigns festival labels from an ordered window table.
type Tagger struct {
	windows []Window
}

// NewTagger validates the windows. Labels must be known festivals other than
// None, day ranges must fit the month and windows must not overlap.
func NewTagger(windows []Window) (*Tagger, error) {
	for i, w := range windows {
		if _, ok := ParseFestival(string(w.Label)); !ok || w.Label == None {
			return nil, fmt.Errorf("window %d: unknown festival %q", i, w.Label)
		}
		if w.Month < time.January || w.Month > time.December {
			return nil, fmt.Errorf("window %d (%s): invalid month %d", i, w.Label, w.Month)
		}
		if w.FromDay < 1 || w.ToDay > daysIn(w.Month) || w.FromDay > w.ToDay {
			return nil, fmt.Errorf("window %d (%s): invalid day range %d-%d", i, w.Label, w.FromDay, w.ToDay)
		}
		for j := 0; j < i; j++ {
			if windows[j].overlaps(w) {
				return nil, fmt.Errorf("window %d (%s) overlaps %s", i, w.Label, windows[j].Label)
			}
		}
	}
	out := make([]Window, len(windows))
	copy(out, windows)
	return &Tagger{windows: out}, nil
}

// MustDefaultTagger returns a tagger over DefaultWindows.
func MustDefaultTagger() *Tagger {
	t, err := NewTagger(DefaultWindows())
	if err != nil {
		panic(err)
	}
	return t
}

// NewTaggerFromConfig builds a tagger from a preset name and an optional
// override table in the form "Label:Month:From-To;...".
func NewTaggerFromConfig(preset, overrides string) (*Tagger, error) {
	if strings.TrimSpace(overrides) != "" {
		windows, err := ParseWindows(overrides)
		if err != nil {
			return nil, err
		}
		return NewTagger(windows)
	}
	windows, err := PresetWindows(preset)
	if err != nil {
		return nil, err
	}
	return NewTagger(windows)
}

// Festival returns the label of the first window containing t, else None.
func (t *Tagger) Festival(date time.Time) Festival {
	for _, w := range t.windows {
		if w.contains(date) {
			return w.Label
		}
	}
	return None
}

// Windows returns a copy of the configured windows.
func (t *Tagger) Windows() []Window {
	out := make([]Window, len(t.windows))
	copy(out, t.windows)
	return out
}

// ParseWindows parses "Label:Month:From-To" entries separated by semicolons.
// Month is 1-12 or an English month name.
func ParseWindows(table string) ([]Window, error) {
	var windows []Window
	for _, entry := range strings.Split(table, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("festival window %q: expected Label:Month:From-To", entry)
		}
		label, ok := ParseFestival(strings.TrimSpace(parts[0]))
		if !ok {
			return nil, fmt.Errorf("festival window %q: unknown festival %q", entry, parts[0])
		}
		month, err := parseMonth(parts[1])
		if err != nil {
			return nil, fmt.Errorf("festival window %q: %w", entry, err)
		}
		from, to, err := parseDayRange(parts[2])
		if err != nil {
			return nil, fmt.Errorf("festival window %q: %w", entry, err)
		}
		windows = append(windows, Window{Label: label, Month: month, FromDay: from, ToDay: to})
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("no festival windows in %q", table)
	}
	return windows, nil
}

func parseMonth(value string) (time.Month, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range", n)
		}
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if equalFold(name, value) || (len(value) == 3 && equalFold(name[:3], value)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", value)
}

func parseDayRange(value string) (int, int, error) {
	bounds := strings.Split(strings.TrimSpace(value), "-")
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("day range %q: expected From-To", value)
	}
	from, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("day range %q: %w", value, err)
	}
	to, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("day range %q: %w", value, err)
	}
	return from, to, nil
}

// daysIn allows Feb 29 so leap-day purchases can be tagged.
func daysIn(m time.Month) int {
	return time.Date(2024, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimFunc(a, unicode.IsSpace), strings.TrimFunc(b, unicode.IsSpace))
}
