// Package week maps calendar dates to Monday-start week identifiers of the
// form YYYY-Www and resolves identifiers back to their Monday–Sunday span.
//
// Week 1 of a year is the week that contains January 4th, so the first days of
// January may belong to the last week of the previous year and the last days
// of December may belong to week 1 of the next one.
package week

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// ErrMalformedKey is matched by every MalformedKeyError.
var ErrMalformedKey = errors.New("malformed week identifier")

// MalformedKeyError reports a string that is not a valid YYYY-Www identifier.
type MalformedKeyError struct {
	Input  string
	Reason string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed week identifier %q: %s", e.Input, e.Reason)
}

func (e *MalformedKeyError) Is(target error) bool {
	return target == ErrMalformedKey
}

// Key identifies one Monday–Sunday span.
type Key struct {
	Year int
	Week int
}

var keyPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// ParseKey parses a YYYY-Www identifier. Week 53 is only accepted for years
// that have 53 weeks.
func ParseKey(s string) (Key, error) {
	m := keyPattern.FindStringSubmatch(s)
	if m == nil {
		return Key{}, &MalformedKeyError{Input: s, Reason: "expected YYYY-Www"}
	}
	year, _ := strconv.Atoi(m[1])
	wk, _ := strconv.Atoi(m[2])
	k := Key{Year: year, Week: wk}
	if err := k.validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

func (k Key) validate() error {
	if k.Week < 1 || k.Week > WeeksInYear(k.Year) {
		return &MalformedKeyError{Input: k.String(), Reason: fmt.Sprintf("week out of range for %d", k.Year)}
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%04d-W%02d", k.Year, k.Week)
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Before reports whether k names an earlier week than other.
func (k Key) Before(other Key) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Week < other.Week
}

// monday returns the civil (UTC midnight) Monday that starts the week.
func (k Key) monday() time.Time {
	return jan4Monday(k.Year).AddDate(0, 0, (k.Week-1)*7)
}

// KeyOfDay returns the week containing the given calendar day.
func KeyOfDay(year int, month time.Month, day int) Key {
	monday := mondayOnOrBefore(civil(year, month, day))
	y := monday.Year()
	if !monday.Before(jan4Monday(y + 1)) {
		// Late-December Monday whose week holds January 4th of next year.
		return Key{Year: y + 1, Week: 1}
	}
	n := weekNumber(monday, jan4Monday(y))
	if n < 1 {
		return Key{Year: y - 1, Week: WeeksInYear(y - 1)}
	}
	return Key{Year: y, Week: n}
}

// WeeksInYear returns 52 or 53, derived from the last Monday of the year that
// still belongs to it.
func WeeksInYear(year int) int {
	last := mondayOnOrBefore(civil(year, time.December, 31))
	if !last.Before(jan4Monday(year + 1)) {
		last = last.AddDate(0, 0, -7)
	}
	return weekNumber(last, jan4Monday(year))
}

// Range is the inclusive instant span of a week.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the week. Instants between End and
// the next Monday's midnight (sub-millisecond) are treated as inside.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End.Add(time.Millisecond))
}

// Calendar fixes the location in which dates are read. Weeks always start on
// Monday.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for loc; nil means UTC.
func NewCalendar(loc *time.Location) Calendar {
	return Calendar{loc: loc}
}

func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Key returns the week of t's calendar date in the calendar location.
func (c Calendar) Key(t time.Time) Key {
	return KeyOfDay(t.In(c.Location()).Date())
}

// Range resolves k to Monday 00:00:00.000 – Sunday 23:59:59.999.
func (c Calendar) Range(k Key) (Range, error) {
	if err := k.validate(); err != nil {
		return Range{}, err
	}
	loc := c.Location()
	first := k.monday()
	last := first.AddDate(0, 0, 6)
	return Range{
		Start: time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc),
		End:   time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, int(999*time.Millisecond), loc),
	}, nil
}

// RangeOf parses s and resolves it.
func (c Calendar) RangeOf(s string) (Range, error) {
	k, err := ParseKey(s)
	if err != nil {
		return Range{}, err
	}
	return c.Range(k)
}

// WeeksOfMonth lists every week with at least one day in ref's month, most
// recent first.
func (c Calendar) WeeksOfMonth(ref time.Time) []Key {
	y, m, _ := ref.In(c.Location()).Date()
	first := civil(y, m, 1)
	return collect(first, first.AddDate(0, 1, -1))
}

// WeeksBetween lists every week touching the days from..to (inclusive, in
// either order), most recent first.
func (c Calendar) WeeksBetween(from, to time.Time) []Key {
	a := civil(from.In(c.Location()).Date())
	b := civil(to.In(c.Location()).Date())
	if b.Before(a) {
		a, b = b, a
	}
	return collect(a, b)
}

func collect(first, last time.Time) []Key {
	seen := make(map[Key]struct{})
	var keys []Key
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		k := KeyOfDay(d.Date())
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].monday().After(keys[j].monday()) })
	return keys
}

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func mondayOnOrBefore(d time.Time) time.Time {
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7
	}
	return d.AddDate(0, 0, -(wd - 1))
}

// jan4Monday is the Monday of week 1: January 4th always falls in it.
func jan4Monday(year int) time.Time {
	return mondayOnOrBefore(civil(year, time.January, 4))
}

func weekNumber(monday, base time.Time) int {
	days := monday.Sub(base).Hours() / 24
	return int(math.Round(days/7)) + 1
}
