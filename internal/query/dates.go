package query

import (
	"strconv"
	"time"
)

// timeRange is a half-open interval [start, end). A zero end means the
// phrase named a single instant.
type timeRange struct {
	start, end time.Time
}

func (r timeRange) instant() bool { return r.end.IsZero() }

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

type period int

const (
	periodDay period = iota
	periodWeek
	periodMonth
	periodYear
)

var periodWords = map[string]period{
	"day": periodDay, "days": periodDay,
	"week": periodWeek, "weeks": periodWeek,
	"month": periodMonth, "months": periodMonth,
	"year": periodYear, "years": periodYear,
}

func startOf(p period, t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	switch p {
	case periodWeek:
		offset := (int(day.Weekday()) + 6) % 7 // weeks start on Monday
		return day.AddDate(0, 0, -offset)
	case periodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case periodYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

func shift(p period, t time.Time, n int) time.Time {
	switch p {
	case periodWeek:
		return t.AddDate(0, 0, 7*n)
	case periodMonth:
		return t.AddDate(0, n, 0)
	case periodYear:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

func periodRange(p period, t time.Time) timeRange {
	start := startOf(p, t)
	return timeRange{start: start, end: shift(p, start, 1)}
}

func parseDateToken(s string, loc *time.Location) (timeRange, bool) {
	if len(s) == len("2006-01-02") {
		d, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return timeRange{}, false
		}

		return timeRange{start: d, end: d.AddDate(0, 0, 1)}, true
	}

	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return timeRange{start: ts}, true
		}
	}

	return timeRange{}, false
}

func yearValue(it item) (int, bool) {
	if it.kind != itemValue || it.tok.kind != tokNumber || len(it.tok.text) != 4 {
		return 0, false
	}

	y, err := strconv.Atoi(it.tok.text)
	if err != nil || y < 1900 || y > 2200 {
		return 0, false
	}

	return y, true
}

// dateAt reads a date phrase starting at items[j], relative to now. It
// returns the number of items consumed, or zero when no date phrase starts
// there. A bare four digit number reads as a year only when bareYear is set,
// i.e. when the column is already known to be a timestamp.
func dateAt(items []item, j int, now time.Time, bareYear bool) (timeRange, int) {
	at := func(k int) item {
		if k < len(items) {
			return items[k]
		}

		return item{kind: itemSymbol}
	}

	start := j
	if at(j).is("the") {
		j++
	}

	first := at(j)
	loc := now.Location()

	if first.kind == itemValue && first.tok.kind == tokDate {
		if r, ok := parseDateToken(first.tok.raw, loc); ok {
			return r, j + 1 - start
		}

		return timeRange{}, 0
	}

	switch {
	case first.is("today"):
		return periodRange(periodDay, now), j + 1 - start
	case first.is("yesterday"):
		return periodRange(periodDay, now.AddDate(0, 0, -1)), j + 1 - start
	case first.is("this", "current"):
		if p, ok := periodWords[at(j+1).tok.text]; ok && at(j+1).kind == itemWord {
			return periodRange(p, now), j + 2 - start
		}
	case first.is("last", "previous", "past", "prior"):
		next := at(j + 1)
		if p, ok := periodWords[next.tok.text]; ok && next.kind == itemWord {
			return periodRange(p, shift(p, now, -1)), j + 2 - start
		}

		if n, ok := smallCount(next); ok {
			if p, ok := periodWords[at(j+2).tok.text]; ok && at(j+2).kind == itemWord {
				return timeRange{start: shift(p, now, -n), end: now}, j + 3 - start
			}
		}
	case first.is("in", "during"):
		if y, ok := yearValue(at(j + 1)); ok {
			d := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
			return timeRange{start: d, end: d.AddDate(1, 0, 0)}, j + 2 - start
		}

		if r, n := monthAt(items, j+1, now); n > 0 {
			return r, j + 1 + n - start
		}
	}

	if r, n := monthAt(items, j, now); n > 0 {
		return r, j + n - start
	}

	if y, ok := yearValue(first); ok && bareYear {
		d := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return timeRange{start: d, end: d.AddDate(1, 0, 0)}, j + 1 - start
	}

	if n, ok := smallCount(first); ok {
		if p, ok := periodWords[at(j+1).tok.text]; ok && at(j+1).kind == itemWord && at(j+2).is("ago") {
			return periodRange(p, shift(p, now, -n)), j + 3 - start
		}
	}

	return timeRange{}, 0
}

// monthAt reads "<month> [year]"
func monthAt(items []item, j int, now time.Time) (timeRange, int) {
	if j >= len(items) || items[j].kind != itemWord {
		return timeRange{}, 0
	}

	m, ok := monthNames[items[j].tok.text]
	if !ok {
		return timeRange{}, 0
	}

	// "may" is also a verb; only read it as a month with a year attached.
	year, consumed := now.Year(), 1
	if j+1 < len(items) {
		if y, ok := yearValue(items[j+1]); ok {
			year, consumed = y, 2
		}
	}

	if m == time.May && consumed == 1 && items[j].tok.text == "may" {
		return timeRange{}, 0
	}

	d := time.Date(year, m, 1, 0, 0, 0, 0, now.Location())

	return timeRange{start: d, end: d.AddDate(0, 1, 0)}, consumed
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fifteen": 15,
	"twenty": 20, "thirty": 30, "fifty": 50, "hundred": 100,
}

// smallCount reads a positive whole count, as digits or a number word
func smallCount(it item) (int, bool) {
	if it.kind == itemWord {
		n, ok := numberWords[it.tok.text]
		return n, ok
	}

	if it.kind != itemValue || it.tok.kind != tokNumber {
		return 0, false
	}

	n, err := strconv.Atoi(it.tok.text)
	if err != nil || n <= 0 {
		return 0, false
	}

	return n, true
}
