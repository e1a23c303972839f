package nlq

import (
	"strings"
	"time"
)

// Period identifiers for resolved date filters.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// DateFilters maps a period identifier to a resolved start-of-period
// timestamp in ISO-8601 form (no timezone suffix; all values are UTC).
type DateFilters map[string]string

// timestampLayout is the literal form embedded in generated Cypher,
// matching Neo4j's datetime() argument format.
const timestampLayout = "2006-01-02T15:04:05"

// phraseRule resolves one relative date phrase to a period start.
type phraseRule struct {
	phrase  string
	period  string
	resolve func(now time.Time) time.Time
}

// phraseRules is evaluated in order; a later rule for the same period
// overwrites an earlier one, so "last X" wins when both phrases occur.
var phraseRules = []phraseRule{
	{"this week", PeriodWeek, startOfWeek},
	{"last week", PeriodWeek, func(now time.Time) time.Time { return startOfWeek(now).AddDate(0, 0, -7) }},
	{"this month", PeriodMonth, startOfMonth},
	{"last month", PeriodMonth, func(now time.Time) time.Time {
		t := now.UTC()
		return time.Date(t.Year(), t.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	}},
	{"this year", PeriodYear, startOfYear},
	{"last year", PeriodYear, func(now time.Time) time.Time {
		return time.Date(now.UTC().Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
	}},
}

// ResolveDateFilters detects relative date phrases in the question and
// resolves each to a concrete UTC period start anchored at now. A period key
// is present only if its phrase literally occurs (case-insensitive).
func ResolveDateFilters(question string, now time.Time) DateFilters {
	text := strings.ToLower(question)
	filters := make(DateFilters)
	for _, rule := range phraseRules {
		if strings.Contains(text, rule.phrase) {
			filters[rule.period] = rule.resolve(now).Format(timestampLayout)
		}
	}
	return filters
}

// startOfWeek returns the most recent Monday at 00:00 UTC.
func startOfWeek(now time.Time) time.Time {
	t := now.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	t = t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(now time.Time) time.Time {
	t := now.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func startOfYear(now time.Time) time.Time {
	return time.Date(now.UTC().Year(), 1, 1, 0, 0, 0, 0, time.UTC)
}
