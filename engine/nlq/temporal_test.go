package nlq

import (
	"testing"
	"time"
)

// A fixed Thursday keeps the week arithmetic honest.
var anchor = time.Date(2024, time.March, 14, 15, 30, 45, 0, time.UTC)

func TestResolveDateFilters(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     DateFilters
	}{
		{
			name:     "no phrase",
			question: "Who shared the COVID variant news?",
			want:     DateFilters{},
		},
		{
			name:     "this week",
			question: "Most viral posts THIS WEEK",
			want:     DateFilters{PeriodWeek: "2024-03-11T00:00:00"},
		},
		{
			name:     "last week",
			question: "viral posts last week",
			want:     DateFilters{PeriodWeek: "2024-03-04T00:00:00"},
		},
		{
			name:     "this month",
			question: "fake news this month",
			want:     DateFilters{PeriodMonth: "2024-03-01T00:00:00"},
		},
		{
			name:     "last month",
			question: "fake news last month",
			want:     DateFilters{PeriodMonth: "2024-02-01T00:00:00"},
		},
		{
			name:     "this year",
			question: "posts by john this year",
			want:     DateFilters{PeriodYear: "2024-01-01T00:00:00"},
		},
		{
			name:     "last year",
			question: "posts by john last year",
			want:     DateFilters{PeriodYear: "2023-01-01T00:00:00"},
		},
		{
			name:     "last wins over this for the same period",
			question: "compare this week with last week",
			want:     DateFilters{PeriodWeek: "2024-03-04T00:00:00"},
		},
		{
			name:     "multiple periods",
			question: "posts this week and this year",
			want: DateFilters{
				PeriodWeek: "2024-03-11T00:00:00",
				PeriodYear: "2024-01-01T00:00:00",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveDateFilters(tc.question, anchor)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for period, ts := range tc.want {
				if got[period] != ts {
					t.Errorf("period %s: got %q, want %q", period, got[period], ts)
				}
			}
		})
	}
}

func TestStartOfWeekIsMondayMidnight(t *testing.T) {
	// A full week of anchors must all resolve to the same Monday.
	monday := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 7; d++ {
		now := monday.AddDate(0, 0, d).Add(13 * time.Hour)
		got := startOfWeek(now)
		if !got.Equal(monday) {
			t.Errorf("day offset %d: got %v, want %v", d, got, monday)
		}
		if got.Weekday() != time.Monday {
			t.Errorf("day offset %d: weekday %v", d, got.Weekday())
		}
	}
}

func TestLastMonthAcrossYearBoundary(t *testing.T) {
	january := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	got := ResolveDateFilters("fake news last month", january)
	if got[PeriodMonth] != "2023-12-01T00:00:00" {
		t.Fatalf("got %q, want 2023-12-01T00:00:00", got[PeriodMonth])
	}
}
