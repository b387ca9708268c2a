package recurrence

import (
	"errors"
	"testing"
	"time"
)

func weeklyDescriptor() Descriptor {
	return Descriptor{
		Frequency: FrequencyWeekly,
		StartDate: "2025-01-06",
		EndDate:   "2025-01-26",
		Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		StartTime: "09:00",
		EndTime:   "10:00",
	}
}

func expandDates(t *testing.T, d Descriptor) []string {
	t.Helper()

	occurrences, err := Expand(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dates := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.StartTime != d.StartTime || occ.EndTime != d.EndTime {
			t.Fatalf("occurrence %s does not carry the shared times: %+v", occ.Date, occ)
		}
		dates = append(dates, occ.Date)
	}
	return dates
}

func assertDates(t *testing.T, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d occurrences, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("occurrence %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	t.Run("one time produces a single occurrence", func(t *testing.T) {
		t.Parallel()

		dates := expandDates(t, Descriptor{
			Frequency: FrequencyOneTime,
			StartDate: "2025-05-10",
			StartTime: "18:30",
			EndTime:   "20:00",
		})
		assertDates(t, dates, []string{"2025-05-10"})
	})

	t.Run("daily covers every date inclusive of both ends", func(t *testing.T) {
		t.Parallel()

		dates := expandDates(t, Descriptor{
			Frequency: FrequencyDaily,
			StartDate: "2025-02-27",
			EndDate:   "2025-03-02",
			StartTime: "09:00",
			EndTime:   "10:00",
		})
		assertDates(t, dates, []string{"2025-02-27", "2025-02-28", "2025-03-01", "2025-03-02"})
	})

	t.Run("weekly keeps only the selected weekdays in order", func(t *testing.T) {
		t.Parallel()

		dates := expandDates(t, weeklyDescriptor())
		assertDates(t, dates, []string{
			"2025-01-06", "2025-01-08",
			"2025-01-13", "2025-01-15",
			"2025-01-20", "2025-01-22",
		})
	})

	t.Run("monthly skips months without the anchor day", func(t *testing.T) {
		t.Parallel()

		dates := expandDates(t, Descriptor{
			Frequency: FrequencyMonthly,
			StartDate: "2025-01-31",
			EndDate:   "2025-04-30",
			StartTime: "09:00",
			EndTime:   "10:00",
		})
		// February and April have no 31st.
		assertDates(t, dates, []string{"2025-01-31", "2025-03-31"})
	})

	t.Run("monthly repeats the start day of month", func(t *testing.T) {
		t.Parallel()

		dates := expandDates(t, Descriptor{
			Frequency: FrequencyMonthly,
			StartDate: "2025-01-15",
			EndDate:   "2025-04-20",
			StartTime: "09:00",
			EndTime:   "10:00",
		})
		assertDates(t, dates, []string{"2025-01-15", "2025-02-15", "2025-03-15", "2025-04-15"})
	})

	t.Run("random sorts and deduplicates the explicit dates", func(t *testing.T) {
		t.Parallel()

		dates := expandDates(t, Descriptor{
			Frequency:   FrequencyRandom,
			CustomDates: []string{"2025-03-05", "2025-01-15", "2025-03-05", "2025-02-10"},
			StartTime:   "09:00",
			EndTime:     "10:00",
		})
		assertDates(t, dates, []string{"2025-01-15", "2025-02-10", "2025-03-05"})
	})

	t.Run("expansion is deterministic", func(t *testing.T) {
		t.Parallel()

		first := expandDates(t, weeklyDescriptor())
		second := expandDates(t, weeklyDescriptor())
		assertDates(t, second, first)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		mutate    func(d *Descriptor)
		wantField string
	}{
		{
			name:      "weekly requires at least one weekday",
			mutate:    func(d *Descriptor) { d.Weekdays = nil },
			wantField: "weeklyDays",
		},
		{
			name: "random requires at least one date",
			mutate: func(d *Descriptor) {
				d.Frequency = FrequencyRandom
				d.CustomDates = nil
			},
			wantField: "customDates",
		},
		{
			name:      "end date must not precede start date",
			mutate:    func(d *Descriptor) { d.EndDate = "2025-01-05" },
			wantField: "endDate",
		},
		{
			name:      "recurring batches require an end date",
			mutate:    func(d *Descriptor) { d.EndDate = "" },
			wantField: "endDate",
		},
		{
			name:      "start time must precede end time",
			mutate:    func(d *Descriptor) { d.StartTime = "10:00" },
			wantField: "startTime",
		},
		{
			name:      "equal start and end time is rejected",
			mutate:    func(d *Descriptor) { d.StartTime, d.EndTime = "10:00", "10:00" },
			wantField: "startTime",
		},
		{
			name:      "malformed start date is rejected",
			mutate:    func(d *Descriptor) { d.StartDate = "06-01-2025" },
			wantField: "startDate",
		},
		{
			name:      "unpadded times are rejected",
			mutate:    func(d *Descriptor) { d.StartTime = "9:00" },
			wantField: "startTime",
		},
		{
			name:      "unknown frequency is rejected",
			mutate:    func(d *Descriptor) { d.Frequency = FrequencyUnspecified },
			wantField: "frequency",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := weeklyDescriptor()
			tc.mutate(&d)

			occurrences, err := Expand(d)
			if err == nil {
				t.Fatalf("expected validation error, got %d occurrences", len(occurrences))
			}
			if occurrences != nil {
				t.Fatalf("expected no occurrences on failure, got %v", occurrences)
			}
			if !errors.Is(err, ErrInvalidRecurrence) {
				t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
			}

			var dErr *DescriptorError
			if !errors.As(err, &dErr) {
				t.Fatalf("expected DescriptorError, got %T", err)
			}
			if _, ok := dErr.Fields[tc.wantField]; !ok {
				t.Fatalf("expected field %q in %v", tc.wantField, dErr.Fields)
			}
		})
	}

	t.Run("one time ignores the end date", func(t *testing.T) {
		t.Parallel()

		d := Descriptor{
			Frequency: FrequencyOneTime,
			StartDate: "2025-05-10",
			StartTime: "18:30",
			EndTime:   "20:00",
		}
		if err := Validate(d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	for _, freq := range []Frequency{
		FrequencyOneTime, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyRandom,
	} {
		parsed, ok := ParseFrequency(freq.String())
		if !ok {
			t.Fatalf("expected %q to parse", freq.String())
		}
		if parsed != freq {
			t.Fatalf("expected %v, got %v", freq, parsed)
		}
	}

	if _, ok := ParseFrequency("yearly"); ok {
		t.Fatal("expected unknown frequency to be rejected")
	}
	if got := FrequencyUnspecified.String(); got != "UNSPECIFIED" {
		t.Fatalf("expected UNSPECIFIED, got %q", got)
	}
}
