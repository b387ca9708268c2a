package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrUnrepresentable indicates a descriptor has no RFC 5545 text form.
// One-time batches carry no rule at all; the repeating frequencies render
// as a single RRULE and random batches as a list of RDATE lines.
var ErrUnrepresentable = errors.New("recurrence: descriptor not representable as an RRULE")

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// RuleString renders a daily, weekly, or monthly descriptor as an RRULE
// value with an inline DTSTART and UNTIL, e.g.
// "FREQ=WEEKLY;DTSTART=20250106T000000Z;UNTIL=20250126T000000Z;BYDAY=MO,WE".
// Random descriptors render as one RDATE line per custom date instead.
func (d Descriptor) RuleString() (string, error) {
	if err := Validate(d); err != nil {
		return "", err
	}

	if d.Frequency == FrequencyRandom {
		return rdateString(d), nil
	}

	start, _ := parseDate(d.StartDate)
	end, _ := parseDate(d.EndDate)

	opt := rrule.ROption{Dtstart: start, Until: end}
	switch d.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		for _, day := range sortedWeekdays(d.Weekdays) {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{start.Day()}
	default:
		return "", ErrUnrepresentable
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("recurrence: build rrule: %w", err)
	}
	return rule.String(), nil
}

// FromRRule builds a descriptor from an RRULE value or a set of RDATE
// lines. An RRULE must carry DTSTART and UNTIL; RDATE lines map onto a
// random descriptor. Start and end times are supplied separately because
// neither form carries session duration. Features outside the supported
// patterns (INTERVAL, COUNT, BYSETPOS, ...) are rejected rather than
// silently approximated.
func FromRRule(value, startTime, endTime string) (Descriptor, error) {
	if strings.Contains(strings.ToUpper(value), "RDATE") {
		return fromRDateSet(value, startTime, endTime)
	}

	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Descriptor{}, ruleError("must be a valid RRULE value")
	}

	if opt.Dtstart.IsZero() {
		return Descriptor{}, ruleError("must carry DTSTART")
	}
	if opt.Until.IsZero() {
		return Descriptor{}, ruleError("must be bounded with UNTIL")
	}
	if opt.Count != 0 {
		return Descriptor{}, ruleError("COUNT is not supported, bound the rule with UNTIL")
	}
	if opt.Interval > 1 {
		return Descriptor{}, ruleError("INTERVAL is not supported")
	}
	if len(opt.Bysetpos) > 0 || len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Byhour) > 0 || len(opt.Byminute) > 0 ||
		len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return Descriptor{}, ruleError("only FREQ, DTSTART, UNTIL, BYDAY and BYMONTHDAY are supported")
	}

	d := Descriptor{
		StartDate: opt.Dtstart.UTC().Format(dateLayout),
		EndDate:   opt.Until.UTC().Format(dateLayout),
		StartTime: startTime,
		EndTime:   endTime,
	}

	switch opt.Freq {
	case rrule.DAILY:
		d.Frequency = FrequencyDaily
		if len(opt.Byweekday) > 0 {
			return Descriptor{}, ruleError("BYDAY is only supported with FREQ=WEEKLY")
		}
		if len(opt.Bymonthday) > 0 {
			return Descriptor{}, ruleError("BYMONTHDAY is only supported with FREQ=MONTHLY")
		}
	case rrule.WEEKLY:
		d.Frequency = FrequencyWeekly
		if len(opt.Bymonthday) > 0 {
			return Descriptor{}, ruleError("BYMONTHDAY is only supported with FREQ=MONTHLY")
		}
		if len(opt.Byweekday) == 0 {
			// RFC 5545 defaults a weekly rule to the DTSTART weekday.
			d.Weekdays = []time.Weekday{opt.Dtstart.UTC().Weekday()}
			break
		}
		for _, day := range opt.Byweekday {
			d.Weekdays = append(d.Weekdays, timeWeekday(day))
		}
	case rrule.MONTHLY:
		d.Frequency = FrequencyMonthly
		if len(opt.Byweekday) > 0 {
			return Descriptor{}, ruleError("BYDAY is only supported with FREQ=WEEKLY")
		}
		if len(opt.Bymonthday) > 1 {
			return Descriptor{}, ruleError("at most one BYMONTHDAY is supported")
		}
		if len(opt.Bymonthday) == 1 && opt.Bymonthday[0] != opt.Dtstart.UTC().Day() {
			return Descriptor{}, ruleError("BYMONTHDAY must match the DTSTART day of month")
		}
	default:
		return Descriptor{}, ruleError("FREQ must be DAILY, WEEKLY or MONTHLY")
	}

	if err := Validate(d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// rdateString renders the custom dates as RDATE lines, one per date,
// deduplicated and in chronological order.
func rdateString(d Descriptor) string {
	occurrences, _ := expandCustom(d)
	var set rrule.Set
	for _, occurrence := range occurrences {
		day, _ := parseDate(occurrence.Date)
		set.RDate(day)
	}
	return set.String()
}

// fromRDateSet maps RDATE lines onto a random descriptor. A set that
// also carries an RRULE has no single-frequency reading and is rejected.
func fromRDateSet(value, startTime, endTime string) (Descriptor, error) {
	set, err := rrule.StrToRRuleSet(value)
	if err != nil {
		return Descriptor{}, ruleError("must be a valid RRULE value or RDATE set")
	}
	if set.GetRRule() != nil {
		return Descriptor{}, ruleError("RDATE lines cannot be combined with an RRULE")
	}

	rdates := set.GetRDate()
	if len(rdates) == 0 {
		return Descriptor{}, ruleError("must carry at least one RDATE")
	}

	dates := make([]string, 0, len(rdates))
	for _, day := range rdates {
		dates = append(dates, day.UTC().Format(dateLayout))
	}

	d := Descriptor{
		Frequency:   FrequencyRandom,
		CustomDates: dates,
		StartTime:   startTime,
		EndTime:     endTime,
	}
	if err := Validate(d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func ruleError(message string) error {
	return &DescriptorError{Fields: map[string]string{"rrule": message}}
}

// timeWeekday converts an rrule weekday (Monday = 0) to a time.Weekday
// (Sunday = 0).
func timeWeekday(day rrule.Weekday) time.Weekday {
	return time.Weekday((day.Day() + 1) % 7)
}

func sortedWeekdays(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]struct{}, len(days))
	ordered := make([]time.Weekday, 0, len(days))
	// Walk Monday first so the BYDAY list reads the way schedules are
	// usually written.
	for offset := 0; offset < 7; offset++ {
		day := time.Weekday((int(time.Monday) + offset) % 7)
		if _, ok := seen[day]; ok {
			continue
		}
		for _, candidate := range days {
			if candidate == day {
				seen[day] = struct{}{}
				ordered = append(ordered, day)
				break
			}
		}
	}
	return ordered
}
