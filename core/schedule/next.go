package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

func parseClock(hhmm string) (hour, minute int, err error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("invalid time %q", hhmm)
	}
	if hour, err = strconv.Atoi(parts[0]); err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.Errorf("invalid hour in %q", hhmm)
	}
	if minute, err = strconv.Atoi(parts[1]); err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.Errorf("invalid minute in %q", hhmm)
	}
	return hour, minute, nil
}

func at(day time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}

// monthDay returns the given day of the month of t, clamped to the last day of that month.
func monthDay(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// NextExecution returns the first run of op strictly after from, and false when there is none.
// Runs never happen before ScheduledDate at ScheduledTime; times are read in loc.
//   - once: the scheduled instant itself;
//   - daily: every day at ScheduledTime;
//   - weekly: every DayOfWeek at ScheduledTime;
//   - monthly: the day of month of ScheduledDate, clamped to shorter months.
func NextExecution(op Operation, from time.Time, loc *time.Location) (time.Time, bool, error) {
	if loc == nil {
		loc = time.UTC
	}
	hour, minute, err := parseClock(op.ScheduledTime)
	if err != nil {
		return time.Time{}, false, err
	}

	start := op.ScheduledDate
	if start.Location() != loc {
		// ScheduledDate only carries a calendar date
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	}
	first := at(start, hour, minute, loc)
	from = from.In(loc)

	switch op.Frequency {
	case FrequencyOnce:
		if first.After(from) {
			return first.UTC(), true, nil
		}
		return time.Time{}, false, nil

	case FrequencyDaily:
		if first.After(from) {
			return first.UTC(), true, nil
		}
		next := at(from, hour, minute, loc)
		if !next.After(from) {
			next = at(from.AddDate(0, 0, 1), hour, minute, loc)
		}
		return next.UTC(), true, nil

	case FrequencyWeekly:
		if op.DayOfWeek == nil || *op.DayOfWeek < 0 || *op.DayOfWeek > 6 {
			return time.Time{}, false, errors.New("weekly operation without a valid day of week")
		}
		weekday := time.Weekday(*op.DayOfWeek)
		day := start
		if from.After(first) {
			day = from
		}
		for i := 0; i < 8; i++ {
			candidate := at(day.AddDate(0, 0, i), hour, minute, loc)
			if candidate.Weekday() == weekday && candidate.After(from) && !candidate.Before(first) {
				return candidate.UTC(), true, nil
			}
		}
		return time.Time{}, false, errors.New("no weekly occurrence found")

	case FrequencyMonthly:
		dom := start.Day()
		if first.After(from) {
			return first.UTC(), true, nil
		}
		next := monthDay(from.Year(), from.Month(), dom, hour, minute, loc)
		if !next.After(from) {
			y, m, _ := from.Date()
			next = monthDay(y, m+1, dom, hour, minute, loc)
		}
		return next.UTC(), true, nil
	}
	return time.Time{}, false, errors.Errorf("unknown frequency %q", op.Frequency)
}

// Plan builds a Scheduled operation from in, with its first run computed after now.
// It fails with a validation error when the operation would never run.
func Plan(in NewOperation, surveyID, opType, actor string, now time.Time, loc *time.Location) (Operation, error) {
	now = now.UTC()
	op := Operation{
		SurveyID:       surveyID,
		Type:           opType,
		Frequency:      in.Frequency,
		ScheduledDate:  in.ScheduledDate,
		ScheduledTime:  in.ScheduledTime,
		DayOfWeek:      in.DayOfWeek,
		TargetCriteria: in.TargetCriteria,
		EmailTemplate:  in.EmailTemplate,
		EmbedCover:     in.EmbedCover,
		Status:         StatusScheduled,
		CreatedBy:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	next, ok, err := NextExecution(op, now, loc)
	if err != nil {
		return Operation{}, core.NewValidationError(err, core.FieldError{Field: "scheduled_time", Error: err.Error()})
	}
	if !ok {
		return Operation{}, core.NewValidationError(nil, core.FieldError{Field: "scheduled_date", Error: "the scheduled time is in the past"})
	}
	op.NextExecutionAt = &next
	return op, nil
}
