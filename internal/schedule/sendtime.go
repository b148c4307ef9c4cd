package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fusesell/fusesell/internal/store"
)

// ComputeSendTime returns the UTC instant at which a deferred send
// should go out. The result's local representation in the effective
// timezone always falls Monday-Friday within the rule's business-hour
// window, truncated to the minute.
//
// Steps: resolve the effective timezone (customer timezone when it
// parses, else the rule's), add the default delay in local time, skip
// weekend days preserving the wall clock, then snap into the window:
// before opening moves to the same day's start, at or past closing
// moves to the next weekday's start.
func ComputeSendTime(rule *store.SchedulingRule, customerTimezone string, now time.Time) time.Time {
	loc := resolveLocation(customerTimezone, rule.Timezone)

	startH, startM := parseClock(rule.BusinessHoursStart, 8, 0)
	endH, endM := parseClock(rule.BusinessHoursEnd, 20, 0)

	proposed := now.In(loc).Add(time.Duration(rule.DefaultDelayHours) * time.Hour)

	proposed = skipWeekend(proposed)

	minuteOfDay := proposed.Hour()*60 + proposed.Minute()
	startMinute := startH*60 + startM
	endMinute := endH*60 + endM

	switch {
	case minuteOfDay < startMinute:
		proposed = atClock(proposed, startH, startM)
	case minuteOfDay >= endMinute:
		proposed = skipWeekend(atClock(proposed.AddDate(0, 0, 1), startH, startM))
	}

	return proposed.UTC().Truncate(time.Minute)
}

// FollowUpTime returns the instant for a chained follow-up reminder:
// a raw wall-clock offset from now, deliberately not passed through
// the business-hour snapping that governs the initial send.
func FollowUpTime(rule *store.SchedulingRule, now time.Time) time.Time {
	return now.UTC().Add(time.Duration(rule.FollowUpDelayHours) * time.Hour).Truncate(time.Minute)
}

// resolveLocation parses the customer timezone, falling back to the
// rule timezone and then UTC.
func resolveLocation(customerTZ, ruleTZ string) *time.Location {
	if customerTZ != "" {
		if loc, err := time.LoadLocation(customerTZ); err == nil {
			return loc
		}
	}
	if ruleTZ != "" {
		if loc, err := time.LoadLocation(ruleTZ); err == nil {
			return loc
		}
	}
	return time.UTC
}

// skipWeekend advances Saturday/Sunday to the following Monday,
// preserving the wall-clock time.
func skipWeekend(t time.Time) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// atClock returns t with its time-of-day replaced.
func atClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// parseClock parses "HH:MM", returning the given defaults on malformed
// input.
func parseClock(s string, defH, defM int) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return defH, defM
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return defH, defM
	}
	return h, m
}

// importUUID derives the reminder dedup key from its owning entities.
func importUUID(orgID, customerID, processID, draftID string) string {
	return fmt.Sprintf("%s_%s_%s_%s", orgID, customerID, processID, draftID)
}
