package domain

import (
	"fmt"
	"sort"
	"time"
)

type CheckinMode string

const (
	CheckinModeAuto       CheckinMode = "auto"
	CheckinModePerDay     CheckinMode = "per_day"
	CheckinModeCollective CheckinMode = "collective"
)

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Event struct {
	ID          uint        `json:"id"`
	OwnerID     uint        `json:"owner_id"`
	Name        string      `json:"name"`
	Location    string      `json:"location"`
	DateRanges  []DateRange `json:"date_ranges"`
	CheckinMode CheckinMode `json:"checkin_mode"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type DayBucket struct {
	Key   DayKey `json:"key"`
	Label string `json:"label"`
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Limits on an event's schedule. Every bucket lookup expands the ranges, so
// their size is bounded at creation.
const (
	MaxEventDays  = 366
	MaxDateRanges = 31
)

// rangeDays counts the calendar days a range covers without expanding it.
func rangeDays(r DateRange) int {
	sy, sm, sd := r.Start.Date()
	ey, em, ed := r.End.Date()
	start := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		return 1
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// SpanDays is the number of days summed over all ranges, overlaps counted
// twice. It is an upper bound of len(Days()).
func (e Event) SpanDays() int {
	n := 0
	for _, r := range e.DateRanges {
		n += rangeDays(r)
		if n > MaxEventDays {
			return n
		}
	}
	return n
}

func (e Event) ValidateSchedule() error {
	switch {
	case len(e.DateRanges) == 0:
		return NewValidationError("event needs at least one date range")
	case len(e.DateRanges) > MaxDateRanges:
		return NewValidationError("event has %d date ranges, at most %d allowed", len(e.DateRanges), MaxDateRanges)
	case e.SpanDays() > MaxEventDays:
		return NewValidationError("event spans more than %d days", MaxEventDays)
	}
	return nil
}

// Days expands every date range into its midnight-normalized dates, drops
// duplicates and returns them in ascending order. A range whose end precedes
// its start contributes only its start day. Expansion stops after
// MaxEventDays distinct days.
func (e Event) Days() []time.Time {
	seen := make(map[DayKey]struct{})
	var days []time.Time
	for _, r := range e.DateRanges {
		start := midnight(r.Start)
		end := midnight(r.End)
		if end.Before(start) {
			end = start
		}
		for d := start; !d.After(end) && len(days) < MaxEventDays; d = d.AddDate(0, 0, 1) {
			k := DayKeyOf(d)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func (e Event) PerDayCheckin() bool {
	return e.perDay(e.Days())
}

func (e Event) perDay(days []time.Time) bool {
	switch e.CheckinMode {
	case CheckinModePerDay:
		return true
	case CheckinModeCollective:
		return false
	}
	return len(days) > 1
}

// Buckets lists the check-in columns shown for the event: one per day in
// per-day mode, otherwise the single collective bucket.
func (e Event) Buckets() []DayBucket {
	days := e.Days()
	if !e.perDay(days) {
		return []DayBucket{{Key: CollectiveDay, Label: "All days"}}
	}
	buckets := make([]DayBucket, 0, len(days))
	for i, d := range days {
		buckets = append(buckets, DayBucket{Key: DayKeyOf(d), Label: dayLabel(i, d)})
	}
	return buckets
}

// Bucket resolves a requested key against the event's buckets.
func (e Event) Bucket(key DayKey) (DayBucket, bool) {
	return findBucket(e.Buckets(), key)
}

func findBucket(buckets []DayBucket, key DayKey) (DayBucket, bool) {
	for _, b := range buckets {
		if b.Key == key {
			return b, true
		}
	}
	return DayBucket{}, false
}

func dayLabel(i int, d time.Time) string {
	return fmt.Sprintf("Day %d (%s)", i+1, d.Format("Jan 2"))
}

// Registration is a participant's accepted submission to an event.
type Registration struct {
	ID           uint              `json:"id"`
	OwnerID      uint              `json:"owner_id"`
	EventID      uint              `json:"event_id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Organization string            `json:"organization,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Address      string            `json:"address,omitempty"`
	Answers      map[string]string `json:"answers,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// DefaultDay picks the bucket a check-in lands in when no day was requested:
// the collective bucket, or today's bucket for per-day events.
func (e Event) DefaultDay(now time.Time) (DayBucket, bool) {
	buckets := e.Buckets()
	if len(buckets) == 1 && buckets[0].Key.IsCollective() {
		return buckets[0], true
	}
	return findBucket(buckets, DayKeyOf(now))
}
