package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, _ := time.Parse(DayKeyLayout, s)
	return t
}

func TestEventDays(t *testing.T) {
	tests := []struct {
		name   string
		ranges []DateRange
		want   []DayKey
	}{
		{
			name:   "two day range",
			ranges: []DateRange{{Start: day("2024-06-01"), End: day("2024-06-02")}},
			want:   []DayKey{"2024-06-01", "2024-06-02"},
		},
		{
			name: "overlapping ranges are de-duplicated and sorted",
			ranges: []DateRange{
				{Start: day("2024-06-03"), End: day("2024-06-04")},
				{Start: day("2024-06-01").Add(15 * time.Hour), End: day("2024-06-03").Add(2 * time.Hour)},
			},
			want: []DayKey{"2024-06-01", "2024-06-02", "2024-06-03", "2024-06-04"},
		},
		{
			name:   "inverted range counts its start day",
			ranges: []DateRange{{Start: day("2024-06-05"), End: day("2024-06-01")}},
			want:   []DayKey{"2024-06-05"},
		},
		{
			name: "no ranges",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []DayKey
			for _, d := range (Event{DateRanges: tt.ranges}).Days() {
				got = append(got, DayKeyOf(d))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventBuckets(t *testing.T) {
	twoDays := Event{DateRanges: []DateRange{{Start: day("2024-06-01"), End: day("2024-06-02")}}}

	buckets := twoDays.Buckets()
	assert.True(t, twoDays.PerDayCheckin())
	assert.Len(t, buckets, 2)
	assert.Equal(t, DayKey("2024-06-01"), buckets[0].Key)
	assert.Equal(t, DayKey("2024-06-02"), buckets[1].Key)
	for _, b := range buckets {
		assert.False(t, b.Key.IsCollective())
	}

	oneDay := Event{DateRanges: []DateRange{{Start: day("2024-06-01"), End: day("2024-06-01")}}}
	assert.False(t, oneDay.PerDayCheckin())
	assert.Equal(t, []DayBucket{{Key: CollectiveDay, Label: "All days"}}, oneDay.Buckets())

	forced := twoDays
	forced.CheckinMode = CheckinModeCollective
	assert.False(t, forced.PerDayCheckin())

	_, ok := twoDays.Bucket(CollectiveDay)
	assert.False(t, ok)
	b, ok := twoDays.Bucket("2024-06-02")
	assert.True(t, ok)
	assert.Equal(t, "Day 2 (Jun 2)", b.Label)
}

func TestErrorKinds(t *testing.T) {
	err := NewNotFoundError("certificate %s", "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "not_found: certificate abc", err.Error())

	wrapped := NewTransientStorageError("put", assert.AnError)
	assert.ErrorIs(t, wrapped, ErrTransientStorage)
	assert.ErrorIs(t, wrapped, assert.AnError)
}

func TestTemplateValidate(t *testing.T) {
	tpl := Template{Width: 800, Height: 600, Elements: []Element{
		{Kind: ElementText, XPercent: 50, YPercent: 10, Size: 24, Content: "Certificate"},
		{Kind: ElementQR, XPercent: 90, YPercent: 90, Size: 120},
	}}
	assert.NoError(t, tpl.Validate())
	assert.True(t, tpl.HasQR())

	bad := tpl
	bad.Elements = []Element{{Kind: ElementQR, XPercent: 10, YPercent: 10}}
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad.Elements = []Element{{Kind: "image", XPercent: 10, YPercent: 10}}
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	assert.ErrorIs(t, Template{}.Validate(), ErrValidation)

	huge := tpl
	huge.Width, huge.Height = 40000, 40000
	assert.ErrorIs(t, huge.Validate(), ErrValidation)

	tiny := tpl
	tiny.Elements = []Element{{Kind: ElementQR, XPercent: 50, YPercent: 50, Size: MinQRSize - 1}}
	assert.ErrorIs(t, tiny.Validate(), ErrValidation)

	overflow := tpl
	overflow.Elements = []Element{{Kind: ElementQR, XPercent: 50, YPercent: 50, Size: 601}}
	assert.ErrorIs(t, overflow.Validate(), ErrValidation)
}

func TestEventDefaultDay(t *testing.T) {
	twoDays := Event{DateRanges: []DateRange{{Start: day("2024-06-01"), End: day("2024-06-02")}}}

	b, ok := twoDays.DefaultDay(day("2024-06-02").Add(10 * time.Hour))
	assert.True(t, ok)
	assert.Equal(t, DayKey("2024-06-02"), b.Key)

	_, ok = twoDays.DefaultDay(day("2024-07-01"))
	assert.False(t, ok)

	oneDay := Event{DateRanges: []DateRange{{Start: day("2024-06-01"), End: day("2024-06-01")}}}
	b, ok = oneDay.DefaultDay(day("2030-01-01"))
	assert.True(t, ok)
	assert.True(t, b.Key.IsCollective())
}

func TestEventScheduleLimits(t *testing.T) {
	centuries := Event{DateRanges: []DateRange{{Start: day("1900-01-01"), End: day("2900-12-31")}}}
	assert.ErrorIs(t, centuries.ValidateSchedule(), ErrValidation)
	assert.Greater(t, centuries.SpanDays(), MaxEventDays)

	// rows stored before the limit existed still resolve quickly and boundedly
	assert.Len(t, centuries.Days(), MaxEventDays)
	_, ok := centuries.Bucket("1900-01-02")
	assert.True(t, ok)

	year := Event{DateRanges: []DateRange{{Start: day("2024-01-01"), End: day("2024-12-31")}}}
	assert.NoError(t, year.ValidateSchedule())
	assert.Equal(t, 366, year.SpanDays())

	twoRanges := Event{DateRanges: []DateRange{
		{Start: day("2024-01-01"), End: day("2024-12-31")},
		{Start: day("2025-01-01"), End: day("2025-01-01")},
	}}
	assert.ErrorIs(t, twoRanges.ValidateSchedule(), ErrValidation)

	many := Event{}
	for i := 0; i <= MaxDateRanges; i++ {
		d := day("2024-01-01").AddDate(0, 0, i)
		many.DateRanges = append(many.DateRanges, DateRange{Start: d, End: d})
	}
	assert.ErrorIs(t, many.ValidateSchedule(), ErrValidation)

	assert.ErrorIs(t, Event{}.ValidateSchedule(), ErrValidation)
}

func TestEventSpanDaysIgnoresTimeOfDay(t *testing.T) {
	e := Event{DateRanges: []DateRange{{Start: day("2024-06-01").Add(20 * time.Hour), End: day("2024-06-02").Add(time.Hour)}}}
	assert.Equal(t, 2, e.SpanDays())
	assert.Len(t, e.Days(), 2)

	inverted := Event{DateRanges: []DateRange{{Start: day("2024-06-05"), End: day("2024-06-01")}}}
	assert.Equal(t, 1, inverted.SpanDays())
}
