package signal

import (
	"fmt"
	"time"
)

// TimeUnit names the granularity a signal's TimeInUnit is expressed in.
type TimeUnit string

const (
	UnitTimestamp TimeUnit = "timestamp"
	UnitHour      TimeUnit = "hour"
	UnitDay       TimeUnit = "day"
	UnitWeek      TimeUnit = "week"
	UnitMonth     TimeUnit = "month"
)

// Stats groups written on documents.
const (
	GroupHourly  = "_hourlyStats"
	GroupDaily   = "_dailyStats"
	GroupWeekly  = "_weeklyStats"
	GroupMonthly = "_monthlyStats"
	GroupOverall = "_overallStats"
)

// Groups lists every stats group, finest first.
var Groups = []string{GroupHourly, GroupDaily, GroupWeekly, GroupMonthly, GroupOverall}

// Granularity describes one bucketed stats group: how a period key is
// formatted (as a sortable integer) and how many past periods are retained.
type Granularity struct {
	Unit    TimeUnit
	Group   string
	Periods int

	key   func(t time.Time) int64
	start func(p int64) time.Time
	shift func(t time.Time, n int) time.Time
}

var (
	// Hour keys are YYYYMMDDHH.
	Hour = Granularity{
		Unit: UnitHour, Group: GroupHourly, Periods: 48,
		key: func(t time.Time) int64 {
			return int64(t.Year())*1000000 + int64(t.Month())*10000 + int64(t.Day())*100 + int64(t.Hour())
		},
		start: func(p int64) time.Time {
			return time.Date(int(p/1000000), time.Month(p/10000%100), int(p/100%100), int(p%100), 0, 0, 0, time.UTC)
		},
		shift: func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Hour) },
	}

	// Day keys are YYYYMMDD.
	Day = Granularity{
		Unit: UnitDay, Group: GroupDaily, Periods: 90,
		key: func(t time.Time) int64 {
			return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
		},
		start: func(p int64) time.Time {
			return time.Date(int(p/10000), time.Month(p/100%100), int(p%100), 0, 0, 0, 0, time.UTC)
		},
		shift: func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) },
	}

	// Week keys are ISO-8601 YYYYWW.
	Week = Granularity{
		Unit: UnitWeek, Group: GroupWeekly, Periods: 12,
		key: func(t time.Time) int64 {
			y, w := t.ISOWeek()
			return int64(y)*100 + int64(w)
		},
		start: func(p int64) time.Time { return isoWeekStart(int(p/100), int(p%100)) },
		shift: func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) },
	}

	// Month keys are YYYYMM.
	Month = Granularity{
		Unit: UnitMonth, Group: GroupMonthly, Periods: 12,
		key: func(t time.Time) int64 {
			return int64(t.Year())*100 + int64(t.Month())
		},
		start: func(p int64) time.Time {
			return time.Date(int(p/100), time.Month(p%100), 1, 0, 0, 0, 0, time.UTC)
		},
		shift: func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) },
	}
)

// Granularities indexes the bucketed granularities by unit.
var Granularities = map[TimeUnit]Granularity{
	UnitHour:  Hour,
	UnitDay:   Day,
	UnitWeek:  Week,
	UnitMonth: Month,
}

// Key returns the period containing t (UTC).
func (g Granularity) Key(t time.Time) int64 {
	return g.key(t.UTC())
}

// Start returns the first instant of period p, rejecting malformed keys.
func (g Granularity) Start(p int64) (time.Time, error) {
	if p <= 0 {
		return time.Time{}, fmt.Errorf("invalid %s period %d", g.Unit, p)
	}
	t := g.start(p)
	if g.key(t) != p {
		return time.Time{}, fmt.Errorf("invalid %s period %d", g.Unit, p)
	}
	return t, nil
}

// WindowStart returns the oldest period retained alongside p.
func (g Granularity) WindowStart(p int64) (int64, error) {
	t, err := g.Start(p)
	if err != nil {
		return 0, err
	}
	return g.key(g.shift(t, -g.Periods)), nil
}

func isoWeekStart(year, week int) time.Time {
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (week-1)*7)
}
