package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

// StatsFieldPattern matches the stats group fields a full update must not null out.
var StatsFieldPattern = regexp.MustCompile(`_(hourly|daily|weekly|monthly|overall)Stats`)

// Period is a TimeInUnit value. It decodes from either a JSON number or a
// numeric string, since clients send both.
type Period int64

func (p *Period) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil {
			return fmt.Errorf("invalid timeInUnit %q", b)
		}
		n = int64(f)
	}
	*p = Period(n)
	return nil
}

// Signal is a named time-bucketed event count (e.g. "views" on a day).
type Signal struct {
	Name     string   `json:"name"`
	TimeUnit TimeUnit `json:"timeUnit,omitempty"`
	// TimeInUnit is the period key for the unit, or epoch milliseconds for timestamps.
	TimeInUnit Period `json:"timeInUnit"`
	// Value defaults to 1 when absent. An explicit 0 is kept.
	Value *float64 `json:"value,omitempty"`
}

func (s Signal) amount() float64 {
	if s.Value == nil {
		return 1
	}
	return *s.Value
}

func (s Signal) unit() TimeUnit {
	if s.TimeUnit == "" {
		return UnitTimestamp
	}
	return s.TimeUnit
}

// Validate checks the signal can be applied without touching any document.
func (s Signal) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("signal name is required")
	}
	if s.TimeInUnit <= 0 {
		return fmt.Errorf("signal %q: timeInUnit is required", s.Name)
	}
	if s.Value != nil && (math.IsNaN(*s.Value) || math.IsInf(*s.Value, 0)) {
		return fmt.Errorf("signal %q: value must be finite", s.Name)
	}
	switch unit := s.unit(); unit {
	case UnitTimestamp:
		return nil
	default:
		g, ok := Granularities[unit]
		if !ok {
			return fmt.Errorf("signal %q: unknown time unit %q", s.Name, unit)
		}
		if _, err := g.Start(int64(s.TimeInUnit)); err != nil {
			return fmt.Errorf("signal %q: %w", s.Name, err)
		}
	}
	return nil
}

// Apply folds one signal into doc's stats groups. Timestamp signals cascade
// into hour; hour into day; day into week and month. The overall total is
// updated once per signal.
func Apply(doc document.Document, s Signal, now time.Time) error {
	if err := s.Validate(); err != nil {
		return err
	}
	p := int64(s.TimeInUnit)
	v := s.amount()

	var err error
	switch s.unit() {
	case UnitTimestamp:
		t := time.UnixMilli(p).UTC()
		err = applyHourly(doc, Hour.Key(t), t, s.Name, v, now)
	case UnitHour:
		t, _ := Hour.Start(p)
		err = applyHourly(doc, p, t, s.Name, v, now)
	case UnitDay:
		t, _ := Day.Start(p)
		err = applyDaily(doc, p, t, s.Name, v, now)
	case UnitWeek:
		err = ApplyPeriod(doc, Week, p, s.Name, v, now)
	case UnitMonth:
		err = ApplyPeriod(doc, Month, p, s.Name, v, now)
	}
	if err != nil {
		return err
	}
	applyOverall(doc, s.Name, v, now)
	return nil
}

// ApplyAll applies signals in order, stopping at the first invalid one.
// All signals are validated up front so an error leaves doc untouched.
func ApplyAll(doc document.Document, signals []Signal, now time.Time) error {
	for _, s := range signals {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	for _, s := range signals {
		if err := Apply(doc, s, now); err != nil {
			return err
		}
	}
	return nil
}

func applyHourly(doc document.Document, p int64, t time.Time, name string, v float64, now time.Time) error {
	if err := ApplyPeriod(doc, Hour, p, name, v, now); err != nil {
		return err
	}
	return applyDaily(doc, Day.Key(t), t, name, v, now)
}

func applyDaily(doc document.Document, p int64, t time.Time, name string, v float64, now time.Time) error {
	if err := ApplyPeriod(doc, Day, p, name, v, now); err != nil {
		return err
	}
	if err := ApplyPeriod(doc, Week, Week.Key(t), name, v, now); err != nil {
		return err
	}
	return ApplyPeriod(doc, Month, Month.Key(t), name, v, now)
}

// Decode accepts either a single signal object or an array of them.
func Decode(raw json.RawMessage) ([]Signal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var signals []Signal
		if err := json.Unmarshal(raw, &signals); err != nil {
			return nil, err
		}
		return signals, nil
	}
	var s Signal
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []Signal{s}, nil
}
