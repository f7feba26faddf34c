package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a civil date without time of day or zone. The zero Date means "no date".
type Date struct {
	civil.Date
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{civil.Date{Year: year, Month: month, Day: day}}
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return Date{civil.DateOf(t)}
}

// ParseDate parses a YYYY-MM-DD string. A full RFC 3339 timestamp is accepted and truncated.
// An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return DateOf(t), nil
		}
		s = s[:len(DateLayout)]
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{d}, nil
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return d.In(loc)
}

// AddMonths adds n calendar months, normalising overflowing days like time.AddDate (Jan 31 + 1 = Mar 3).
func (d Date) AddMonths(n int) Date {
	if d.IsZero() {
		return d
	}
	return DateOf(d.In(time.UTC).AddDate(0, n, 0))
}

func (d Date) AddDays(n int) Date {
	if d.IsZero() {
		return d
	}
	return Date{d.Date.AddDays(n)}
}

// DaysUntil returns the number of whole days from d to other (negative if other is before d).
func (d Date) DaysUntil(other Date) int {
	return other.DaysSince(d.Date)
}

func (d Date) Before(other Date) bool { return d.Date.Before(other.Date) }
func (d Date) After(other Date) bool  { return d.Date.After(other.Date) }
func (d Date) Equal(other Date) bool  { return d.Date == other.Date }

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year, d.Month, 1)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Date.String()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalParam(s)
}

// MarshalText overrides civil's so absent dates encode as "".
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(data []byte) error {
	return d.UnmarshalParam(string(data))
}

// UnmarshalParam lets echo bind dates from query and form values.
func (d *Date) UnmarshalParam(param string) error {
	parsed, err := ParseDate(param)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner. postgres hands DATE columns over as time.Time, sqlite as text.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		return d.UnmarshalParam(v)
	case []byte:
		return d.UnmarshalParam(string(v))
	}
	return fmt.Errorf("cannot scan %T into core.Date", src)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
