package entities

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date is a calendar date at midnight UTC. The zero value is the null date.
type Date struct {
	t time.Time
}

// NewDate builds a date from its calendar parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's own year/month/day.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. Anything else yields the null date.
func ParseDate(s string) Date {
	if !dateRegex.MatchString(s) {
		return Date{}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}
	}
	return Date{t: t}
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d := ParseDate(s)
	if d.IsNull() {
		panic(fmt.Sprintf("entities: malformed date %q", s))
	}
	return d
}

func (d Date) IsNull() bool { return d.t.IsZero() }

// Time returns the underlying instant (midnight UTC).
func (d Date) Time() time.Time { return d.t }

func (d Date) Year() int { return d.t.Year() }

func (d Date) Month() time.Month { return d.t.Month() }

func (d Date) Day() int { return d.t.Day() }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) After(o Date) bool { return d.t.After(o.t) }

func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	if d.IsNull() {
		return d
	}
	return Date{t: d.t.AddDate(0, 0, n)}
}

// AddMonths returns the date shifted by n months with time.AddDate normalization.
func (d Date) AddMonths(n int) Date {
	if d.IsNull() {
		return d
	}
	return Date{t: d.t.AddDate(0, n, 0)}
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	if d.IsNull() {
		return d
	}
	return NewDate(d.t.Year(), d.t.Month(), 1)
}

// MaxDate returns the later of a and b, ignoring null dates.
func MaxDate(a, b Date) Date {
	if a.IsNull() {
		return b
	}
	if b.IsNull() || a.After(b) {
		return a
	}
	return b
}

// MinDate returns the earlier of a and b, ignoring null dates.
func MinDate(a, b Date) Date {
	if a.IsNull() {
		return b
	}
	if b.IsNull() || a.Before(b) {
		return a
	}
	return b
}

func (d Date) String() string {
	if d.IsNull() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsNull() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.t.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON never fails on a malformed date string; it stores the null date instead.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = Date{}
		return nil
	}
	*d = ParseDate(s)
	return nil
}

// Scan implements sql.Scanner for date, timestamp and text columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = DateOf(v)
	case string:
		*d = ParseDate(v)
	case []byte:
		*d = ParseDate(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsNull() {
		return nil, nil
	}
	return d.t, nil
}
