package domain

import (
	"fmt"
	"time"
)

// Period is a calculation month.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	parsed, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Year: parsed.Year(), Month: parsed.Month()}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// StartDate is the first day of the month, UTC.
func (p Period) StartDate() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// EndDate is the last day of the month, UTC.
func (p Period) EndDate() time.Time {
	return p.StartDate().AddDate(0, 1, -1)
}

func (p Period) PrevMonth() Period {
	d := p.StartDate().AddDate(0, -1, 0)
	return Period{Year: d.Year(), Month: d.Month()}
}

func (p Period) PrevYear() Period {
	return Period{Year: p.Year - 1, Month: p.Month}
}
