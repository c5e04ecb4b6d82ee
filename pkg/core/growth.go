package core

import (
	"fmt"
	"time"
)

// SiteKey is the exact-match part of a growth lookup.
type SiteKey struct {
	Region  int `json:"region" yaml:"region"`
	Soil    int `json:"soil" yaml:"soil"`
	GrassBA int `json:"grass_ba" yaml:"grass_ba"`
	LandCon int `json:"land_con" yaml:"land_con"`
}

// String returns a compact form used in log attributes.
func (k SiteKey) String() string {
	return fmt.Sprintf("region=%d soil=%d grass_ba=%d land_con=%d", k.Region, k.Soil, k.GrassBA, k.LandCon)
}

// GrowthRecord is one month of pasture growth for a site and stocking-rate category.
// CutNum is a legacy column that is carried through but never interpreted.
type GrowthRecord struct {
	Year   int     `json:"year" yaml:"year"`
	Month  int     `json:"month" yaml:"month"`
	CutNum int     `json:"cut_num" yaml:"cut_num"`
	Growth float64 `json:"growth" yaml:"growth"`
	BP1    float64 `json:"bp1" yaml:"bp1"`
	BP2    float64 `json:"bp2" yaml:"bp2"`
}

// YearMonth returns the record's calendar month.
func (r GrowthRecord) YearMonth() YearMonth {
	return YearMonth{Year: r.Year, Month: r.Month}
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month int
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

// Ordinal returns a linear month number, year*12 + (month-1).
func (ym YearMonth) Ordinal() int {
	return ym.Year*12 + ym.Month - 1
}

// Next returns the following calendar month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month >= 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Compare returns -1, 0 or +1.
func (ym YearMonth) Compare(other YearMonth) int {
	a, b := ym.Ordinal(), other.Ordinal()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Before reports whether ym is earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	return ym.Compare(other) < 0
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month())
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Clock is the simulation clock consumed by the retrieval engine.
type Clock interface {
	// Today is the current simulated date.
	Today() time.Time
	// EndDate is the final simulated date.
	EndDate() time.Time
}
