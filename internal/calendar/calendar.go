// Package calendar names the public holidays and festivals of a day.
package calendar

import (
	"time"

	lunar "github.com/6tail/lunar-go/calendar"
)

type monthDay struct {
	month time.Month
	day   int
}

var fixedHolidays = map[monthDay]string{
	{time.January, 1}:   "New Year's Day",
	{time.February, 14}: "Valentine's Day",
	{time.May, 1}:       "Labour Day",
	{time.October, 1}:   "National Day",
	{time.December, 25}: "Christmas",
}

// Festivals keyed by lunar month and day. Leap months never match.
var lunarFestivals = map[[2]int]string{
	{1, 1}:  "Spring Festival",
	{1, 15}: "Lantern Festival",
	{5, 5}:  "Dragon Boat Festival",
	{8, 15}: "Mid-Autumn Festival",
	{9, 9}:  "Double Ninth Festival",
}

const (
	newYearsEve  = "Chinese New Year's Eve"
	tombSweeping = "Tomb-Sweeping Day"
	// qingming is the solar term name the lunar library reports.
	qingming = "清明"
)

// Calendar answers holiday lookups in a fixed location.
type Calendar struct {
	loc *time.Location
}

func New(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{loc: loc}
}

// HolidayNames lists the holidays falling on day's date in the calendar's
// location: fixed solar holidays first, then New Year's Eve, lunar festivals
// and Tomb-Sweeping Day.
func (c *Calendar) HolidayNames(day time.Time) []string {
	day = day.In(c.loc)
	y, m, d := day.Date()
	var names []string

	if name, ok := fixedHolidays[monthDay{m, d}]; ok {
		names = append(names, name)
	}

	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	if lunarMonthDay(tomorrow) == [2]int{1, 1} {
		names = append(names, newYearsEve)
	}

	l := lunar.NewSolarFromYmd(y, int(m), d).GetLunar()
	if name, ok := lunarFestivals[[2]int{l.GetMonth(), l.GetDay()}]; ok {
		names = append(names, name)
	}
	if l.GetJieQi() == qingming {
		names = append(names, tombSweeping)
	}
	return names
}

func lunarMonthDay(day time.Time) [2]int {
	l := lunar.NewSolarFromYmd(day.Year(), int(day.Month()), day.Day()).GetLunar()
	return [2]int{l.GetMonth(), l.GetDay()}
}
