// Package services holds the built-in maintenance tasks and the workday
// calendar used by workday-only schedules.
package services

import (
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/us"
)

// WorkdayCalendar answers whether a given instant falls on a workday for a
// country. China is special-cased through the statutory holiday tables, which
// include weekend make-up workdays; "NONE" (and any unknown code) falls back
// to the plain Monday-Friday rule.
type WorkdayCalendar struct {
	calendars map[string]*cal.BusinessCalendar
}

func NewWorkdayCalendar() *WorkdayCalendar {
	c := &WorkdayCalendar{
		calendars: make(map[string]*cal.BusinessCalendar),
	}
	c.add("US", "United States", us.Holidays...)
	c.add("GB", "United Kingdom", gb.Holidays...)
	c.add("DE", "Germany", de.Holidays...)
	c.add("FR", "France", fr.Holidays...)
	c.add("JP", "Japan", jp.Holidays...)
	c.add("AU", "Australia", au.HolidaysNSW...)
	c.add("CA", "Canada", ca.Holidays...)
	return c
}

func (c *WorkdayCalendar) add(code, name string, holidays ...*cal.Holiday) {
	bc := cal.NewBusinessCalendar()
	bc.Name = name
	bc.AddHoliday(holidays...)
	c.calendars[code] = bc
}

func (c *WorkdayCalendar) IsWorkday(t time.Time, countryCode string) bool {
	if countryCode == "CN" {
		return isWorkdayChina(t)
	}

	bc, ok := c.calendars[countryCode]
	if !ok {
		return !cal.IsWeekend(t)
	}
	return bc.IsWorkday(t)
}

func (c *WorkdayCalendar) IsHoliday(t time.Time, countryCode string) bool {
	return !c.IsWorkday(t, countryCode)
}

// SupportedCountries lists the codes accepted in a schedule's country_code.
func (c *WorkdayCalendar) SupportedCountries() []string {
	codes := []string{"CN", "NONE"}
	for code := range c.calendars {
		codes = append(codes, code)
	}
	return codes
}

// isWorkdayChina consults the statutory holiday table, which marks both
// holidays and the adjacent make-up working weekends.
func isWorkdayChina(t time.Time) bool {
	solar := calendar.NewSolarFromDate(t)
	holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay())
	if holiday != nil {
		return holiday.IsWork()
	}

	weekday := t.Weekday()
	return weekday != time.Saturday && weekday != time.Sunday
}
