package services

import (
	"testing"
	"time"
)

func TestWorkdayCalendar_US(t *testing.T) {
	c := NewWorkdayCalendar()

	// New Year's Day 2024, a Monday.
	if c.IsWorkday(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local), "US") {
		t.Error("US public holiday treated as workday")
	}
	// A plain Tuesday.
	if !c.IsWorkday(time.Date(2024, 1, 9, 10, 0, 0, 0, time.Local), "US") {
		t.Error("regular Tuesday treated as non-workday")
	}
	// A Saturday.
	if c.IsWorkday(time.Date(2024, 1, 6, 10, 0, 0, 0, time.Local), "US") {
		t.Error("Saturday treated as workday")
	}
}

func TestWorkdayCalendar_China(t *testing.T) {
	c := NewWorkdayCalendar()

	// Spring Festival 2024: Monday Feb 12 is a statutory holiday, while
	// Sunday Feb 4 is a make-up working day.
	if c.IsWorkday(time.Date(2024, 2, 12, 10, 0, 0, 0, time.Local), "CN") {
		t.Error("Spring Festival holiday treated as workday")
	}
	if !c.IsWorkday(time.Date(2024, 2, 4, 10, 0, 0, 0, time.Local), "CN") {
		t.Error("make-up working Sunday treated as non-workday")
	}
	// National Day, Oct 1.
	if c.IsWorkday(time.Date(2024, 10, 1, 10, 0, 0, 0, time.Local), "CN") {
		t.Error("National Day treated as workday")
	}
}

func TestWorkdayCalendar_FallbackWeekendRule(t *testing.T) {
	c := NewWorkdayCalendar()

	monday := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	saturday := time.Date(2024, 1, 6, 10, 0, 0, 0, time.Local)

	for _, code := range []string{"NONE", "ZZ", ""} {
		if !c.IsWorkday(monday, code) {
			t.Errorf("code %q: Monday treated as non-workday", code)
		}
		if c.IsWorkday(saturday, code) {
			t.Errorf("code %q: Saturday treated as workday", code)
		}
	}
}

func TestWorkdayCalendar_SupportedCountries(t *testing.T) {
	c := NewWorkdayCalendar()

	codes := make(map[string]bool)
	for _, code := range c.SupportedCountries() {
		codes[code] = true
	}
	for _, want := range []string{"CN", "NONE", "US", "GB", "JP"} {
		if !codes[want] {
			t.Errorf("supported countries missing %q", want)
		}
	}
}
