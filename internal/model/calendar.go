package model

import "time"

// BusinessDaysBetween counts Monday-Friday dates in [from, to] minus one,
// so consecutive weekdays are 1 apart and a Friday->Monday hop is also 1.
// It returns -1 when to is before from.
func BusinessDaysBetween(from, to time.Time) int {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return -1
	}
	days := int(to.Sub(from).Hours()/24) + 1
	weeks := days / 7
	n := weeks * 5
	wd := from.Weekday()
	for i := 0; i < days%7; i++ {
		if wd != time.Saturday && wd != time.Sunday {
			n++
		}
		wd = (wd + 1) % 7
	}
	return n - 1
}
