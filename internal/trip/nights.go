package trip

import (
	"regexp"
	"strconv"
)

// DefaultNights is used when the travel dates carry no usable day range
const DefaultNights = 3

// bare day range such as "3-10" or "12 – 19"
var nightsPattern = regexp.MustCompile(`^\s*(\d{1,2})\s*[-–]\s*(\d{1,2})\s*$`)

// Nights derives the number of nights from a free-form travel dates string.
// Only a bare range of days of the month counts; anything else, including
// ranges with a month name attached, falls back to DefaultNights.
func Nights(travelDates string) int {
	m := nightsPattern.FindStringSubmatch(travelDates)
	if m == nil {
		return DefaultNights
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if !dayOfMonth(start) || !dayOfMonth(end) {
		return DefaultNights
	}
	if diff := end - start; diff > 0 && diff < 60 {
		return diff
	}
	return DefaultNights
}

func dayOfMonth(d int) bool {
	return d >= 1 && d <= 31
}
