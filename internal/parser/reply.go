// Package parser extracts structured hints from free-form assistant replies.
//
// Extraction is heuristic: every field is an independent regular-expression
// scan and a miss only leaves that field empty. Airport codes are any three
// consecutive uppercase ASCII letters, so ordinary acronyms match too;
// callers must treat the output as hints, not validated data.
package parser

import (
	"regexp"
	"strconv"
)

var (
	airportPattern  = regexp.MustCompile(`\b([A-Z]{3})\b`)
	datePattern     = regexp.MustCompile(`\b(\d{1,2}[-/.]\d{1,2}[-/.]\d{4})\b`)
	flightPattern   = regexp.MustCompile(`(?i)zbor\s*(\d+)`)
	hotelPattern    = regexp.MustCompile(`(?i)hotel\s*(\d+)`)
	budgetPattern   = regexp.MustCompile(`(?i)\b(\d{2,5})\s*(eur|euro|lei|ron)\b`)
	travelerPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(adulți|adulti|persoane|pers|oameni)(?:[^\p{L}\p{N}_]|$)`)
)

// Budget is an amount mentioned together with a currency word
type Budget struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Facts holds what one reply mentions. Nil pointers mean "not mentioned".
type Facts struct {
	Airports     []string `json:"airports"`
	Dates        []string `json:"dates"`
	Travelers    *int     `json:"travelers"`
	FlightChoice *int     `json:"flightChoice"`
	HotelChoice  *int     `json:"hotelChoice"`
	Budget       *Budget  `json:"budget"`
}

// Parse extracts facts from text. It never fails.
func Parse(text string) Facts {
	return Facts{
		Airports:     allSubmatches(airportPattern, text),
		Dates:        allSubmatches(datePattern, text),
		Travelers:    firstInt(travelerPattern, text),
		FlightChoice: firstInt(flightPattern, text),
		HotelChoice:  firstInt(hotelPattern, text),
		Budget:       firstBudget(text),
	}
}

// Destination returns the second airport code mentioned, which replies use
// for the arrival airport ("OTP → BCN"). False when fewer than two codes appear.
func (f Facts) Destination() (string, bool) {
	if len(f.Airports) < 2 {
		return "", false
	}
	return f.Airports[1], true
}

// FirstDate returns the first date-like substring
func (f Facts) FirstDate() (string, bool) {
	if len(f.Dates) == 0 {
		return "", false
	}
	return f.Dates[0], true
}

func allSubmatches(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func firstInt(re *regexp.Regexp, text string) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// digit runs too long for int
		return nil
	}
	return &n
}

func firstBudget(text string) *Budget {
	m := budgetPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &Budget{Amount: m[1], Currency: m[2]}
}
