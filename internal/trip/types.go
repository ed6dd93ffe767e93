package trip

import (
	"encoding/json"
	"strings"
)

// Flight is one flight offer as delivered by the backend
type Flight struct {
	Airline         string  `json:"airline"`
	Price           float64 `json:"price"`
	IsTopChoice     bool    `json:"isTopChoice,omitempty"`
	OriginCode      string  `json:"originCode,omitempty"`
	DestinationCode string  `json:"destinationCode,omitempty"`
	DepartureTime   string  `json:"departureTime,omitempty"`
	ArrivalTime     string  `json:"arrivalTime,omitempty"`
	Duration        string  `json:"duration,omitempty"`
	Stops           string  `json:"stops,omitempty"`
	Baggage         string  `json:"baggage,omitempty"`
	CabinClass      string  `json:"cabinClass,omitempty"`
}

// Accommodation is one hotel offer
type Accommodation struct {
	Name               string   `json:"name"`
	PricePerNight      float64  `json:"pricePerNight"`
	DistanceFromCenter string   `json:"distanceFromCenter,omitempty"`
	Type               string   `json:"type,omitempty"`
	Rating             float64  `json:"rating,omitempty"`
	IsTopChoice        bool     `json:"isTopChoice,omitempty"`
	Image              string   `json:"image,omitempty"`
	Amenities          []string `json:"amenities,omitempty"`
}

// ItineraryDay is one day of the proposed plan
type ItineraryDay struct {
	Day         int    `json:"day"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Data is the structured payload a chat reply may carry.
//
// Decoding validates every element: entries that are not objects of the
// expected shape are dropped and counted in Dropped instead of failing the
// whole reply.
type Data struct {
	Flights   []Flight        `json:"flights,omitempty"`
	Hotels    []Accommodation `json:"hotels,omitempty"`
	Itinerary []ItineraryDay  `json:"itinerary,omitempty"`

	Dropped int `json:"-"`
}

// Empty reports whether d carries nothing usable
func (d *Data) Empty() bool {
	return d == nil || (len(d.Flights) == 0 && len(d.Hotels) == 0 && len(d.Itinerary) == 0)
}

func (d *Data) UnmarshalJSON(b []byte) error {
	*d = Data{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		// not an object; nothing usable but not fatal for the reply
		d.Dropped++
		return nil
	}

	d.Flights = decodeEach(fields["flights"], &d.Dropped, func(f Flight) bool {
		return strings.TrimSpace(f.Airline) != ""
	})
	d.Hotels = decodeEach(fields["hotels"], &d.Dropped, func(h Accommodation) bool {
		return strings.TrimSpace(h.Name) != ""
	})
	d.Itinerary = decodeEach(fields["itinerary"], &d.Dropped, func(day ItineraryDay) bool {
		return day.Day > 0 || strings.TrimSpace(day.Title) != ""
	})
	return nil
}

func decodeEach[T any](field json.RawMessage, dropped *int, valid func(T) bool) []T {
	if len(field) == 0 || string(field) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(field, &items); err != nil {
		*dropped++
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil || !valid(v) {
			*dropped++
			continue
		}
		out = append(out, v)
	}
	return out
}
