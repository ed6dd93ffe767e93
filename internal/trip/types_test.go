package trip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDecodeDropsMalformedEntries(t *testing.T) {
	raw := `{
		"flights": [
			{"airline": "TAROM", "price": 189.5, "originCode": "OTP", "destinationCode": "BCN"},
			{"price": 99},
			"not an object",
			{"airline": "Wizz", "price": "cheap"}
		],
		"hotels": [
			{"name": "Hotel Arts", "pricePerNight": 210, "rating": 4.7, "amenities": ["Pool"]},
			{"name": ""}
		],
		"itinerary": [
			{"day": 1, "title": "Sagrada Familia"},
			{"description": "no day, no title"}
		]
	}`

	var d Data
	require.NoError(t, json.Unmarshal([]byte(raw), &d))

	require.Len(t, d.Flights, 1)
	assert.Equal(t, "TAROM", d.Flights[0].Airline)
	assert.Equal(t, 189.5, d.Flights[0].Price)
	require.Len(t, d.Hotels, 1)
	assert.Equal(t, []string{"Pool"}, d.Hotels[0].Amenities)
	require.Len(t, d.Itinerary, 1)
	assert.Equal(t, 5, d.Dropped)
	assert.False(t, d.Empty())
}

func TestDataDecodeOddShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		dropped int
	}{
		{"null", `null`, 0},
		{"empty object", `{}`, 0},
		{"not an object", `[1,2]`, 1},
		{"flights not a list", `{"flights": {"airline": "x"}}`, 1},
		{"null lists", `{"flights": null, "hotels": null}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Data
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &d))
			assert.True(t, d.Empty())
			assert.Equal(t, tt.dropped, d.Dropped)
		})
	}
}

func TestNilDataIsEmpty(t *testing.T) {
	var d *Data
	assert.True(t, d.Empty())
}
