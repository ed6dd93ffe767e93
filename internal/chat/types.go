package chat

import "github.com/GriffinCanCode/TravelAgent/client/internal/trip"

// Payload is the body of a chat turn: Text or Multipart
type Payload interface {
	isPayload()
}

// Text is a plain text turn sent as JSON
type Text string

// Multipart is a turn carrying an image. Hint travels as the message field.
type Multipart struct {
	Image    []byte
	Filename string
	Hint     string
	Fields   map[string]string
}

func (Text) isPayload()      {}
func (Multipart) isPayload() {}

// Response is the reply envelope of one chat turn
type Response struct {
	Reply     string                   `json:"reply"`
	SessionID string                   `json:"session_id"`
	State     map[string]interface{}   `json:"state"`
	History   []map[string]interface{} `json:"history"`
	Data      *trip.Data               `json:"data,omitempty"`
}

// CityAnalysis is the backend's guess of the city shown in an image
type CityAnalysis struct {
	City       *string  `json:"city"`
	Country    *string  `json:"country"`
	Confidence *float64 `json:"confidence"`
	Reasoning  *string  `json:"reasoning"`
	Fallback   bool     `json:"fallback"`
	RawText    string   `json:"raw_text,omitempty"`
}

// FallbackAnalysis is returned when the backend has no structured guess
func FallbackAnalysis() *CityAnalysis {
	return &CityAnalysis{Fallback: true}
}

// Identified reports whether a city and country were recognized
func (a *CityAnalysis) Identified() bool {
	return a != nil && !a.Fallback && a.City != nil && a.Country != nil
}

// SessionState is the persisted state returned by FetchState and UpdateState
type SessionState struct {
	SessionID string                   `json:"session_id"`
	State     map[string]interface{}   `json:"state"`
	History   []map[string]interface{} `json:"history,omitempty"`
}

// Summary is the compact view of the current planning selections
type Summary struct {
	SessionID          string  `json:"session_id"`
	ProgressStage      *string `json:"progress_stage"`
	OriginAirport      *string `json:"origin_airport"`
	DestinationAirport *string `json:"destination_airport"`
	DepartureDate      *string `json:"departure_date"`
	ReturnDate         *string `json:"return_date"`
	Adults             *int    `json:"adults"`
	Children           *int    `json:"children"`
	FlightSelected     bool    `json:"flight_selected"`
	HotelSelected      bool    `json:"hotel_selected"`
	ActivitiesCount    int     `json:"activities_count"`
	ItineraryDefined   bool    `json:"itinerary_defined"`
}

type locateResponse struct {
	Data *CityAnalysis `json:"data"`
}

type summaryResponse struct {
	Summary Summary                `json:"summary"`
	State   map[string]interface{} `json:"state"`
}
