package stream

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/TravelAgent/client/internal/trip"
)

// EventType discriminates inbound frames
type EventType string

const (
	TypeConnection        EventType = "connection"
	TypeProcessingStarted EventType = "processing_started"
	TypeFeedback          EventType = "feedback"
	TypeMessageComplete   EventType = "message_complete"
	TypeError             EventType = "error"
)

// Step is a stage of the backend agent pipeline. Steps arrive roughly in
// declaration order; delegation may repeat, completed always ends a turn.
type Step string

const (
	StepInitializing         Step = "initializing"
	StepUnderstandingRequest Step = "understanding_request"
	StepAnalyzingOptions     Step = "analyzing_options"
	StepDelegatingToAgent    Step = "delegating_to_agent"
	StepSearchingFlights     Step = "searching_flights"
	StepOptimizingFlights    Step = "optimizing_flights"
	StepSearchingHotels      Step = "searching_hotels"
	StepSearchingActivities  Step = "searching_activities"
	StepCombiningResults     Step = "combining_results"
	StepGeneratingResponse   Step = "generating_response"
	StepCompleted            Step = "completed"
)

var knownSteps = map[Step]bool{
	StepInitializing:         true,
	StepUnderstandingRequest: true,
	StepAnalyzingOptions:     true,
	StepDelegatingToAgent:    true,
	StepSearchingFlights:     true,
	StepOptimizingFlights:    true,
	StepSearchingHotels:      true,
	StepSearchingActivities:  true,
	StepCombiningResults:     true,
	StepGeneratingResponse:   true,
	StepCompleted:            true,
}

// Known reports whether s is one of the declared steps
func (s Step) Known() bool {
	return knownSteps[s]
}

// Event is one decoded inbound frame. The concrete type is one of the
// *Event structs in this file.
type Event interface {
	Type() EventType
	// Time is the backend timestamp, empty when the frame had none
	Time() string
}

// ConnectionEvent confirms (or reports loss of) the session channel
type ConnectionEvent struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ProcessingStartedEvent marks the backend picking up a turn
type ProcessingStartedEvent struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// FeedbackEvent reports pipeline progress for the current turn
type FeedbackEvent struct {
	Step      Step                   `json:"step"`
	Message   string                 `json:"message"`
	Agent     string                 `json:"agent,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// MessageCompleteEvent carries the final reply of a turn
type MessageCompleteEvent struct {
	Reply     string                 `json:"reply"`
	SessionID string                 `json:"session_id,omitempty"`
	State     map[string]interface{} `json:"state,omitempty"`
	Data      *trip.Data             `json:"data,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// ErrorEvent is an application error reported by the backend
type ErrorEvent struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (*ConnectionEvent) Type() EventType        { return TypeConnection }
func (*ProcessingStartedEvent) Type() EventType { return TypeProcessingStarted }
func (*FeedbackEvent) Type() EventType          { return TypeFeedback }
func (*MessageCompleteEvent) Type() EventType   { return TypeMessageComplete }
func (*ErrorEvent) Type() EventType             { return TypeError }

func (e *ConnectionEvent) Time() string        { return e.Timestamp }
func (e *ProcessingStartedEvent) Time() string { return e.Timestamp }
func (e *FeedbackEvent) Time() string          { return e.Timestamp }
func (e *MessageCompleteEvent) Time() string   { return e.Timestamp }
func (e *ErrorEvent) Time() string             { return e.Timestamp }

// Reasons a frame is rejected at the decode boundary
const (
	ReasonInvalidJSON  = "invalid_json"
	ReasonUnknownType  = "unknown_type"
	ReasonInvalidShape = "invalid_shape"
)

// DecodeError explains why a frame was dropped
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame (%s): %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type envelope struct {
	Type EventType `json:"type"`
}

// Decode converts one inbound frame into a typed Event
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := sonic.Unmarshal(frame, &env); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidJSON, Err: err}
	}

	var ev Event
	switch env.Type {
	case TypeConnection:
		ev = &ConnectionEvent{}
	case TypeProcessingStarted:
		ev = &ProcessingStartedEvent{}
	case TypeFeedback:
		ev = &FeedbackEvent{}
	case TypeMessageComplete:
		ev = &MessageCompleteEvent{}
	case TypeError:
		ev = &ErrorEvent{}
	default:
		return nil, &DecodeError{Reason: ReasonUnknownType, Err: fmt.Errorf("type %q", env.Type)}
	}

	if err := sonic.Unmarshal(frame, ev); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidShape, Err: err}
	}
	if err := validate(ev); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidShape, Err: err}
	}
	return ev, nil
}

func validate(ev Event) error {
	switch e := ev.(type) {
	case *FeedbackEvent:
		if e.Step == "" {
			return errors.New("feedback without step")
		}
	case *MessageCompleteEvent:
		if e.Reply == "" && e.Data.Empty() {
			return errors.New("message_complete without reply or data")
		}
	case *ErrorEvent:
		if e.Error == "" {
			return errors.New("error without error text")
		}
	}
	return nil
}

type outbound struct {
	Message string `json:"message"`
}

func encodeOutbound(text string) ([]byte, error) {
	return sonic.Marshal(outbound{Message: text})
}
