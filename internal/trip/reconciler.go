// Package trip owns the reconciled trip state of one planning session.
//
// Facts parsed from replies, explicit user selections and structured data
// from the backend all land in one Reconciler. Fields only ever fill in;
// nothing is cleared until Reset. Once destination, dates, a flight, a hotel
// and an itinerary are all known the trip latches complete and stays
// complete until Reset.
package trip

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/monitoring"
)

var (
	ErrTripIncomplete = errors.New("trip is not complete")
	ErrNotAtCheckout  = errors.New("not on the checkout page")
)

// State is a point-in-time copy of the trip
type State struct {
	Destination      string
	TravelDates      string
	SelectedFlight   *Flight
	SelectedHotel    *Accommodation
	AvailableFlights []Flight
	AvailableHotels  []Accommodation
	Itinerary        []ItineraryDay
	Complete         bool
	Nights           int
	View             View
}

// Reconciler merges every source of trip information into one State
type Reconciler struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	state      State // Protected by mu
	page       page  // Protected by mu
	planning   bool  // Protected by mu
	onComplete []func(State)
}

// NewReconciler creates an empty reconciler
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logging.OrNop(logger)}
}

// WithMetrics adds completion tracking
func (r *Reconciler) WithMetrics(metrics *monitoring.Metrics) *Reconciler {
	r.metrics = metrics
	return r
}

// OnComplete registers fn to run each time the trip latches complete.
// fn runs without the reconciler lock held.
func (r *Reconciler) OnComplete(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = append(r.onComplete, fn)
}

// CaptureDestination records the destination mentioned in a reply
func (r *Reconciler) CaptureDestination(destination string) {
	if destination == "" {
		return
	}
	r.mutate(func(s *State) {
		s.Destination = destination
	})
}

// CaptureDates records the travel dates mentioned in a reply
func (r *Reconciler) CaptureDates(dates string) {
	if dates == "" {
		return
	}
	r.mutate(func(s *State) {
		s.TravelDates = dates
	})
}

// SelectFlight records an explicit flight choice
func (r *Reconciler) SelectFlight(f Flight) {
	r.mutate(func(s *State) {
		s.SelectedFlight = &f
	})
}

// SelectHotel records an explicit hotel choice
func (r *Reconciler) SelectHotel(h Accommodation) {
	r.mutate(func(s *State) {
		s.SelectedHotel = &h
	})
}

// SelectFlightByChoice selects the n-th (1-based) available flight.
// Out-of-range choices are ignored and report false.
func (r *Reconciler) SelectFlightByChoice(n int) bool {
	var ok bool
	r.mutate(func(s *State) {
		if n < 1 || n > len(s.AvailableFlights) {
			return
		}
		f := s.AvailableFlights[n-1]
		s.SelectedFlight = &f
		ok = true
	})
	return ok
}

// SelectHotelByChoice selects the n-th (1-based) available hotel
func (r *Reconciler) SelectHotelByChoice(n int) bool {
	var ok bool
	r.mutate(func(s *State) {
		if n < 1 || n > len(s.AvailableHotels) {
			return
		}
		h := s.AvailableHotels[n-1]
		s.SelectedHotel = &h
		ok = true
	})
	return ok
}

// IngestBackendData merges structured reply data. Only non-empty lists
// overwrite; the first flight and hotel are auto-selected when nothing has
// been chosen yet.
func (r *Reconciler) IngestBackendData(data *Data) {
	if data == nil {
		return
	}
	r.mutate(func(s *State) {
		if len(data.Flights) > 0 {
			s.AvailableFlights = append([]Flight(nil), data.Flights...)
			if s.SelectedFlight == nil {
				f := data.Flights[0]
				s.SelectedFlight = &f
			}
		}
		if len(data.Hotels) > 0 {
			s.AvailableHotels = append([]Accommodation(nil), data.Hotels...)
			if s.SelectedHotel == nil {
				h := data.Hotels[0]
				s.SelectedHotel = &h
			}
		}
		if len(data.Itinerary) > 0 {
			s.Itinerary = append([]ItineraryDay(nil), data.Itinerary...)
		}
	})

	r.logger.Debug("Backend data ingested",
		zap.Int("flights", len(data.Flights)),
		zap.Int("hotels", len(data.Hotels)),
		zap.Int("itinerary_days", len(data.Itinerary)),
		zap.Int("dropped", data.Dropped))
}

// Complete reports whether the trip has latched complete
func (r *Reconciler) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Complete
}

// Nights derives the stay length from the captured travel dates
func (r *Reconciler) Nights() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Nights(r.state.TravelDates)
}

// Snapshot returns a deep copy of the current state
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Reset is the "new plan" action: everything goes back to empty
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.state = State{}
	r.page = pageHome
	r.planning = false
	r.mu.Unlock()

	r.logger.Info("Trip state reset")
}

// mutate applies fn under the lock, re-runs the completion check and fires
// completion callbacks when the latch flips.
func (r *Reconciler) mutate(fn func(s *State)) {
	r.mu.Lock()
	fn(&r.state)

	latched := false
	if !r.state.Complete && ready(r.state) {
		r.state.Complete = true
		latched = true
	}
	var snapshot State
	var callbacks []func(State)
	if latched {
		snapshot = r.snapshotLocked()
		callbacks = append(callbacks, r.onComplete...)
	}
	r.mu.Unlock()

	if !latched {
		return
	}
	r.metrics.IncTripsCompleted()
	r.logger.Info("Trip complete",
		zap.String("destination", snapshot.Destination),
		zap.String("dates", snapshot.TravelDates),
		zap.Int("nights", snapshot.Nights))
	for _, cb := range callbacks {
		cb(snapshot)
	}
}

func ready(s State) bool {
	hasFlight := s.SelectedFlight != nil || len(s.AvailableFlights) > 0
	hasHotel := s.SelectedHotel != nil || len(s.AvailableHotels) > 0
	return s.Destination != "" &&
		s.TravelDates != "" &&
		hasFlight &&
		hasHotel &&
		len(s.Itinerary) > 0
}

func (r *Reconciler) snapshotLocked() State {
	s := r.state
	if s.SelectedFlight != nil {
		f := *s.SelectedFlight
		s.SelectedFlight = &f
	}
	if s.SelectedHotel != nil {
		h := *s.SelectedHotel
		s.SelectedHotel = &h
	}
	s.AvailableFlights = append([]Flight(nil), s.AvailableFlights...)
	s.AvailableHotels = append([]Accommodation(nil), s.AvailableHotels...)
	s.Itinerary = append([]ItineraryDay(nil), s.Itinerary...)
	s.Nights = Nights(s.TravelDates)
	s.View = r.viewLocked()
	return s
}
