package parser

// Insights accumulates facts across the turns of one conversation
type Insights struct {
	Airports     []string
	Dates        []string
	Travelers    *int
	FlightChoice *int
	HotelChoice  *int
	Budget       *Budget
}

// Merge returns a copy of in updated with f. Fields f mentions replace the
// previous value; fields f does not mention keep it.
func (in Insights) Merge(f Facts) Insights {
	out := in
	if len(f.Airports) > 0 {
		out.Airports = append([]string(nil), f.Airports...)
	}
	if len(f.Dates) > 0 {
		out.Dates = append([]string(nil), f.Dates...)
	}
	if f.Travelers != nil {
		out.Travelers = f.Travelers
	}
	if f.FlightChoice != nil {
		out.FlightChoice = f.FlightChoice
	}
	if f.HotelChoice != nil {
		out.HotelChoice = f.HotelChoice
	}
	if f.Budget != nil {
		out.Budget = f.Budget
	}
	return out
}
