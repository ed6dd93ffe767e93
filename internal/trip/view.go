package trip

// View is the screen the planner should be showing
type View string

const (
	ViewHome     View = "home"
	ViewPlanning View = "planning"
	ViewSummary  View = "summary"
	ViewCheckout View = "checkout"
	ViewPayment  View = "payment"
)

type page int

const (
	pageHome page = iota
	pageCheckout
	pagePayment
)

// View returns the current screen
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

// StartPlanning opens the conversational planner from the landing screen
func (r *Reconciler) StartPlanning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.planning = true
}

// BuyNow moves from the trip summary to checkout
func (r *Reconciler) BuyNow() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Complete {
		return ErrTripIncomplete
	}
	r.page = pageCheckout
	return nil
}

// ProceedToPayment moves from checkout to payment
func (r *Reconciler) ProceedToPayment() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.page != pageCheckout {
		return ErrNotAtCheckout
	}
	r.page = pagePayment
	return nil
}

// BackToHome leaves checkout or payment. A complete trip lands on its summary.
func (r *Reconciler) BackToHome() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.page = pageHome
}

func (r *Reconciler) viewLocked() View {
	switch r.page {
	case pageCheckout:
		return ViewCheckout
	case pagePayment:
		return ViewPayment
	}
	if r.state.Complete {
		return ViewSummary
	}
	if r.planning {
		return ViewPlanning
	}
	return ViewHome
}
