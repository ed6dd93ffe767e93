package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GriffinCanCode/TravelAgent/client/internal/chat"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/config"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TravelAgent/client/internal/planner"
	"github.com/GriffinCanCode/TravelAgent/client/internal/progress"
	"github.com/GriffinCanCode/TravelAgent/client/internal/session"
	"github.com/GriffinCanCode/TravelAgent/client/internal/speech"
	"github.com/GriffinCanCode/TravelAgent/client/internal/stream"
	"github.com/GriffinCanCode/TravelAgent/client/internal/trip"
)

const helpText = `Commands:
  <text>             send a chat turn
  /image <path>      attach a photo; the next send identifies the city first
  /analyse           identify the attached photo without a message
  /detach            drop the attached photo
  /live <text>       send over the streaming channel and show agent progress
  /trip              show the reconciled trip
  /state             show the backend session state
  /summary           show the backend planning summary
  /buy, /pay, /home  move through checkout
  /say <text>        synthesize speech into reply.mp3
  /listen <path>     transcribe an audio file and send it
  /new               start a new plan
  /quit              exit`

// app wires every client component for one interactive session
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	out     io.Writer

	store   session.Store
	client  *chat.Client
	trip    *trip.Reconciler
	planner *planner.Planner

	mu            sync.Mutex
	printed       int               // Protected by mu
	tracker       *progress.Tracker // Protected by mu
	streamSession string            // Protected by mu
	unsubscribe   func()            // Protected by mu
	lastStep      stream.Step       // Protected by mu
	lastLogged    int               // Protected by mu
}

func newApp(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, out io.Writer) (*app, error) {
	store, err := openStore(cfg.Session.File)
	if err != nil {
		return nil, err
	}

	client := chat.NewClient(chat.Config{
		BaseURL:   cfg.Backend.APIURL,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
	}, store, logger.Component("chat")).WithMetrics(metrics)

	reconciler := trip.NewReconciler(logger.Component("trip")).WithMetrics(metrics)
	p := planner.New(chat.NewSession(client), reconciler, logger.Component("planner"))

	if cfg.Speech.Enabled() {
		p.WithSpeech(speech.New(speech.Config{
			APIKey:   cfg.Speech.APIKey,
			TTSModel: cfg.Speech.TTSModel,
			STTModel: cfg.Speech.STTModel,
			Voice:    cfg.Speech.Voice,
			Language: cfg.Speech.Language,
		}, logger.Component("speech")))
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		out:     out,
		store:   store,
		client:  client,
		trip:    reconciler,
		planner: p,
	}
	reconciler.OnComplete(func(s trip.State) {
		fmt.Fprintf(a.out, "✔ Trip complete: %s, %s (%d nights). Type /trip for details.\n",
			s.Destination, s.TravelDates, s.Nights)
	})
	reconciler.StartPlanning()
	return a, nil
}

func openStore(path string) (session.Store, error) {
	if path == "" {
		return session.NewMemoryStore(), nil
	}
	store, err := session.NewFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	return store, nil
}

// greet prints the transcript so far (the greeting on a fresh plan)
func (a *app) greet() {
	a.flushTranscript()
}

// handle runs one REPL line; quit reports an exit request
func (a *app) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, a.send(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(a.out, helpText)
	case "/image":
		return false, a.attach(arg)
	case "/analyse":
		return false, a.send(ctx, "")
	case "/detach":
		a.planner.Detach()
		fmt.Fprintln(a.out, "Image removed.")
	case "/live":
		return false, a.live(ctx, arg)
	case "/trip":
		a.printTrip()
	case "/state":
		return false, a.printState(ctx)
	case "/summary":
		return false, a.printSummary(ctx)
	case "/buy":
		return false, a.view(a.trip.BuyNow())
	case "/pay":
		return false, a.view(a.trip.ProceedToPayment())
	case "/home":
		a.trip.BackToHome()
		return false, a.view(nil)
	case "/say":
		return false, a.say(ctx, arg)
	case "/listen":
		return false, a.listen(ctx, arg)
	case "/new":
		return false, a.newPlan(ctx)
	default:
		fmt.Fprintf(a.out, "Unknown command %s. Type /help.\n", cmd)
	}
	return false, nil
}

func (a *app) send(ctx context.Context, text string) error {
	err := a.planner.Send(ctx, text)
	if errors.Is(err, planner.ErrNothingToSend) {
		return nil
	}
	a.flushTranscript()
	return err
}

func (a *app) attach(path string) error {
	if path == "" {
		return errors.New("usage: /image <path>")
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	if err := a.planner.Attach(image, filepath.Base(path)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Attached %s. Your next message goes with it; /analyse checks the photo alone.\n", filepath.Base(path))
	return nil
}

// live sends text over the streaming channel of the current session
func (a *app) live(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("usage: /live <text>")
	}
	tracker, err := a.ensureStream(ctx)
	if err != nil {
		return err
	}
	return tracker.SendMessage(text)
}

// ensureStream starts (or restarts, after a new plan) the progress tracker
// for the stored session
func (a *app) ensureStream(ctx context.Context) (*progress.Tracker, error) {
	sessionID, ok := a.client.SessionID()
	if !ok {
		return nil, errors.New("no session yet: send a chat message first")
	}

	a.mu.Lock()
	if a.tracker != nil && a.streamSession == sessionID {
		t := a.tracker
		a.mu.Unlock()
		return t, nil
	}
	old, oldUnsub := a.tracker, a.unsubscribe
	a.tracker, a.unsubscribe = nil, nil
	a.mu.Unlock()

	if oldUnsub != nil {
		oldUnsub()
	}
	if old != nil {
		old.Close()
	}

	client, err := stream.NewClient(stream.Config{
		BaseURL:              a.cfg.Stream.WSURL,
		SessionID:            sessionID,
		MaxReconnectAttempts: a.cfg.Stream.MaxReconnectAttempts,
		ReconnectDelay:       a.cfg.Stream.ReconnectDelay,
	}, a.logger.Component("stream"))
	if err != nil {
		return nil, err
	}
	client.WithMetrics(a.metrics)

	tracker := progress.NewTracker(client, a.logger.Component("progress")).WithSink(a.trip)
	unsub := tracker.Subscribe(a.renderProgress)
	if err := tracker.Start(ctx); err != nil {
		unsub()
		tracker.Close()
		return nil, err
	}

	a.mu.Lock()
	a.tracker, a.unsubscribe, a.streamSession = tracker, unsub, sessionID
	a.lastStep, a.lastLogged = "", 0
	a.mu.Unlock()
	return tracker, nil
}

// renderProgress prints new stream messages and step changes
func (a *app) renderProgress(s progress.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.CurrentStep != "" && s.CurrentStep != a.lastStep {
		a.lastStep = s.CurrentStep
		if s.CurrentAgent != "" {
			fmt.Fprintf(a.out, "… %s (%s)\n", s.CurrentStep, s.CurrentAgent)
		} else {
			fmt.Fprintf(a.out, "… %s\n", s.CurrentStep)
		}
	}
	if a.lastLogged > len(s.Messages) {
		a.lastLogged = 0
	}
	for _, m := range s.Messages[a.lastLogged:] {
		switch m.Role {
		case progress.RoleAssistant:
			fmt.Fprintf(a.out, "bot: %s\n", m.Content)
		case progress.RoleFeedback:
			fmt.Fprintf(a.out, "  · %s\n", m.Content)
		}
	}
	a.lastLogged = len(s.Messages)
	if s.Error != "" {
		fmt.Fprintf(a.out, "! %s\n", s.Error)
	}
}

func (a *app) printTrip() {
	s := a.trip.Snapshot()
	fmt.Fprintf(a.out, "View:        %s\n", s.View)
	fmt.Fprintf(a.out, "Destination: %s\n", orDash(s.Destination))
	fmt.Fprintf(a.out, "Dates:       %s (%d nights)\n", orDash(s.TravelDates), s.Nights)
	if s.SelectedFlight != nil {
		fmt.Fprintf(a.out, "Flight:      %s, %.2f\n", s.SelectedFlight.Airline, s.SelectedFlight.Price)
	} else {
		fmt.Fprintln(a.out, "Flight:      -")
	}
	if s.SelectedHotel != nil {
		fmt.Fprintf(a.out, "Hotel:       %s, %.2f/night\n", s.SelectedHotel.Name, s.SelectedHotel.PricePerNight)
	} else {
		fmt.Fprintln(a.out, "Hotel:       -")
	}
	for _, d := range s.Itinerary {
		fmt.Fprintf(a.out, "  Day %d: %s\n", d.Day, d.Title)
	}
	fmt.Fprintf(a.out, "Complete:    %t\n", s.Complete)
}

func (a *app) printState(ctx context.Context) error {
	st, err := a.client.FetchState(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintln(a.out, "No session yet.")
		return nil
	}
	for k, v := range st.State {
		fmt.Fprintf(a.out, "%s: %v\n", k, v)
	}
	return nil
}

func (a *app) printSummary(ctx context.Context) error {
	sum, err := a.client.Summary(ctx)
	if err != nil {
		return err
	}
	if sum == nil {
		fmt.Fprintln(a.out, "No session yet.")
		return nil
	}
	fmt.Fprintf(a.out, "Stage: %s\nDestination: %s\nFlight selected: %t\nHotel selected: %t\n",
		deref(sum.ProgressStage), deref(sum.DestinationAirport), sum.FlightSelected, sum.HotelSelected)
	return nil
}

func (a *app) view(err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Now on %s.\n", a.trip.View())
	return nil
}

func (a *app) say(ctx context.Context, text string) error {
	if text == "" {
		tr := a.planner.Transcript()
		text = tr[len(tr)-1].Content
	}
	audio, err := a.planner.Speak(ctx, text)
	if err != nil {
		return err
	}
	defer audio.Close()

	f, err := os.Create("reply.mp3")
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, audio); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Saved reply.mp3")
	return nil
}

func (a *app) listen(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("usage: /listen <path>")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	text, err := a.planner.Transcribe(ctx, f, filepath.Base(path))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "(heard) %s\n", text)
	return a.send(ctx, text)
}

// newPlan resets the backend session and every local state
func (a *app) newPlan(ctx context.Context) error {
	if err := a.client.Reset(ctx); err != nil {
		return err
	}
	a.trip.Reset()
	a.trip.StartPlanning()
	a.planner.Reset()

	a.mu.Lock()
	tracker, unsub := a.tracker, a.unsubscribe
	a.tracker, a.unsubscribe, a.streamSession = nil, nil, ""
	a.printed = 0
	a.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if tracker != nil {
		tracker.Close()
	}
	a.flushTranscript()
	return nil
}

// flushTranscript prints transcript entries not shown yet
func (a *app) flushTranscript() {
	entries := a.planner.Transcript()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.printed > len(entries) {
		a.printed = 0
	}
	for _, e := range entries[a.printed:] {
		if e.Role == planner.RoleBot {
			fmt.Fprintf(a.out, "bot: %s\n", e.Content)
		}
	}
	a.printed = len(entries)
}

func (a *app) close() {
	a.mu.Lock()
	tracker, unsub := a.tracker, a.unsubscribe
	a.tracker, a.unsubscribe = nil, nil
	a.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if tracker != nil {
		tracker.Close()
	}
	_ = a.logger.Sync()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
