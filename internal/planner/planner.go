// Package planner drives one conversational planning session: it sends the
// user's turns, runs image attachments through city recognition first, and
// feeds every reply into the parser and the trip reconciler.
package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/chat"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TravelAgent/client/internal/parser"
	"github.com/GriffinCanCode/TravelAgent/client/internal/shared/id"
	"github.com/GriffinCanCode/TravelAgent/client/internal/trip"
)

// Bot lines shown in the transcript
const (
	Greeting = "Salut! Spune-mi destinația ta și perioada aproximativă. " +
		"Poți continua cu preferințe (zbor, cazare, buget). " +
		"Când ai terminat scrie 'gata' sau 'finalizează'."

	MsgImageFailed   = "Eroare la analiza imaginii."
	MsgServerError   = "Eroare la server."
	MsgCityUnknown   = "Nu am putut identifica orașul din imagine. Poți încerca cu o altă fotografie sau spune-mi în ce oraș dorești să călătorești."
	MsgPressSend     = "Apasă din nou pe trimite pentru a continua conversația cu contextul imaginii."
	PlaceholderImage = "[Imagine pentru analiză]"
	PlaceholderEmpty = "[Fără text]"
	EmptyMessage     = "Mesaj fără text."
)

var (
	ErrNothingToSend  = errors.New("nothing to send")
	ErrEmptyImage     = errors.New("image is empty")
	ErrSpeechDisabled = errors.New("speech is not configured")
	ErrTurnInProgress = errors.New("a turn is already in progress")
)

// Role tags transcript entries
type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// Entry is one line of the transcript
type Entry struct {
	ID      id.MessageID
	Role    Role
	Content string
}

// ImageMode is the attachment state
type ImageMode int

const (
	ImageIdle ImageMode = iota
	ImagePending
	ImageAnalyzing
	ImageDone
)

func (m ImageMode) String() string {
	switch m {
	case ImageIdle:
		return "idle"
	case ImagePending:
		return "pending"
	case ImageAnalyzing:
		return "analyzing"
	case ImageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Chatter is the chat hook layer; *chat.Session implements it
type Chatter interface {
	SendMessage(ctx context.Context, payload chat.Payload) (*chat.Response, bool)
	LocateCity(ctx context.Context, image []byte, filename, hint string) *chat.CityAnalysis
}

// Speaker converts between text and audio; *speech.Service implements it
type Speaker interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Planner orchestrates turns for one session
type Planner struct {
	chat    Chatter
	trip    *trip.Reconciler
	speaker Speaker
	logger  *zap.Logger

	turn sync.Mutex // one turn at a time

	mu         sync.Mutex
	transcript []Entry            // Protected by mu
	mode       ImageMode          // Protected by mu
	image      []byte             // Protected by mu
	filename   string             // Protected by mu
	analysis   *chat.CityAnalysis // Protected by mu
	insights   parser.Insights    // Protected by mu
}

// New creates a planner whose transcript starts with the greeting
func New(chatter Chatter, reconciler *trip.Reconciler, logger *zap.Logger) *Planner {
	p := &Planner{
		chat:   chatter,
		trip:   reconciler,
		logger: logging.OrNop(logger),
	}
	p.transcript = []Entry{newEntry(RoleBot, Greeting)}
	return p
}

// WithSpeech enables Speak and Transcribe
func (p *Planner) WithSpeech(speaker Speaker) *Planner {
	p.speaker = speaker
	return p
}

// Attach stages an image; the next Send analyses it first
func (p *Planner) Attach(image []byte, filename string) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.image = image
	p.filename = filename
	p.analysis = nil
	p.mode = ImagePending
	return nil
}

// Detach drops the staged image and any analysis
func (p *Planner) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearImageLocked()
}

// Send runs one turn. Failures are reported in the transcript; the returned
// error only signals that nothing was sent.
func (p *Planner) Send(ctx context.Context, text string) error {
	if !p.turn.TryLock() {
		return ErrTurnInProgress
	}
	defer p.turn.Unlock()

	text = strings.TrimSpace(text)

	p.mu.Lock()
	mode := p.mode
	image, filename := p.image, p.filename
	p.mu.Unlock()

	if text == "" && mode != ImagePending && mode != ImageDone {
		return ErrNothingToSend
	}
	if mode == ImagePending {
		p.analyzeImage(ctx, text, image, filename)
		return nil
	}

	p.mu.Lock()
	analysis := p.analysis
	enrich := mode == ImageDone && analysis != nil && !analysis.Fallback
	p.mu.Unlock()

	display := text
	if display == "" {
		display = PlaceholderEmpty
	}
	p.append(RoleUser, display)
	message := text
	if enrich {
		message += imageContext(analysis)
	}
	p.sendTurn(ctx, message)

	if mode == ImageDone {
		p.Detach()
	}
	return nil
}

// analyzeImage is the first step of a turn with a staged image
func (p *Planner) analyzeImage(ctx context.Context, text string, image []byte, filename string) {
	display := text
	if display == "" {
		display = PlaceholderImage
	}
	p.append(RoleUser, display)
	p.setMode(ImageAnalyzing)

	analysis := p.chat.LocateCity(ctx, image, filename, text)
	if analysis == nil {
		p.append(RoleBot, MsgImageFailed)
		p.setMode(ImagePending)
		return
	}

	p.mu.Lock()
	p.analysis = analysis
	p.mode = ImageDone
	p.mu.Unlock()

	p.logger.Info("Image analysed",
		zap.Bool("fallback", analysis.Fallback),
		zap.Bool("identified", analysis.Identified()))
	p.append(RoleBot, locateLine(analysis))

	if text == "" {
		p.append(RoleBot, MsgPressSend)
		p.mu.Lock()
		p.image = nil
		p.filename = ""
		p.mu.Unlock()
		return
	}

	message := text
	if !analysis.Fallback {
		message += imageContext(analysis)
	}
	p.sendTurn(ctx, message)
	p.Detach()
}

// sendTurn posts message and processes the reply
func (p *Planner) sendTurn(ctx context.Context, message string) {
	if message == "" {
		message = EmptyMessage
	}

	resp, ok := p.chat.SendMessage(ctx, chat.Text(message))
	if !ok || resp == nil || resp.Reply == "" {
		p.append(RoleBot, MsgServerError)
		return
	}
	p.processReply(resp)
}

// processReply feeds a reply into the transcript, the insights and the trip
func (p *Planner) processReply(resp *chat.Response) {
	p.append(RoleBot, resp.Reply)

	facts := parser.Parse(resp.Reply)
	if !resp.Data.Empty() {
		p.trip.IngestBackendData(resp.Data)
	}

	p.mu.Lock()
	p.insights = p.insights.Merge(facts)
	p.mu.Unlock()

	if dest, ok := facts.Destination(); ok {
		p.trip.CaptureDestination(dest)
	}
	if date, ok := facts.FirstDate(); ok {
		p.trip.CaptureDates(date)
	}
	if facts.FlightChoice != nil && !p.trip.SelectFlightByChoice(*facts.FlightChoice) {
		p.logger.Debug("Flight choice out of range", zap.Int("choice", *facts.FlightChoice))
	}
	if facts.HotelChoice != nil && !p.trip.SelectHotelByChoice(*facts.HotelChoice) {
		p.logger.Debug("Hotel choice out of range", zap.Int("choice", *facts.HotelChoice))
	}
}

// Transcript returns a copy of the conversation so far
func (p *Planner) Transcript() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.transcript))
	copy(out, p.transcript)
	return out
}

// Insights returns the facts accumulated across replies
func (p *Planner) Insights() parser.Insights {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insights
}

// ImageMode returns the attachment state
func (p *Planner) ImageMode() ImageMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Analysis returns the last city analysis kept for the next turn
func (p *Planner) Analysis() *chat.CityAnalysis {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.analysis
}

// Reset starts a new plan: greeting only, no image, no insights
func (p *Planner) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcript = []Entry{newEntry(RoleBot, Greeting)}
	p.insights = parser.Insights{}
	p.clearImageLocked()
}

// Speak synthesizes text as MP3 audio
func (p *Planner) Speak(ctx context.Context, text string) (io.ReadCloser, error) {
	if p.speaker == nil {
		return nil, ErrSpeechDisabled
	}
	return p.speaker.Synthesize(ctx, text)
}

// Transcribe converts recorded audio to text for the next turn
func (p *Planner) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if p.speaker == nil {
		return "", ErrSpeechDisabled
	}
	return p.speaker.Transcribe(ctx, audio, filename)
}

func (p *Planner) append(role Role, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcript = append(p.transcript, newEntry(role, content))
}

func (p *Planner) setMode(mode ImageMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

func (p *Planner) clearImageLocked() {
	p.image = nil
	p.filename = ""
	p.analysis = nil
	p.mode = ImageIdle
}

func newEntry(role Role, content string) Entry {
	return Entry{ID: id.NewMessageID(), Role: role, Content: content}
}

func locateLine(a *chat.CityAnalysis) string {
	if a.Fallback {
		return MsgCityUnknown
	}
	place := orNull(a.City)
	if a.Country != nil && *a.Country != "" {
		place += ", " + *a.Country
	}
	return fmt.Sprintf("Văd că este %s! 🌍", place)
}

// imageContext is appended to the user's text so the backend sees the
// recognised city
func imageContext(a *chat.CityAnalysis) string {
	confidence := "null"
	if a.Confidence != nil {
		confidence = strconv.FormatFloat(*a.Confidence, 'f', -1, 64)
	}
	return fmt.Sprintf("\n[Context imagine: oras=%s, tara=%s, confidence=%s]",
		orNull(a.City), orNull(a.Country), confidence)
}

func orNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}
