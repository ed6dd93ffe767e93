package planner

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/chat"
	"github.com/GriffinCanCode/TravelAgent/client/internal/trip"
)

type locateCall struct {
	image    []byte
	filename string
	hint     string
}

// fakeChat scripts the chat hook layer
type fakeChat struct {
	replies  []*chat.Response // nil entry means failure
	analyses []*chat.CityAnalysis
	sent     []string
	located  []locateCall
}

func (f *fakeChat) SendMessage(_ context.Context, payload chat.Payload) (*chat.Response, bool) {
	f.sent = append(f.sent, string(payload.(chat.Text)))
	if len(f.replies) == 0 {
		return nil, false
	}
	resp := f.replies[0]
	f.replies = f.replies[1:]
	return resp, resp != nil
}

func (f *fakeChat) LocateCity(_ context.Context, image []byte, filename, hint string) *chat.CityAnalysis {
	f.located = append(f.located, locateCall{image, filename, hint})
	if len(f.analyses) == 0 {
		return nil
	}
	a := f.analyses[0]
	f.analyses = f.analyses[1:]
	return a
}

func str(s string) *string { return &s }

func num(f float64) *float64 { return &f }

func paris() *chat.CityAnalysis {
	return &chat.CityAnalysis{City: str("Paris"), Country: str("Franța"), Confidence: num(0.9)}
}

func newPlanner(fc *fakeChat) (*Planner, *trip.Reconciler) {
	rec := trip.NewReconciler(zap.NewNop())
	return New(fc, rec, zap.NewNop()), rec
}

func contents(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.Role) + ": " + e.Content
	}
	return out
}

func TestGreeting(t *testing.T) {
	p, _ := newPlanner(&fakeChat{})
	tr := p.Transcript()
	require.Len(t, tr, 1)
	assert.Equal(t, RoleBot, tr[0].Role)
	assert.Equal(t, Greeting, tr[0].Content)
}

func TestSendPlainTurn(t *testing.T) {
	fc := &fakeChat{replies: []*chat.Response{{
		Reply: "Zbor OTP → BCN pe 12-05-2025 pentru 2 adulți, buget 900 EUR.",
	}}}
	p, rec := newPlanner(fc)

	require.NoError(t, p.Send(context.Background(), "  Vreau la Barcelona  "))
	assert.Equal(t, []string{"Vreau la Barcelona"}, fc.sent)

	assert.Equal(t, []string{
		"bot: " + Greeting,
		"user: Vreau la Barcelona",
		"bot: Zbor OTP → BCN pe 12-05-2025 pentru 2 adulți, buget 900 EUR.",
	}, contents(p.Transcript()))

	s := rec.Snapshot()
	assert.Equal(t, "BCN", s.Destination)
	assert.Equal(t, "12-05-2025", s.TravelDates)

	in := p.Insights()
	require.NotNil(t, in.Travelers)
	assert.Equal(t, 2, *in.Travelers)
	require.NotNil(t, in.Budget)
	assert.Equal(t, "900", in.Budget.Amount)
}

func TestSendNothing(t *testing.T) {
	fc := &fakeChat{}
	p, _ := newPlanner(fc)
	assert.ErrorIs(t, p.Send(context.Background(), "   "), ErrNothingToSend)
	assert.Empty(t, fc.sent)
	assert.Len(t, p.Transcript(), 1)
}

func TestServerErrorLine(t *testing.T) {
	fc := &fakeChat{replies: []*chat.Response{nil, {Reply: ""}}}
	p, _ := newPlanner(fc)

	require.NoError(t, p.Send(context.Background(), "a"))
	require.NoError(t, p.Send(context.Background(), "b"))

	tr := contents(p.Transcript())
	assert.Equal(t, "bot: "+MsgServerError, tr[2])
	assert.Equal(t, "bot: "+MsgServerError, tr[4])
}

func TestReplyDrivesTripToCompletion(t *testing.T) {
	data := &trip.Data{
		Flights:   []trip.Flight{{Airline: "TAROM", Price: 120}, {Airline: "Wizz", Price: 80}},
		Hotels:    []trip.Accommodation{{Name: "Hotel Arts"}, {Name: "Casa Bonay"}},
		Itinerary: []trip.ItineraryDay{{Day: 1, Title: "Sagrada Família"}},
	}
	fc := &fakeChat{replies: []*chat.Response{
		{Reply: "Am găsit opțiuni OTP - BCN pentru 10-06-2025.", Data: data},
		{Reply: "Perfect, am ales zbor 2 și hotel 2."},
	}}
	p, rec := newPlanner(fc)

	completed := 0
	rec.OnComplete(func(trip.State) { completed++ })

	require.NoError(t, p.Send(context.Background(), "Barcelona, iunie"))
	s := rec.Snapshot()
	assert.True(t, s.Complete)
	require.NotNil(t, s.SelectedFlight)
	assert.Equal(t, "TAROM", s.SelectedFlight.Airline, "first flight auto-selected")

	require.NoError(t, p.Send(context.Background(), "zbor 2, hotel 2"))
	s = rec.Snapshot()
	assert.Equal(t, "Wizz", s.SelectedFlight.Airline)
	assert.Equal(t, "Casa Bonay", s.SelectedHotel.Name)
	assert.Equal(t, 1, completed)

	in := p.Insights()
	assert.Equal(t, []string{"OTP", "BCN"}, in.Airports, "airports kept from earlier reply")
	assert.Equal(t, 2, *in.FlightChoice)
}

func TestImageWithText(t *testing.T) {
	fc := &fakeChat{
		analyses: []*chat.CityAnalysis{paris()},
		replies:  []*chat.Response{{Reply: "Paris e minunat în mai!"}},
	}
	p, _ := newPlanner(fc)

	require.NoError(t, p.Attach([]byte("jpeg"), "eiffel.jpg"))
	assert.Equal(t, ImagePending, p.ImageMode())

	require.NoError(t, p.Send(context.Background(), "Vreau aici în mai"))

	require.Len(t, fc.located, 1)
	assert.Equal(t, "eiffel.jpg", fc.located[0].filename)
	assert.Equal(t, "Vreau aici în mai", fc.located[0].hint)

	require.Len(t, fc.sent, 1)
	assert.Equal(t, "Vreau aici în mai\n[Context imagine: oras=Paris, tara=Franța, confidence=0.9]", fc.sent[0])

	assert.Equal(t, []string{
		"bot: " + Greeting,
		"user: Vreau aici în mai",
		"bot: Văd că este Paris, Franța! 🌍",
		"bot: Paris e minunat în mai!",
	}, contents(p.Transcript()))
	assert.Equal(t, ImageIdle, p.ImageMode())
	assert.Nil(t, p.Analysis())
}

func TestImageWithoutTextKeepsAnalysis(t *testing.T) {
	fc := &fakeChat{
		analyses: []*chat.CityAnalysis{paris()},
		replies:  []*chat.Response{{Reply: "Super!"}},
	}
	p, _ := newPlanner(fc)
	require.NoError(t, p.Attach([]byte("jpeg"), "x.jpg"))

	require.NoError(t, p.Send(context.Background(), ""))
	assert.Empty(t, fc.sent)
	assert.Equal(t, ImageDone, p.ImageMode())
	assert.Equal(t, []string{
		"bot: " + Greeting,
		"user: " + PlaceholderImage,
		"bot: Văd că este Paris, Franța! 🌍",
		"bot: " + MsgPressSend,
	}, contents(p.Transcript()))

	require.NoError(t, p.Send(context.Background(), "3 zile"))
	require.Len(t, fc.sent, 1)
	assert.True(t, strings.HasPrefix(fc.sent[0], "3 zile\n[Context imagine: oras=Paris"))
	assert.Equal(t, ImageIdle, p.ImageMode())
}

func TestImageFallbackIsNotEnriched(t *testing.T) {
	fc := &fakeChat{
		analyses: []*chat.CityAnalysis{chat.FallbackAnalysis()},
		replies:  []*chat.Response{{Reply: "Spune-mi orașul."}},
	}
	p, _ := newPlanner(fc)
	require.NoError(t, p.Attach([]byte("png"), "x.png"))

	require.NoError(t, p.Send(context.Background(), "unde e asta?"))
	assert.Equal(t, []string{"unde e asta?"}, fc.sent)
	assert.Contains(t, contents(p.Transcript()), "bot: "+MsgCityUnknown)
}

func TestImageAnalysisFailureStaysPending(t *testing.T) {
	fc := &fakeChat{analyses: nil}
	p, _ := newPlanner(fc)
	require.NoError(t, p.Attach([]byte("png"), "x.png"))

	require.NoError(t, p.Send(context.Background(), "hint"))
	assert.Equal(t, ImagePending, p.ImageMode())
	assert.Empty(t, fc.sent)

	tr := contents(p.Transcript())
	assert.Equal(t, "bot: "+MsgImageFailed, tr[len(tr)-1])
}

func TestAttachRejectsEmpty(t *testing.T) {
	p, _ := newPlanner(&fakeChat{})
	assert.ErrorIs(t, p.Attach(nil, "x"), ErrEmptyImage)
	assert.Equal(t, ImageIdle, p.ImageMode())
}

func TestReset(t *testing.T) {
	fc := &fakeChat{replies: []*chat.Response{{Reply: "OTP BCN"}}}
	p, _ := newPlanner(fc)
	require.NoError(t, p.Send(context.Background(), "x"))
	require.NoError(t, p.Attach([]byte("png"), ""))

	p.Reset()
	assert.Len(t, p.Transcript(), 1)
	assert.Empty(t, p.Insights().Airports)
	assert.Equal(t, ImageIdle, p.ImageMode())
}

type fakeSpeaker struct{}

func (fakeSpeaker) Synthesize(_ context.Context, text string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("mp3:" + text)), nil
}

func (fakeSpeaker) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(audio)
	return string(b), err
}

func TestSpeech(t *testing.T) {
	p, _ := newPlanner(&fakeChat{})

	_, err := p.Speak(context.Background(), "salut")
	assert.True(t, errors.Is(err, ErrSpeechDisabled))
	_, err = p.Transcribe(context.Background(), strings.NewReader("x"), "a.webm")
	assert.ErrorIs(t, err, ErrSpeechDisabled)

	p.WithSpeech(fakeSpeaker{})
	audio, err := p.Speak(context.Background(), "salut")
	require.NoError(t, err)
	b, _ := io.ReadAll(audio)
	assert.Equal(t, "mp3:salut", string(b))

	text, err := p.Transcribe(context.Background(), strings.NewReader("Roma"), "a.webm")
	require.NoError(t, err)
	assert.Equal(t, "Roma", text)
}

func TestImageModeString(t *testing.T) {
	assert.Equal(t, "analyzing", ImageAnalyzing.String())
	assert.Equal(t, "unknown", ImageMode(42).String())
}
