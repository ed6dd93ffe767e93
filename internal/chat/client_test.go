package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TravelAgent/client/internal/session"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type recorded struct {
	method    string
	path      string
	query     string
	sessionID string
	requestID string
	body      map[string]interface{}
	form      map[string]string
	fileName  string
	fileType  string
}

// backend is a scripted httptest server recording every request
type backend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recorded
	status   int
	reply    string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{status: http.StatusOK}
	b.Server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) handle(w http.ResponseWriter, r *http.Request) {
	rec := recorded{
		method:    r.Method,
		path:      r.URL.Path,
		query:     r.URL.Query().Get("sessionId"),
		sessionID: r.Header.Get(HeaderSessionID),
		requestID: r.Header.Get(HeaderRequestID),
	}

	if err := r.ParseMultipartForm(1 << 20); err == nil {
		rec.form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			rec.form[k] = v[0]
		}
		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			rec.fileName = files[0].Filename
			rec.fileType = files[0].Header.Get("Content-Type")
		}
	} else if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.body)
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	status, reply := b.status, b.reply
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (b *backend) respond(status int, reply string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status, b.reply = status, reply
}

func (b *backend) last(t *testing.T) recorded {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests)
	return b.requests[len(b.requests)-1]
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func newTestClient(t *testing.T, b *backend, store session.Store) *Client {
	t.Helper()
	return NewClient(Config{BaseURL: b.URL + "/"}, store, zap.NewNop())
}

func TestSendPersistsFirstSessionID(t *testing.T) {
	b := newBackend(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, b, store)

	_, ok := c.SessionID()
	assert.False(t, ok)

	b.respond(http.StatusOK, `{"reply":"Salut!","session_id":"abc","state":{"stage":"start"},"history":[]}`)
	resp, err := c.Send(context.Background(), Text("Vreau la Roma"))
	require.NoError(t, err)
	assert.Equal(t, "Salut!", resp.Reply)
	assert.Equal(t, "start", resp.State["stage"])

	first := b.last(t)
	assert.Equal(t, http.MethodPost, first.method)
	assert.Equal(t, "/chat/", first.path)
	assert.Empty(t, first.sessionID)
	assert.NotEmpty(t, first.requestID)
	assert.Equal(t, map[string]interface{}{"message": "Vreau la Roma"}, first.body)

	stored, ok := c.SessionID()
	require.True(t, ok)
	assert.Equal(t, "abc", stored)

	b.respond(http.StatusOK, `{"reply":"Ok","session_id":"other"}`)
	_, err = c.Send(context.Background(), Text("Din Cluj"))
	require.NoError(t, err)

	second := b.last(t)
	assert.Equal(t, "abc", second.sessionID)
	assert.Equal(t, "abc", second.body["sessionId"])
	assert.NotEqual(t, first.requestID, second.requestID)

	stored, _ = store.Get()
	assert.Equal(t, "abc", stored, "later ids never overwrite")
}

func TestSendDecodesTripData(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b, session.NewMemoryStore())

	b.respond(http.StatusOK, `{"reply":"Iată","session_id":"s","data":{
		"flights":[{"airline":"Wizz","price":89},{"price":10}],
		"hotels":[{"name":"Hotel Roma","pricePerNight":70}],
		"itinerary":[{"day":1,"title":"Colosseum"}]}}`)

	resp, err := c.Send(context.Background(), Text("x"))
	require.NoError(t, err)
	require.NotNil(t, resp.Data)
	assert.Len(t, resp.Data.Flights, 1)
	assert.Equal(t, 1, resp.Data.Dropped)
	assert.Equal(t, "Hotel Roma", resp.Data.Hotels[0].Name)
	assert.Len(t, resp.Data.Itinerary, 1)
}

func TestSendMultipart(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b, session.NewMemoryStore())
	b.respond(http.StatusOK, `{"reply":"Frumos","session_id":"s1"}`)

	_, err := c.Send(context.Background(), Multipart{
		Image:  pngHeader,
		Hint:   "unde e asta?",
		Fields: map[string]string{"source": "camera"},
	})
	require.NoError(t, err)

	rec := b.last(t)
	assert.Equal(t, "image/png", rec.fileType)
	assert.Equal(t, "image.png", rec.fileName)
	assert.Equal(t, "unde e asta?", rec.form["message"])
	assert.Equal(t, "camera", rec.form["source"])
	v, present := rec.form["sessionId"]
	assert.True(t, present, "sessionId field always sent")
	assert.Empty(t, v)

	_, err = c.Send(context.Background(), Multipart{})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		details string
	}{
		{"error field", 500, `{"error":"Failed to process message","details":"boom"}`, "Failed to process message", "boom"},
		{"bad request", 400, `{"error":"Message is required"}`, "Message is required", ""},
		{"no json", 502, `Bad Gateway`, "request failed with status code 502", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			c := newTestClient(t, b, session.NewMemoryStore())
			b.respond(tt.status, tt.body)

			resp, err := c.Send(context.Background(), Text("x"))
			assert.Nil(t, resp)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.details, apiErr.Details)
			assert.Equal(t, tt.message, ErrorMessage(err))
			assert.Equal(t, 1, b.count(), "never retried")
		})
	}
}

func TestTransportError(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b, session.NewMemoryStore())
	b.Close()

	_, err := c.Send(context.Background(), Text("x"))
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.NotEmpty(t, ErrorMessage(err))
}

func TestFetchState(t *testing.T) {
	b := newBackend(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, b, store)

	st, err := c.FetchState(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.Equal(t, 0, b.count())

	require.NoError(t, store.Set("s-9"))
	b.respond(http.StatusOK, `{"session_id":"s-9","state":{"progress_stage":"flights"},"history":[{"role":"user","content":"hi"}]}`)

	st, err = c.FetchState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "flights", st.State["progress_stage"])
	assert.Len(t, st.History, 1)

	rec := b.last(t)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "s-9", rec.query)
	assert.Equal(t, "s-9", rec.sessionID)
}

func TestUpdateState(t *testing.T) {
	b := newBackend(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, b, store)

	st, err := c.UpdateState(context.Background(), map[string]interface{}{"adults": 2})
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.Equal(t, 0, b.count())

	require.NoError(t, store.Set("s-1"))
	b.respond(http.StatusOK, `{"session_id":"s-1","state":{"adults":2}}`)

	st, err = c.UpdateState(context.Background(), map[string]interface{}{"adults": 2})
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.State["adults"])

	rec := b.last(t)
	assert.Equal(t, "/chat/state/", rec.path)
	assert.Equal(t, "s-1", rec.body["sessionId"])
	assert.Equal(t, map[string]interface{}{"adults": float64(2)}, rec.body["updates"])
}

func TestLocateCity(t *testing.T) {
	t.Run("structured answer", func(t *testing.T) {
		b := newBackend(t)
		store := session.NewMemoryStore()
		require.NoError(t, store.Set("s-2"))
		c := newTestClient(t, b, store)
		b.respond(http.StatusOK, `{"data":{"city":"Paris","country":"Franța","confidence":0.92,"reasoning":"Turnul Eiffel","fallback":false}}`)

		a, err := c.LocateCity(context.Background(), pngHeader, "poza.png", "vacanță")
		require.NoError(t, err)
		require.True(t, a.Identified())
		assert.Equal(t, "Paris", *a.City)
		assert.InDelta(t, 0.92, *a.Confidence, 1e-9)

		rec := b.last(t)
		assert.Equal(t, "/chat/locate_city/", rec.path)
		assert.Equal(t, "poza.png", rec.fileName)
		assert.Equal(t, "vacanță", rec.form["hint"])
		assert.Equal(t, "s-2", rec.form["sessionId"])
		assert.Equal(t, "s-2", rec.sessionID)
	})

	t.Run("missing data yields fallback", func(t *testing.T) {
		b := newBackend(t)
		c := newTestClient(t, b, session.NewMemoryStore())
		b.respond(http.StatusOK, `{}`)

		a, err := c.LocateCity(context.Background(), pngHeader, "", "")
		require.NoError(t, err)
		assert.Equal(t, &CityAnalysis{Fallback: true}, a)
		assert.False(t, a.Identified())

		rec := b.last(t)
		_, hasHint := rec.form["hint"]
		_, hasSession := rec.form["sessionId"]
		assert.False(t, hasHint)
		assert.False(t, hasSession)
	})

	t.Run("empty image", func(t *testing.T) {
		b := newBackend(t)
		c := newTestClient(t, b, session.NewMemoryStore())
		_, err := c.LocateCity(context.Background(), nil, "", "")
		assert.ErrorIs(t, err, ErrNoImage)
	})
}

func TestResetAndSummary(t *testing.T) {
	b := newBackend(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, b, store)
	require.NoError(t, store.Set("s-3"))

	b.respond(http.StatusOK, `{"summary":{"session_id":"s-3","destination_airport":"FCO","adults":2,"flight_selected":true,"activities_count":3},"state":{}}`)
	sum, err := c.Summary(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sum.DestinationAirport)
	assert.Equal(t, "FCO", *sum.DestinationAirport)
	assert.Equal(t, 2, *sum.Adults)
	assert.True(t, sum.FlightSelected)
	assert.Nil(t, sum.ReturnDate)
	assert.Equal(t, "/chat/summary/", b.last(t).path)

	b.respond(http.StatusOK, `{"message":"Session reset successful"}`)
	require.NoError(t, c.Reset(context.Background()))
	assert.Equal(t, "s-3", b.last(t).body["sessionId"])
	_, ok := store.Get()
	assert.False(t, ok)

	sum, err = c.Summary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestResetKeepsSessionOnFailure(t *testing.T) {
	b := newBackend(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, b, store)
	require.NoError(t, store.Set("s-4"))

	b.respond(http.StatusInternalServerError, `{"error":"Failed to reset session"}`)
	require.Error(t, c.Reset(context.Background()))

	id, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "s-4", id)
}

func TestMetrics(t *testing.T) {
	b := newBackend(t)
	m := monitoring.NewMetrics()
	c := newTestClient(t, b, session.NewMemoryStore()).WithMetrics(m)

	b.respond(http.StatusOK, `{"reply":"ok"}`)
	_, err := c.Send(context.Background(), Text("x"))
	require.NoError(t, err)
	b.respond(http.StatusBadRequest, `{"error":"nope"}`)
	_, _ = c.Send(context.Background(), Text("x"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatRequests.WithLabelValues("/chat/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatRequests.WithLabelValues("/chat/", "400")))
}

func TestRateLimitHonoursContext(t *testing.T) {
	b := newBackend(t)
	c := NewClient(Config{BaseURL: b.URL, RateLimit: 0.001}, session.NewMemoryStore(), zap.NewNop())
	b.respond(http.StatusOK, `{"reply":"ok"}`)

	_, err := c.Send(context.Background(), Text("first"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Send(ctx, Text("second"))
	require.Error(t, err)
	assert.Equal(t, 1, b.count())
}
