package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Zakariast578/portfolio/internal/config"
	"github.com/Zakariast578/portfolio/internal/contact"
	"github.com/Zakariast578/portfolio/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRelay struct {
	mu    sync.Mutex
	sent  []contact.Payload
	fail  error
	delay time.Duration
}

func (f *fakeRelay) Send(ctx context.Context, p contact.Payload) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return f.fail
}

func (f *fakeRelay) calls() []contact.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contact.Payload(nil), f.sent...)
}

type harness struct {
	srv    *server
	engine *gin.Engine
	store  *store.Store
	relay  *fakeRelay
}

func newHarness(t *testing.T, env map[string]string) *harness {
	t.Helper()
	base := map[string]string{
		"COUNTER_DURATION": "60ms",
		"COUNTER_TICK":     "2ms",
		"ADMIN_PASSWORD":   "s3cret",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.Parse(base)
	require.NoError(t, err)

	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	relay := &fakeRelay{}
	srv, err := newServer(cfg, zap.NewNop(), st, relay)
	require.NoError(t, err)
	engine, err := srv.routes()
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.wait()
		st.Close()
	})
	return &harness{srv: srv, engine: engine, store: st, relay: relay}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func contactRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return req
}

func janeForm() url.Values {
	return url.Values{
		"name":    {"Jane"},
		"email":   {"jane@x.com"},
		"subject": {"Hi"},
		"message": {"Hello"},
	}
}

func TestHomePageRendersSections(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, want := range []string{
		`id="home"`, `id="about"`, `id="projects"`, `id="skills"`, `id="contact"`, "<footer",
		"Zakaria Said",
		`data-counter="completed"`,
		`hx-post="/contact"`,
		"/static/js/counters.js",
		`href="https://github.com/Zakariast578/4-smart"`,
		`aria-valuenow="95"`,
		"95%",
	} {
		assert.Contains(t, body, want)
	}
}

func TestContactFormFragment(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/contact-form", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="contact-form"`)
	assert.NotContains(t, w.Body.String(), "<html")
}

func TestSubmitContactSuccessClearsForm(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(contactRequest(janeForm()))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, contact.SuccessMessage)
	assert.Equal(t, 1, strings.Count(body, "toast-success"))
	assert.NotContains(t, body, `value="Jane"`)
	assert.NotContains(t, body, ">Hello</textarea>")

	require.Len(t, h.relay.calls(), 1)
	assert.Equal(t, contact.Payload{FromName: "Jane", FromEmail: "jane@x.com", Subject: "Hi", Message: "Hello"}, h.relay.calls()[0])

	subs, err := h.store.RecentSubmissions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, store.StatusSent, subs[0].Status)
	assert.Equal(t, "Hi", subs[0].Subject)
	assert.NotEmpty(t, subs[0].HashedIP)
}

func TestSubmitContactFailureKeepsFields(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.fail = errors.New("status 400: The public key is invalid")

	w := h.do(contactRequest(janeForm()))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, contact.FailureMessage)
	assert.Contains(t, body, "toast-failure")
	assert.Contains(t, body, `value="Jane"`)
	assert.Contains(t, body, `value="jane@x.com"`)
	assert.Contains(t, body, `value="Hi"`)
	assert.Contains(t, body, ">Hello</textarea>")

	subs, err := h.store.RecentSubmissions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, store.StatusFailed, subs[0].Status)
	assert.Contains(t, subs[0].Error, "public key")
}

func TestSubmitContactRejectsMissingFields(t *testing.T) {
	h := newHarness(t, nil)
	values := janeForm()
	values.Del("subject")

	w := h.do(contactRequest(values))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), invalidFormMessage)
	assert.Contains(t, w.Body.String(), `value="Jane"`)
	assert.Empty(t, h.relay.calls())
}

func TestSubmitContactRejectsMalformedEmail(t *testing.T) {
	h := newHarness(t, nil)
	values := janeForm()
	values.Set("email", "not-an-email")

	w := h.do(contactRequest(values))
	assert.Contains(t, w.Body.String(), invalidFormMessage)
	assert.Empty(t, h.relay.calls())
}

func TestSubmitContactSequentialSubmissionsAreIndependent(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 3; i++ {
		w := h.do(contactRequest(janeForm()))
		require.Contains(t, w.Body.String(), contact.SuccessMessage)
	}
	assert.Len(t, h.relay.calls(), 3)
}

func TestSubmitContactDefaultLimitAllowsRepeatedSends(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 20; i++ {
		w := h.do(contactRequest(janeForm()))
		require.Contains(t, w.Body.String(), contact.SuccessMessage)
	}
	assert.Len(t, h.relay.calls(), 20)
}

func TestSubmitContactRateLimited(t *testing.T) {
	h := newHarness(t, map[string]string{
		"CONTACT_RATE_PER_MINUTE": "1",
		"CONTACT_RATE_BURST":      "1",
	})

	first := h.do(contactRequest(janeForm()))
	require.Contains(t, first.Body.String(), contact.SuccessMessage)

	second := h.do(contactRequest(janeForm()))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), rateLimitedMessage)
	assert.Contains(t, second.Body.String(), `value="Jane"`)
	assert.Len(t, h.relay.calls(), 1)
}

func TestSubmitContactClientGoneDropsResult(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	req := contactRequest(janeForm()).WithContext(ctx)
	time.AfterFunc(5*time.Millisecond, cancel)

	w := h.do(req)
	assert.NotContains(t, w.Body.String(), contact.SuccessMessage)
	// The relay call itself still completed and was journaled.
	assert.Len(t, h.relay.calls(), 1)
	subs, err := h.store.RecentSubmissions(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestClientLimiterDisabled(t *testing.T) {
	l := newClientLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.allow("1.2.3.4"))
	}
}

func TestClientLimiterPerClient(t *testing.T) {
	l := newClientLimiter(1, 2)
	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))
}

func TestClientLimiterEvictionKeepsActiveBuckets(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }

	for i := 0; i < maxTrackedClients-1; i++ {
		require.True(t, l.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256)))
	}
	now = now.Add(time.Second)
	require.True(t, l.allow("victim"))
	require.False(t, l.allow("victim"))

	// A new address at capacity evicts one bucket, not the drained one.
	assert.True(t, l.allow("newcomer"))
	assert.Len(t, l.clients, maxTrackedClients)
	assert.False(t, l.allow("victim"))

	// Once every bucket has refilled, they are all dropped together.
	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("late"))
	assert.Len(t, l.clients, 1)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStaticAssetsServed(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/static/css/site.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ".gradient-text")
}

func streamBody(t *testing.T, h *harness, path string) (int, string) {
	t.Helper()
	ts := httptest.NewServer(h.engine)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestCounterStreamEndsWithExactTarget(t *testing.T) {
	h := newHarness(t, nil)

	code, body := streamBody(t, h, "/counters/completed/stream?ratio=0.75")
	require.Equal(t, http.StatusOK, code)

	assert.Contains(t, body, "event:count")
	assert.Contains(t, body, "event:done\ndata:15\n")
	assert.Equal(t, 1, strings.Count(body, "event:done"))
}

func TestCounterStreamNeedsHalfVisibility(t *testing.T) {
	h := newHarness(t, nil)

	code, body := streamBody(t, h, "/counters/completed/stream?ratio=0.2")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, body)
}

func TestCounterStreamErrors(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/counters/nope/stream", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/counters/completed/stream?ratio=lots", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCounterStreamClientDisconnect(t *testing.T) {
	h := newHarness(t, map[string]string{"COUNTER_DURATION": "1h"})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(h.engine)
	defer ts.Close()
	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/counters/clients/stream", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event:count")

	cancel()
	resp.Body.Close()
	// Close waits for the handler to return, which requires the counter to stop.
	ts.Close()
}
