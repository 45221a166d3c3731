package httpfx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mattjoyce/saucer/core"
	"github.com/mattjoyce/saucer/internal/log"
	"github.com/mattjoyce/saucer/plugins/httpfx/mocks"
)

type harness struct {
	mgr   *Manager[string]
	state State[string]
	app   *core.Mailbox[string]
	self  *core.Mailbox[SelfMsg]
	r     core.Router[string, SelfMsg]
}

func newHarness(opts ...Option) *harness {
	mgr := NewManager[string](append([]Option{WithLogger(log.Discard())}, opts...)...)
	h := &harness{mgr: mgr, state: mgr.InitState(), app: core.NewMailbox[string](), self: core.NewMailbox[SelfMsg]()}
	h.r = core.NewRouter[string, SelfMsg](h.app, h.self)
	return h
}

func (h *harness) effects(reqs ...Request[string]) {
	h.state = h.mgr.OnEffects(h.r, h.state, reqs)
}

// await waits for n self-messages and applies them.
func (h *harness) await(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.self.Len() >= n }, 2*time.Second, 5*time.Millisecond)
	for _, m := range h.self.Drain() {
		h.state = h.mgr.OnSelfMsg(h.r, h.state, m)
	}
}

func describe(res Result) string {
	if res.Err != nil {
		return "err: " + res.Err.Error()
	}
	return string(res.Response.Body)
}

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(body))}
}

func TestGetDeliversResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "http://example.test/a", req.URL.String())
		return response(http.StatusOK, "hello"), nil
	})

	h := newHarness(WithDoer(doer))
	h.effects(Get("http://example.test/a", describe))
	assert.Equal(t, 1, h.state.InFlight())

	h.await(t, 1)
	assert.Equal(t, []string{"hello"}, h.app.Drain())
	assert.Equal(t, 0, h.state.InFlight())
}

func TestPostSendsBodyAndHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"n":1}`, string(body))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		return response(http.StatusCreated, "made"), nil
	})

	h := newHarness(WithDoer(doer))
	h.effects(Post("http://example.test/items", "application/json", []byte(`{"n":1}`), func(res Result) string {
		if res.OK() {
			return "ok:" + string(res.Response.Body)
		}
		return "failed"
	}))
	h.await(t, 1)
	assert.Equal(t, []string{"ok:made"}, h.app.Drain())
}

func TestTransportErrorIsData(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection refused"))

	h := newHarness(WithDoer(doer))
	h.effects(Get("http://example.test/down", describe))
	h.await(t, 1)
	assert.Equal(t, []string{"err: connection refused"}, h.app.Drain())
}

func TestCancelMeansNoCompletion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	started := make(chan struct{})
	finished := make(chan struct{})
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		defer close(finished)
		close(started)
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	h := newHarness(WithDoer(doer))
	h.effects(Do[string]("slow", http.MethodGet, "http://example.test/slow", nil, nil, describe))
	<-started
	h.effects(Cancel[string]("slow"))
	<-finished

	h.await(t, 1)
	assert.Empty(t, h.app.Drain())
	assert.Equal(t, 0, h.state.InFlight())
}

func TestReusedIDCancelsOlder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/old" {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}
		return response(http.StatusOK, "new"), nil
	}).Times(2)

	h := newHarness(WithDoer(doer))
	h.effects(Do("q", http.MethodGet, "http://example.test/old", nil, nil, describe))
	h.effects(Do("q", http.MethodGet, "http://example.test/new", nil, nil, describe))
	h.await(t, 2)
	assert.Equal(t, []string{"new"}, h.app.Drain())
}

func TestLimiterErrorIsData(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// A zero-burst limiter can never grant a token.
	h := newHarness(WithDoer(mocks.NewMockDoer(ctrl)), WithLimiter(rate.NewLimiter(1, 0)))
	h.effects(Get("http://example.test/a", describe))
	h.await(t, 1)
	msgs := h.app.Drain()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "err: rate limit"), msgs[0])
}

func TestBodyLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(response(http.StatusOK, "0123456789"), nil)

	h := newHarness(WithDoer(doer), WithMaxBodyBytes(4))
	h.effects(Get("http://example.test/big", describe))
	h.await(t, 1)
	assert.Equal(t, []string{"err: response body exceeds 4 bytes"}, h.app.Drain())
}

func TestAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Path", r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))
	defer srv.Close()

	h := newHarness(WithDoer(srv.Client()))
	var got Result
	h.effects(Get(srv.URL+"/pot", func(res Result) string { got = res; return "done" }))
	h.await(t, 1)
	assert.Equal(t, []string{"done"}, h.app.Drain())
	require.NoError(t, got.Err)
	assert.Equal(t, http.StatusTeapot, got.Response.Status)
	assert.Equal(t, "/pot", got.Response.Header.Get("X-Path"))
	assert.False(t, got.OK())
}

func TestFinalizeAbortsInFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	aborted := make(chan error, 1)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		aborted <- req.Context().Err()
		return nil, req.Context().Err()
	})

	h := newHarness(WithDoer(doer))
	h.effects(Get("http://example.test/hang", describe))
	h.self.Close()
	h.mgr.Finalize(h.state)

	select {
	case err := <-aborted:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("request was not aborted")
	}
}

func TestMapRequestAndString(t *testing.T) {
	req := MapRequest(Get("http://x.test", describe), func(s string) int { return len(s) })
	assert.Equal(t, "GET http://x.test", req.String())
	assert.Equal(t, 2, req.returns(Result{Response: &Response{Body: []byte("ab")}}))
	assert.Equal(t, "Cancel(q)", Cancel[int]("q").String())
	assert.Equal(t, "DELETE http://x.test (id=d)", Do[int]("d", http.MethodDelete, "http://x.test", nil, nil, nil).String())
}
