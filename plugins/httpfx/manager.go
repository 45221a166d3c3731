package httpfx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mattjoyce/saucer/core"
	"github.com/mattjoyce/saucer/internal/log"
)

//go:generate mockgen -destination=mocks/mock_doer.go -package=mocks github.com/mattjoyce/saucer/plugins/httpfx Doer

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 << 20

// SelfMsg carries a finished request back to the loop.
type SelfMsg struct {
	Seq    uint64
	Result Result
}

type inflight[Msg any] struct {
	id      string
	cancel  context.CancelFunc
	returns func(Result) Msg
}

// State tracks in-flight requests by sequence number and by id.
type State[Msg any] struct {
	seq     uint64
	pending map[uint64]inflight[Msg]
	byID    map[string]uint64
}

// InFlight returns the number of requests awaiting completion.
func (s State[Msg]) InFlight() int { return len(s.pending) }

// Option configures a Manager.
type Option func(*options)

type options struct {
	doer    Doer
	limiter *rate.Limiter
	maxBody int64
	logger  *slog.Logger
}

// WithDoer replaces the default client.
func WithDoer(d Doer) Option { return func(o *options) { o.doer = d } }

// WithLimiter paces outbound requests. Each request waits for a token in
// its own goroutine, never on the loop.
func WithLimiter(l *rate.Limiter) Option { return func(o *options) { o.limiter = l } }

// WithMaxBodyBytes caps response bodies; larger bodies are an error.
func WithMaxBodyBytes(n int64) Option { return func(o *options) { o.maxBody = n } }

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Manager runs each request in its own goroutine and reports completions
// through self-messages.
type Manager[Msg any] struct {
	doer    Doer
	limiter *rate.Limiter
	maxBody int64
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates an HTTP manager. The default client times out after
// 30 seconds.
func NewManager[Msg any](opts ...Option) *Manager[Msg] {
	o := options{maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.doer == nil {
		o.doer = &http.Client{Timeout: 30 * time.Second}
	}
	if o.logger == nil {
		o.logger = log.WithPlugin("http")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager[Msg]{doer: o.doer, limiter: o.limiter, maxBody: o.maxBody, logger: o.logger, ctx: ctx, cancel: cancel}
}

func (m *Manager[Msg]) InitState() State[Msg] {
	return State[Msg]{pending: make(map[uint64]inflight[Msg]), byID: make(map[string]uint64)}
}

func (m *Manager[Msg]) OnEffects(r core.Router[Msg, SelfMsg], s State[Msg], reqs []Request[Msg]) State[Msg] {
	if s.pending == nil {
		s = m.InitState()
	}
	for _, req := range reqs {
		switch req.op {
		case opDo:
			if req.id != "" {
				s = m.cancelID(s, req.id)
			}
			s.seq++
			ctx, cancel := context.WithCancel(m.ctx)
			s.pending[s.seq] = inflight[Msg]{id: req.id, cancel: cancel, returns: req.returns}
			if req.id != "" {
				s.byID[req.id] = s.seq
			}
			go m.run(ctx, r, s.seq, req)
		case opCancel:
			s = m.cancelID(s, req.id)
		default:
			m.logger.Warn("invalid http request dropped")
		}
	}
	return s
}

func (m *Manager[Msg]) cancelID(s State[Msg], id string) State[Msg] {
	seq, ok := s.byID[id]
	if !ok {
		return s
	}
	s.pending[seq].cancel()
	delete(s.pending, seq)
	delete(s.byID, id)
	m.logger.Debug("request cancelled", "id", id)
	return s
}

func (m *Manager[Msg]) run(ctx context.Context, r core.Router[Msg, SelfMsg], seq uint64, req Request[Msg]) {
	res := m.do(ctx, req)
	if !r.DeliverToSelf(SelfMsg{Seq: seq, Result: res}) {
		m.logger.Debug("completion after shutdown discarded", "seq", seq)
	}
}

func (m *Manager[Msg]) do(ctx context.Context, req Request[Msg]) Result {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return Result{Err: fmt.Errorf("rate limit: %w", err)}
		}
	}
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return Result{Err: fmt.Errorf("build request: %w", err)}
	}
	for k, vs := range req.header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := m.doer.Do(hreq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBody+1))
	if err != nil {
		return Result{Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > m.maxBody {
		return Result{Err: fmt.Errorf("response body exceeds %d bytes", m.maxBody)}
	}
	m.logger.Debug("request finished", "method", req.method, "url", req.url, "status", resp.StatusCode, "duration", time.Since(start))
	return Result{Response: &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}}
}

// OnSelfMsg hands a completion to its continuation unless the request was
// cancelled in the meantime.
func (m *Manager[Msg]) OnSelfMsg(r core.Router[Msg, SelfMsg], s State[Msg], msg SelfMsg) State[Msg] {
	p, ok := s.pending[msg.Seq]
	if !ok {
		return s
	}
	p.cancel()
	delete(s.pending, msg.Seq)
	if p.id != "" {
		delete(s.byID, p.id)
	}
	r.DeliverToApp(p.returns(msg.Result))
	return s
}

// Finalize aborts every in-flight request.
func (m *Manager[Msg]) Finalize(s State[Msg]) {
	if len(s.pending) > 0 {
		m.logger.Info("aborting in-flight requests", "count", len(s.pending))
	}
	m.cancel()
}
