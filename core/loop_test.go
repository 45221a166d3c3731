package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echo is a minimal plugin: synchronous requests reply straight to the app,
// asynchronous ones bounce through a self-message first.
type echoReq struct {
	value int
	async bool
	reply func(int) string
}

type echoState struct {
	log []string
}

type echoPlugin struct {
	mu        sync.Mutex
	finalized *echoState
	router    Router[string, int]
	attached  bool
	replies   map[int]func(int) string
}

func newEcho() *echoPlugin {
	return &echoPlugin{replies: map[int]func(int) string{}}
}

func (p *echoPlugin) InitState() echoState { return echoState{} }

func (p *echoPlugin) OnEffects(r Router[string, int], s echoState, reqs []echoReq) echoState {
	vals := make([]int, len(reqs))
	for i, req := range reqs {
		vals[i] = req.value
	}
	s.log = append(s.log, fmt.Sprintf("effects:%v", vals))
	for _, req := range reqs {
		if req.async {
			p.replies[req.value] = req.reply
			r.DeliverToSelf(req.value)
			continue
		}
		r.DeliverToApp(req.reply(req.value))
	}
	return s
}

func (p *echoPlugin) OnSelfMsg(r Router[string, int], s echoState, v int) echoState {
	s.log = append(s.log, fmt.Sprintf("self:%d", v))
	if reply, ok := p.replies[v]; ok {
		delete(p.replies, v)
		r.DeliverToApp(reply(v))
	}
	return s
}

func (p *echoPlugin) Attach(r Router[string, int]) {
	p.router = r
	p.attached = true
}

func (p *echoPlugin) Finalize(s echoState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = &s
}

type testReq struct {
	echo *echoReq
	stop bool
}

func (r testReq) PluginName() string {
	if r.echo != nil {
		return "echo"
	}
	return "core"
}

func (r testReq) String() string {
	if r.echo != nil {
		return fmt.Sprintf("echo(%d)", r.echo.value)
	}
	return "shutdown"
}

func echoCmd(value int, async bool) Cmd[testReq] {
	return Single(testReq{echo: &echoReq{value: value, async: async, reply: func(n int) string {
		return fmt.Sprintf("got:%d", n)
	}}})
}

func stopCmd() Cmd[testReq] { return Single(testReq{stop: true}) }

type harness struct {
	loop    *Loop[[]string, string, testReq]
	echo    *echoPlugin
	binding *Binding[string, echoState, echoReq, int]
	trace   []string
}

func newHarness(t *testing.T, program Program[[]string, string, testReq], opts ...Option) *harness {
	t.Helper()
	h := &harness{echo: newEcho()}
	record := WithObserver(func(o Observation) {
		h.trace = append(h.trace, fmt.Sprintf("%s/%s/%v", o.Kind, o.Plugin, o.Data))
	})
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), record}, opts...)
	h.loop = NewLoop(program, func(r testReq) Directive {
		if r.stop {
			return Terminate
		}
		h.binding.Enqueue(*r.echo)
		return Continue
	}, opts...)
	h.binding = Bind[string, echoState, echoReq, int](h.loop, "echo", h.echo, h.echo.InitState())
	return h
}

func appendUpdate(m []string, msg string) ([]string, Cmd[testReq]) {
	return append(m, msg), None[testReq]()
}

func TestLoopImmediateEffect(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init:   func() ([]string, Cmd[testReq]) { return nil, echoCmd(1, false) },
		Update: appendUpdate,
	}, WithExitWhenIdle())

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, []string{"got:1"}, h.loop.Model())
	assert.Equal(t, Terminated, h.loop.Phase())
	assert.True(t, h.echo.attached)
}

func TestLoopSelfMessageAppliedBeforeNextBatch(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init: func() ([]string, Cmd[testReq]) { return nil, echoCmd(1, true) },
		Update: func(m []string, msg string) ([]string, Cmd[testReq]) {
			m = append(m, msg)
			if len(m) == 1 {
				return m, echoCmd(2, true)
			}
			return m, stopCmd()
		},
	})

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, []string{"got:1", "got:2"}, h.loop.Model())
	assert.Equal(t, []string{"effects:[1]", "self:1", "effects:[2]", "self:2"}, h.binding.State().log)
	assert.Equal(t, []string{
		"effect/echo/echo(1)",
		"self_message/echo/1",
		"message//got:1",
		"effect/echo/echo(2)",
		"self_message/echo/2",
		"message//got:2",
		"effect/core/shutdown",
	}, h.trace)
}

func TestLoopBatchesPerPluginInCmdOrder(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init: func() ([]string, Cmd[testReq]) {
			return nil, Batch(echoCmd(1, false), echoCmd(2, false), echoCmd(3, false))
		},
		Update: appendUpdate,
	}, WithExitWhenIdle())

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, []string{"effects:[1 2 3]"}, h.binding.State().log)
	assert.Equal(t, []string{"got:1", "got:2", "got:3"}, h.loop.Model())
}

func TestLoopDeterministicTrace(t *testing.T) {
	program := Program[[]string, string, testReq]{
		Init: func() ([]string, Cmd[testReq]) {
			return nil, Batch(echoCmd(1, true), echoCmd(2, false))
		},
		Update: func(m []string, msg string) ([]string, Cmd[testReq]) {
			m = append(m, msg)
			if len(m) < 4 {
				return m, echoCmd(10+len(m), len(m)%2 == 0)
			}
			return m, stopCmd()
		},
	}

	run := func() ([]string, []string) {
		h := newHarness(t, program)
		require.NoError(t, h.loop.Run(context.Background()))
		return h.loop.Model(), h.trace
	}

	m1, t1 := run()
	m2, t2 := run()
	assert.Equal(t, m1, m2)
	assert.Equal(t, t1, t2)
	assert.Len(t, m1, 4)
}

func TestLoopShutdownDiscardsLaterDeliveries(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init: func() ([]string, Cmd[testReq]) {
			return []string{"init"}, Batch(echoCmd(1, true), stopCmd(), echoCmd(2, false))
		},
		Update: appendUpdate,
	})

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, Terminated, h.loop.Phase())
	// The batch before shutdown is dispatched; the request after it is not.
	assert.Equal(t, []string{"effects:[1]"}, h.binding.State().log)

	assert.False(t, h.echo.router.DeliverToApp("late"))
	assert.False(t, h.echo.router.DeliverToSelf(5))
	assert.False(t, h.loop.Deliver("late"))
	assert.Equal(t, []string{"init"}, h.loop.Model())

	require.NotNil(t, h.echo.finalized)
	assert.Equal(t, []string{"effects:[1]"}, h.echo.finalized.log)
}

func TestLoopWakesOnBackgroundDelivery(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init: func() ([]string, Cmd[testReq]) { return nil, None[testReq]() },
		Update: func(m []string, msg string) ([]string, Cmd[testReq]) {
			return append(m, msg), stopCmd()
		},
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		h.echo.router.DeliverToApp("external")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.loop.Run(ctx))
	assert.Equal(t, []string{"external"}, h.loop.Model())
}

func TestLoopInboxWarnDepth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := newHarness(t, Program[[]string, string, testReq]{
		Init:   func() ([]string, Cmd[testReq]) { return nil, None[testReq]() },
		Update: appendUpdate,
	}, WithLogger(logger), WithInboxWarnDepth(2), WithExitWhenIdle())

	for i := 0; i < 5; i++ {
		require.True(t, h.loop.Deliver(fmt.Sprintf("m%d", i)))
	}
	require.NoError(t, h.loop.Run(context.Background()))

	assert.Len(t, h.loop.Model(), 5)
	assert.Equal(t, 2, strings.Count(buf.String(), "app mailbox depth"))
}

func TestLoopContextCancel(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init:   func() ([]string, Cmd[testReq]) { return nil, None[testReq]() },
		Update: appendUpdate,
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := h.loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Terminated, h.loop.Phase())
}

func TestLoopRunTwice(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init:   func() ([]string, Cmd[testReq]) { return nil, stopCmd() },
		Update: appendUpdate,
	})
	require.NoError(t, h.loop.Run(context.Background()))
	assert.ErrorIs(t, h.loop.Run(context.Background()), ErrAlreadyRun)
}

func TestLoopIncompleteProgram(t *testing.T) {
	l := NewLoop(Program[int, int, int]{}, func(int) Directive { return Continue })
	assert.ErrorIs(t, l.Run(context.Background()), ErrIncompleteProgram)
}

func TestLoopObserverPanicDoesNotAlterFlow(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init:   func() ([]string, Cmd[testReq]) { return nil, echoCmd(7, false) },
		Update: appendUpdate,
	}, WithObserver(func(Observation) { panic("boom") }), WithExitWhenIdle())

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, []string{"got:7"}, h.loop.Model())
}

func TestLoopViewCalledAfterEveryModel(t *testing.T) {
	var views [][]string
	h := newHarness(t, Program[[]string, string, testReq]{
		Init:   func() ([]string, Cmd[testReq]) { return []string{}, echoCmd(1, false) },
		Update: appendUpdate,
		View: func(m []string) {
			snapshot := make([]string, len(m))
			copy(snapshot, m)
			views = append(views, snapshot)
		},
	}, WithExitWhenIdle())

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, [][]string{{}, {"got:1"}}, views)
}

func TestBindAfterRunPanics(t *testing.T) {
	h := newHarness(t, Program[[]string, string, testReq]{
		Init:   func() ([]string, Cmd[testReq]) { return nil, stopCmd() },
		Update: appendUpdate,
	})
	require.NoError(t, h.loop.Run(context.Background()))
	assert.Panics(t, func() {
		Bind[string, echoState, echoReq, int](h.loop, "late", newEcho(), echoState{})
	})
}
