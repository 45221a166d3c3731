package ports

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/saucer/core"
	"github.com/mattjoyce/saucer/internal/events"
	"github.com/mattjoyce/saucer/internal/log"
)

type order struct {
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

func TestBridgeInbound(t *testing.T) {
	m, app := attached(t)
	Inbound(m, "orders", func(o order) msg { return msg{kind: o.Item, n: o.Qty} })
	b := NewBridge(m, events.NewHub(8), log.Discard())
	defer b.Close()

	tests := []struct {
		name   string
		port   string
		body   string
		status int
	}{
		{name: "accepted", port: "orders", body: `{"item":"tea","qty":2}`, status: http.StatusAccepted},
		{name: "unknown port", port: "refunds", body: `{}`, status: http.StatusNotFound},
		{name: "bad payload", port: "orders", body: `{"qty":"many"}`, status: http.StatusBadRequest},
		{name: "too large", port: "orders", body: strings.Repeat("x", MaxPayloadBytes+1), status: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			b.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ports/"+tt.port, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusAccepted {
				var resp acceptedResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				_, err := uuid.Parse(resp.ID)
				assert.NoError(t, err)
				assert.Equal(t, "orders", resp.Port)
			}
		})
	}
	assert.Equal(t, []msg{{kind: "tea", n: 2}}, app.Drain())
}

func TestBridgeInboundAfterShutdown(t *testing.T) {
	m, app := attached(t)
	Inbound(m, "in", func(n int) msg { return msg{n: n} })
	b := NewBridge(m, nil, log.Discard())
	defer b.Close()
	app.Close()

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ports/in", strings.NewReader("1")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBridgeList(t *testing.T) {
	m, _ := attached(t)
	Inbound(m, "in", func(n int) msg { return msg{n: n} })
	b := NewBridge(m, nil, log.Discard())
	defer b.Close()

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"in","direction":"in"}]`, rec.Body.String())
}

func TestBridgeEventStream(t *testing.T) {
	m, _ := attached(t)
	b := NewBridge(m, events.NewHub(8), log.Discard())
	defer b.Close()

	m.OnEffects(core.Router[msg, struct{}]{}, m.InitState(), []Request[msg]{
		Send[msg]("count", 1),
		Send[msg]("count", 2),
	})

	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/ports/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var frame []string
	for len(frame) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			frame = append(frame, line)
		}
	}
	assert.Equal(t, []string{"id: 2", "event: count", "data: 2"}, frame)
}
