package core

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterObserver(t *testing.T) {
	tests := []struct {
		name                    string
		messages, self, effects bool
		want                    []ObservationKind
	}{
		{"all", true, true, true, []ObservationKind{Effect, Message, SelfMessage}},
		{"messages only", true, false, false, []ObservationKind{Message}},
		{"none", false, false, false, nil},
		{"effects and self", false, true, true, []ObservationKind{Effect, SelfMessage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []ObservationKind
			obs := FilterObserver(func(o Observation) { got = append(got, o.Kind) }, tt.messages, tt.self, tt.effects)
			for _, k := range []ObservationKind{Effect, Message, SelfMessage} {
				obs(Observation{Kind: k})
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterWithAndTee(t *testing.T) {
	var a, b []string
	tee := TeeObserver(
		FilterWith(func(o Observation) { a = append(a, o.Plugin) }, func(o Observation) bool { return o.Plugin == "timer" }),
		func(o Observation) { b = append(b, o.Plugin) },
		nil,
	)
	tee(Observation{Plugin: "timer"})
	tee(Observation{Plugin: "http"})

	assert.Equal(t, []string{"timer"}, a)
	assert.Equal(t, []string{"timer", "http"}, b)
	NoOpObserver()(Observation{})
}

func TestLogObserverLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	obs := LogObserver(logger)

	obs(Observation{Kind: Effect, Plugin: "timer", Data: "now"})
	assert.Empty(t, buf.String())

	obs(Observation{Kind: Message, Seq: 3, Data: "GotTime"})
	assert.Contains(t, buf.String(), "kind=message")
	assert.Contains(t, buf.String(), "data=GotTime")
	assert.Contains(t, buf.String(), "seq=3")
}
