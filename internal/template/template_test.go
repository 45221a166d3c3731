package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appTemplate = `package app

import "time"

type Msg struct{ At time.Time }

func Init() (Model, effects.Cmd[Msg]) {
	return Model{}, effects.Batch(
		timer::command::now(GotTime),
		timer::command::notify_after("tick", 10*time.Millisecond, returns: func(t time.Time) Msg {
			return Msg{At: t}
		}),
	)
}

// timer::command::ignored(in a comment)
var s = "timer::command::ignored(in a string)"
`

func TestParseReferences(t *testing.T) {
	tmpl, err := Parse("app.go.tea", []byte(appTemplate))
	require.NoError(t, err)
	assert.Equal(t, "app", tmpl.Package)
	require.Len(t, tmpl.Refs, 2)

	now := tmpl.Refs[0]
	assert.Equal(t, "timer", now.Plugin)
	assert.Equal(t, "command", now.Namespace)
	assert.Equal(t, "now", now.Helper)
	assert.Equal(t, "timer::command::now(GotTime)", tmpl.Text(now))
	assert.Equal(t, 9, now.Pos.Line)
	assert.Equal(t, 3, now.Pos.Column)
	require.Len(t, now.Args, 1)
	assert.Equal(t, "", now.Args[0].Label)
	assert.Equal(t, "GotTime", tmpl.ArgText(now.Args[0]))

	notify := tmpl.Refs[1]
	assert.Equal(t, "notify_after", notify.Helper)
	require.Len(t, notify.Args, 3)
	assert.Equal(t, `"tick"`, tmpl.ArgText(notify.Args[0]))
	assert.Equal(t, "10*time.Millisecond", tmpl.ArgText(notify.Args[1]))
	assert.Equal(t, "returns", notify.Args[2].Label)
	assert.Contains(t, tmpl.ArgText(notify.Args[2]), "return Msg{At: t}")
	assert.Equal(t, 2, tmpl.Count())
}

func TestParseNestedReferences(t *testing.T) {
	src := `package app

var c = effects.Batch(ports::command::send("out", wrap(timer::command::now(GotTime))), core::command::shutdown())
`
	tmpl, err := Parse("nested.go.tea", []byte(src))
	require.NoError(t, err)
	require.Len(t, tmpl.Refs, 2)

	send := tmpl.Refs[0]
	require.Len(t, send.Args, 2)
	require.Len(t, send.Args[1].Refs, 1)
	inner := send.Args[1].Refs[0]
	assert.Equal(t, "timer", inner.Plugin)
	assert.Equal(t, "timer::command::now(GotTime)", tmpl.Text(inner))
	assert.True(t, inner.Start > send.Args[1].Start && inner.End < send.Args[1].End)

	shutdown := tmpl.Refs[1]
	assert.Equal(t, "core", shutdown.Plugin)
	assert.Empty(t, shutdown.Args)

	var order []string
	tmpl.Walk(func(r *Ref) { order = append(order, r.Plugin) })
	assert.Equal(t, []string{"ports", "timer", "core"}, order)
}

func TestParseLabelVersusNestedReference(t *testing.T) {
	src := "package app\n\nvar c = ports::command::send(name: \"out\", value: timer::command::now(F), m[\"k\"])\n"
	tmpl, err := Parse("labels.go.tea", []byte(src))
	require.NoError(t, err)

	args := tmpl.Refs[0].Args
	require.Len(t, args, 3)
	assert.Equal(t, "name", args[0].Label)
	assert.Equal(t, "value", args[1].Label)
	assert.Equal(t, "timer::command::now(F)", tmpl.ArgText(args[1]))
	assert.Len(t, args[1].Refs, 1)
	assert.Equal(t, "", args[2].Label)
}

func TestParseTrailingCommaAndMultiline(t *testing.T) {
	src := "package app\n\nvar c = timer::command::notify_after(\n\t\"tick\",\n\tTick,\n)\n"
	tmpl, err := Parse("multi.go.tea", []byte(src))
	require.NoError(t, err)
	require.Len(t, tmpl.Refs[0].Args, 2)
	assert.Equal(t, "Tick", tmpl.ArgText(tmpl.Refs[0].Args[1]))

	crlf := "package app\r\n\r\nvar x = ports::command::send(`a\r\nb`, 1)\r\n"
	tmpl, err = Parse("crlf.go.tea", []byte(crlf))
	require.NoError(t, err)
	args := tmpl.Refs[0].Args
	require.Len(t, args, 2)
	assert.Equal(t, "`a\r\nb`", tmpl.ArgText(args[0]))
	assert.Equal(t, "1", tmpl.ArgText(args[1]))
	assert.Equal(t, "ports::command::send(`a\r\nb`, 1)", tmpl.Text(tmpl.Refs[0]))
}

func TestParseRawStringEndsAtBacktick(t *testing.T) {
	src := "package app\r\n\r\nvar x = ports::command::send(\"out\", `line one\r\nline two\r\n`)\r\nvar y = 2\r\n"
	tmpl, err := Parse("raw.go.tea", []byte(src))
	require.NoError(t, err)
	require.Len(t, tmpl.Refs, 1)
	last := tmpl.Refs[0].Args[1]
	assert.Equal(t, byte('`'), src[last.End-1])
	assert.Equal(t, byte(')'), src[tmpl.Refs[0].End-1])
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"not called", "package app\n\nvar x = timer::command::now\n", "reference must be called"},
		{"short reference", "package app\n\nvar x = timer::now(F)\n", "expected plugin::namespace::helper"},
		{"unterminated", "package app\n\nvar x = timer::command::now(F\n", "unterminated reference call"},
		{"mismatched bracket", "package app\n\nvar x = timer::command::now(F])\n", "unbalanced"},
		{"spaced", "package app\n\nvar x = timer::command:: now(F)\n", "must not contain spaces"},
		{"missing package", "var x = 1\n", "package clause"},
		{"empty label", "package app\n\nvar x = timer::command::now(returns:)\n", "has no value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.go.tea", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var se *SyntaxError
			assert.True(t, errors.As(err, &se))
			assert.Equal(t, "bad.go.tea", se.Template)
		})
	}
}

func TestParseReportsEveryError(t *testing.T) {
	src := "package app\n\nvar a = timer::command::now\nvar b = http::get(x)\n"
	_, err := Parse("two.go.tea", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "two.go.tea:3:")
	assert.Contains(t, err.Error(), "two.go.tea:4:")
}
