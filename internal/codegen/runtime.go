package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"path"
	"strings"
	"text/template"

	"github.com/mattjoyce/saucer/internal/plugin"
)

// reservedQualifiers are identifiers the runtime file already uses at
// package scope.
var reservedQualifiers = map[string]bool{"context": true, "fmt": true, "core": true}

type runtimePlugin struct {
	Name       string
	Variant    string
	Field      string
	Kind       string
	Qualifier  string
	Alias      string
	ImportPath string
	Request    string
	State      string
	Manager    string
	SelfMsg    string
	MapFunc    string
}

type runtimeData struct {
	Header   string
	Package  string
	Module   string
	CoreName string
	Plugins  []runtimePlugin
}

func fieldName(name string) string {
	parts := strings.SplitN(name, "_", 2)
	field := parts[0]
	if len(parts) == 2 {
		field += plugin.CamelCase(parts[1])
	}
	if token.IsKeyword(field) || field == "loop" || field == "kind" {
		field += "Plugin"
	}
	return field
}

func buildRuntimeData(header, pkg, module string, plugins []*plugin.Descriptor) runtimeData {
	data := runtimeData{Header: header, Package: pkg, Module: module, CoreName: plugin.CoreName}
	used := map[string]bool{pkg: true}
	for q := range reservedQualifiers {
		used[q] = true
	}
	for _, d := range plugins {
		q := d.Package
		if used[q] {
			q = fieldName(d.Name) + "plugin"
		}
		used[q] = true

		rp := runtimePlugin{
			Name:       d.Name,
			Variant:    d.Variant,
			Field:      fieldName(d.Name),
			Kind:       "kind" + d.Variant,
			Qualifier:  q,
			ImportPath: d.ImportPath,
			Request:    q + "." + d.RequestType + "[Msg]",
			State:      q + "." + d.StateType + "[Msg]",
			Manager:    "*" + q + "." + d.ManagerType + "[Msg]",
			SelfMsg:    "struct{}",
			MapFunc:    q + "." + d.MapFunc,
		}
		if d.SelfMsgType != "" {
			rp.SelfMsg = q + "." + d.SelfMsgType
		}
		if q != path.Base(d.ImportPath) {
			rp.Alias = q
		}
		data.Plugins = append(data.Plugins, rp)
	}
	return data
}

// renderRuntime emits the unified Request type, the Cmd combinators and the
// Runtime wiring for plugins, which must already be in registry order.
func renderRuntime(header, pkg, module string, plugins []*plugin.Descriptor) ([]byte, error) {
	var buf bytes.Buffer
	if err := runtimeTemplate.Execute(&buf, buildRuntimeData(header, pkg, module, plugins)); err != nil {
		return nil, fmt.Errorf("render runtime: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format runtime: %w", err)
	}
	return out, nil
}

var runtimeTemplate = template.Must(template.New("runtime").Parse(`{{.Header}}
// Package {{.Package}} is the effect runtime generated for {{.Module}}.
package {{.Package}}

import (
	"context"
{{- if .Plugins}}
	"fmt"
{{- end}}

	"github.com/mattjoyce/saucer/core"
{{- range .Plugins}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.ImportPath}}"
{{- end}}
)

type requestKind uint8

const (
	kindCore requestKind = iota + 1
{{- range .Plugins}}
	{{.Kind}}
{{- end}}
)

// Request is one effect request. Exactly one variant is populated.
type Request[Msg any] struct {
	kind requestKind
	core core.Control
{{- range .Plugins}}
	{{.Field}} {{.Request}}
{{- end}}
}

// CoreRequest wraps a runtime control request.
func CoreRequest[Msg any](r core.Control) Request[Msg] {
	return Request[Msg]{kind: kindCore, core: r}
}
{{range .Plugins}}
// {{.Variant}}Request wraps a request for the {{.Name}} plugin.
func {{.Variant}}Request[Msg any](r {{.Request}}) Request[Msg] {
	return Request[Msg]{kind: {{.Kind}}, {{.Field}}: r}
}
{{end}}
// PluginName reports the plugin that owns r.
func (r Request[Msg]) PluginName() string {
	switch r.kind {
	case kindCore:
		return "{{.CoreName}}"
{{- range .Plugins}}
	case {{.Kind}}:
		return "{{.Name}}"
{{- end}}
	}
	return ""
}

// String names the variant without exposing continuations.
func (r Request[Msg]) String() string {
	switch r.kind {
	case kindCore:
		return "Core(" + r.core.String() + ")"
{{- range .Plugins}}
	case {{.Kind}}:
		return fmt.Sprintf("{{.Variant}}(%v)", r.{{.Field}})
{{- end}}
	}
	return "Request(<empty>)"
}

// MapRequest rewrites the message type carried by r.
func MapRequest[A, B any](r Request[A], f func(A) B) Request[B] {
	switch r.kind {
	case kindCore:
		return Request[B]{kind: kindCore, core: r.core}
{{- range .Plugins}}
	case {{.Kind}}:
		return Request[B]{kind: {{.Kind}}, {{.Field}}: {{.MapFunc}}(r.{{.Field}}, f)}
{{- end}}
	}
	return Request[B]{}
}

// Cmd is a batch of effect requests whose completions produce Msg.
type Cmd[Msg any] = core.Cmd[Request[Msg]]

// Program is an application driven by Runtime.
type Program[Model, Msg any] = core.Program[Model, Msg, Request[Msg]]

// None is the empty Cmd.
func None[Msg any]() Cmd[Msg] { return core.None[Request[Msg]]() }

// Single is a Cmd holding r.
func Single[Msg any](r Request[Msg]) Cmd[Msg] { return core.Single(r) }

// Batch concatenates cmds in order.
func Batch[Msg any](cmds ...Cmd[Msg]) Cmd[Msg] { return core.Batch(cmds...) }

// And is a followed by b.
func And[Msg any](a, b Cmd[Msg]) Cmd[Msg] { return a.And(b) }

// MapCmd lifts c into another message type.
func MapCmd[A, B any](c Cmd[A], f func(A) B) Cmd[B] {
	return core.Map(c, func(r Request[A]) Request[B] { return MapRequest(r, f) })
}

// Shutdown is the terminal Cmd.
func Shutdown[Msg any]() Cmd[Msg] { return Single(CoreRequest[Msg](core.Shutdown())) }
{{range .Plugins}}
// {{.Variant}} lifts a request for the {{.Name}} plugin into a Cmd.
func {{.Variant}}[Msg any](r {{.Request}}) Cmd[Msg] { return Single({{.Variant}}Request(r)) }
{{end}}
// Runtime drives a Program with one instance of every plugin.
type Runtime[Model, Msg any] struct {
	loop *core.Loop[Model, Msg, Request[Msg]]
{{- range .Plugins}}
	{{.Field}} *core.Binding[Msg, {{.State}}, {{.Request}}, {{.SelfMsg}}]
{{- end}}
}

// NewRuntime binds one plugin instance and one initial state per plugin, in
// registry order.
func NewRuntime[Model, Msg any](program Program[Model, Msg]{{range .Plugins}}, {{.Field}}Plugin {{.Manager}}, {{.Field}}State {{.State}}{{end}}, opts ...core.Option) *Runtime[Model, Msg] {
	rt := &Runtime[Model, Msg]{}
	rt.loop = core.NewLoop(program, rt.route, opts...)
{{- range .Plugins}}
	rt.{{.Field}} = core.Bind[Msg, {{.State}}, {{.Request}}, {{.SelfMsg}}](rt.loop, "{{.Name}}", {{.Field}}Plugin, {{.Field}}State)
{{- end}}
	return rt
}

// NewDefaultRuntime is NewRuntime with every plugin's InitState.
func NewDefaultRuntime[Model, Msg any](program Program[Model, Msg]{{range .Plugins}}, {{.Field}}Plugin {{.Manager}}{{end}}, opts ...core.Option) *Runtime[Model, Msg] {
	return NewRuntime[Model, Msg](program{{range .Plugins}}, {{.Field}}Plugin, {{.Field}}Plugin.InitState(){{end}}, opts...)
}

func (rt *Runtime[Model, Msg]) route(r Request[Msg]) core.Directive {
	switch r.kind {
	case kindCore:
		if r.core.IsShutdown() {
			return core.Terminate
		}
{{- range .Plugins}}
	case {{.Kind}}:
		rt.{{.Field}}.Enqueue(r.{{.Field}})
{{- end}}
	}
	return core.Continue
}

// Run drives the program until shutdown or ctx is cancelled.
func (rt *Runtime[Model, Msg]) Run(ctx context.Context) error { return rt.loop.Run(ctx) }

// Phase returns the runtime lifecycle phase.
func (rt *Runtime[Model, Msg]) Phase() core.Phase { return rt.loop.Phase() }

// Model returns the latest Model. Call it after Run returns.
func (rt *Runtime[Model, Msg]) Model() Model { return rt.loop.Model() }

// Deliver queues msg for Update from outside any plugin.
func (rt *Runtime[Model, Msg]) Deliver(msg Msg) bool { return rt.loop.Deliver(msg) }
{{range .Plugins}}
// {{.Variant}}State returns the {{.Name}} plugin state. Call it after Run returns.
func (rt *Runtime[Model, Msg]) {{.Variant}}State() {{.State}} { return rt.{{.Field}}.State() }
{{end}}`))
