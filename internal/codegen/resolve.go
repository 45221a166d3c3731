package codegen

import (
	"errors"
	"fmt"

	"github.com/mattjoyce/saucer/internal/plugin"
	"github.com/mattjoyce/saucer/internal/template"
)

// Call is a reference resolved against the registry. Args are in parameter
// order; for a variadic helper the trailing arguments all belong to the last
// parameter.
type Call struct {
	Ref    *template.Ref
	Plugin *plugin.Descriptor
	Helper plugin.Helper
	Args   []CallArg
}

// CallArg is one resolved argument. Calls are the references nested inside
// it, in source order.
type CallArg struct {
	Arg   template.Arg
	Calls []*Call
}

// Resolved is a template whose every reference resolved.
type Resolved struct {
	Template *template.Template
	MsgType  string
	Calls    []*Call
}

// Plugins returns the distinct plugins the template calls, in order of
// first use.
func (r *Resolved) Plugins() []*plugin.Descriptor {
	seen := map[string]bool{}
	var out []*plugin.Descriptor
	var visit func([]*Call)
	visit = func(calls []*Call) {
		for _, c := range calls {
			if !seen[c.Plugin.Name] {
				seen[c.Plugin.Name] = true
				out = append(out, c.Plugin)
			}
			for _, a := range c.Args {
				visit(a.Calls)
			}
		}
	}
	visit(r.Calls)
	return out
}

// Resolve checks every reference in tmpl against reg. All failures are
// returned joined, in source order.
func Resolve(reg *plugin.Registry, tmpl *template.Template, msgType string) (*Resolved, error) {
	r := resolver{reg: reg, tmpl: tmpl}
	calls := r.resolveAll(tmpl.Refs)
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return &Resolved{Template: tmpl, MsgType: msgType, Calls: calls}, nil
}

type resolver struct {
	reg  *plugin.Registry
	tmpl *template.Template
	errs []error
}

func (r *resolver) resolveAll(refs []*template.Ref) []*Call {
	var out []*Call
	for _, ref := range refs {
		if c := r.resolve(ref); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (r *resolver) resolve(ref *template.Ref) *Call {
	text := r.tmpl.Text(ref)

	d, ok := r.reg.Get(ref.Plugin)
	if !ok || ref.Namespace != template.Namespace {
		known := append([]string{plugin.CoreName}, r.reg.Names()...)
		err := &UnresolvedReferenceError{Template: r.tmpl.Name, Pos: ref.Pos, Text: text, Plugin: ref.Plugin, Known: known}
		if ok {
			err.Plugin = ref.Plugin + "::" + ref.Namespace
		}
		r.errs = append(r.errs, err)
		r.skipNested(ref)
		return nil
	}

	h, ok := d.Helper(ref.Helper)
	if !ok {
		r.errs = append(r.errs, &UnknownHelperError{
			Template: r.tmpl.Name, Pos: ref.Pos, Text: text,
			Plugin: d.Name, Helper: ref.Helper, Known: d.HelperNames(),
		})
		r.skipNested(ref)
		return nil
	}

	order, reason := bindArgs(h, ref.Args)
	if reason != "" {
		r.errs = append(r.errs, &ArityError{Template: r.tmpl.Name, Pos: ref.Pos, Text: text, Signature: h.Signature(), Reason: reason})
		r.skipNested(ref)
		return nil
	}

	call := &Call{Ref: ref, Plugin: d, Helper: h}
	for _, idx := range order {
		a := ref.Args[idx]
		call.Args = append(call.Args, CallArg{Arg: a, Calls: r.resolveAll(a.Refs)})
	}
	return call
}

// skipNested still resolves references nested inside a failed one so that
// their errors are reported too.
func (r *resolver) skipNested(ref *template.Ref) {
	for _, a := range ref.Args {
		r.resolveAll(a.Refs)
	}
}

// bindArgs maps call arguments onto helper parameters. It returns the
// argument indexes in parameter order, or a reason the call does not fit.
// Positional arguments come first; labels must name parameters.
func bindArgs(h plugin.Helper, args []template.Arg) ([]int, string) {
	nParams := len(h.Params)
	variadic := h.Variadic()

	bound := make([]int, nParams)
	for i := range bound {
		bound[i] = -1
	}
	var extra []int
	seenLabel := false

	for i, a := range args {
		if a.Label == "" {
			if seenLabel {
				return nil, fmt.Sprintf("positional argument %d follows a labelled one", i+1)
			}
			switch {
			case i < nParams && !(variadic && i == nParams-1):
				bound[i] = i
			case variadic:
				extra = append(extra, i)
			default:
				return nil, fmt.Sprintf("got %d arguments, helper takes %d", len(args), nParams)
			}
			continue
		}

		seenLabel = true
		idx := -1
		for p, param := range h.Params {
			if param.Name == a.Label {
				idx = p
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Sprintf("no parameter named %q", a.Label)
		}
		if variadic && idx == nParams-1 {
			return nil, fmt.Sprintf("variadic parameter %q cannot be labelled", a.Label)
		}
		if bound[idx] >= 0 {
			return nil, fmt.Sprintf("parameter %q given twice", a.Label)
		}
		bound[idx] = i
	}

	order := make([]int, 0, len(args))
	required := nParams
	if variadic {
		required--
	}
	for p := 0; p < required; p++ {
		if bound[p] < 0 {
			return nil, fmt.Sprintf("missing argument for parameter %q", h.Params[p].Name)
		}
		order = append(order, bound[p])
	}
	return append(order, extra...), ""
}
