package codegen

import (
	"fmt"
	"go/token"
	"strings"
)

// UnresolvedReferenceError is a reference to a plugin, or a namespace, the
// registry does not know.
type UnresolvedReferenceError struct {
	Template string
	Pos      token.Position
	Text     string
	Plugin   string
	Known    []string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: unresolved reference %q: no plugin %q (known: %s)",
		e.Pos, e.Text, e.Plugin, strings.Join(e.Known, ", "))
}

// UnknownHelperError is a reference to a helper the plugin does not export.
type UnknownHelperError struct {
	Template string
	Pos      token.Position
	Text     string
	Plugin   string
	Helper   string
	Known    []string
}

func (e *UnknownHelperError) Error() string {
	return fmt.Sprintf("%s: unknown helper in %q: plugin %q has no helper %q (exports: %s)",
		e.Pos, e.Text, e.Plugin, e.Helper, strings.Join(e.Known, ", "))
}

// ArityError is a call whose argument count or labels do not fit the
// helper signature.
type ArityError struct {
	Template  string
	Pos       token.Position
	Text      string
	Signature string
	Reason    string
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: arity mismatch in %q: %s (want %s)", e.Pos, e.Text, e.Reason, e.Signature)
}
