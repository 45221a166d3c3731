package codegen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"sort"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/mattjoyce/saucer/internal/plugin"
)

// renderCall returns the Go expression a resolved call is rewritten to:
// <runtime>.<Variant>(<pkg>.<Helper>(args)), or <runtime>.Shutdown[Msg]()
// for the built-in core namespace.
func renderCall(src []byte, runtimePkg, msgType string, c *Call) string {
	if c.Plugin.Builtin {
		return fmt.Sprintf("%s.%s[%s]()", runtimePkg, c.Helper.Name, msgType)
	}

	helper := c.Plugin.Package + "." + c.Helper.Name
	if !c.Helper.InferMsg {
		helper += "[" + msgType + "]"
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = renderArg(src, runtimePkg, msgType, a)
	}
	return fmt.Sprintf("%s.%s(%s(%s))", runtimePkg, c.Plugin.Variant, helper, strings.Join(args, ", "))
}

// renderArg returns the argument's source text with nested references
// replaced.
func renderArg(src []byte, runtimePkg, msgType string, a CallArg) string {
	var b strings.Builder
	pos := a.Arg.Start
	for _, nested := range a.Calls {
		b.Write(src[pos:nested.Ref.Start])
		b.WriteString(renderCall(src, runtimePkg, msgType, nested))
		pos = nested.Ref.End
	}
	b.Write(src[pos:a.Arg.End])
	return b.String()
}

// rewriteTemplate substitutes every top-level reference and returns the new
// source, header included.
func rewriteTemplate(r *Resolved, runtimePkg, header string) []byte {
	src := r.Template.Src
	var b bytes.Buffer
	b.WriteString(header)
	pos := 0
	for _, c := range r.Calls {
		b.Write(src[pos:c.Ref.Start])
		b.WriteString(renderCall(src, runtimePkg, r.MsgType, c))
		pos = c.Ref.End
	}
	b.Write(src[pos:])
	return b.Bytes()
}

type importSpec struct {
	name string
	path string
}

// finishTemplate parses rewritten source, adds the imports the rewrite
// introduced and formats the result.
func finishTemplate(name string, src []byte, imports []importSpec) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("template %s does not parse after rewriting: %w", name, err)
	}
	sort.Slice(imports, func(i, j int) bool { return imports[i].path < imports[j].path })
	for _, imp := range imports {
		if hasImport(file, imp) {
			continue
		}
		astutil.AddNamedImport(fset, file, imp.name, imp.path)
	}
	ast.SortImports(fset, file)

	var out bytes.Buffer
	if err := format.Node(&out, fset, file); err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return out.Bytes(), nil
}

func hasImport(file *ast.File, imp importSpec) bool {
	for _, s := range file.Imports {
		if strings.Trim(s.Path.Value, `"`) != imp.path {
			continue
		}
		local := path.Base(imp.path)
		if s.Name != nil {
			local = s.Name.Name
		}
		want := imp.name
		if want == "" {
			want = path.Base(imp.path)
		}
		if local == want {
			return true
		}
	}
	return false
}

// pluginImport returns the import for a plugin, named when its package name
// differs from the last element of its import path.
func pluginImport(d *plugin.Descriptor) importSpec {
	if path.Base(d.ImportPath) == d.Package {
		return importSpec{path: d.ImportPath}
	}
	return importSpec{name: d.Package, path: d.ImportPath}
}
