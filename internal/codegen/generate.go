package codegen

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/mattjoyce/saucer/internal/config"
	"github.com/mattjoyce/saucer/internal/plugin"
	"github.com/mattjoyce/saucer/internal/template"
)

// GeneratedMarker opens every generated file.
const GeneratedMarker = "// Code generated by saucer gen. DO NOT EDIT."

// TemplateInput is one template to rewrite.
type TemplateInput struct {
	// Name is the slash-separated path used in headers and diagnostics.
	Name    string
	MsgType string
	Src     []byte
}

// Input is everything generation depends on. Identical inputs give
// byte-identical output.
type Input struct {
	Module     string
	Package    string
	ImportPath string
	Registry   *plugin.Registry
	Templates  []TemplateInput
}

// File is one generated file, Path relative to the output directory.
type File struct {
	Path    string
	Content []byte
}

// Output is the complete set of generated files.
type Output struct {
	Fingerprint string
	Files       []File
}

// Generator runs the two-phase pipeline: parse and resolve every template,
// then emit. Nothing is emitted unless every reference resolves.
type Generator struct {
	logger *slog.Logger
}

// New creates a Generator.
func New(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{logger: logger}
}

// Generate produces the runtime package and one rewritten file per template.
// All parse and resolution errors across all templates are returned joined.
func (g *Generator) Generate(in Input) (*Output, error) {
	if in.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if in.Package == "" || in.ImportPath == "" {
		return nil, fmt.Errorf("runtime package and import path are required")
	}

	fingerprint := fingerprintInputs(in)

	var errs []error
	resolved := make([]*Resolved, 0, len(in.Templates))
	for _, t := range in.Templates {
		tmpl, err := template.Parse(t.Name, t.Src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r, err := Resolve(in.Registry, tmpl, t.MsgType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.logger.Debug("template resolved", "template", t.Name, "references", tmpl.Count())
		resolved = append(resolved, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := &Output{Fingerprint: fingerprint}
	header := GeneratedMarker + "\n// Inputs: " + fingerprint + "\n"

	runtimeSrc, err := renderRuntime(header, in.Package, in.Module, in.Registry.All())
	if err != nil {
		return nil, err
	}
	out.Files = append(out.Files, File{Path: in.Package + "/" + in.Package + "_gen.go", Content: runtimeSrc})

	seen := map[string]string{out.Files[0].Path: "runtime"}
	for _, r := range resolved {
		name := r.Template.Name
		if r.Template.Package == in.Package {
			errs = append(errs, fmt.Errorf("template %s: package %q collides with the runtime package", name, in.Package))
			continue
		}
		outPath := r.Template.Package + "/" + strings.TrimSuffix(path.Base(name), config.TemplateExt) + "_gen.go"
		if prev, ok := seen[outPath]; ok {
			errs = append(errs, fmt.Errorf("template %s: output %s already produced by %s", name, outPath, prev))
			continue
		}
		seen[outPath] = name

		src := rewriteTemplate(r, in.Package, header+"// Source: "+name+"\n\n")
		imports := []importSpec{{path: in.ImportPath}}
		if path.Base(in.ImportPath) != in.Package {
			imports[0].name = in.Package
		}
		for _, d := range r.Plugins() {
			if !d.Builtin {
				imports = append(imports, pluginImport(d))
			}
		}
		content, err := finishTemplate(name, src, imports)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.Files = append(out.Files, File{Path: outPath, Content: content})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.Slice(out.Files, func(i, j int) bool { return out.Files[i].Path < out.Files[j].Path })
	g.logger.Info("generated", "files", len(out.Files), "plugins", in.Registry.Len(), "fingerprint", fingerprint)
	return out, nil
}

func fingerprintInputs(in Input) string {
	fp := config.NewFingerprint()
	fp.Add("module", []byte(in.Module))
	fp.Add("package", []byte(in.Package+" "+in.ImportPath))
	for _, d := range in.Registry.All() {
		fp.Add("plugin:"+d.Name, []byte(d.ImportPath+"\n"+d.Digest))
	}
	for _, t := range in.Templates {
		fp.Add("template:"+t.Name+":"+t.MsgType, t.Src)
	}
	return fp.Sum()
}
