package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/saucer/internal/codegen"
	"github.com/mattjoyce/saucer/internal/config"
	"github.com/mattjoyce/saucer/internal/lock"
	"github.com/mattjoyce/saucer/internal/log"
	"github.com/mattjoyce/saucer/internal/plugin"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func loadConfig(flagValue string) (*config.Config, error) {
	path, err := config.Discover(flagValue)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// buildInput discovers the plugins cfg lists and reads its templates.
func buildInput(ctx context.Context, cfg *config.Config) (codegen.Input, error) {
	reg, err := plugin.Discover(ctx, cfg.PluginDirs(), log.WithComponent("discovery"))
	if err != nil {
		return codegen.Input{}, err
	}

	in := codegen.Input{
		Module:     cfg.Module,
		Package:    cfg.Package,
		ImportPath: cfg.ImportPath(),
		Registry:   reg,
	}
	base := filepath.Dir(cfg.Path)
	for _, t := range cfg.Templates {
		src, err := os.ReadFile(t.Path)
		if err != nil {
			return codegen.Input{}, fmt.Errorf("read template: %w", err)
		}
		name, err := filepath.Rel(base, t.Path)
		if err != nil {
			name = t.Path
		}
		in.Templates = append(in.Templates, codegen.TemplateInput{
			Name:    filepath.ToSlash(name),
			MsgType: t.MsgType,
			Src:     src,
		})
	}
	return in, nil
}

func runGen(args []string) int {
	fs := newFlagSet("gen")
	configPath := fs.String("config", "", "Path to saucer.yaml")
	check := fs.Bool("check", false, "Report stale generated files instead of writing them")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log.Setup(level)

	in, err := buildInput(context.Background(), cfg)
	if err != nil {
		printErrors("Plugin discovery failed", err)
		return 1
	}
	out, err := codegen.New(log.WithComponent("codegen")).Generate(in)
	if err != nil {
		printErrors("Generation failed", err)
		return 1
	}

	dir := cfg.OutputDir()
	if *check {
		stale, err := codegen.Check(dir, out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			return 1
		}
		if len(stale) > 0 {
			fmt.Fprintln(os.Stderr, "Generated files are stale; run 'saucer gen':")
			for _, p := range stale {
				fmt.Fprintf(os.Stderr, "  %s\n", filepath.Join(dir, filepath.FromSlash(p)))
			}
			return 1
		}
		fmt.Printf("%d generated files are up to date (%s)\n", len(out.Files), out.Fingerprint)
		return 0
	}

	l, err := lock.Acquire(dir)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			fmt.Fprintf(os.Stderr, "Another saucer gen is writing to %s: %v\n", dir, err)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to lock output directory: %v\n", err)
		}
		return 1
	}
	defer func() { _ = l.Release() }()

	if err := codegen.Write(dir, out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write generated files: %v\n", err)
		return 1
	}
	for _, f := range out.Files {
		fmt.Println(filepath.Join(dir, filepath.FromSlash(f.Path)))
	}
	return 0
}

// printErrors lists each joined error on its own line.
func printErrors(title string, err error) {
	fmt.Fprintf(os.Stderr, "%s:\n", title)
	for _, line := range strings.Split(err.Error(), "\n") {
		if line != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", line)
		}
	}
}

func runPlugins(args []string) int {
	fs := newFlagSet("plugins")
	configPath := fs.String("config", "", "Path to saucer.yaml")
	jsonOut := fs.Bool("json", false, "Output the registry as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.LogLevel)

	reg, err := plugin.Discover(context.Background(), cfg.PluginDirs(), log.WithComponent("discovery"))
	if err != nil {
		printErrors("Plugin discovery failed", err)
		return 1
	}

	all := append([]*plugin.Descriptor{reg.Core()}, reg.All()...)
	if *jsonOut {
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render registry JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	for _, d := range all {
		fmt.Printf("%s (%s)\n", d.Name, orBuiltin(d))
		for _, h := range d.Helpers {
			fmt.Printf("  %s::command::%s  %s\n", d.Name, h.Alias, h.Signature())
		}
	}
	return 0
}

func orBuiltin(d *plugin.Descriptor) string {
	if d.Builtin {
		return "builtin"
	}
	return d.ImportPath
}
