package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsAndPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SAUCER_PLUGINS", "/opt/plugins")
	path := writeConfig(t, dir, `module: example.com/app
plugins:
  - path: ../plugins/timer
  - path: ${SAUCER_PLUGINS}/http
templates:
  - path: app/app.go.tea
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Output != DefaultOutput || cfg.Package != DefaultPackage {
		t.Errorf("defaults not applied: output=%q package=%q", cfg.Output, cfg.Package)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if got := cfg.Templates[0].MsgType; got != DefaultMsgType {
		t.Errorf("MsgType = %q, want %q", got, DefaultMsgType)
	}
	if want := filepath.Join(filepath.Dir(dir), "plugins", "timer"); cfg.Plugins[0].Path != want {
		t.Errorf("plugin path = %q, want %q", cfg.Plugins[0].Path, want)
	}
	if cfg.Plugins[1].Path != "/opt/plugins/http" {
		t.Errorf("env not interpolated: %q", cfg.Plugins[1].Path)
	}
	if want := filepath.Join(dir, "app", "app.go.tea"); cfg.Templates[0].Path != want {
		t.Errorf("template path = %q, want %q", cfg.Templates[0].Path, want)
	}
	if cfg.OutputDir() != filepath.Join(dir, "gen") {
		t.Errorf("OutputDir() = %q", cfg.OutputDir())
	}
	if cfg.ImportPath() != "example.com/app/gen/effects" {
		t.Errorf("ImportPath() = %q", cfg.ImportPath())
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "module: example.com/app\ntemplates:\n  - path: a.go.tea\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) failed: %v", err)
	}
	if cfg.Path != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q", cfg.Path)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing module", "templates: [{path: a.go.tea}]", "module is required"},
		{"no templates", "module: m", "at least one template"},
		{"bad package", "module: m\npackage: my-pkg\ntemplates: [{path: a.go.tea}]", "not a valid Go identifier"},
		{"bad extension", "module: m\ntemplates: [{path: a.go}]", "must end in .go.tea"},
		{"bad msg type", "module: m\ntemplates: [{path: a.go.tea, msg_type: 'x y'}]", "msg_type"},
		{"duplicate template", "module: m\ntemplates: [{path: a.go.tea}, {path: a.go.tea}]", "listed twice"},
		{"duplicate plugin", "module: m\nplugins: [{path: p}, {path: p}]\ntemplates: [{path: a.go.tea}]", "listed twice"},
		{"empty plugin path", "module: m\nplugins: [{path: ''}]\ntemplates: [{path: a.go.tea}]", "plugins[0].path is required"},
		{"unset variable", "module: m\nplugins: [{path: '${SAUCER_TEST_UNSET_VAR}/x'}]\ntemplates: [{path: a.go.tea}]", "unset variable"},
		{"escaping output", "module: m\noutput: ../gen\ntemplates: [{path: a.go.tea}]", "must stay inside"},
		{"malformed yaml", "module: [", "failed to parse config YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "module: m\n")
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if got, err := Discover("explicit.yaml"); err != nil || got != "explicit.yaml" {
		t.Errorf("Discover(flag) = %q, %v", got, err)
	}

	t.Setenv(EnvConfig, path)
	if got, err := Discover(""); err != nil || got != path {
		t.Errorf("Discover(env) = %q, %v", got, err)
	}

	t.Setenv(EnvConfig, "")
	t.Chdir(nested)
	got, err := Discover("")
	if err != nil {
		t.Fatalf("Discover(walk) failed: %v", err)
	}
	// Resolve symlinked temp dirs before comparing.
	wantReal, _ := filepath.EvalSymlinks(path)
	gotReal, _ := filepath.EvalSymlinks(got)
	if gotReal != wantReal {
		t.Errorf("Discover(walk) = %q, want %q", got, path)
	}
}
