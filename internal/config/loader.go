package config

import (
	"fmt"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses the generator configuration. Relative plugin and
// template paths are resolved against the config file's directory; the
// output directory stays relative so it can be joined onto the module path.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, FileName)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = absPath

	baseDir := filepath.Dir(absPath)
	for i := range cfg.Plugins {
		cfg.Plugins[i].Path = resolve(baseDir, cfg.Plugins[i].Path)
	}
	for i := range cfg.Templates {
		cfg.Templates[i].Path = resolve(baseDir, cfg.Templates[i].Path)
	}
	return cfg, nil
}

// Parse decodes, interpolates, defaults and validates configuration bytes.
// Paths are left as written.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// OutputDir returns the absolute directory that receives generated packages.
func (c *Config) OutputDir() string {
	return filepath.Join(filepath.Dir(c.Path), filepath.FromSlash(c.Output))
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Output) == "" {
		cfg.Output = DefaultOutput
	}
	if strings.TrimSpace(cfg.Package) == "" {
		cfg.Package = DefaultPackage
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for i := range cfg.Templates {
		if cfg.Templates[i].MsgType == "" {
			cfg.Templates[i].MsgType = DefaultMsgType
		}
	}
	cfg.Output = path.Clean(filepath.ToSlash(cfg.Output))
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Module) == "" {
		return fmt.Errorf("module is required")
	}
	if !token.IsIdentifier(cfg.Package) {
		return fmt.Errorf("package %q is not a valid Go identifier", cfg.Package)
	}
	if filepath.IsAbs(cfg.Output) || cfg.Output == ".." || strings.HasPrefix(cfg.Output, "../") {
		return fmt.Errorf("output %q must stay inside the module", cfg.Output)
	}
	if len(cfg.Templates) == 0 {
		return fmt.Errorf("at least one template is required")
	}

	seenPlugins := make(map[string]bool, len(cfg.Plugins))
	for i, p := range cfg.Plugins {
		if strings.TrimSpace(p.Path) == "" {
			return fmt.Errorf("plugins[%d].path is required", i)
		}
		if envVarPattern.MatchString(p.Path) {
			return fmt.Errorf("plugins[%d].path references unset variable: %s", i, p.Path)
		}
		if seenPlugins[p.Path] {
			return fmt.Errorf("plugins[%d].path %q is listed twice", i, p.Path)
		}
		seenPlugins[p.Path] = true
	}

	seenTemplates := make(map[string]bool, len(cfg.Templates))
	for i, t := range cfg.Templates {
		if strings.TrimSpace(t.Path) == "" {
			return fmt.Errorf("templates[%d].path is required", i)
		}
		if !strings.HasSuffix(t.Path, TemplateExt) {
			return fmt.Errorf("templates[%d].path %q must end in %s", i, t.Path, TemplateExt)
		}
		if !token.IsIdentifier(t.MsgType) {
			return fmt.Errorf("templates[%d].msg_type %q is not a valid Go identifier", i, t.MsgType)
		}
		if seenTemplates[t.Path] {
			return fmt.Errorf("templates[%d].path %q is listed twice", i, t.Path)
		}
		seenTemplates[t.Path] = true
	}
	return nil
}

// TemplateExt is the suffix every template file carries.
const TemplateExt = ".go.tea"
