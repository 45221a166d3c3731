package config

// Config is the generator configuration read from saucer.yaml.
type Config struct {
	// Module is the Go import path of the application module.
	Module string `yaml:"module"`
	// Output is the directory, relative to the config file, that receives
	// generated packages.
	Output string `yaml:"output"`
	// Package names the generated runtime package.
	Package   string           `yaml:"package"`
	Plugins   []PluginDep      `yaml:"plugins"`
	Templates []TemplateConfig `yaml:"templates"`
	LogLevel  string           `yaml:"log_level,omitempty"`

	// Path is the absolute path the config was loaded from.
	Path string `yaml:"-"`
}

// PluginDep is one direct plugin dependency.
type PluginDep struct {
	Path string `yaml:"path"`
}

// TemplateConfig is one application template.
type TemplateConfig struct {
	Path string `yaml:"path"`
	// MsgType is the application message type the template's Cmds carry.
	MsgType string `yaml:"msg_type,omitempty"`
}

const (
	DefaultOutput  = "gen"
	DefaultPackage = "effects"
	DefaultMsgType = "Msg"
	FileName       = "saucer.yaml"
	EnvConfig      = "SAUCER_CONFIG"
)

// PluginDirs returns the plugin dependency directories in declared order.
func (c *Config) PluginDirs() []string {
	out := make([]string, len(c.Plugins))
	for i, p := range c.Plugins {
		out[i] = p.Path
	}
	return out
}

// ImportPath returns the import path of the generated runtime package.
func (c *Config) ImportPath() string {
	return c.Module + "/" + c.Output + "/" + c.Package
}
