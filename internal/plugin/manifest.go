package plugin

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	manifestFilename   = "manifest.yaml"
	helpersFilename    = "requests.go"
	breadcrumbFilename = "command.go"

	defaultStateType = "State"
	defaultMapFunc   = "MapRequest"
	unitType         = "struct{}"
)

var (
	namePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Manifest is the metadata blob carried by each plugin dependency in its
// manifest.yaml. Pointer fields distinguish "absent" from zero values.
type Manifest struct {
	Name         string `yaml:"name"`
	EffectPlugin *bool  `yaml:"effect_plugin"`
	ImportPath   string `yaml:"import_path"`
	RequestType  string `yaml:"request_type"`
	ManagerType  string `yaml:"manager_type"`
	StateType    string `yaml:"state_type,omitempty"`
	SelfMsgType  string `yaml:"self_msg_type,omitempty"`
	MapFunc      string `yaml:"map_func,omitempty"`
	Variant      string `yaml:"variant,omitempty"`
	Description  string `yaml:"description,omitempty"`
}

// ParseManifest decodes manifest YAML, rejecting unknown keys so a typo in a
// field name surfaces as an error rather than a silently missing field.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	return &m, nil
}

// IsEffectPlugin reports whether the dependency declared itself an effect
// plugin.
func (m *Manifest) IsEffectPlugin() bool {
	return m.EffectPlugin != nil && *m.EffectPlugin
}

// validateManifest checks required manifest fields. Callers only invoke it
// for effect plugins.
func validateManifest(dep string, m *Manifest) error {
	required := []struct {
		field string
		value string
	}{
		{"name", m.Name},
		{"import_path", m.ImportPath},
		{"request_type", m.RequestType},
		{"manager_type", m.ManagerType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigurationError{Dependency: dep, Field: r.field, Reason: "is required"}
		}
	}
	if !namePattern.MatchString(m.Name) {
		return &ConfigurationError{Dependency: dep, Field: "name", Reason: fmt.Sprintf("%q must match %s", m.Name, namePattern)}
	}
	if m.Name == CoreName {
		return &ConfigurationError{Dependency: dep, Field: "name", Reason: "core is reserved"}
	}

	idents := []struct {
		field string
		value string
	}{
		{"request_type", m.RequestType},
		{"manager_type", m.ManagerType},
		{"state_type", m.StateType},
		{"self_msg_type", m.SelfMsgType},
		{"map_func", m.MapFunc},
		{"variant", m.Variant},
	}
	for _, id := range idents {
		if id.value != "" && !identPattern.MatchString(id.value) {
			return &ConfigurationError{Dependency: dep, Field: id.field, Reason: fmt.Sprintf("%q is not a Go identifier", id.value)}
		}
	}
	return nil
}

var initialisms = map[string]string{
	"api":  "API",
	"db":   "DB",
	"grpc": "GRPC",
	"http": "HTTP",
	"id":   "ID",
	"io":   "IO",
	"json": "JSON",
	"rpc":  "RPC",
	"sql":  "SQL",
	"tcp":  "TCP",
	"udp":  "UDP",
	"url":  "URL",
	"ws":   "WS",
}

// CamelCase converts a snake_case plugin or helper name to an exported Go
// identifier, honouring common initialisms: notify_after becomes NotifyAfter
// and http becomes HTTP.
func CamelCase(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		if up, ok := initialisms[strings.ToLower(part)]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// SnakeCase converts an exported Go identifier to snake_case: NotifyAfter
// becomes notify_after and GetJSON becomes get_json.
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z' || runes[i-1] >= '0' && runes[i-1] <= '9'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			prevUpper := runes[i-1] >= 'A' && runes[i-1] <= 'Z'
			if prevLower || (prevUpper && nextLower) {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
