package plugin

import "fmt"

// ConfigurationError reports a problem with a plugin dependency: a missing
// or malformed manifest field, a name collision, a non-empty breadcrumb or
// an unreadable helper file. It is always fatal to generation.
type ConfigurationError struct {
	Dependency string
	Field      string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("plugin dependency %s: %s", e.Dependency, e.Reason)
	}
	return fmt.Sprintf("plugin dependency %s: %s %s", e.Dependency, e.Field, e.Reason)
}
