package plugin

import (
	"fmt"
	"strings"
)

// CoreName is the reserved namespace for runtime commands.
const CoreName = "core"

// CoreImportPath is the package generated code imports for the runtime.
const CoreImportPath = "github.com/mattjoyce/saucer/core"

// Param is one helper parameter.
type Param struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Variadic bool   `json:"variadic,omitempty" yaml:"variadic,omitempty"`
}

// Helper is an exported request constructor read from a plugin's
// requests.go.
type Helper struct {
	Name       string   `json:"name" yaml:"name"`
	Alias      string   `json:"alias" yaml:"alias"`
	TypeParams []string `json:"type_params,omitempty" yaml:"type_params,omitempty"`
	Params     []Param  `json:"params,omitempty" yaml:"params,omitempty"`
	// InferMsg is false when none of the parameters mention the message type
	// parameter, so calls need explicit instantiation.
	InferMsg bool `json:"infer_msg" yaml:"infer_msg"`
}

// Variadic reports whether the last parameter is variadic.
func (h Helper) Variadic() bool {
	return len(h.Params) > 0 && h.Params[len(h.Params)-1].Variadic
}

// Signature renders the helper as Go source, for diagnostics.
func (h Helper) Signature() string {
	var b strings.Builder
	b.WriteString(h.Name)
	if len(h.TypeParams) > 0 {
		b.WriteString("[" + strings.Join(h.TypeParams, ", ") + "]")
	}
	b.WriteByte('(')
	for i, p := range h.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name + " ")
		if p.Variadic {
			b.WriteString("...")
		}
		b.WriteString(p.Type)
	}
	b.WriteByte(')')
	return b.String()
}

// Descriptor is the immutable description of one discovered plugin.
type Descriptor struct {
	Name        string   `json:"name" yaml:"name"`
	Dependency  string   `json:"dependency" yaml:"dependency"`
	ImportPath  string   `json:"import_path" yaml:"import_path"`
	Package     string   `json:"package" yaml:"package"`
	RequestType string   `json:"request_type" yaml:"request_type"`
	ManagerType string   `json:"manager_type" yaml:"manager_type"`
	StateType   string   `json:"state_type" yaml:"state_type"`
	SelfMsgType string   `json:"self_msg_type,omitempty" yaml:"self_msg_type,omitempty"`
	MapFunc     string   `json:"map_func" yaml:"map_func"`
	Variant     string   `json:"variant" yaml:"variant"`
	Helpers     []Helper `json:"helpers" yaml:"helpers"`
	Builtin     bool     `json:"builtin,omitempty" yaml:"builtin,omitempty"`

	// Digest is the blake3 hash of the manifest and helper sources.
	Digest string `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// RequestTypeID is the qualified request type, e.g.
// github.com/mattjoyce/saucer/plugins/timer.Request.
func (d *Descriptor) RequestTypeID() string { return d.ImportPath + "." + d.RequestType }

// ManagerTypeID is the qualified manager type.
func (d *Descriptor) ManagerTypeID() string { return d.ImportPath + "." + d.ManagerType }

// StateTypeID is the qualified state type.
func (d *Descriptor) StateTypeID() string { return d.ImportPath + "." + d.StateType }

// SelfMsgTypeID is the qualified self-message type, or struct{} for unit.
func (d *Descriptor) SelfMsgTypeID() string {
	if d.SelfMsgType == "" {
		return unitType
	}
	return d.ImportPath + "." + d.SelfMsgType
}

// sameTypes reports whether two descriptors agree on every type id.
func (d *Descriptor) sameTypes(o *Descriptor) bool {
	return d.RequestTypeID() == o.RequestTypeID() &&
		d.ManagerTypeID() == o.ManagerTypeID() &&
		d.StateTypeID() == o.StateTypeID() &&
		d.SelfMsgTypeID() == o.SelfMsgTypeID()
}

// Helper looks a helper up by its Go name or its snake_case alias.
func (d *Descriptor) Helper(name string) (Helper, bool) {
	for _, h := range d.Helpers {
		if h.Name == name || h.Alias == name {
			return h, true
		}
	}
	camel := CamelCase(name)
	for _, h := range d.Helpers {
		if h.Name == camel {
			return h, true
		}
	}
	return Helper{}, false
}

// HelperNames lists helper aliases, for error hints.
func (d *Descriptor) HelperNames() []string {
	out := make([]string, len(d.Helpers))
	for i, h := range d.Helpers {
		out[i] = h.Alias
	}
	return out
}

func (d *Descriptor) String() string {
	self := d.SelfMsgTypeID()
	return fmt.Sprintf("%s (%s, self=%s, %d helpers)", d.Name, d.RequestTypeID(), self, len(d.Helpers))
}

// coreDescriptor is the built-in runtime namespace. Its only helper is
// shutdown, the terminal command.
func coreDescriptor() *Descriptor {
	return &Descriptor{
		Name:        CoreName,
		Dependency:  "builtin",
		ImportPath:  CoreImportPath,
		Package:     "core",
		RequestType: "Control",
		ManagerType: "Loop",
		StateType:   "Phase",
		MapFunc:     "",
		Variant:     "Core",
		Helpers: []Helper{
			{Name: "Shutdown", Alias: "shutdown", InferMsg: false},
		},
		Builtin: true,
	}
}
