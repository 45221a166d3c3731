package plugin

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

// maxParallelLoads bounds concurrent manifest reads.
const maxParallelLoads = 8

// reservedVariants are identifiers the generated runtime package defines
// itself.
var reservedVariants = map[string]bool{
	"Core": true, "Request": true, "Cmd": true, "Program": true, "Runtime": true,
	"None": true, "Single": true, "Batch": true, "And": true, "MapCmd": true,
	"MapRequest": true, "Shutdown": true, "NewRuntime": true, "NewDefaultRuntime": true,
}

// Registry holds discovered plugin descriptors. Order is ascending by name,
// so equal dependency sets give equal registries whatever their declared
// order.
type Registry struct {
	plugins map[string]*Descriptor
	core    *Descriptor
}

// NewRegistry creates a registry holding only the built-in core namespace.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*Descriptor),
		core:    coreDescriptor(),
	}
}

// Get retrieves a plugin by name, including the built-in core namespace.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	if name == CoreName {
		return r.core, true
	}
	d, ok := r.plugins[name]
	return d, ok
}

// Core returns the built-in runtime namespace.
func (r *Registry) Core() *Descriptor { return r.core }

// All returns the discovered effect plugins sorted by name. The built-in
// core namespace is not included.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.plugins))
	for _, d := range r.plugins {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the discovered plugin names in registry order.
func (r *Registry) Names() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, d := range all {
		out[i] = d.Name
	}
	return out
}

// Len returns the number of discovered effect plugins.
func (r *Registry) Len() int { return len(r.plugins) }

// Add registers a descriptor. A second descriptor with the same name and the
// same type ids is dropped; one with different type ids is a
// ConfigurationError. Add reports whether the descriptor was new.
func (r *Registry) Add(d *Descriptor) (bool, error) {
	if d.Name == CoreName {
		return false, &ConfigurationError{Dependency: d.Dependency, Field: "name", Reason: "core is reserved"}
	}
	if reservedVariants[d.Variant] {
		return false, &ConfigurationError{Dependency: d.Dependency, Field: "variant", Reason: fmt.Sprintf("%q collides with a generated identifier", d.Variant)}
	}
	existing, ok := r.plugins[d.Name]
	if !ok {
		for _, other := range r.plugins {
			if other.Variant == d.Variant {
				return false, &ConfigurationError{
					Dependency: d.Dependency,
					Field:      "variant",
					Reason:     fmt.Sprintf("%q is already used by plugin %q", d.Variant, other.Name),
				}
			}
		}
		r.plugins[d.Name] = d
		return true, nil
	}
	if existing.sameTypes(d) {
		return false, nil
	}
	return false, &ConfigurationError{
		Dependency: d.Dependency,
		Field:      "name",
		Reason: fmt.Sprintf("plugin %q is already declared by %s with type ids %s/%s, got %s/%s",
			d.Name, existing.Dependency,
			existing.RequestTypeID(), existing.ManagerTypeID(),
			d.RequestTypeID(), d.ManagerTypeID()),
	}
}

// Discover loads each dependency directory's manifest and helpers. Only the
// listed directories are scanned; there is no transitive search.
// Dependencies that are not effect plugins are skipped. Every failure is
// reported, joined in declaration order.
func Discover(ctx context.Context, deps []string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	results := make([]*Descriptor, len(deps))
	errs := make([]error, len(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, dep := range deps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := loadDependency(dep)
			results[i], errs[i] = d, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("discover plugins: %w", err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for i, d := range results {
		if d == nil {
			logger.Debug("dependency is not an effect plugin", "dependency", deps[i])
			continue
		}
		added, err := registry.Add(d)
		if err != nil {
			errs[i] = err
			continue
		}
		if !added {
			logger.Debug("duplicate plugin declaration ignored", "plugin", d.Name, "dependency", d.Dependency)
			continue
		}
		logger.Info("loaded plugin", "plugin", d.Name, "import_path", d.ImportPath, "helpers", len(d.Helpers))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return registry, nil
}

// loadDependency returns nil, nil for a dependency that is not an effect
// plugin.
func loadDependency(dep string) (*Descriptor, error) {
	dir, err := filepath.Abs(strings.TrimSpace(dep))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plugin dependency %q: %w", dep, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigurationError{Dependency: dep, Reason: "directory does not exist"}
		}
		return nil, fmt.Errorf("failed to stat plugin dependency %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, &ConfigurationError{Dependency: dep, Reason: "is not a directory"}
	}

	manifestPath := filepath.Join(dir, manifestFilename)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigurationError{Dependency: dep, Field: manifestFilename, Reason: "is missing"}
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, &ConfigurationError{Dependency: dep, Field: manifestFilename, Reason: err.Error()}
	}
	if manifest.EffectPlugin == nil {
		return nil, &ConfigurationError{Dependency: dep, Field: "effect_plugin", Reason: "is required"}
	}
	if !manifest.IsEffectPlugin() {
		return nil, nil
	}
	if err := validateManifest(dep, manifest); err != nil {
		return nil, err
	}

	pkg, helpers, helperSrc, err := readHelpers(dep, dir, manifest.RequestType)
	if err != nil {
		return nil, err
	}
	crumb, err := checkBreadcrumb(dep, dir)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Name:        manifest.Name,
		Dependency:  dep,
		ImportPath:  manifest.ImportPath,
		Package:     pkg,
		RequestType: manifest.RequestType,
		ManagerType: manifest.ManagerType,
		StateType:   orDefault(manifest.StateType, defaultStateType),
		SelfMsgType: manifest.SelfMsgType,
		MapFunc:     orDefault(manifest.MapFunc, defaultMapFunc),
		Variant:     orDefault(manifest.Variant, CamelCase(manifest.Name)),
	}
	// The map function returns a request too but is not a template helper.
	for _, hp := range helpers {
		if hp.Name != d.MapFunc {
			d.Helpers = append(d.Helpers, hp)
		}
	}

	h := blake3.New()
	for _, part := range [][]byte{data, helperSrc, crumb} {
		_, _ = h.Write(part)
		_, _ = h.Write([]byte{0})
	}
	d.Digest = hex.EncodeToString(h.Sum(nil))
	return d, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
