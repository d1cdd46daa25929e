// Package registry implements the Module Registry: declarative
// source/sink/transform descriptors loaded from YAML at startup, looked up
// by name, with a type-mapping resolver and a template renderer shared by
// the rest of the control plane.
package registry

import (
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Registry is the read-only-after-load catalog of source, sink, and
// transform descriptors.
type Registry struct {
	mu         sync.RWMutex
	sources    map[string]models.SourceDescriptor
	sinks      map[string]models.SinkDescriptor
	transforms map[string]models.TransformDescriptor
}

// New returns an empty registry; Load populates it.
func New() *Registry {
	return &Registry{
		sources:    make(map[string]models.SourceDescriptor),
		sinks:      make(map[string]models.SinkDescriptor),
		transforms: make(map[string]models.TransformDescriptor),
	}
}

// sourceFile/sinkFile/transformFile mirror the YAML shape on disk; kept
// unexported since callers only ever see the models.*Descriptor types.
type sourceFile struct {
	Name                string                   `yaml:"name"`
	DisplayName         string                   `yaml:"display_name"`
	SupportsCDC         bool                     `yaml:"supports_cdc"`
	SupportsFullLoad    bool                     `yaml:"supports_full_load"`
	SupportsIncremental bool                     `yaml:"supports_incremental"`
	ValueFormats        []string                 `yaml:"value_formats"`
	RequiredFields      []models.CredentialField `yaml:"required_fields"`
	OptionalFields      []models.CredentialField `yaml:"optional_fields"`
	ConnectorTemplate   map[string]string        `yaml:"connector_template"`
	SchemaDiscoveryQuery string                  `yaml:"schema_discovery_query"`
	ReadinessProbes     []models.ProbeExpression `yaml:"readiness_probes"`
}

type sinkFile struct {
	Name                string                   `yaml:"name"`
	DisplayName         string                   `yaml:"display_name"`
	TypeMap             []models.TypeMapping     `yaml:"type_map"`
	CreateTableTemplate string                   `yaml:"create_table_template"`
	ConnectorTemplate   map[string]string        `yaml:"connector_template"`
	CostFactors         map[string]float64       `yaml:"cost_factors"`
}

type transformFile struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Kind        string `yaml:"kind"`
	Template    string `yaml:"template"`
}

// Load reads every *.yaml file under sourcesDir/sinksDir/transformsDir and
// populates the registry, replacing any previously loaded descriptors.
// Reloading is only ever triggered by an explicit operator command.
func Load(fsys fs.FS, sourcesDir, sinksDir, transformsDir string) (*Registry, error) {
	r := New()

	sources, err := loadDir[sourceFile](fsys, sourcesDir)
	if err != nil {
		return nil, fmt.Errorf("load source descriptors: %w", err)
	}
	for _, sf := range sources {
		r.sources[sf.Name] = models.SourceDescriptor{
			Name:                 sf.Name,
			DisplayName:          sf.DisplayName,
			SupportsCDC:          sf.SupportsCDC,
			SupportsFullLoad:     sf.SupportsFullLoad,
			SupportsIncremental:  sf.SupportsIncremental,
			ValueFormats:         sf.ValueFormats,
			RequiredFields:       sf.RequiredFields,
			OptionalFields:       sf.OptionalFields,
			ConnectorTemplate:    sf.ConnectorTemplate,
			SchemaDiscoveryQuery: sf.SchemaDiscoveryQuery,
			ReadinessProbes:      sf.ReadinessProbes,
		}
	}

	sinks, err := loadDir[sinkFile](fsys, sinksDir)
	if err != nil {
		return nil, fmt.Errorf("load sink descriptors: %w", err)
	}
	for _, sf := range sinks {
		r.sinks[sf.Name] = models.SinkDescriptor{
			Name:                sf.Name,
			DisplayName:         sf.DisplayName,
			TypeMap:             sf.TypeMap,
			CreateTableTemplate: sf.CreateTableTemplate,
			ConnectorTemplate:   sf.ConnectorTemplate,
			CostFactors:         sf.CostFactors,
		}
	}

	transforms, err := loadDir[transformFile](fsys, transformsDir)
	if err != nil {
		return nil, fmt.Errorf("load transform descriptors: %w", err)
	}
	for _, tf := range transforms {
		r.transforms[tf.Name] = models.TransformDescriptor{
			Name:        tf.Name,
			DisplayName: tf.DisplayName,
			Kind:        models.TransformKind(tf.Kind),
			Template:    tf.Template,
		}
	}

	return r, nil
}

func loadDir[T any](fsys fs.FS, dir string) ([]T, error) {
	entries, err := fs.Glob(fsys, filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(entries))
	for _, path := range entries {
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var v T
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Source looks up a source descriptor by name.
func (r *Registry) Source(name string) (models.SourceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.sources[name]
	if !ok {
		return models.SourceDescriptor{}, fmt.Errorf("%w: source %q", models.ErrUnknownModule, name)
	}
	return d, nil
}

// Sink looks up a sink descriptor by name.
func (r *Registry) Sink(name string) (models.SinkDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.sinks[name]
	if !ok {
		return models.SinkDescriptor{}, fmt.Errorf("%w: sink %q", models.ErrUnknownModule, name)
	}
	return d, nil
}

// Transform looks up a transform descriptor by name.
func (r *Registry) Transform(name string) (models.TransformDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.transforms[name]
	if !ok {
		return models.TransformDescriptor{}, fmt.Errorf("%w: transform %q", models.ErrUnknownModule, name)
	}
	return d, nil
}

// MapType resolves a source column type to a sink type using the sink's
// type map: exact match first, then longest-prefix match, then the map's
// designated default entry. Stable across repeated calls for the same
// (sink, source type) pair, as required by the round-trip property.
func (r *Registry) MapType(sinkName, sourceType string) (string, error) {
	sink, err := r.Sink(sinkName)
	if err != nil {
		return "", err
	}

	var bestPrefix models.TypeMapping
	var bestLen = -1
	var fallback string
	haveFallback := false

	for _, m := range sink.TypeMap {
		if m.SourceType == sourceType {
			return m.SinkType, nil
		}
		if m.Default {
			fallback = m.SinkType
			haveFallback = true
			continue
		}
		if m.SourceType != "" && strings.HasPrefix(sourceType, m.SourceType) && len(m.SourceType) > bestLen {
			bestPrefix = m
			bestLen = len(m.SourceType)
		}
	}

	if bestLen >= 0 {
		return bestPrefix.SinkType, nil
	}
	if haveFallback {
		return fallback, nil
	}

	return "", fmt.Errorf("%w: no type mapping for %q on sink %q", models.ErrUnknownModule, sourceType, sinkName)
}

// Render binds a template string (already using Go template syntax — the
// caller translates any "${...}" placeholder source into "{{.Field}}"
// before registration) against a context map and returns the rendered text.
func Render(tmplText string, context map[string]any) (string, error) {
	tmpl, err := template.New("module").Option("missingkey=error").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("%w: parse template: %v", models.ErrBadTemplate, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("%w: render template: %v", models.ErrBadTemplate, err)
	}

	return buf.String(), nil
}

// RenderMap renders every value of a string-keyed template map (e.g. a
// connector configuration template) against the same context.
func RenderMap(tmpl map[string]string, context map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(tmpl))
	for k, v := range tmpl {
		rendered, err := Render(v, context)
		if err != nil {
			return nil, fmt.Errorf("render %q: %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}
