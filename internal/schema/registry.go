package schema

import (
	_ "embed"
	"regexp"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/units"
)

//go:embed schemas.yaml
var embedded []byte

// Bounds is a plausibility interval in the field's base unit
type Bounds struct {
	Min          float64 `yaml:"min"`
	Max          float64 `yaml:"max"`
	MinExclusive bool    `yaml:"min_exclusive"`
}

// Contains reports whether v lies within the bounds
func (b Bounds) Contains(v float64) bool {
	if b.MinExclusive && v <= b.Min {
		return false
	}
	return v >= b.Min && v <= b.Max
}

// FieldMeta describes one extractable field
type FieldMeta struct {
	Name         string              `yaml:"name"`
	Aliases      []string            `yaml:"aliases"`
	Symbols      []string            `yaml:"symbols"`
	UnitType     units.Type          `yaml:"unit_type"`
	DefaultUnit  string              `yaml:"default_unit"`
	AllowedUnits []string            `yaml:"allowed_units"`
	Context      []string            `yaml:"context"`
	Choices      map[string][]string `yaml:"choices"`
	RequireUnit  bool                `yaml:"require_unit"`
	Plausible    *Bounds             `yaml:"plausible"`

	domain  string
	aliases []*regexp.Regexp
	symbols []*regexp.Regexp
	choices []choiceToken
}

type choiceToken struct {
	category string
	pattern  *regexp.Regexp
}

// Domain returns the result section the field belongs to
func (f *FieldMeta) Domain() string { return f.domain }

// IsCategorical reports whether the field carries a label instead of a number
func (f *FieldMeta) IsCategorical() bool {
	return f.UnitType == units.Categorical || len(f.Choices) > 0
}

// Gated reports whether the field needs a context keyword to fire
func (f *FieldMeta) Gated() bool { return len(f.Context) > 0 }

// Allows reports whether a canonical unit name is acceptable for the field
func (f *FieldMeta) Allows(unit string) bool {
	for _, u := range f.AllowedUnits {
		if u == unit {
			return true
		}
	}
	return unit == f.DefaultUnit
}

// Schema is the read-only field table of one domain
type Schema struct {
	Domain string

	fields []*FieldMeta
	byName map[string]*FieldMeta
}

// Fields returns the fields in declaration order
func (s *Schema) Fields() []*FieldMeta {
	out := make([]*FieldMeta, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by canonical name
func (s *Schema) Field(name string) (*FieldMeta, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Registry holds the schemas of every domain
type Registry struct {
	schemas map[string]*Schema
}

type document struct {
	Domains map[string][]*FieldMeta `yaml:"domains"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry compiled from the embedded schema tables.
// It panics if the embedded data is invalid, which is a build defect.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Load(embedded)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Load parses and compiles schema YAML
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "schema: parse")
	}

	r := &Registry{schemas: make(map[string]*Schema)}
	for domain, fields := range doc.Domains {
		s := &Schema{Domain: domain, byName: make(map[string]*FieldMeta)}
		for _, f := range fields {
			if err := compile(f, domain); err != nil {
				return nil, err
			}
			if _, dup := s.byName[f.Name]; dup {
				return nil, eris.Errorf("schema: duplicate field %q in %s", f.Name, domain)
			}
			s.fields = append(s.fields, f)
			s.byName[f.Name] = f
		}
		r.schemas[domain] = s
	}

	for _, domain := range model.Domains {
		if _, ok := r.schemas[domain]; !ok {
			return nil, eris.Errorf("schema: missing domain %q", domain)
		}
	}
	return r, nil
}

// Schema returns the field table of a domain, or an empty schema
func (r *Registry) Schema(domain string) *Schema {
	if s, ok := r.schemas[domain]; ok {
		return s
	}
	return &Schema{Domain: domain, byName: map[string]*FieldMeta{}}
}

// Lookup finds a field by name in any domain
func (r *Registry) Lookup(name string) (*FieldMeta, bool) {
	for _, domain := range model.Domains {
		if f, ok := r.Schema(domain).Field(name); ok {
			return f, true
		}
	}
	return nil, false
}

func compile(f *FieldMeta, domain string) error {
	if f.Name == "" {
		return eris.Errorf("schema: unnamed field in %s", domain)
	}
	f.domain = domain

	for _, a := range f.Aliases {
		re, err := regexp.Compile(`(?i)` + a)
		if err != nil {
			return eris.Wrapf(err, "schema: alias %q of %s", a, f.Name)
		}
		f.aliases = append(f.aliases, re)
	}
	for _, s := range f.Symbols {
		re, err := regexp.Compile(s)
		if err != nil {
			return eris.Wrapf(err, "schema: symbol %q of %s", s, f.Name)
		}
		f.symbols = append(f.symbols, re)
	}

	if f.UnitType == "" && len(f.Choices) > 0 {
		f.UnitType = units.Categorical
	}
	if f.UnitType != units.Categorical {
		if f.DefaultUnit == "" {
			return eris.Errorf("schema: field %s has no default unit", f.Name)
		}
		if _, ok := units.ByName(f.DefaultUnit); !ok {
			return eris.Errorf("schema: field %s default unit %q not in catalog", f.Name, f.DefaultUnit)
		}
		if len(f.AllowedUnits) == 0 {
			f.AllowedUnits = units.OfType(f.UnitType)
		}
	}

	categories := make([]string, 0, len(f.Choices))
	for c := range f.Choices {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		for _, token := range f.Choices[c] {
			re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(token))
			if err != nil {
				return eris.Wrapf(err, "schema: choice %q of %s", token, f.Name)
			}
			f.choices = append(f.choices, choiceToken{category: c, pattern: re})
		}
	}
	return nil
}
