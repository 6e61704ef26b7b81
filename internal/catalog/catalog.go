// Package catalog holds the static classifier metadata: model families with their
// label lists and input normalization, and the disease treatment table.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Family identifies one of the independently trained classifiers.
type Family string

const (
	Leaf  Family = "leaf"
	Fruit Family = "fruit"
)

// ResolveFamily maps a detection_type form value to a family. Anything other
// than "fruit" selects the leaf model.
func ResolveFamily(detectionType string) Family {
	if strings.EqualFold(strings.TrimSpace(detectionType), string(Fruit)) {
		return Fruit
	}
	return Leaf
}

// Normalization is the linear rescale applied to 0..255 channel values:
// v = (x - Mean) / Scale.
type Normalization struct {
	Mean  float32 `yaml:"mean"`
	Scale float32 `yaml:"scale"`
}

// FamilySpec describes one model family.
type FamilySpec struct {
	Name          Family        `yaml:"-"`
	Artifact      string        `yaml:"artifact"`
	InputSize     int           `yaml:"input_size"`
	Normalization Normalization `yaml:"normalization"`
	Labels        []string      `yaml:"labels"`
}

// Catalog is immutable after Parse and safe for concurrent use.
type Catalog struct {
	families   map[Family]FamilySpec
	treatments map[string]string
	keys       []string
}

type document struct {
	Families   map[string]FamilySpec `yaml:"families"`
	Treatments map[string]string     `yaml:"treatments"`
}

var defaultCatalog = mustParse(embeddedCatalog)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return defaultCatalog
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid embedded catalog: %v", err))
	}
	return c
}

// Parse decodes and validates a catalog YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		families:   make(map[Family]FamilySpec, len(doc.Families)),
		treatments: doc.Treatments,
	}
	if c.treatments == nil {
		c.treatments = map[string]string{}
	}

	for name, spec := range doc.Families {
		spec.Name = Family(name)
		if len(spec.Labels) == 0 {
			return nil, fmt.Errorf("family %q has no labels", name)
		}
		if spec.Artifact == "" {
			return nil, fmt.Errorf("family %q has no artifact", name)
		}
		if spec.InputSize <= 0 {
			return nil, fmt.Errorf("family %q has invalid input_size %d", name, spec.InputSize)
		}
		if spec.Normalization.Scale == 0 {
			return nil, fmt.Errorf("family %q has zero normalization scale", name)
		}
		c.families[spec.Name] = spec
	}

	for k := range c.treatments {
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)

	return c, nil
}

// Family returns the spec for the given family.
func (c *Catalog) Family(f Family) (FamilySpec, bool) {
	spec, ok := c.families[f]
	return spec, ok
}

// Families returns all family specs ordered by name.
func (c *Catalog) Families() []FamilySpec {
	out := make([]FamilySpec, 0, len(c.families))
	for _, spec := range c.families {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TreatmentCount returns the number of entries in the treatment table.
func (c *Catalog) TreatmentCount() int {
	return len(c.treatments)
}
