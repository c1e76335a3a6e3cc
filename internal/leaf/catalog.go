package leaf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/behave/internal/bt"
)

// Entry aliases a builtin Kind under a script name with default properties.
type Entry struct {
	Name       string            `yaml:"name"`
	Category   bt.Category       `yaml:"category"`
	Kind       Kind              `yaml:"kind"`
	Properties map[string]string `yaml:"properties"`
}

// Catalog is a set of leaf aliases.
type Catalog struct {
	Leaves []*Entry `yaml:"leaves"`
}

// Validate checks every entry.
//
// Postcondition: nil return guarantees every entry has a name, a kind valid
// for its category, and that no name repeats within a category.
func (c *Catalog) Validate() error {
	seen := make(map[bt.Category]map[string]struct{})
	for i, e := range c.Leaves {
		if e == nil {
			return fmt.Errorf("leaf.Catalog: entry %d is empty", i)
		}
		if e.Name == "" {
			return fmt.Errorf("leaf.Catalog: entry %d has no name", i)
		}
		if e.Category != bt.CategoryAction && e.Category != bt.CategoryCondition {
			return fmt.Errorf("leaf.Catalog: %q has unknown category %q", e.Name, e.Category)
		}
		if _, ok := kinds[e.Kind]; !ok {
			return fmt.Errorf("leaf.Catalog: %q has unknown kind %q", e.Name, e.Kind)
		}
		if !Supports(e.Kind, e.Category) {
			return fmt.Errorf("leaf.Catalog: %q: kind %q cannot be a %s", e.Name, e.Kind, e.Category)
		}
		if seen[e.Category] == nil {
			seen[e.Category] = make(map[string]struct{})
		}
		if _, dup := seen[e.Category][e.Name]; dup {
			return fmt.Errorf("leaf.Catalog: duplicate %s %q", e.Category, e.Name)
		}
		seen[e.Category][e.Name] = struct{}{}
	}
	return nil
}

// Merge appends other's entries to c.
func (c *Catalog) Merge(other *Catalog) {
	if other != nil {
		c.Leaves = append(c.Leaves, other.Leaves...)
	}
}

// yamlCatalogFile wraps the YAML top-level key.
type yamlCatalogFile struct {
	Catalog *Catalog `yaml:"catalog"`
}

// ParseCatalog decodes one catalog document.
//
// Postcondition: returns error if the document lacks the top-level 'catalog'
// key or fails validation.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f yamlCatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("leaf.ParseCatalog: %w", err)
	}
	if f.Catalog == nil {
		return nil, errors.New("leaf.ParseCatalog: missing top-level 'catalog' key")
	}
	if err := f.Catalog.Validate(); err != nil {
		return nil, err
	}
	return f.Catalog, nil
}

// LoadCatalog reads every *.yaml and *.yml file in dir, in name order, and
// merges them into one Catalog.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns error if any file fails to parse or the merged
// catalog fails validation. A directory without catalog files yields an
// empty Catalog.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("leaf.LoadCatalog: reading %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(e.Name())); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := &Catalog{}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("leaf.LoadCatalog: reading %s: %w", name, err)
		}
		c, err := ParseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("leaf.LoadCatalog: %s: %w", name, err)
		}
		out.Merge(c)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("leaf.LoadCatalog: %w", err)
	}
	return out, nil
}

// RegisterCatalog registers every entry of c in reg. Each factory applies the
// entry's default properties, in key order, before returning the node, so
// properties written in a tree file override them.
//
// Postcondition: returns the first registration error, e.g. a collision with
// a builtin name.
func RegisterCatalog(reg *bt.Registry, c *Catalog, deps Deps) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("leaf.RegisterCatalog: %w", err)
	}
	for _, e := range c.Leaves {
		base, err := Factory(e.Kind, e.Category, deps)
		if err != nil {
			return fmt.Errorf("leaf.RegisterCatalog: %q: %w", e.Name, err)
		}
		keys := make([]string, 0, len(e.Properties))
		for k := range e.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		defaults := e.Properties
		f := func() bt.Node {
			n := base()
			for _, k := range keys {
				n.SetProperty(k, defaults[k])
			}
			return n
		}
		if err := reg.Register(e.Category, e.Name, f); err != nil {
			return fmt.Errorf("leaf.RegisterCatalog: %w", err)
		}
	}
	return nil
}
