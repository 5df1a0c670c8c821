// Package rules is the brokerage rule registry: per-brokerage table geometry
// and extraction flags, loaded once from YAML and read-only afterwards.
package rules

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownBrokerage is returned by Registry.Get for identifiers not in the registry.
	ErrUnknownBrokerage = errors.New("unknown brokerage")

	// ErrInvalidConfig wraps every load-time validation failure.
	ErrInvalidConfig = errors.New("invalid brokerage config")
)

// Flavor selects the geometry strategy used by the PDF engine.
type Flavor string

const (
	// FlavorStream cuts text into cells using explicit column positions.
	FlavorStream Flavor = "stream"
	// FlavorLattice uses ruling lines drawn on the page.
	FlavorLattice Flavor = "lattice"
)

// RegionSpec locates one logical table on the page.
type RegionSpec struct {
	Areas     []Area
	Columns   [][]float64 // one list per area, or none
	FixHeader bool
}

// BrokerageConfig is the validated extraction template for one brokerage.
type BrokerageConfig struct {
	ID            string
	Name          string
	Flavor        Flavor
	Pages         PageSelector
	Password      string
	StripText     string
	Header        RegionSpec
	Main          RegionSpec
	Small         RegionSpec
	SmallSanitize bool
}

// Registry maps brokerage identifiers to their configuration.
type Registry struct {
	configs map[string]BrokerageConfig
}

// fileFormat mirrors the YAML layout.
type fileFormat struct {
	Brokerages map[string]brokerageYAML `yaml:"brokerages"`
}

type brokerageYAML struct {
	Name          string      `yaml:"name"`
	Flavor        string      `yaml:"flavor"`
	Pages         string      `yaml:"pages"`
	Password      string      `yaml:"password"`
	StripText     string      `yaml:"strip_text"`
	SmallSanitize bool        `yaml:"small_sanitize"`
	Header        *regionYAML `yaml:"header"`
	Main          *regionYAML `yaml:"main"`
	Small         *regionYAML `yaml:"small"`
}

type regionYAML struct {
	TableAreas []string `yaml:"table_areas"`
	Columns    []string `yaml:"columns"`
	FixHeader  bool     `yaml:"fix_header"`
}

// LoadFile reads and validates a registry file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse validates a registry document. Any invalid brokerage fails the whole load.
func Parse(data []byte) (*Registry, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(f.Brokerages) == 0 {
		return nil, fmt.Errorf("%w: no brokerages defined", ErrInvalidConfig)
	}

	reg := &Registry{configs: make(map[string]BrokerageConfig, len(f.Brokerages))}
	for id, raw := range f.Brokerages {
		key := strings.ToLower(strings.TrimSpace(id))
		if key == "" {
			return nil, fmt.Errorf("%w: empty brokerage identifier", ErrInvalidConfig)
		}
		if _, dup := reg.configs[key]; dup {
			return nil, fmt.Errorf("%w: brokerage %q defined twice", ErrInvalidConfig, key)
		}

		cfg, err := raw.validate(key)
		if err != nil {
			return nil, fmt.Errorf("%w: brokerage %q: %v", ErrInvalidConfig, key, err)
		}
		reg.configs[key] = cfg
	}

	return reg, nil
}

func (b brokerageYAML) validate(id string) (BrokerageConfig, error) {
	cfg := BrokerageConfig{
		ID:            id,
		Name:          strings.TrimSpace(b.Name),
		Flavor:        Flavor(strings.ToLower(strings.TrimSpace(b.Flavor))),
		Password:      b.Password,
		StripText:     b.StripText,
		SmallSanitize: b.SmallSanitize,
	}

	if cfg.Name == "" {
		return cfg, errors.New("name is required")
	}

	switch cfg.Flavor {
	case FlavorStream, FlavorLattice:
	case "":
		return cfg, errors.New("flavor is required")
	default:
		return cfg, fmt.Errorf("unsupported flavor %q", b.Flavor)
	}

	pages, err := ParsePageSelector(b.Pages)
	if err != nil {
		return cfg, err
	}
	cfg.Pages = pages

	regions := []struct {
		name string
		in   *regionYAML
		out  *RegionSpec
	}{
		{"header", b.Header, &cfg.Header},
		{"main", b.Main, &cfg.Main},
		{"small", b.Small, &cfg.Small},
	}
	for _, r := range regions {
		if r.in == nil {
			return cfg, fmt.Errorf("%s region is required", r.name)
		}
		spec, err := r.in.validate()
		if err != nil {
			return cfg, fmt.Errorf("%s region: %w", r.name, err)
		}
		*r.out = spec
	}

	return cfg, nil
}

func (r regionYAML) validate() (RegionSpec, error) {
	spec := RegionSpec{FixHeader: r.FixHeader}

	for _, s := range r.TableAreas {
		a, err := ParseArea(s)
		if err != nil {
			return spec, err
		}
		spec.Areas = append(spec.Areas, a)
	}

	if len(r.Columns) > 0 && len(r.Columns) != len(r.TableAreas) {
		return spec, fmt.Errorf("%d column lists for %d table areas", len(r.Columns), len(r.TableAreas))
	}
	for i, s := range r.Columns {
		cols, err := ParseColumns(s)
		if err != nil {
			return spec, err
		}
		a := spec.Areas[i]
		for _, x := range cols {
			if x < a.X1 || x > a.X2 {
				return spec, fmt.Errorf("column %g outside table area %q", x, r.TableAreas[i])
			}
		}
		spec.Columns = append(spec.Columns, cols)
	}

	return spec, nil
}

// Get returns the configuration for id. Unknown identifiers carry the closest
// known identifiers in the error message.
func (r *Registry) Get(id string) (BrokerageConfig, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	cfg, ok := r.configs[key]
	if !ok {
		if hints := r.suggest(key); len(hints) > 0 {
			return BrokerageConfig{}, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownBrokerage, id, strings.Join(hints, ", "))
		}
		return BrokerageConfig{}, fmt.Errorf("%w: %q", ErrUnknownBrokerage, id)
	}
	return cfg.clone(), nil
}

// IDs lists the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) suggest(key string) []string {
	if key == "" {
		return nil
	}
	ids := r.IDs()

	ranks := fuzzy.RankFindNormalizedFold(key, ids)
	for _, id := range ids {
		// also catch near-misses where the typed key is the longer string
		if fuzzy.MatchNormalizedFold(id, key) {
			ranks = append(ranks, fuzzy.Rank{Source: key, Target: id, Distance: len(key) - len(id)})
		}
	}
	sort.Sort(ranks)

	var out []string
	seen := make(map[string]bool)
	for _, rk := range ranks {
		if seen[rk.Target] {
			continue
		}
		seen[rk.Target] = true
		out = append(out, rk.Target)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func (c BrokerageConfig) clone() BrokerageConfig {
	c.Header = c.Header.clone()
	c.Main = c.Main.clone()
	c.Small = c.Small.clone()
	c.Pages = append(PageSelector(nil), c.Pages...)
	return c
}

func (s RegionSpec) clone() RegionSpec {
	s.Areas = append([]Area(nil), s.Areas...)
	cols := make([][]float64, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = append([]float64(nil), c...)
	}
	if s.Columns == nil {
		cols = nil
	}
	s.Columns = cols
	return s
}
