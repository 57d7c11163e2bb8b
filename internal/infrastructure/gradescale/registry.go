// Package gradescale loads grade scales from YAML and resolves the scale a
// university grades with.
package gradescale

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fastresult/results-core/internal/domain/grading"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ══════════════════════════════════════════════════════════════════════════════
// FILE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// File is the YAML document layout.
//
//	default: five-point
//	universities:
//	  unilag: five-point
//	scales:
//	  - name: five-point
//	    bands:
//	      - {letter: A, min: "70", max: "100", point: "5.0"}
type File struct {
	Default      string            `yaml:"default"`
	Universities map[string]string `yaml:"universities"`
	Scales       []ScaleDTO        `yaml:"scales"`
}

// ScaleDTO is one named scale. Numbers are strings so they parse exactly.
type ScaleDTO struct {
	Name  string    `yaml:"name"`
	Bands []BandDTO `yaml:"bands"`
}

// BandDTO is one grade band.
type BandDTO struct {
	Letter string `yaml:"letter"`
	Min    string `yaml:"min"`
	Max    string `yaml:"max"`
	Point  string `yaml:"point"`
}

func (dto BandDTO) toDomain(scale string) (grading.Band, error) {
	parse := func(field, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("scale %q band %q: bad %s %q: %w", scale, dto.Letter, field, v, shared.ErrGradeScale)
		}
		return d, nil
	}

	minV, err := parse("min", dto.Min)
	if err != nil {
		return grading.Band{}, err
	}
	maxV, err := parse("max", dto.Max)
	if err != nil {
		return grading.Band{}, err
	}
	point, err := parse("point", dto.Point)
	if err != nil {
		return grading.Band{}, err
	}
	return grading.Band{Letter: dto.Letter, Min: minV, Max: maxV, Point: point}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry implements grading.ScaleLookup.
type Registry struct {
	mu           sync.RWMutex
	scales       map[string]*grading.Scale
	universities map[string]string
	fallback     *grading.Scale
}

// NewRegistry creates a registry that resolves every university to the
// built-in default scale.
func NewRegistry() *Registry {
	def := grading.DefaultScale()
	return &Registry{
		scales:       map[string]*grading.Scale{def.Name(): def},
		universities: make(map[string]string),
		fallback:     def,
	}
}

// LoadFile reads a YAML scale file. An empty path yields the default registry.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grade scale file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a registry from a YAML document. Every scale is validated up
// front; a broken band fails the whole load.
func Parse(raw []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse grade scale file: %v: %w", err, shared.ErrGradeScale)
	}

	r := NewRegistry()
	for _, dto := range f.Scales {
		bands := make([]grading.Band, 0, len(dto.Bands))
		for _, b := range dto.Bands {
			band, err := b.toDomain(dto.Name)
			if err != nil {
				return nil, err
			}
			bands = append(bands, band)
		}
		scale, err := grading.NewScale(dto.Name, bands)
		if err != nil {
			return nil, err
		}
		if err := r.Register(scale); err != nil {
			return nil, err
		}
	}

	if f.Default != "" {
		def, ok := r.scales[f.Default]
		if !ok {
			return nil, fmt.Errorf("default scale %q is not defined: %w", f.Default, shared.ErrGradeScale)
		}
		r.fallback = def
	}
	for university, name := range f.Universities {
		if err := r.Assign(university, name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a named scale.
func (r *Registry) Register(scale *grading.Scale) error {
	if scale == nil {
		return fmt.Errorf("nil scale: %w", shared.ErrGradeScale)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scales[scale.Name()] = scale
	return nil
}

// Assign makes a university grade with the named scale.
func (r *Registry) Assign(universityID, scaleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scales[scaleName]; !ok {
		return fmt.Errorf("university %s: scale %q is not defined: %w", universityID, scaleName, shared.ErrGradeScale)
	}
	r.universities[universityID] = scaleName
	return nil
}

// Lookup implements grading.ScaleLookup. Universities without their own scale
// use the default one.
func (r *Registry) Lookup(ctx context.Context, universityID string) (*grading.Scale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.universities[universityID]; ok {
		return r.scales[name], nil
	}
	return r.fallback, nil
}

// Names lists the registered scale names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.scales))
	for name := range r.scales {
		out = append(out, name)
	}
	return out
}

var _ grading.ScaleLookup = (*Registry)(nil)
