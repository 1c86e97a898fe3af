// Package lens manages the recognized concept-type and relation
// vocabularies and the protected-type set.
package lens

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ckg/internal/kgerrors"
)

// TypeDef describes a recognized concept type.
type TypeDef struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// RelationDef describes a recognized relation name.
type RelationDef struct {
	Rel         string `yaml:"rel" json:"rel"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Symmetric   bool   `yaml:"symmetric,omitempty" json:"symmetric,omitempty"`
}

// Lens holds the vocabularies surfaced to the extraction agent and the
// protected types the orphan sweep never deletes. The golden sets are
// advisory: store-level validation accepts any non-empty string.
type Lens struct {
	GoldenTypes     []TypeDef     `yaml:"goldenTypes" json:"goldenTypes"`
	GoldenRelations []RelationDef `yaml:"goldenRelations" json:"goldenRelations"`
	ProtectedTypes  []string      `yaml:"protectedTypes" json:"protectedTypes"`
}

// Default returns the built-in lens.
func Default() *Lens {
	return &Lens{
		GoldenTypes: []TypeDef{
			{Type: "Entity", Description: "A domain object or data structure"},
			{Type: "Process", Description: "An operation, workflow, or algorithm"},
			{Type: "Actor", Description: "A user, service, or external system"},
			{Type: "Caveat", Description: "A constraint, gotcha, or annotation that must not be lost"},
		},
		GoldenRelations: []RelationDef{
			{Rel: "uses", Description: "Source depends on target"},
			{Rel: "contains", Description: "Source is composed of target"},
			{Rel: "produces", Description: "Source creates or emits target"},
			{Rel: "relates_to", Description: "Generic association", Symmetric: true},
		},
		ProtectedTypes: []string{"Caveat"},
	}
}

// Load reads a lens from a YAML file, returning the default lens when
// the file does not exist.
func Load(path string) (*Lens, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lens: %w", err)
	}

	var l Lens
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, kgerrors.Invalid("malformed lens file: " + err.Error())
	}
	return &l, nil
}

// Save writes the lens to a YAML file.
func (l *Lens) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating lens directory: %w", err)
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("encoding lens: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ListGoldenTypes returns the recognized concept types.
func (l *Lens) ListGoldenTypes() []TypeDef {
	return l.GoldenTypes
}

// ListGoldenRelations returns the recognized relation names.
func (l *Lens) ListGoldenRelations() []RelationDef {
	return l.GoldenRelations
}

// IsProtected reports whether concepts of the given type are exempt
// from garbage collection.
func (l *Lens) IsProtected(typ string) bool {
	for _, p := range l.ProtectedTypes {
		if strings.EqualFold(p, typ) {
			return true
		}
	}
	return false
}

// ValidateType checks a concept type. Any non-empty string passes; the
// golden set only shapes the extraction prompt.
func (l *Lens) ValidateType(typ string) error {
	if strings.TrimSpace(typ) == "" {
		return kgerrors.Required("concept type")
	}
	return nil
}

// ValidateRelation checks a relation name the same way.
func (l *Lens) ValidateRelation(rel string) error {
	if strings.TrimSpace(rel) == "" {
		return kgerrors.Required("edge relation")
	}
	return nil
}
