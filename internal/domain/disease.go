package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks malformed input detected before any write. Callers can
// distinguish it from store or computation failures with errors.Is.
var ErrValidation = errors.New("invalid input")

// ErrUnknownDisease is returned when a disease identifier is not in the
// registry. It wraps ErrValidation.
var ErrUnknownDisease = fmt.Errorf("%w: unknown disease", ErrValidation)

// DiseaseRegistry validates disease identifiers. The disease string is the
// partition key for every collection, so unchecked free text would let a
// typo silently create a new partition; unregistered identifiers are
// rejected instead.
type DiseaseRegistry struct {
	known map[string]struct{}
}

// NewDiseaseRegistry builds a registry from the given identifiers, which are
// normalized on the way in.
func NewDiseaseRegistry(names ...string) *DiseaseRegistry {
	r := &DiseaseRegistry{known: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if norm := NormalizeDisease(n); norm != "" {
			r.known[norm] = struct{}{}
		}
	}
	return r
}

// DefaultDiseases are the surveillance targets registered out of the box.
func DefaultDiseases() []string {
	return []string{"dengue", "malaria", "zika", "chikungunya", "cholera", "influenza"}
}

// NewDefaultRegistry returns a registry preloaded with DefaultDiseases.
func NewDefaultRegistry() *DiseaseRegistry {
	return NewDiseaseRegistry(DefaultDiseases()...)
}

// NormalizeDisease lowercases, trims, and underscores a disease identifier
// so that "Dengue Fever" and "dengue_fever" address the same partition.
func NormalizeDisease(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

// Validate normalizes an identifier and checks it against the registry.
// Returns the normalized identifier or ErrUnknownDisease.
func (r *DiseaseRegistry) Validate(s string) (string, error) {
	norm := NormalizeDisease(s)
	if norm == "" {
		return "", fmt.Errorf("%w: empty disease", ErrValidation)
	}
	if _, ok := r.known[norm]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDisease, s)
	}
	return norm, nil
}

// Known reports the registered identifiers in no particular order.
func (r *DiseaseRegistry) Known() []string {
	out := make([]string, 0, len(r.known))
	for k := range r.known {
		out = append(out, k)
	}
	return out
}
