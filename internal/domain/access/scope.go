package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidScope is returned by Validate.
var ErrInvalidScope = errors.New("invalid scope")

// GeoGlobal is the geographic scope that covers every region.
const GeoGlobal = "global"

// Scope bounds where a role applies.
//
// Divisions is only consulted when AllDivisions is false; an empty Divisions
// set with AllDivisions false covers no division at all.
type Scope struct {
	Geographic   string   `json:"geographic" yaml:"geographic" koanf:"geographic"`
	Divisions    []string `json:"divisions,omitempty" yaml:"divisions" koanf:"divisions"`
	AllDivisions bool     `json:"all_divisions" yaml:"all_divisions" koanf:"all_divisions"`
}

// GlobalScope covers every region and every division.
func GlobalScope() Scope {
	return Scope{Geographic: GeoGlobal, AllDivisions: true}
}

// Normalize lower-cases the region, sorts and de-duplicates divisions and
// drops the division list when AllDivisions is set.
func (s Scope) Normalize() Scope {
	out := Scope{
		Geographic:   strings.ToLower(strings.TrimSpace(s.Geographic)),
		AllDivisions: s.AllDivisions,
	}
	if s.AllDivisions {
		return out
	}
	seen := make(map[string]struct{}, len(s.Divisions))
	for _, d := range s.Divisions {
		d = DivisionKey(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out.Divisions = append(out.Divisions, d)
	}
	sort.Strings(out.Divisions)
	return out
}

// Validate checks that a geographic scope is set and that the scope reaches at
// least one division.
func (s Scope) Validate() error {
	n := s.Normalize()
	if n.Geographic == "" {
		return fmt.Errorf("%w: geographic scope is required", ErrInvalidScope)
	}
	if !n.AllDivisions && len(n.Divisions) == 0 {
		return fmt.Errorf("%w: divisions must be listed or all_divisions set", ErrInvalidScope)
	}
	return nil
}

// IsGlobal reports whether the scope covers every region.
func (s Scope) IsGlobal() bool { return s.Geographic == GeoGlobal }

// HasDivision reports whether division d is covered.
func (s Scope) HasDivision(d string) bool {
	if s.AllDivisions {
		return true
	}
	for _, x := range s.Divisions {
		if x == d {
			return true
		}
	}
	return false
}

// Contains reports whether every place target reaches is also reached by s.
// Both scopes are expected in normalized form.
func (s Scope) Contains(target Scope) bool {
	if s.Geographic == "" {
		return false
	}
	if !s.IsGlobal() && s.Geographic != target.Geographic {
		return false
	}
	if s.AllDivisions {
		return true
	}
	if target.AllDivisions {
		return false
	}
	for _, d := range target.Divisions {
		if !s.HasDivision(d) {
			return false
		}
	}
	return true
}

// DivisionKey turns a division label into its slug: "Leather Goods" and
// "leather-goods" both become "leather_goods".
func DivisionKey(label string) string {
	label = strings.ReplaceAll(strings.ToLower(label), "-", " ")
	return strings.Join(strings.Fields(label), "_")
}
