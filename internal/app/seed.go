package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/teamrequest"
)

// Seed lists the organisations and memberships loaded at startup.
type Seed struct {
	Groups       []model.Group       `koanf:"groups"`
	Brands       []model.Brand       `koanf:"brands"`
	BrandMembers []model.BrandMember `koanf:"brand_members"`
	GroupMembers []model.GroupMember `koanf:"group_members"`
}

// ReadSeed parses a YAML seed file.
func ReadSeed(path string) (Seed, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Seed{}, fmt.Errorf("%w: %s: %w", ErrInvalidSeed, path, err)
	}
	var seed Seed
	if err := k.Unmarshal("", &seed); err != nil {
		return Seed{}, fmt.Errorf("%w: %s: %w", ErrInvalidSeed, path, err)
	}
	return seed, seed.Validate()
}

// Validate checks ids, roles and scopes. Owners may be seeded.
func (s Seed) Validate() error {
	for _, g := range s.Groups {
		if strings.TrimSpace(g.ID) == "" {
			return fmt.Errorf("%w: group without id", ErrInvalidSeed)
		}
	}
	for _, b := range s.Brands {
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("%w: brand without id", ErrInvalidSeed)
		}
	}
	check := func(kind, owner, profile string, role access.Role, scope access.Scope) error {
		if owner == "" || profile == "" {
			return fmt.Errorf("%w: %s member needs both ids", ErrInvalidSeed, kind)
		}
		if _, err := access.ParseRole(string(role)); err != nil {
			return fmt.Errorf("%w: %s member %s: %w", ErrInvalidSeed, kind, profile, err)
		}
		if err := scope.Validate(); err != nil {
			return fmt.Errorf("%w: %s member %s: %w", ErrInvalidSeed, kind, profile, err)
		}
		return nil
	}
	for _, m := range s.BrandMembers {
		if err := check("brand", m.BrandID, m.ProfileID, m.Role, m.Scope); err != nil {
			return err
		}
	}
	for _, m := range s.GroupMembers {
		if err := check("group", m.GroupID, m.ProfileID, m.Role, m.Scope); err != nil {
			return err
		}
	}
	return nil
}

// Apply writes the seed in dependency order. Brand members without a join
// time join at now.
func (s Seed) Apply(ctx context.Context, seeder teamrequest.Seeder, now time.Time) error {
	for _, g := range s.Groups {
		if err := seeder.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("seed group %s: %w", g.ID, err)
		}
	}
	for _, b := range s.Brands {
		if err := seeder.SaveBrand(ctx, b); err != nil {
			return fmt.Errorf("seed brand %s: %w", b.ID, err)
		}
	}
	for _, m := range s.BrandMembers {
		m.Role = access.Role(strings.ToLower(string(m.Role)))
		m.Scope = m.Scope.Normalize()
		if m.JoinedAt.IsZero() {
			m.JoinedAt = now.UTC()
		}
		if err := seeder.SaveBrandMember(ctx, m); err != nil {
			return fmt.Errorf("seed brand member %s/%s: %w", m.BrandID, m.ProfileID, err)
		}
	}
	for _, m := range s.GroupMembers {
		m.Role = access.Role(strings.ToLower(string(m.Role)))
		m.Scope = m.Scope.Normalize()
		if err := seeder.SaveGroupMember(ctx, m); err != nil {
			return fmt.Errorf("seed group member %s/%s: %w", m.GroupID, m.ProfileID, err)
		}
	}
	return nil
}
