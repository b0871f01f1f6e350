package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/academicchain/platform/internal/model"
	"github.com/academicchain/platform/internal/store"
)

// Seed describes initial state loaded into an empty store: partner
// institutions and pre-provisioned API keys. Seed keys carry the raw secret
// in the file (so it can be handed to the calling service out of band); only
// its hash reaches the store.
type Seed struct {
	Institutions []SeedInstitution `yaml:"institutions"`
	APIKeys      []SeedAPIKey      `yaml:"api_keys"`
}

// SeedInstitution is one institution in a seed file.
type SeedInstitution struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Slug          string `yaml:"slug"`
	Status        string `yaml:"status"`
	Plan          string `yaml:"plan"`
	Credits       int64  `yaml:"credits"`
	Emissions     int64  `yaml:"emissions"`
	Verifications int64  `yaml:"verifications"`
}

// SeedAPIKey is one pre-provisioned key in a seed file. InstitutionID may be
// the "admin" sentinel for platform-level keys.
type SeedAPIKey struct {
	Key           string     `yaml:"key"`
	Name          string     `yaml:"name"`
	Role          string     `yaml:"role"`
	InstitutionID string     `yaml:"institution_id"`
	ExpiresAt     *time.Time `yaml:"expires_at"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// Apply inserts the seed data into the store. Institutions that already exist
// (by ID) and keys whose digest is already present are skipped, so applying
// the same seed on every start is harmless.
func (seed *Seed) Apply(ctx context.Context, s *store.Store) error {
	for _, si := range seed.Institutions {
		if si.ID != "" {
			if _, err := s.GetInstitution(ctx, si.ID); err == nil {
				continue
			} else if err != store.ErrNotFound {
				return err
			}
		}
		inst := &model.Institution{
			ID:            si.ID,
			Name:          si.Name,
			Slug:          si.Slug,
			Status:        si.Status,
			Plan:          si.Plan,
			Credits:       si.Credits,
			Emissions:     si.Emissions,
			Verifications: si.Verifications,
		}
		if err := s.CreateInstitution(ctx, inst); err != nil {
			return fmt.Errorf("seed institution %q: %w", si.Name, err)
		}
	}

	for _, sk := range seed.APIKeys {
		hash := store.HashAPIKey(sk.Key)
		if _, err := s.GetActiveAPIKeyByHash(ctx, hash); err == nil {
			continue
		} else if err != store.ErrNotFound {
			return err
		}
		role := sk.Role
		if role == "" {
			role = "institution_admin"
		}
		prefix := sk.Key
		if len(prefix) > 16 {
			prefix = prefix[:16]
		}
		key := &model.APIKey{
			InstitutionID: sk.InstitutionID,
			Name:          sk.Name,
			Role:          role,
			KeyPrefix:     prefix,
			KeyHash:       hash,
			IsActive:      true,
			ExpiresAt:     sk.ExpiresAt,
		}
		if err := s.CreateAPIKey(ctx, key); err != nil {
			return fmt.Errorf("seed api key %q: %w", sk.Name, err)
		}
	}
	return nil
}
