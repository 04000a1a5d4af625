package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/registry/service"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// serverRegistry is service.Registry plus the insert used by the seed file.
type serverRegistry interface {
	service.Registry
	Register(ctx context.Context, rec *model.RegistrationRecord) error
}

type seedServer struct {
	Domain       string   `mapstructure:"domain"`
	Endpoint     string   `mapstructure:"endpoint"`
	Capabilities []string `mapstructure:"capabilities"`
	ContactEmail string   `mapstructure:"contact_email"`
	Description  string   `mapstructure:"description"`
}

// seedRegistry registers every server listed under "servers" in path.
// Domains that already have a registration are skipped, so restarting
// against a persistent database is safe. Seeded records start unverified.
func seedRegistry(ctx context.Context, reg serverRegistry, path string, logger *zap.Logger) (int, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var servers []seedServer
	if err := v.UnmarshalKey("servers", &servers); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	added := 0
	for i, s := range servers {
		domain := strings.ToLower(strings.TrimSpace(s.Domain))
		if domain == "" {
			return added, fmt.Errorf("seed entry %d: domain is required", i)
		}
		existing, err := reg.GetServersByDomain(ctx, domain)
		if err != nil {
			return added, fmt.Errorf("seed %s: %w", domain, err)
		}
		if len(existing) > 0 {
			logger.Debug("seed: domain already registered", zap.String("domain", domain))
			continue
		}
		rec := &model.RegistrationRecord{
			Domain:       domain,
			Endpoint:     s.Endpoint,
			Capabilities: s.Capabilities,
			ContactEmail: s.ContactEmail,
			Description:  s.Description,
		}
		if err := reg.Register(ctx, rec); err != nil {
			return added, fmt.Errorf("seed %s: %w", domain, err)
		}
		added++
	}
	return added, nil
}
