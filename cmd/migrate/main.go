package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/pkg/logger"
	"relaydesk/internal/platform/config"
	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/repositories"
)

func main() {
	target := flag.String("target", database.TargetGlobal, "Migration target: global or tenant")
	direction := flag.String("direction", "up", "Migration direction: up or down")
	orgID := flag.String("org", "", "Organization ID (tenant migrations; empty means every organization)")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.Logging)

	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to global DB")
	}
	defer globalDB.Close()

	switch *target {
	case database.TargetGlobal:
		if err := database.Migrate(globalDB, database.TargetGlobal, *direction); err != nil {
			log.Fatal().Err(err).Msg("Global migration failed")
		}
	case database.TargetTenant:
		ids := []string{*orgID}
		if *orgID == "" {
			orgs, err := repositories.NewOrganizationRepository(globalDB).List(context.Background())
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to list organizations")
			}
			ids = ids[:0]
			for _, org := range orgs {
				ids = append(ids, org.ID)
			}
		}

		pool := database.NewTenantDBPool(cfg.Database.Tenant)
		defer pool.CloseAll()
		for _, id := range ids {
			// Opening a tenant database applies pending up migrations.
			db, err := pool.ForTenant(id)
			if err != nil {
				log.Fatal().Err(err).Str("tenant_id", id).Msg("Failed to open tenant DB")
			}
			if err := database.Migrate(db, database.TargetTenant, *direction); err != nil {
				log.Fatal().Err(err).Str("tenant_id", id).Msg("Tenant migration failed")
			}
			log.Info().Str("tenant_id", id).Str("direction", *direction).Msg("Tenant migrated")
		}
	default:
		log.Fatal().Msg("Invalid target: must be 'global' or 'tenant'")
	}

	fmt.Println("Migration completed successfully")
}
