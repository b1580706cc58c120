package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scorpion-security/hub/internal/config"
	"github.com/scorpion-security/hub/internal/db"
)

// Open selects and initializes the persistence backend. When the remote
// service is configured and its liveness probe succeeds the remote backend is
// used; otherwise the SQL backend is opened, migrated and seeded. The probe
// runs once: a remote outage after startup surfaces as per-request errors.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.Supabase.Configured() {
		remote := NewSupabase(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey)
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		errPing := remote.Ping(probeCtx)
		cancel()
		if errPing == nil {
			log.Info("store: using remote supabase backend")
			return remote, nil
		}
		log.WithError(errPing).Warn("store: supabase probe failed, falling back to SQL backend")
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	if errSeed := db.Seed(conn); errSeed != nil {
		return nil, errSeed
	}
	sqlBacked := NewSQL(conn)
	log.Infof("store: using %s backend", sqlBacked.Kind())
	return sqlBacked, nil
}
