package teamauth

import (
	"context"

	"github.com/dossier-crm/teamauth/internal/stores"
	"gorm.io/gorm"
)

// PoolOptions tunes the database/sql pool behind [OpenPostgres].
type PoolOptions = stores.PoolOptions

func DefaultPoolOptions() PoolOptions {
	return stores.DefaultPoolOptions()
}

// OpenPostgres opens and pings a PostgreSQL-backed gorm handle for [Builder.WithDatabase].
func OpenPostgres(ctx context.Context, dsn string, pool PoolOptions) (*gorm.DB, error) {
	return stores.Connect(ctx, dsn, pool)
}

// GormConfig returns the gorm settings the engine expects. Handles opened with another
// dialect, such as SQLite in tests, should use it so duplicate keys are translated.
func GormConfig() *gorm.Config {
	return stores.GormConfig()
}

// Migrate creates or updates the teams, users, sessions, invites, password_resets,
// email_verifications and audit_logs tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return stores.Migrate(ctx, db)
}

// CloseDatabase releases the pool behind db.
func CloseDatabase(db *gorm.DB) error {
	return stores.Close(db)
}
