package identity

import (
	"context"
	"embed"
	"io/fs"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the SQL migrations for the identity tables, rooted
// at the migrations directory.
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrations returns the discovered migration set
func Migrations() (*migrate.Migrations, error) {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(GetMigrationsFS()); err != nil {
		return nil, wrapStoreErr(err, "discover identity migrations")
	}
	return migrations, nil
}

// Migrate applies every pending identity migration to db.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, wrapStoreErr(err, "init migrations table")
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, wrapStoreErr(err, "lock migrations")
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, wrapStoreErr(err, "apply identity migrations")
	}
	return group, nil
}
