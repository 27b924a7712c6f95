package migrations

import (
	"fmt"
	"localfarmer/marketplace/schema"
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

/*
 * Every schema change after the initial one is appended here with the next id.
 * A clean database skips the list and is created from the current models by
 * InitSchema, after which all listed ids are recorded as applied.
 */
func versions() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "1_initial_schema",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(schema.AllModels()...)
			},
			Rollback: func(txn *gorm.DB) error {
				models := schema.AllModels()
				for i := len(models) - 1; i >= 0; i-- {
					if err := txn.Migrator().DropTable(models[i]); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			ID:      "2_users_email_index",
			Migrate: migrateUsersEmailIndex,
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropIndex(&schema.User{}, usersEmailIndex)
			},
		},
	}
}

const usersEmailIndex = "idx_users_email"

func migrateUsersEmailIndex(txn *gorm.DB) error {
	if txn.Migrator().HasIndex(&schema.User{}, usersEmailIndex) {
		return nil
	}
	return txn.Migrator().CreateIndex(&schema.User{}, usersEmailIndex)
}

func New(db *gorm.DB) *gormigrate.Gormigrate {
	migration := gormigrate.New(db, gormigrate.DefaultOptions, versions())

	migration.InitSchema(func(txn *gorm.DB) error {
		slog.Info("clean database detected, running full schema initialization")
		return txn.AutoMigrate(schema.AllModels()...)
	})

	return migration
}

func Migrate(db *gorm.DB) error {
	if err := New(db).Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func RollbackLast(db *gorm.DB) error {
	if err := New(db).RollbackLast(); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

type MigrationStatus struct {
	Id      string
	Applied bool
}

// Status lists every known migration in order and whether it has been recorded
// as applied.
func Status(db *gorm.DB) ([]MigrationStatus, error) {
	applied := map[string]bool{}

	table := gormigrate.DefaultOptions.TableName
	if db.Migrator().HasTable(table) {
		var ids []string
		result := db.Table(table).Pluck(gormigrate.DefaultOptions.IDColumnName, &ids)
		if result.Error != nil {
			return nil, fmt.Errorf("error reading applied migrations: %w", result.Error)
		}
		for _, id := range ids {
			applied[id] = true
		}
	}

	statuses := make([]MigrationStatus, 0)
	for _, m := range versions() {
		statuses = append(statuses, MigrationStatus{Id: m.ID, Applied: applied[m.ID]})
	}
	return statuses, nil
}
