package data

import (
	"gorm.io/gorm"

	"github.com/infrahq/broker/internal/server/data/migrator"
	"github.com/infrahq/broker/internal/server/models"
)

func migrate(db *gorm.DB) error {
	opts := migrator.Options{
		InitSchema: initializeSchema,
	}
	m := migrator.New(db, opts, migrations())
	return m.Migrate()
}

func migrations() []*migrator.Migration {
	return []*migrator.Migration{
		addConnectionTokenExpiresAtIndex(),
		backfillConnectOptions(),
		// next one here
	}
}

func initializeSchema(db *gorm.DB) error {
	tables := []interface{}{
		&models.ConnectionToken{},
		&models.Ticket{},
	}

	for _, table := range tables {
		if err := db.AutoMigrate(table); err != nil {
			return err
		}
	}

	return nil
}

const connectionTokenExpiresAtIndex = "idx_connection_tokens_expires_at"

// addConnectionTokenExpiresAtIndex speeds up the listing and counting of
// unexpired tokens.
func addConnectionTokenExpiresAtIndex() *migrator.Migration {
	return &migrator.Migration{
		ID: "202403051130",
		Migrate: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.ConnectionToken{}, connectionTokenExpiresAtIndex) {
				return nil
			}
			return tx.Migrator().CreateIndex(&models.ConnectionToken{}, connectionTokenExpiresAtIndex)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropIndex(&models.ConnectionToken{}, connectionTokenExpiresAtIndex)
		},
	}
}

// backfillConnectOptions replaces NULL connect options written before the
// column was populated on every insert.
func backfillConnectOptions() *migrator.Migration {
	return &migrator.Migration{
		ID: "202404181600",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec("UPDATE connection_tokens SET connect_options = '{}' WHERE connect_options IS NULL").Error
		},
	}
}
