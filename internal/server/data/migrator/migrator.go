package migrator

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/infrahq/broker/internal/logging"
)

const initSchemaMigrationID = "SCHEMA_INIT"

// Options used by the Migrator to perform database migrations.
type Options struct {
	// UseTransaction runs all the migrations in a single transaction.
	UseTransaction bool

	// InitSchema is used to create the database when no migrations table exists.
	// This function should create all tables, and constraints. After this
	// function is run, migrator will create the migrations table and populate
	// it with the IDs of all the currently defined migrations.
	InitSchema func(*gorm.DB) error
}

// DefaultOptions can be used if you don't want to think about options.
var DefaultOptions = Options{}

// Migration defines a database migration, and an optional rollback.
type Migration struct {
	// ID is the migration identifier. Usually a timestamp like "201601021504".
	ID string
	// Migrate is a function that will br executed while running this migration.
	Migrate func(*gorm.DB) error
	// Rollback will be executed on rollback. Can be nil.
	Rollback func(*gorm.DB) error
}

// Migrator performs database migrations.
type Migrator struct {
	db         *gorm.DB
	tx         *gorm.DB
	options    Options
	migrations []*Migration
}

// New returns a new Migrator.
func New(db *gorm.DB, options Options, migrations []*Migration) *Migrator {
	return &Migrator{
		db:         db,
		options:    options,
		migrations: migrations,
	}
}

// Migrate runs all the migrations that have not yet been applied to the
// database. Migrate may follow one of three flows:
//
//  1. If the initial schema has not yet been applied then Migrate will run
//     Options.InitSchema, and then exit.
//  2. If all the migrations have already been applied then Migrate will do
//     nothing.
//  3. If there are migrations in the list that have not yet been applied then
//     Migrate will run them in order.
func (g *Migrator) Migrate() error {
	if g.options.InitSchema == nil && len(g.migrations) == 0 {
		return fmt.Errorf("there are no migrations")
	}
	if err := g.validate(); err != nil {
		return err
	}

	return g.inTransaction(func() error {
		if err := g.createMigrationTableIfNotExists(); err != nil {
			return err
		}

		initSchema, err := g.mustInitializeSchema()
		switch {
		case err != nil:
			return err
		case initSchema:
			return g.runInitSchema()
		}

		for _, migration := range g.migrations {
			if err := g.runMigration(migration); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *Migrator) inTransaction(fn func() error) error {
	if !g.options.UseTransaction {
		g.tx = g.db
		return fn()
	}

	return g.db.Transaction(func(tx *gorm.DB) error {
		g.tx = tx
		defer func() { g.tx = nil }()
		return fn()
	})
}

func (g *Migrator) validate() error {
	lookup := make(map[string]struct{}, len(g.migrations))

	for _, m := range g.migrations {
		switch m.ID {
		case "":
			return fmt.Errorf("migration is missing an ID")
		case initSchemaMigrationID:
			return fmt.Errorf("migration can not use reserved ID: %v", m.ID)
		}
		if _, ok := lookup[m.ID]; ok {
			return fmt.Errorf("duplicate migration ID: %v", m.ID)
		}
		lookup[m.ID] = struct{}{}
	}
	return nil
}

func (g *Migrator) checkIDExist(migrationID string) error {
	if migrationID == initSchemaMigrationID {
		return nil
	}
	for _, migrate := range g.migrations {
		if migrate.ID == migrationID {
			return nil
		}
	}
	return fmt.Errorf("migration ID %v does not exist", migrationID)
}

// RollbackTo undoes migrations up to the given migration that matches the `migrationID`.
// Migration with the matching `migrationID` is not rolled back.
func (g *Migrator) RollbackTo(migrationID string) error {
	if len(g.migrations) == 0 {
		return fmt.Errorf("there are no migrations")
	}

	if err := g.checkIDExist(migrationID); err != nil {
		return err
	}

	return g.inTransaction(func() error {
		for i := len(g.migrations) - 1; i >= 0; i-- {
			migration := g.migrations[i]
			if migration.ID == migrationID {
				break
			}
			switch migrationRan, err := g.migrationRan(migration); {
			case err != nil:
				return err
			case migrationRan:
				if err := g.rollbackMigration(migration); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (g *Migrator) rollbackMigration(m *Migration) error {
	if m.Rollback == nil {
		return errors.New("migration can not be rollback back")
	}

	if err := m.Rollback(g.tx); err != nil {
		return err
	}
	return g.tx.Exec("DELETE FROM migrations WHERE id = ?", m.ID).Error
}

func (g *Migrator) runInitSchema() error {
	if err := g.options.InitSchema(g.tx); err != nil {
		return err
	}
	if err := g.insertMigration(initSchemaMigrationID); err != nil {
		return err
	}
	for _, migration := range g.migrations {
		if err := g.insertMigration(migration.ID); err != nil {
			return err
		}
	}
	return nil
}

func (g *Migrator) runMigration(migration *Migration) error {
	switch migrationRan, err := g.migrationRan(migration); {
	case err != nil:
		return err
	case migrationRan:
		return nil
	}

	logging.Infof("running migration %s", migration.ID)
	if err := migration.Migrate(g.tx); err != nil {
		return fmt.Errorf("failed to apply migration %v: %w", migration.ID, err)
	}
	return g.insertMigration(migration.ID)
}

func (g *Migrator) createMigrationTableIfNotExists() error {
	if g.tx.Migrator().HasTable("migrations") {
		return nil
	}

	return g.tx.Exec("CREATE TABLE migrations (id VARCHAR(255) PRIMARY KEY)").Error
}

func (g *Migrator) migrationRan(m *Migration) (bool, error) {
	var count int64
	err := g.tx.Table("migrations").Where("id = ?", m.ID).Count(&count).Error
	return count > 0, err
}

// mustInitializeSchema returns true when InitSchema is set and no migration,
// including the schema init, has been recorded yet.
func (g *Migrator) mustInitializeSchema() (bool, error) {
	if g.options.InitSchema == nil {
		return false, nil
	}

	migrationRan, err := g.migrationRan(&Migration{ID: initSchemaMigrationID})
	if err != nil {
		return false, err
	}
	if migrationRan {
		return false, nil
	}

	var count int64
	err = g.tx.Table("migrations").Count(&count).Error
	return count == 0, err
}

func (g *Migrator) insertMigration(id string) error {
	return g.tx.Exec("INSERT INTO migrations (id) VALUES (?)", id).Error
}
