package migrator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gotest.tools/v3/assert"
)

type Token struct {
	gorm.Model
	Value string
}

type Review struct {
	gorm.Model
	TokenID int
}

type Note struct {
	gorm.Model
	Body string
}

var migrations = []*Migration{
	{
		ID: "202301101400",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&Token{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("tokens")
		},
	},
	{
		ID: "202301101430",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&Review{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("reviews")
		},
	},
}

func extendedMigrations() []*Migration {
	return append(append([]*Migration{}, migrations...), &Migration{
		ID: "202302011200",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&Note{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("notes")
		},
	})
}

func TestMigration(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, db *gorm.DB) {
		m := New(db, DefaultOptions, migrations)

		err := m.Migrate()
		assert.NilError(t, err)
		assert.Assert(t, db.Migrator().HasTable(&Token{}))
		assert.Assert(t, db.Migrator().HasTable(&Review{}))
		assert.Equal(t, int64(2), tableCount(t, db, "migrations"))

		// a second run is a no-op
		assert.NilError(t, m.Migrate())
		assert.Equal(t, int64(2), tableCount(t, db, "migrations"))

		err = m.RollbackTo(migrations[0].ID)
		assert.NilError(t, err)
		assert.Assert(t, db.Migrator().HasTable(&Token{}))
		assert.Assert(t, !db.Migrator().HasTable(&Review{}))
		assert.Equal(t, int64(1), tableCount(t, db, "migrations"))

		err = m.RollbackTo(initSchemaMigrationID)
		assert.NilError(t, err)
		assert.Assert(t, !db.Migrator().HasTable(&Token{}))
		assert.Equal(t, int64(0), tableCount(t, db, "migrations"))
	})
}

func TestRollbackTo(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, db *gorm.DB) {
		m := New(db, DefaultOptions, extendedMigrations())

		assert.NilError(t, m.Migrate())
		assert.Equal(t, int64(3), tableCount(t, db, "migrations"))

		err := m.RollbackTo("202301101400")
		assert.NilError(t, err)
		assert.Assert(t, db.Migrator().HasTable(&Token{}))
		assert.Assert(t, !db.Migrator().HasTable(&Review{}))
		assert.Assert(t, !db.Migrator().HasTable(&Note{}))
		assert.Equal(t, int64(1), tableCount(t, db, "migrations"))

		err = m.RollbackTo("999999999999")
		assert.ErrorContains(t, err, "migration ID 999999999999 does not exist")
	})
}

func TestInitSchema(t *testing.T) {
	t.Run("with no migrations", func(t *testing.T) {
		forEachDatabase(t, func(t *testing.T, db *gorm.DB) {
			options := Options{InitSchema: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Token{}, &Review{})
			}}
			m := New(db, options, nil)

			assert.NilError(t, m.Migrate())
			assert.Assert(t, db.Migrator().HasTable(&Token{}))
			assert.Assert(t, db.Migrator().HasTable(&Review{}))
			assert.Equal(t, int64(1), tableCount(t, db, "migrations"))
		})
	})

	t.Run("migration ids are recorded but not run", func(t *testing.T) {
		forEachDatabase(t, func(t *testing.T, db *gorm.DB) {
			options := Options{InitSchema: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Token{})
			}}
			m := New(db, options, migrations)

			assert.NilError(t, m.Migrate())
			assert.Assert(t, db.Migrator().HasTable(&Token{}))
			assert.Assert(t, !db.Migrator().HasTable(&Review{}))
			assert.Equal(t, int64(3), tableCount(t, db, "migrations"))
		})
	})

	t.Run("not run when migrations already exist", func(t *testing.T) {
		forEachDatabase(t, func(t *testing.T, db *gorm.DB) {
			assert.NilError(t, New(db, DefaultOptions, migrations).Migrate())

			options := Options{InitSchema: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Note{})
			}}
			assert.NilError(t, New(db, options, migrations).Migrate())

			assert.Assert(t, !db.Migrator().HasTable(&Note{}))
			assert.Equal(t, int64(2), tableCount(t, db, "migrations"))
		})
	})
}

func TestValidate(t *testing.T) {
	noop := func(tx *gorm.DB) error { return nil }

	type testCase struct {
		migrations  []*Migration
		expectedErr string
	}

	run := func(t *testing.T, tc testCase) {
		forEachDatabase(t, func(t *testing.T, db *gorm.DB) {
			err := New(db, DefaultOptions, tc.migrations).Migrate()
			assert.ErrorContains(t, err, tc.expectedErr)
		})
	}

	testCases := map[string]testCase{
		"missing id": {
			migrations:  []*Migration{{Migrate: noop}},
			expectedErr: "migration is missing an ID",
		},
		"reserved id": {
			migrations:  []*Migration{{ID: "SCHEMA_INIT", Migrate: noop}},
			expectedErr: "migration can not use reserved ID",
		},
		"duplicate id": {
			migrations:  []*Migration{{ID: "202305061500", Migrate: noop}, {ID: "202305061500", Migrate: noop}},
			expectedErr: "duplicate migration ID: 202305061500",
		},
		"empty list": {
			migrations:  []*Migration{},
			expectedErr: "there are no migrations",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			run(t, tc)
		})
	}
}

func TestMigration_WithUseTransactionShouldRollback(t *testing.T) {
	options := DefaultOptions
	options.UseTransaction = true

	failing := []*Migration{
		{
			ID: "202304231300",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Note{}); err != nil {
					return err
				}
				return errors.New("this transaction should be rolled back")
			},
		},
	}

	forEachDatabase(t, func(t *testing.T, db *gorm.DB) {
		m := New(db, options, failing)

		err := m.Migrate()
		assert.ErrorContains(t, err, "this transaction should be rolled back")
		assert.Assert(t, !db.Migrator().HasTable(&Note{}))
		assert.Assert(t, !db.Migrator().HasTable("migrations"))
	})
}

func tableCount(t *testing.T, db *gorm.DB, tableName string) (count int64) {
	assert.NilError(t, db.Table(tableName).Count(&count).Error)
	return
}

func forEachDatabase(t *testing.T, fn func(t *testing.T, database *gorm.DB)) {
	dir := t.TempDir()

	drivers := []gorm.Dialector{
		sqlite.Open("file:" + filepath.Join(dir, "sqlite3.db")),
	}

	if pg := os.Getenv("POSTGRESQL_CONNECTION"); pg != "" {
		drivers = append(drivers, postgres.Open(pg))
	}

	for _, driver := range drivers {
		t.Run(driver.Name(), func(t *testing.T) {
			db, err := gorm.Open(driver, &gorm.Config{})
			assert.NilError(t, err)

			assert.NilError(t, db.Migrator().DropTable("migrations", "tokens", "reviews", "notes"))

			fn(t, db)
		})
	}
}
