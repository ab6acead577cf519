package database

import (
	"fmt"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gotest.tools/v3/assert"

	"github.com/infrahq/broker/internal/generate"
)

type TestingT interface {
	assert.TestingT
	Cleanup(func())
	Fatal(...any)
	Skip(...any)
	Helper()
}

var isEnvironmentCI = os.Getenv("CI") != ""

// PostgresDriver returns a dialector for a schema in the database named by
// the POSTGRESQL_CONNECTION environment variable. The test is skipped when
// the variable is unset, except in CI.
//
// schemaSuffix identifies the package using the database. The schema is
// dropped when the test ends.
func PostgresDriver(t TestingT, schemaSuffix string) gorm.Dialector {
	t.Helper()
	pgConn, ok := os.LookupEnv("POSTGRESQL_CONNECTION")
	switch {
	case !ok && isEnvironmentCI:
		t.Fatal("CI must test all drivers, set POSTGRESQL_CONNECTION")
	case !ok:
		t.Skip("Set POSTGRESQL_CONNECTION to test against postgresql")
	}

	if len(schemaSuffix) >= 24 {
		t.Fatal("schema suffix", schemaSuffix, "must be less than 24 characters")
	}
	suffix := strings.NewReplacer("--", "", ";", "", "/", "").Replace(schemaSuffix)
	name := fmt.Sprintf("test_%v_%v", suffix, generate.MathRandom(3, generate.CharsetNumbers))

	db, err := gorm.Open(postgres.Open(pgConn), &gorm.Config{})
	assert.NilError(t, err, "connect to postgresql")
	t.Cleanup(func() {
		assert.NilError(t, db.Exec("DROP SCHEMA IF EXISTS "+name+" CASCADE").Error)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	assert.NilError(t, db.Exec("DROP SCHEMA IF EXISTS "+name+" CASCADE").Error)
	assert.NilError(t, db.Exec("CREATE SCHEMA "+name).Error)

	return postgres.Open(pgConn + " search_path=" + name)
}
