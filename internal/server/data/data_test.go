package data

import (
	"errors"
	"io"
	"testing"
	"time"

	"gorm.io/gorm"
	"gotest.tools/v3/assert"

	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/internal/testing/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	logging.PatchLogger(t, io.Discard)

	driver, err := NewSQLiteDriver("file::memory:")
	assert.NilError(t, err)

	db, err := NewDB(driver)
	assert.NilError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestNewDB_IsIdempotent(t *testing.T) {
	db := setupDB(t)

	assert.NilError(t, migrate(db))

	var count int64
	assert.NilError(t, db.Table("migrations").Count(&count).Error)
	assert.Equal(t, count, int64(len(migrations())+1))
}

func TestNewDB_Postgres(t *testing.T) {
	logging.PatchLogger(t, io.Discard)

	db, err := NewDB(database.PostgresDriver(t, "data"))
	assert.NilError(t, err)

	token := newToken("alice", time.Now().Add(time.Minute))
	assert.NilError(t, CreateConnectionToken(db, token))

	dup := newToken("bob", time.Now().Add(time.Minute))
	dup.Value = token.Value
	err = add(db, dup)

	var ucErr UniqueConstraintError
	assert.Assert(t, errors.As(err, &ucErr), err)
	assert.Equal(t, ucErr, UniqueConstraintError{Table: "connection_tokens", Column: "value"})

	got, err := GetConnectionToken(db, ByID(token.ID))
	assert.NilError(t, err)
	assert.Equal(t, got.UserName, "alice")
	assert.DeepEqual(t, got.Actions, models.CommaSeparatedStrings{"connect"})
}

func TestHandleError(t *testing.T) {
	type testCase struct {
		err      error
		expected error
	}

	run := func(t *testing.T, tc testCase) {
		actual := handleError(tc.err)
		assert.Equal(t, actual, tc.expected)
	}

	other := errors.New("something else")

	testCases := map[string]testCase{
		"nil": {},
		"sqlite unique": {
			err:      errors.New("UNIQUE constraint failed: connection_tokens.value"),
			expected: UniqueConstraintError{Table: "connection_tokens", Column: "value"},
		},
		"sqlite unique multiple columns": {
			err:      errors.New("UNIQUE constraint failed: tickets.requester, tickets.asset_id"),
			expected: UniqueConstraintError{Table: "tickets", Column: "requester,asset_id"},
		},
		"other": {
			err:      other,
			expected: other,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			run(t, tc)
		})
	}
}

func TestUniqueConstraintError_Error(t *testing.T) {
	assert.Equal(t, UniqueConstraintError{}.Error(), "value already exists")
	assert.Equal(t,
		UniqueConstraintError{Table: "connection_tokens", Column: "value"}.Error(),
		"a connection token with that value already exists")
	assert.Equal(t, UniqueConstraintError{Table: "tickets"}.Error(), "a ticket with that value already exists")
}
