package db

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	type CustomString string
	type S struct {
		I   int           `db:"I"`
		PI  *int          `db:"PI"`
		CS  CustomString  `db:"CS"`
		PCS *CustomString `db:"PCS"`
		T   time.Time     `db:"T"`

		NoTag int
	}
	type Nested struct {
		S  S  `db:"S"`
		PS *S `db:"PS"`

		NoTag S
	}

	names, paths, err := getColumnNamesAndPaths(reflect.TypeOf(Nested{}), nil, "")
	require.Nil(t, err)
	assert.Equal(t, []string{
		"S.I", "S.PI", "S.CS", "S.PCS", "S.T",
		"PS.I", "PS.PI", "PS.CS", "PS.PCS", "PS.T",
	}, names)
	assert.Equal(t, []fieldPath{
		{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4},
		{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 4},
	}, paths)

	testStruct := Nested{}
	for i, path := range paths {
		val, field := followPathThroughStructs(reflect.ValueOf(&testStruct), path)
		assert.True(t, val.IsValid())
		assert.True(t, strings.Contains(names[i], field.Name))
	}
	assert.NotNil(t, testStruct.PS, "following a path should allocate nil struct pointers")
}

func TestCompileQuery(t *testing.T) {
	type Row struct {
		ID     int64     `db:"id"`
		Label  string    `db:"label"`
		When   time.Time `db:"created_at"`
		hidden int       `db:"hidden"`
	}

	t.Run("columns", func(t *testing.T) {
		q := compileQuery(`SELECT $columns FROM thing`, reflect.TypeOf(Row{}))
		assert.Equal(t, "SELECT id, label, created_at FROM thing", q.query)
		assert.Len(t, q.fieldPaths, 3)
	})
	t.Run("prefixed columns", func(t *testing.T) {
		q := compileQuery(`SELECT $columns{t} FROM thing AS t`, reflect.TypeOf(Row{}))
		assert.Equal(t, "SELECT t.id, t.label, t.created_at FROM thing AS t", q.query)
	})
	t.Run("scalar", func(t *testing.T) {
		q := compileQuery(`SELECT count(*) FROM thing`, reflect.TypeOf(0))
		assert.Equal(t, "SELECT count(*) FROM thing", q.query)
		assert.Nil(t, q.fieldPaths)
	})
	t.Run("columns into scalar", func(t *testing.T) {
		assert.Panics(t, func() {
			compileQuery(`SELECT $columns FROM thing`, reflect.TypeOf(0))
		})
	})
}

func TestQueryBuilder(t *testing.T) {
	var qb QueryBuilder
	qb.Add(`SELECT count(*) FROM download_log WHERE TRUE`)
	qb.Add(`AND ip_address = $?`, "203.0.113.7")
	qb.Add(`AND downloaded_at >= $? AND illustration_id = $?`, "midnight", 42)

	assert.Equal(t, "SELECT count(*) FROM download_log WHERE TRUE\nAND ip_address = $1\nAND downloaded_at >= $2 AND illustration_id = $3\n", qb.String())
	assert.Equal(t, []any{"203.0.113.7", "midnight", 42}, qb.Args())

	assert.Panics(t, func() {
		qb.Add(`AND x = $?`)
	})
}

func TestQueryName(t *testing.T) {
	name, ok := GetQueryName("\n---- Count downloads\nSELECT 1")
	assert.True(t, ok)
	assert.Equal(t, "Count downloads", name)

	_, ok = GetQueryName("SELECT 1")
	assert.False(t, ok)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("nope")))
}

func TestConnectRetries(t *testing.T) {
	t.Run("stops waiting once cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		down := errors.New("connection refused")
		calls := 0
		err := withConnectRetries(ctx, func() error {
			calls++
			return down
		})
		assert.ErrorIs(t, err, down)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns once connected", func(t *testing.T) {
		calls := 0
		err := withConnectRetries(context.Background(), func() error {
			calls++
			if calls < 2 {
				return errors.New("connection refused")
			}
			return nil
		})
		assert.Nil(t, err)
		assert.Equal(t, 2, calls)
	})
}
