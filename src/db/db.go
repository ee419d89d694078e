package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/illustory/gallery/src/oops"
)

/*
A general error to be used when no results are found. This is the error returned
by QueryOne, and can generally be used by other database helpers that fetch a single
result but find nothing.
*/
var NotFound = errors.New("not found")

/*
Performs a SQL query and returns a slice of all the result rows. The query is just plain SQL, but make sure to read the package documentation for details. You must explicitly provide the type argument - this is how it knows what Go type to map the results to, and it cannot be inferred.

Any SQL query may be performed, including INSERT and UPDATE - as long as it returns a result set, you can use this. If the query does not return a result set, or you simply do not care about the result set, call Exec directly on your pgx connection.

This function always returns pointers to the values. This is convenient for structs, but for other types, you may wish to use QueryScalar.
*/
func Query[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]*T, error) {
	var result []*T
	err := queryEach[T](ctx, conn, query, args, func(row *T) bool {
		result = append(result, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

/*
Identical to Query, but returns only the first result row. If there are no
rows in the result set, returns NotFound.
*/
func QueryOne[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (*T, error) {
	var result *T
	err := queryEach[T](ctx, conn, query, args, func(row *T) bool {
		result = row
		return false
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, NotFound
	}
	return result, nil
}

/*
Identical to Query, but returns concrete values instead of pointers. More convenient
for primitive types.
*/
func QueryScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]T, error) {
	var result []T
	err := queryEach[T](ctx, conn, query, args, func(row *T) bool {
		result = append(result, *row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

/*
Identical to QueryScalar, but returns only the first result value. If there are
no rows in the result set, returns NotFound.
*/
func QueryOneScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (T, error) {
	result, err := QueryOne[T](ctx, conn, query, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return *result, nil
}

func queryEach[T any](ctx context.Context, conn ConnOrTx, query string, args []any, each func(row *T) bool) error {
	destType := reflect.TypeOf((*T)(nil)).Elem()
	compiled := compileQuery(query, destType)

	rows, err := conn.Query(ctx, compiled.query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		result := reflect.New(destType)

		var dests []any
		if compiled.fieldPaths == nil {
			dests = []any{result.Interface()}
		} else {
			dests = make([]any, len(compiled.fieldPaths))
			for i, path := range compiled.fieldPaths {
				field, _ := followPathThroughStructs(result, path)
				dests[i] = field.Addr().Interface()
			}
		}

		if err := rows.Scan(dests...); err != nil {
			return oops.New(err, "failed to scan row into %s", destType)
		}
		if !each(result.Interface().(*T)) {
			break
		}
	}

	return rows.Err()
}

type compiledQuery struct {
	query      string
	fieldPaths []fieldPath
}

var reColumnsPlaceholder = regexp.MustCompile(`\$columns({(.*?)})?`)

func compileQuery(query string, destType reflect.Type) compiledQuery {
	columnsMatch := reColumnsPlaceholder.FindStringSubmatch(query)
	if columnsMatch == nil {
		return compiledQuery{query: query}
	}

	// The presence of the $columns placeholder means that the destination type
	// must be a struct, and we will plonk that struct's fields into the query.
	if destType.Kind() != reflect.Struct {
		panic("$columns can only be used when querying into a struct")
	}

	names, paths, err := getColumnNamesAndPaths(destType, nil, columnsMatch[2])
	if err != nil {
		panic(err)
	}

	return compiledQuery{
		query:      reColumnsPlaceholder.ReplaceAllString(query, strings.Join(names, ", ")),
		fieldPaths: paths,
	}
}

// A path to a particular field in query's destination type. Each index in the slice
// corresponds to a field index for use with Field on a reflect.Type or reflect.Value.
type fieldPath []int

func getColumnNamesAndPaths(destType reflect.Type, pathSoFar []int, prefix string) (names []string, paths []fieldPath, err error) {
	if destType.Kind() == reflect.Ptr {
		destType = destType.Elem()
	}

	if destType.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("can only get column names and paths from a struct, got type '%v' (at prefix '%v')", destType.Name(), prefix)
	}

	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		columnName := field.Tag.Get("db")
		if columnName == "" || !field.IsExported() {
			continue
		}

		path := make(fieldPath, len(pathSoFar), len(pathSoFar)+1)
		copy(path, pathSoFar)
		path = append(path, i)

		fullName := columnName
		if prefix != "" {
			fullName = prefix + "." + columnName
		}

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}

		if fieldType.Kind() == reflect.Struct && !isLeafStruct(fieldType) {
			subNames, subPaths, err := getColumnNamesAndPaths(fieldType, path, fullName)
			if err != nil {
				return nil, nil, err
			}
			names = append(names, subNames...)
			paths = append(paths, subPaths...)
		} else {
			names = append(names, fullName)
			paths = append(paths, path)
		}
	}

	return names, paths, nil
}

// Structs that pgx scans as a single value rather than something we should
// dig into for more `db` tags.
func isLeafStruct(t reflect.Type) bool {
	if t.Implements(scannerType) || reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	return t.PkgPath() == "time"
}

var scannerType = reflect.TypeOf((*interface{ Scan(src any) error })(nil)).Elem()

func followPathThroughStructs(structPtrVal reflect.Value, path []int) (reflect.Value, reflect.StructField) {
	if len(path) < 1 {
		panic(oops.New(nil, "can't follow an empty path"))
	}

	if structPtrVal.Kind() != reflect.Ptr || structPtrVal.Elem().Kind() != reflect.Struct {
		panic(oops.New(nil, "structPtrVal must be a pointer to a struct; got value of type %s", structPtrVal.Type()))
	}

	var field reflect.StructField
	val := structPtrVal
	for _, i := range path {
		if val.Kind() == reflect.Ptr && val.Type().Elem().Kind() == reflect.Struct {
			if val.IsNil() {
				val.Set(reflect.New(val.Type().Elem()))
			}
			val = val.Elem()
		}
		field = val.Type().Field(i)
		val = val.Field(i)
	}
	return val, field
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}

