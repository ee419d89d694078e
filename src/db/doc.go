/*
This package contains lowish-level APIs for making database queries to our Postgres database. It streamlines the process of mapping query results to Go types, while allowing you to write arbitrary SQL queries.

The primary functions are Query and QueryOne. See the function docs for detailed usage.

Query syntax

This package allows a few small extensions to SQL syntax to streamline the interaction between Go and Postgres.

Arguments can be provided using placeholders like $1, $2, etc. All arguments will be safely escaped and mapped from their Go type to the correct Postgres type. (This is a direct proxy to pgx.)

	ids, err := db.QueryScalar[int64](ctx, conn,
		`
		SELECT id
		FROM illustration
		WHERE
			id = ANY($1)
			AND visible
		`,
		[]int64{4, 8, 15},
	)

(This also demonstrates a useful tip: if you want to use a slice in your query, use Postgres arrays instead of IN.)

To query multiple columns at once, you may use a struct type with `db:"column_name"` tags, and the special $columns placeholder:

	type Illustration struct {
		ID       int64  `db:"id"`
		Title    string `db:"title"`
		FilePath string `db:"file_path"`
	}
	rows, err := db.Query[Illustration](ctx, conn, `SELECT $columns FROM illustration`)
	// Resulting query:
	// SELECT id, title, file_path FROM illustration

Sometimes a table name prefix is required on each column to disambiguate between column names, especially when performing a JOIN. In those situations, you can include the prefix in the $columns placeholder like $columns{prefix}:

	logs, err := db.Query[models.DownloadLog](ctx, conn, `
		SELECT $columns{log}
		FROM
			download_log AS log
			JOIN illustration AS ill ON ill.id = log.illustration_id
		WHERE
			ill.visible
	`)
	// Resulting query:
	// SELECT log.id, log.illustration_id, ... FROM ...

Queries that start with a line like `---- Count downloads` are reported under that name in request perf blocks.
*/
package db
