// Package auditlog stores one row per granted download. Nothing here ever
// updates a row; entries only disappear when an illustration is purged.
package auditlog

import (
	"context"
	"time"

	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/utils"
)

// The two keys quota is tracked on. The values double as column names, so
// this list is also the whitelist of columns CountSince will touch.
type Axis string

const (
	AxisNetwork    Axis = "ip_address"
	AxisIdentifier Axis = "user_identifier"
)

func (a Axis) Valid() bool {
	return a == AxisNetwork || a == AxisIdentifier
}

func (a Axis) String() string {
	return string(a)
}

func Insert(ctx context.Context, conn db.ConnOrTx, entry models.DownloadLog) (*models.DownloadLog, error) {
	inserted, err := db.QueryOne[models.DownloadLog](ctx, conn,
		`
		---- Insert download log
		INSERT INTO download_log (illustration_id, user_identifier, ip_address, download_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING $columns
		`,
		entry.IllustrationID,
		entry.UserIdentifier,
		entry.IPAddress,
		entry.DownloadType,
		entry.CreatedAt,
	)
	if err != nil {
		return nil, oops.New(err, "failed to insert download log for illustration %d", entry.IllustrationID)
	}
	return inserted, nil
}

func CountSince(ctx context.Context, conn db.ConnOrTx, axis Axis, value string, since time.Time) (int, error) {
	if !axis.Valid() {
		return 0, oops.New(nil, "invalid audit log axis %q", axis)
	}

	var qb db.QueryBuilder
	qb.Add(`
		---- Count downloads for axis
		SELECT COUNT(*)
		FROM download_log
		WHERE
	`)
	qb.Add(axis.String()+` = $?`, value)
	qb.Add(`AND created_at >= $?`, since)

	count, err := db.QueryOneScalar[int](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return 0, oops.New(err, "failed to count downloads by %s", axis)
	}
	return count, nil
}

const MaxListLimit = 500

// Lists the newest entries first. limit is clamped to 1..MaxListLimit.
func ListForIllustration(ctx context.Context, conn db.ConnOrTx, illustrationID int64, limit int) ([]*models.DownloadLog, error) {
	limit = utils.IntClamp(1, limit, MaxListLimit)
	entries, err := db.Query[models.DownloadLog](ctx, conn,
		`
		---- List download logs for illustration
		SELECT $columns
		FROM download_log
		WHERE illustration_id = $1
		ORDER BY created_at DESC
		LIMIT $2
		`,
		illustrationID,
		limit,
	)
	if err != nil {
		return nil, oops.New(err, "failed to list download logs for illustration %d", illustrationID)
	}
	return entries, nil
}

func DeleteForIllustration(ctx context.Context, conn db.ConnOrTx, illustrationID int64) (int64, error) {
	tag, err := conn.Exec(ctx,
		`
		---- Delete download logs for illustration
		DELETE FROM download_log
		WHERE illustration_id = $1
		`,
		illustrationID,
	)
	if err != nil {
		return 0, oops.New(err, "failed to delete download logs for illustration %d", illustrationID)
	}
	return tag.RowsAffected(), nil
}
