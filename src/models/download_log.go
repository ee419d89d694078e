package models

import "time"

// One granted download. Rows are only ever inserted by the quota ledger and
// only ever removed in bulk by admin tooling.
type DownloadLog struct {
	ID             int64     `db:"id"`
	IllustrationID int64     `db:"illustration_id"`
	UserIdentifier *string   `db:"user_identifier"`
	IPAddress      string    `db:"ip_address"`
	DownloadType   Format    `db:"download_type"`
	CreatedAt      time.Time `db:"created_at"`
}

func (l *DownloadLog) Identifier() string {
	if l.UserIdentifier == nil {
		return ""
	}
	return *l.UserIdentifier
}
