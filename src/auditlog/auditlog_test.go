package auditlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/models"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(illustrationID int64, identifier, ip string, at time.Time) models.DownloadLog {
	var idPtr *string
	if identifier != "" {
		idPtr = &identifier
	}
	return models.DownloadLog{
		IllustrationID: illustrationID,
		UserIdentifier: idPtr,
		IPAddress:      ip,
		DownloadType:   models.FormatSVG,
		CreatedAt:      at,
	}
}

func TestAxisValid(t *testing.T) {
	assert.True(t, AxisNetwork.Valid())
	assert.True(t, AxisIdentifier.Valid())
	assert.False(t, Axis("email; DROP TABLE download_log").Valid())
}

func TestMemoryStore(t *testing.T) {
	midnight := time.Date(2026, 10, 15, 0, 0, 0, 0, time.Local)
	s := NewMemoryStore()

	first, err := s.Insert(entry(1, "alice", "192.0.2.1", midnight.Add(-time.Hour)))
	require.Nil(t, err)
	second, err := s.Insert(entry(1, "alice", "192.0.2.1", midnight.Add(time.Hour)))
	require.Nil(t, err)
	_, err = s.Insert(entry(2, "", "192.0.2.1", midnight.Add(2*time.Hour)))
	require.Nil(t, err)
	_, err = s.Insert(entry(2, "bob", "192.0.2.2", midnight.Add(3*time.Hour)))
	require.Nil(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, 4, s.Len())

	count := func(axis Axis, value string) int {
		n, err := s.CountSince(axis, value, midnight)
		require.Nil(t, err)
		return n
	}
	assert.Equal(t, 2, count(AxisNetwork, "192.0.2.1"))
	assert.Equal(t, 1, count(AxisIdentifier, "alice"))
	assert.Equal(t, 1, count(AxisIdentifier, "bob"))
	assert.Equal(t, 0, count(AxisIdentifier, "carol"))

	assert.Equal(t, int64(2), s.DeleteForIllustration(2))
	assert.Equal(t, 2, s.Len())
	for _, e := range s.Entries() {
		assert.Equal(t, int64(1), e.IllustrationID)
	}
	assert.Equal(t, int64(0), s.DeleteForIllustration(2))
}

func TestMemoryStoreEntriesIsACopy(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Insert(entry(1, "alice", "192.0.2.1", time.Now()))
	require.Nil(t, err)

	entries := s.Entries()
	entries[0].IPAddress = "tampered"
	assert.Equal(t, "192.0.2.1", s.Entries()[0].IPAddress)
}

var errStopQuery = errors.New("stop here")

// Remembers the arguments of the last query and never touches a database.
type argRecorder struct {
	db.ConnOrTx
	args []any
}

func (r *argRecorder) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.args = args
	return nil, errStopQuery
}

func TestListForIllustrationClampsLimit(t *testing.T) {
	for _, tc := range []struct{ asked, sent int }{
		{asked: 20, sent: 20},
		{asked: 0, sent: 1},
		{asked: -5, sent: 1},
		{asked: 100000, sent: MaxListLimit},
	} {
		rec := &argRecorder{}
		_, err := ListForIllustration(context.Background(), rec, 42, tc.asked)
		assert.ErrorIs(t, err, errStopQuery)
		require.Len(t, rec.args, 2)
		assert.Equal(t, int64(42), rec.args[0])
		assert.Equal(t, tc.sent, rec.args[1], "asked for %d", tc.asked)
	}
}
