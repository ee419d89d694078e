package illustrations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "unnamed", SanitizeFilename(""))
	assert.Equal(t, "sea_otter.svg", SanitizeFilename("sea otter.svg"))
	assert.Equal(t, ".._.._etc_passwd", SanitizeFilename("../../etc/passwd"))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "abc/sea_otter.svg", ObjectKey("abc", "sea otter.svg"))
	assert.Equal(t, "abc/sea_otter.svg", ObjectKey("abc", "sea otter"))
	assert.Equal(t, "abc/unnamed.svg", ObjectKey("abc", ""))
}

func TestLooksLikeSVG(t *testing.T) {
	assert.True(t, LooksLikeSVG([]byte(`<?xml version="1.0"?><SVG xmlns="http://www.w3.org/2000/svg"/>`)))
	assert.False(t, LooksLikeSVG([]byte("\x89PNG\r\n\x1a\n")))
	assert.False(t, LooksLikeSVG([]byte(strings.Repeat(" ", 2000)+"<svg/>")))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	otter := m.Add(models.Illustration{Title: "Otter", ImagePath: "a/otter.svg", Visible: true})
	hidden := m.Add(models.Illustration{Title: "Hidden", ImagePath: "a/hidden.svg"})
	assert.Equal(t, int64(1), otter.ID)
	assert.Equal(t, int64(2), hidden.ID)

	got, err := m.FetchVisible(ctx, otter.ID)
	require.Nil(t, err)
	assert.Equal(t, "Otter", got.Title)

	_, err = m.FetchVisible(ctx, hidden.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.FetchVisible(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Nil(t, m.IncrementDownloadCount(ctx, otter.ID, models.FormatPNG))
	require.Nil(t, m.IncrementDownloadCount(ctx, otter.ID, models.FormatPNG))
	require.Nil(t, m.IncrementDownloadCount(ctx, otter.ID, models.FormatSVG))
	assert.ErrorIs(t, m.IncrementDownloadCount(ctx, hidden.ID, models.FormatSVG), ErrNotFound)

	got, err = m.FetchVisible(ctx, otter.ID)
	require.Nil(t, err)
	assert.Equal(t, 2, got.DownloadCountPNG)
	assert.Equal(t, 1, got.DownloadCountSVG)

	// Returned values are copies.
	got.Title = "Changed"
	again, _ := m.FetchVisible(ctx, otter.ID)
	assert.Equal(t, "Otter", again.Title)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemory("http://objects.test")

	cases := []CreateInput{
		{Title: "  ", SVG: []byte("<svg/>")},
		{Title: "Otter"},
		{Title: "Otter", SVG: []byte("\x89PNG\r\n\x1a\n")},
	}
	for _, in := range cases {
		// Validation happens before anything touches the database.
		_, err := Create(ctx, nil, objects, in)
		var invalid *InvalidIllustrationError
		assert.ErrorAs(t, err, &invalid)
	}
	assert.Empty(t, objects.Keys())
}

// Fails every query with a fixed error.
type failingConn struct {
	db.ConnOrTx
	err error
}

func (c failingConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, c.err
}

func TestCreateReportsTakenObjectKey(t *testing.T) {
	ctx := context.Background()
	in := CreateInput{Title: "Otter", Filename: "otter.svg", SVG: []byte("<svg/>")}

	conn := failingConn{err: &pgconn.PgError{Code: "23505", ConstraintName: "illustration_image_path_key"}}
	_, err := Create(ctx, conn, storage.NewMemory("http://objects.test"), in)
	assert.ErrorIs(t, err, ErrObjectKeyTaken)

	conn = failingConn{err: errors.New("connection reset")}
	_, err = Create(ctx, conn, storage.NewMemory("http://objects.test"), in)
	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, ErrObjectKeyTaken))
}
