package illustrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/storage"
)

// Returned when an illustration does not exist or is hidden. Callers treat
// both the same way.
var ErrNotFound = errors.New("illustration not found")
var ErrObjectKeyTaken = errors.New("another illustration already uses this object key")

type Store interface {
	FetchVisible(ctx context.Context, id int64) (*models.Illustration, error)
	IncrementDownloadCount(ctx context.Context, id int64, format models.Format) error
}

func FetchVisible(ctx context.Context, conn db.ConnOrTx, id int64) (*models.Illustration, error) {
	ill, err := db.QueryOne[models.Illustration](ctx, conn,
		`
		---- Fetch visible illustration
		SELECT $columns
		FROM illustration
		WHERE
			id = $1
			AND visible
		`,
		id,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return nil, ErrNotFound
		}
		return nil, oops.New(err, "failed to fetch illustration %d", id)
	}
	return ill, nil
}

func List(ctx context.Context, conn db.ConnOrTx, includeHidden bool) ([]*models.Illustration, error) {
	var qb db.QueryBuilder
	qb.Add(`
		---- List illustrations
		SELECT $columns
		FROM illustration
		WHERE TRUE
	`)
	if !includeHidden {
		qb.Add(`AND visible`)
	}
	qb.Add(`ORDER BY id`)

	ills, err := db.Query[models.Illustration](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to list illustrations")
	}
	return ills, nil
}

// Bumps the per-format counter in place. Only visible illustrations can be
// downloaded, so a hidden one is reported as ErrNotFound.
func IncrementDownloadCount(ctx context.Context, conn db.ConnOrTx, id int64, format models.Format) error {
	// The column name comes from a closed set, never from input.
	column := format.CounterColumn()
	_, err := db.QueryOneScalar[int64](ctx, conn,
		fmt.Sprintf(`
		---- Increment illustration download count
		UPDATE illustration
		SET %[1]s = %[1]s + 1
		WHERE
			id = $1
			AND visible
		RETURNING id
		`, column),
		id,
	)
	if err != nil {
		if errors.Is(err, db.NotFound) {
			return ErrNotFound
		}
		return oops.New(err, "failed to increment %s for illustration %d", column, id)
	}
	return nil
}

type PgStore struct {
	Conn db.ConnOrTx
}

var _ Store = PgStore{}

func (s PgStore) FetchVisible(ctx context.Context, id int64) (*models.Illustration, error) {
	return FetchVisible(ctx, s.Conn, id)
}

func (s PgStore) IncrementDownloadCount(ctx context.Context, id int64, format models.Format) error {
	return IncrementDownloadCount(ctx, s.Conn, id, format)
}

type CreateInput struct {
	Title       string
	Description string
	Filename    string
	SVG         []byte

	// Optional pre-rendered raster version, stored next to the SVG.
	PNG []byte

	Hidden bool
}

// Returned by Create for input that can never succeed, as opposed to a
// storage failure.
type InvalidIllustrationError struct {
	Msg string
}

func (e *InvalidIllustrationError) Error() string {
	return e.Msg
}

func invalidIllustration(format string, args ...any) error {
	return &InvalidIllustrationError{Msg: fmt.Sprintf(format, args...)}
}

var REIllegalFilenameChars = regexp.MustCompile(`[^\w\-.]`)

func SanitizeFilename(filename string) string {
	if filename == "" {
		return "unnamed"
	}
	return REIllegalFilenameChars.ReplaceAllString(filename, "_")
}

func ObjectKey(id, filename string) string {
	filename = SanitizeFilename(filename)
	filename = models.SiblingPath(filename, models.FormatSVG)
	return fmt.Sprintf("%s/%s", id, filename)
}

func LooksLikeSVG(content []byte) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// Uploads the files and records the illustration. The SVG is the canonical
// asset; a PNG, if given, lands at the sibling key so downloads can find it.
func Create(ctx context.Context, conn db.ConnOrTx, store storage.ObjectStore, in CreateInput) (*models.Illustration, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidIllustration("could not create illustration: no title provided")
	}
	if len(in.SVG) == 0 {
		return nil, invalidIllustration("could not create illustration '%s': no bytes of data were provided", title)
	}
	if !LooksLikeSVG(in.SVG) {
		return nil, invalidIllustration("could not create illustration '%s': file is not an SVG", title)
	}

	key := ObjectKey(uuid.NewString(), in.Filename)
	if err := store.Put(ctx, key, in.SVG, models.FormatSVG.MimeType()); err != nil {
		return nil, oops.New(err, "failed to upload illustration")
	}
	if len(in.PNG) > 0 {
		pngKey := models.SiblingPath(key, models.FormatPNG)
		if err := store.Put(ctx, pngKey, in.PNG, models.FormatPNG.MimeType()); err != nil {
			return nil, oops.New(err, "failed to upload raster version of illustration")
		}
	}

	var description *string
	if d := strings.TrimSpace(in.Description); d != "" {
		description = &d
	}

	ill, err := db.QueryOne[models.Illustration](ctx, conn,
		`
		---- Create illustration
		INSERT INTO illustration (title, description, image_path, visible)
		VALUES ($1, $2, $3, $4)
		RETURNING $columns
		`,
		title,
		description,
		key,
		!in.Hidden,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, oops.New(ErrObjectKeyTaken, "failed to save illustration record for %s", key)
		}
		return nil, oops.New(err, "failed to save illustration record")
	}
	return ill, nil
}

// Hides or shows an illustration. Hidden illustrations can't be downloaded,
// but their history stays.
func SetVisible(ctx context.Context, conn db.ConnOrTx, id int64, visible bool) error {
	tag, err := conn.Exec(ctx,
		`
		---- Set illustration visibility
		UPDATE illustration
		SET visible = $2
		WHERE id = $1
		`,
		id,
		visible,
	)
	if err != nil {
		return oops.New(err, "failed to update visibility of illustration %d", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
