package illustrations

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/google/uuid"
	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/raster"
	"github.com/illustory/gallery/src/storage"
)

var samplePalette = []string{"#ab4c47", "#a5467d", "#3b7dd8", "#4caf7d", "#e0a526", "#6b5b95"}

// A small abstract drawing: a background tile and a few circles.
func SampleSVG(rng *rand.Rand) []byte {
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="240" height="240" viewBox="0 0 24 24">`)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="24" height="24" fill="%s"/>`, samplePalette[rng.Intn(len(samplePalette))])
	for i := 0; i < 3+rng.Intn(4); i++ {
		fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="%s"/>`,
			2+rng.Intn(20), 2+rng.Intn(20), 1+rng.Intn(6),
			samplePalette[rng.Intn(len(samplePalette))],
		)
	}
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// Sample input with lorem text. Roughly every other one comes with a
// pre-rendered PNG; one in eight is hidden.
func SampleInput(rng *rand.Rand) CreateInput {
	title := strings.TrimSuffix(lorem.Sentence(2, 5), ".")
	svg := SampleSVG(rng)

	in := CreateInput{
		Title:       title,
		Description: lorem.Paragraph(1, 2),
		Filename:    lorem.Word(4, 10) + ".svg",
		SVG:         svg,
		Hidden:      rng.Intn(8) == 0,
	}
	if rng.Intn(2) == 0 {
		if png, err := raster.SVGToPNG(svg, 4); err == nil {
			in.PNG = png
		}
	}
	return in
}

// Fills the database and object store with n sample illustrations.
func Seed(ctx context.Context, conn db.ConnOrTx, store storage.ObjectStore, n int) ([]*models.Illustration, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var created []*models.Illustration
	for i := 0; i < n; i++ {
		ill, err := Create(ctx, conn, store, SampleInput(rng))
		if err != nil {
			return created, err
		}
		created = append(created, ill)
	}
	return created, nil
}

// The in-memory equivalent of Seed, for running the server without a
// database. Ids start at 1 so that they are predictable.
func SeedMemory(ctx context.Context, ills *Memory, store storage.ObjectStore, n int) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < n; i++ {
		in := SampleInput(rng)
		key := ObjectKey(uuid.NewString(), in.Filename)
		if err := store.Put(ctx, key, in.SVG, models.FormatSVG.MimeType()); err != nil {
			return oops.New(err, "failed to store sample illustration")
		}
		if len(in.PNG) > 0 {
			if err := store.Put(ctx, models.SiblingPath(key, models.FormatPNG), in.PNG, models.FormatPNG.MimeType()); err != nil {
				return oops.New(err, "failed to store sample raster")
			}
		}

		description := in.Description
		ills.Add(models.Illustration{
			Title:       in.Title,
			Description: &description,
			ImagePath:   key,
			Visible:     !in.Hidden,
			CreatedAt:   time.Now(),
		})
	}
	return nil
}
