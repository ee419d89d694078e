package illustrations

import (
	"context"
	"math/rand"
	"testing"

	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/raster"
	"github.com/illustory/gallery/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSVGRenders(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		svg := SampleSVG(rng)
		assert.True(t, LooksLikeSVG(svg))
		png, err := raster.SVGToPNG(svg, 2)
		require.Nil(t, err)
		assert.True(t, raster.IsPNG(png))
	}
}

func TestSampleInput(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 10; i++ {
		in := SampleInput(rng)
		assert.NotEmpty(t, in.Title)
		assert.NotEmpty(t, in.SVG)
		if len(in.PNG) > 0 {
			assert.True(t, raster.IsPNG(in.PNG))
		}
	}
}

func TestSeedMemory(t *testing.T) {
	ctx := context.Background()
	ills := NewMemory()
	objects := storage.NewMemory("http://objects.test")

	require.Nil(t, SeedMemory(ctx, ills, objects, 6))

	keys := objects.Keys()
	assert.GreaterOrEqual(t, len(keys), 6)

	for id := int64(1); id <= 6; id++ {
		ill, err := ills.FetchVisible(ctx, id)
		if err != nil {
			// hidden samples are fine
			assert.ErrorIs(t, err, ErrNotFound)
			continue
		}
		exists, err := objects.Exists(ctx, ill.PathFor(models.FormatSVG))
		require.Nil(t, err)
		assert.True(t, exists)
	}

	_, err := ills.FetchVisible(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}
