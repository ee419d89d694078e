package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("svg")
	assert.True(t, ok)
	assert.Equal(t, FormatSVG, f)

	f, ok = ParseFormat("PNG")
	assert.True(t, ok)
	assert.Equal(t, FormatPNG, f)

	_, ok = ParseFormat("jpg")
	assert.False(t, ok)
	_, ok = ParseFormat("")
	assert.False(t, ok)
}

func TestSiblingPath(t *testing.T) {
	assert.Equal(t, "foo/bar.png", SiblingPath("foo/bar.svg", FormatPNG))
	assert.Equal(t, "foo/bar.svg", SiblingPath("foo/bar.svg", FormatSVG))
	assert.Equal(t, "foo.v2/bar.png", SiblingPath("foo.v2/bar.svg", FormatPNG))
	assert.Equal(t, "foo.v2/bar.png", SiblingPath("foo.v2/bar", FormatPNG))
	assert.Equal(t, "bar.png", SiblingPath("bar", FormatPNG))
}

func TestCounterColumn(t *testing.T) {
	assert.Equal(t, "download_count_svg", FormatSVG.CounterColumn())
	assert.Equal(t, "download_count_png", FormatPNG.CounterColumn())
	assert.Panics(t, func() { Format("gif").CounterColumn() })
}

func TestIllustrationPathFor(t *testing.T) {
	ill := Illustration{ImagePath: "animals/otter.svg", DownloadCountSVG: 3, DownloadCountPNG: 5}
	assert.Equal(t, "animals/otter.svg", ill.PathFor(FormatSVG))
	assert.Equal(t, "animals/otter.png", ill.PathFor(FormatPNG))
	assert.Equal(t, 3, ill.DownloadCount(FormatSVG))
	assert.Equal(t, 5, ill.DownloadCount(FormatPNG))
}
