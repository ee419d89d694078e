// Package raster turns SVG illustrations into PNGs.
package raster

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/utils"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

const DefaultScale = 8

// Keeps a careless viewBox from asking for gigabytes of pixels.
const maxDimension = 8192

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func IsPNG(content []byte) bool {
	return bytes.HasPrefix(content, pngMagic)
}

var (
	reSvgOpenTag  = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	reSizeAttr    = regexp.MustCompile(`(?i)\s(width|height)\s*=\s*("[^"]*"|'[^']*')`)
	reViewBoxAttr = regexp.MustCompile(`(?i)\sviewBox\s*=\s*("([^"]*)"|'([^']*)')`)
)

// Removes width and height from the root element so the drawing is sized by
// its viewBox alone.
func StripSize(svg []byte) []byte {
	loc := reSvgOpenTag.FindIndex(svg)
	if loc == nil {
		return svg
	}
	tag := reSizeAttr.ReplaceAll(svg[loc[0]:loc[1]], nil)

	out := make([]byte, 0, len(svg))
	out = append(out, svg[:loc[0]]...)
	out = append(out, tag...)
	out = append(out, svg[loc[1]:]...)
	return out
}

type ViewBox struct {
	X, Y, W, H float64
}

var ErrNoViewBox = errors.New("svg has no usable viewBox")

func ReadViewBox(svg []byte) (ViewBox, error) {
	tag := reSvgOpenTag.Find(svg)
	if tag == nil {
		return ViewBox{}, ErrNoViewBox
	}
	m := reViewBoxAttr.FindSubmatch(tag)
	if m == nil {
		return ViewBox{}, ErrNoViewBox
	}
	raw := string(m[2])
	if raw == "" {
		raw = string(m[3])
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != 4 {
		return ViewBox{}, ErrNoViewBox
	}
	var nums [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return ViewBox{}, ErrNoViewBox
		}
		nums[i] = n
	}
	vb := ViewBox{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}
	if vb.W <= 0 || vb.H <= 0 {
		return ViewBox{}, ErrNoViewBox
	}
	return vb, nil
}

// Renders an SVG at scale times its viewBox size, on white, as a PNG.
func SVGToPNG(svg []byte, scale float64) ([]byte, error) {
	img, err := Render(svg, scale)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, oops.New(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

func Render(svg []byte, scale float64) (*image.RGBA, error) {
	if scale <= 0 {
		scale = DefaultScale
	}

	vb, err := ReadViewBox(svg)
	if err != nil {
		return nil, err
	}
	scale = fitScale(vb, scale)
	width := utils.IntClamp(1, int(math.Round(vb.W*scale)), maxDimension)
	height := utils.IntClamp(1, int(math.Round(vb.H*scale)), maxDimension)

	icon, err := oksvg.ReadIconStream(bytes.NewReader(StripSize(svg)), oksvg.WarnErrorMode)
	if err != nil {
		return nil, oops.New(err, "failed to parse svg")
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	icon.Draw(rasterx.NewDasher(width, height, rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())), 1)

	return rgba, nil
}

// Large viewBoxes get a smaller scale so the long side fits maxDimension.
func fitScale(vb ViewBox, scale float64) float64 {
	if longest := math.Max(vb.W, vb.H); longest*scale > maxDimension {
		return maxDimension / longest
	}
	return scale
}
