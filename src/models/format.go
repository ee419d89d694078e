package models

import (
	"path"
	"strings"
)

// The file format of a download. Illustrations are always stored as SVG;
// PNG is either a pre-rendered sibling object or produced client-side.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

var AllFormats = []Format{FormatSVG, FormatPNG}

func ParseFormat(s string) (Format, bool) {
	for _, f := range AllFormats {
		if strings.EqualFold(s, string(f)) {
			return f, true
		}
	}
	return "", false
}

func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) MimeType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	}
	return "application/octet-stream"
}

// The illustration column that counts grants of this format.
func (f Format) CounterColumn() string {
	switch f {
	case FormatSVG:
		return "download_count_svg"
	case FormatPNG:
		return "download_count_png"
	}
	panic("unknown download format: " + string(f))
}

// Swaps the extension of an object key for the given format's.
// A key without an extension gets one appended.
//
//	foo/bar.svg -> foo/bar.png
func SiblingPath(key string, f Format) string {
	return strings.TrimSuffix(key, path.Ext(key)) + f.Extension()
}
