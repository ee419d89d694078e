package models

import "time"

type Illustration struct {
	ID          int64   `db:"id"`
	Title       string  `db:"title"`
	Description *string `db:"description"`

	// Object key of the SVG original. Other formats are derived from it.
	ImagePath string `db:"image_path"`
	Visible   bool   `db:"visible"`

	DownloadCountSVG int `db:"download_count_svg"`
	DownloadCountPNG int `db:"download_count_png"`

	CreatedAt time.Time `db:"created_at"`
}

func (i *Illustration) PathFor(f Format) string {
	if f == FormatSVG {
		return i.ImagePath
	}
	return SiblingPath(i.ImagePath, f)
}

func (i *Illustration) DownloadCount(f Format) int {
	switch f {
	case FormatSVG:
		return i.DownloadCountSVG
	case FormatPNG:
		return i.DownloadCountPNG
	}
	return 0
}
