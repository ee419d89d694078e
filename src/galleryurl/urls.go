package galleryurl

import (
	"regexp"
	"strconv"
)

var RegexDownload = regexp.MustCompile("^/download$")

func BuildDownload(base string, illustrationID int64, format, mode string) string {
	return UrlOn(base, "/download", []Q{
		{"illustration", strconv.FormatInt(illustrationID, 10)},
		{"format", format},
		{"mode", mode},
	})
}

var RegexDownloadQuota = regexp.MustCompile("^/download/quota$")

func BuildDownloadQuota(base string) string {
	return UrlOn(base, "/download/quota", nil)
}

// Objects served by the in-process store when running without a real backend.
var RegexLocalObjects = regexp.MustCompile("^/_objects/")

const LocalObjectsPrefix = "/_objects"

func BuildLocalObjectsBase() string {
	return Url(LocalObjectsPrefix, nil)
}

var RegexCatchAll = regexp.MustCompile("^")
