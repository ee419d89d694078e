package galleryurl

import (
	"net/url"
	"strings"

	"github.com/illustory/gallery/src/config"
)

type Q struct {
	Name  string
	Value string
}

// Builds an absolute URL on the site's configured base URL.
func Url(path string, query []Q) string {
	return UrlOn(config.Config.BaseUrl, path, query)
}

// Builds an absolute URL on some other deployment, e.g. from the CLI client.
func UrlOn(base string, path string, query []Q) string {
	result := strings.TrimSuffix(base, "/") + "/" + trim(path)
	if q := encodeQuery(query); q != "" {
		result += "?" + q
	}
	return result
}

func trim(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

func encodeQuery(query []Q) string {
	result := url.Values{}
	for _, q := range query {
		result.Set(q.Name, q.Value)
	}
	return result.Encode()
}
