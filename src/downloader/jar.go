package downloader

import (
	"errors"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/illustory/gallery/src/identity"
	"github.com/illustory/gallery/src/logging"
	"github.com/illustory/gallery/src/oops"
)

// A cookie jar that remembers the gallery's identifier cookie across runs.
// Nothing else is worth keeping.
type identifierJar struct {
	*cookiejar.Jar
	path string
}

var _ http.CookieJar = &identifierJar{}

func newIdentifierJar(path string, base *url.URL) (*identifierJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, oops.New(err, "failed to create cookie jar")
	}
	j := &identifierJar{Jar: jar, path: path}

	saved, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.New(err, "failed to read saved identifier")
	}
	if value := identity.Normalize(string(saved)); value != "" {
		jar.SetCookies(base, []*http.Cookie{identity.NewCookie(value)})
	}
	return j, nil
}

func (j *identifierJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.Jar.SetCookies(u, cookies)
	for _, c := range cookies {
		if c.Name != identity.CookieName || c.Value == "" {
			continue
		}
		if err := j.save(c.Value); err != nil {
			logging.Warn().Err(err).Msg("couldn't save identifier; a new one will be issued next run")
		}
	}
}

func (j *identifierJar) save(value string) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(j.path, []byte(strings.TrimSpace(value)), 0600)
}

func (j *identifierJar) identifier(base *url.URL) string {
	for _, c := range j.Cookies(base) {
		if c.Name == identity.CookieName {
			return identity.Normalize(c.Value)
		}
	}
	return ""
}
