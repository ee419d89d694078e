// Package downloader fetches illustrations from a gallery server the way the
// browser client does: ask for a grant, follow the signed URL, convert if
// needed, and keep count locally.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/illustory/gallery/src/clock"
	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/galleryurl"
	"github.com/illustory/gallery/src/logging"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/quota"
	"github.com/illustory/gallery/src/raster"
)

var ErrLocalLimit = errors.New("Download limit reached. Please come back tomorrow.")

// The server refused or failed a download. Message is whatever the server
// said in its error body.
type ServerError struct {
	Status  int
	Message string
	Reason  string
}

func (e *ServerError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("server responded %d (%s): %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
}

// Somewhere to keep state between runs.
type Options struct {
	BaseURL  string
	StateDir string
	OutDir   string
	Limit    int
	Scale    float64
	Clock    clock.Clock
}

type Orchestrator struct {
	BaseURL string
	Client  *http.Client
	Counter *LocalCounter
	OutDir  string
	Scale   float64

	base *url.URL
	jar  *identifierJar
}

func New(opts Options) (*Orchestrator, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.New(err, "invalid gallery URL %q", opts.BaseURL)
	}

	jar, err := newIdentifierJar(filepath.Join(opts.StateDir, "identifier"), base)
	if err != nil {
		return nil, err
	}

	if opts.Limit <= 0 {
		opts.Limit = config.DefaultDailyLimit
	}
	if opts.Scale <= 0 {
		opts.Scale = raster.DefaultScale
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	return &Orchestrator{
		BaseURL: opts.BaseURL,
		Client: &http.Client{
			Jar:     jar,
			Timeout: time.Minute,
		},
		Counter: NewLocalCounter(filepath.Join(opts.StateDir, "counter.json"), opts.Limit, opts.Clock),
		OutDir:  opts.OutDir,
		Scale:   opts.Scale,

		base: base,
		jar:  jar,
	}, nil
}

func (o *Orchestrator) Identifier() string {
	return o.jar.identifier(o.base)
}

// Downloads one illustration and returns where it was saved.
func (o *Orchestrator) Download(ctx context.Context, id int64, format models.Format) (string, error) {
	logger := logging.ExtractLogger(ctx).With().Int64("illustration", id).Str("format", string(format)).Logger()

	remaining, err := o.Counter.Remaining()
	if err != nil {
		return "", err
	}
	if remaining <= 0 {
		return "", ErrLocalLimit
	}

	if err := o.ensureIdentifier(ctx); err != nil {
		return "", err
	}

	var grant struct {
		Url string `json:"url"`
	}
	if err := o.getJSON(ctx, galleryurl.BuildDownload(o.BaseURL, id, string(format), "signed"), &grant); err != nil {
		return "", err
	}
	logger.Debug().Msg("download granted")

	content, err := o.fetch(ctx, grant.Url)
	if err != nil {
		return "", err
	}

	if format == models.FormatPNG && !raster.IsPNG(content) {
		content, err = raster.SVGToPNG(content, o.Scale)
		if err != nil {
			return "", oops.New(err, "failed to convert illustration %d to png", id)
		}
	}

	dest := filepath.Join(o.OutDir, fmt.Sprintf("%d%s", id, format.Extension()))
	if err := os.MkdirAll(o.OutDir, 0755); err != nil {
		return "", oops.New(err, "failed to create output directory")
	}
	if err := os.WriteFile(dest, content, 0644); err != nil {
		return "", oops.New(err, "failed to save illustration")
	}

	if err := o.Counter.Increment(); err != nil {
		// The file is saved; a stale local count only costs an extra request.
		logger.Warn().Err(err).Msg("couldn't update local download counter")
	}
	logger.Info().Str("path", dest).Msg("saved illustration")
	return dest, nil
}

// Pulls the server's view of today's usage and trusts it if it is stricter.
func (o *Orchestrator) Reconcile(ctx context.Context) (quota.Usage, error) {
	var usage quota.Usage
	if err := o.getJSON(ctx, galleryurl.BuildDownloadQuota(o.BaseURL), &usage); err != nil {
		return usage, err
	}
	if err := o.Counter.LowerRemaining(usage.Remaining); err != nil {
		return usage, err
	}
	return usage, nil
}

// The server only issues an identifier in a response, so a client that has
// none asks for its quota first.
func (o *Orchestrator) ensureIdentifier(ctx context.Context) error {
	if o.Identifier() != "" {
		return nil
	}
	if _, err := o.Reconcile(ctx); err != nil {
		return err
	}
	if o.Identifier() == "" {
		return oops.New(nil, "server did not issue an identifier")
	}
	return nil
}

func (o *Orchestrator) getJSON(ctx context.Context, target string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return oops.New(err, "failed to build request")
	}
	res, err := o.Client.Do(req)
	if err != nil {
		return oops.New(err, "request to gallery failed")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return oops.New(err, "failed to read gallery response")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var errBody struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(body, &errBody) != nil || errBody.Error == "" {
			errBody.Error = http.StatusText(res.StatusCode)
		}
		return &ServerError{Status: res.StatusCode, Message: errBody.Error, Reason: errBody.Reason}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return oops.New(err, "failed to decode gallery response")
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, oops.New(err, "failed to build file request")
	}
	res, err := o.Client.Do(req)
	if err != nil {
		return nil, oops.New(err, "failed to fetch file")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, oops.New(nil, "file fetch responded with status %d", res.StatusCode)
	}
	content, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, oops.New(err, "failed to read file")
	}
	return content, nil
}
