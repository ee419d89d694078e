package website

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/perf"
	"github.com/illustory/gallery/src/quota"
)

type DownloadMode string

const (
	// Respond with a short-lived URL the client fetches itself.
	ModeSigned DownloadMode = "signed"
	// Fetch the file server-side and send the bytes back directly.
	ModeStream DownloadMode = "stream"
)

type DownloadRequest struct {
	IllustrationID int64
	Format         models.Format
	Mode           DownloadMode
}

// Validates the query string of a download request. Errors are safe to show.
func ParseDownloadRequest(q url.Values) (DownloadRequest, error) {
	var result DownloadRequest

	idStr := strings.TrimSpace(q.Get("illustration"))
	if idStr == "" {
		return result, NewSafeError(nil, "Illustration ID is required")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return result, NewSafeError(err, "Invalid illustration ID")
	}
	result.IllustrationID = id

	result.Format = models.FormatPNG
	if formatStr := q.Get("format"); formatStr != "" {
		format, ok := models.ParseFormat(formatStr)
		if !ok {
			return result, NewSafeError(nil, "Invalid format")
		}
		result.Format = format
	}

	result.Mode = ModeSigned
	switch modeStr := strings.ToLower(q.Get("mode")); modeStr {
	case "", string(ModeSigned):
	case string(ModeStream):
		result.Mode = ModeStream
	default:
		return result, NewSafeError(nil, "Invalid mode")
	}

	return result, nil
}

var denyMessages = map[quota.DenyReason]string{
	quota.ReasonNetworkLimit:    "IP download limit reached",
	quota.ReasonIdentifierLimit: "Daily download limit reached",
}

func (s *server) Download(c *RequestContext) ResponseData {
	dl, err := ParseDownloadRequest(c.Req.URL.Query())
	if err != nil {
		return c.ErrorResponse(http.StatusBadRequest, err)
	}

	if c.AnonymousID == "" {
		return c.ErrorResponse(http.StatusBadRequest, NewSafeError(nil, "User identifier missing"))
	}

	decision, err := s.Ledger.CheckAndGrant(c, quota.GrantRequest{
		IllustrationID: dl.IllustrationID,
		Identifier:     c.AnonymousID,
		NetworkAddress: c.NetworkAddress,
		Format:         dl.Format,
	})
	if err != nil {
		if errors.Is(err, quota.ErrUnknownIllustration) {
			return c.ErrorResponse(http.StatusNotFound, NewSafeError(err, "Illustration not found"))
		}
		return c.ErrorResponse(http.StatusInternalServerError, NewSafeError(err, "Failed to check download limit"))
	}
	if !decision.Granted {
		c.Logger.Info().Str("reason", string(decision.Reason)).Int64("illustration", dl.IllustrationID).Msg("download denied")
		res := ResponseData{StatusCode: http.StatusForbidden}
		res.WriteJson(errorBody{Error: denyMessages[decision.Reason], Reason: string(decision.Reason)}, c.Perf)
		return res
	}
	perf.ExtractPerf(c).Checkpoint("QUOTA", fmt.Sprintf("Granted download of illustration %d", dl.IllustrationID))

	ill, err := s.Illustrations.FetchVisible(c, dl.IllustrationID)
	if err != nil {
		// The grant saw it, so it was hidden in the meantime or the lookup
		// itself broke. Either way there is nothing to hand out.
		if !errors.Is(err, illustrations.ErrNotFound) {
			err = oops.New(err, "failed to look up illustration after grant")
		}
		return c.ErrorResponse(http.StatusNotFound, NewSafeError(err, "Illustration not found"))
	}

	key := s.resolveObjectKey(c, ill, dl.Format)

	switch dl.Mode {
	case ModeStream:
		return s.streamDownload(c, key)
	default:
		return s.signedDownload(c, key)
	}
}

// Picks the object to serve. A PNG is served only if one has been rendered;
// otherwise the SVG original goes out instead.
func (s *server) resolveObjectKey(c *RequestContext, ill *models.Illustration, format models.Format) string {
	if format == models.FormatSVG {
		return ill.ImagePath
	}

	sibling := ill.PathFor(format)
	b := c.Perf.StartBlock("STORAGE", "Check for rendered sibling")
	exists, err := s.Storage.Exists(c, sibling)
	b.End()
	if err != nil {
		c.Logger.Warn().Err(err).Str("key", sibling).Msg("couldn't check for rendered file, serving original")
		return ill.ImagePath
	}
	if !exists {
		c.Logger.Info().Str("key", sibling).Str("format", string(format)).Msg("no rendered file, serving original")
		return ill.ImagePath
	}
	return sibling
}

func (s *server) signedDownload(c *RequestContext, key string) ResponseData {
	signed, err := s.Storage.SignURL(c, key, s.Downloads.SignedURLTTL)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, NewSafeError(err, "Failed to generate download URL"))
	}

	var res ResponseData
	res.WriteJson(struct {
		Url string `json:"url"`
	}{Url: signed}, c.Perf)
	return res
}

func (s *server) streamDownload(c *RequestContext, key string) ResponseData {
	signed, err := s.Storage.SignURL(c, key, s.Downloads.StreamURLTTL)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, NewSafeError(err, "Failed to generate download URL"))
	}

	failed := func(err error) ResponseData {
		return c.ErrorResponse(http.StatusBadGateway, NewSafeError(err, "Failed to fetch file for streaming"))
	}

	// The request context cancels the upstream fetch if the client goes away.
	upstreamReq, err := http.NewRequestWithContext(c, http.MethodGet, signed, nil)
	if err != nil {
		return failed(oops.New(err, "failed to build upstream request"))
	}
	b := c.Perf.StartBlock("STORAGE", "Fetch upstream file")
	upstream, err := s.HTTPClient.Do(upstreamReq)
	b.End()
	if err != nil {
		return failed(oops.New(err, "upstream fetch failed"))
	}
	if upstream.StatusCode < 200 || upstream.StatusCode > 299 {
		upstream.Body.Close()
		return failed(oops.New(nil, "upstream responded with status %d", upstream.StatusCode))
	}

	res := ResponseData{
		StatusCode: http.StatusOK,
		Stream:     upstream.Body,
	}
	contentType := upstream.Header.Get("Content-Type")
	if contentType == "" {
		if format, ok := models.ParseFormat(strings.TrimPrefix(path.Ext(key), ".")); ok {
			contentType = format.MimeType()
		} else {
			contentType = "application/octet-stream"
		}
	}
	res.Header().Set("Content-Type", contentType)
	if upstream.ContentLength >= 0 {
		res.Header().Set("Content-Length", strconv.FormatInt(upstream.ContentLength, 10))
	}
	res.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, path.Base(key)))
	return res
}

func (s *server) DownloadQuota(c *RequestContext) ResponseData {
	usage, err := s.Ledger.Remaining(c, c.AnonymousID, c.NetworkAddress)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, NewSafeError(err, "Failed to check download limit"))
	}

	var res ResponseData
	res.WriteJson(usage, c.Perf)
	return res
}
