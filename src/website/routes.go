package website

import (
	"net/http"
	"time"

	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/galleryurl"
	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/quota"
	"github.com/illustory/gallery/src/storage"
)

// Everything the HTTP layer talks to.
type Deps struct {
	Ledger        quota.Ledger
	Illustrations illustrations.Store
	Storage       storage.ObjectStore
	HTTPClient    *http.Client
	Downloads     config.DownloadConfig

	// Optional. Nil disables burst limiting.
	Limiter *AddressLimiter

	// Optional. Served under /_objects when set, for running without a real
	// object store.
	LocalObjects http.Handler
}

type server struct {
	Deps
}

func NewWebsiteRoutes(deps Deps) http.Handler {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.Downloads.SignedURLTTL <= 0 {
		deps.Downloads.SignedURLTTL = config.DefaultSignedURLTTL
	}
	if deps.Downloads.StreamURLTTL <= 0 {
		deps.Downloads.StreamURLTTL = config.DefaultStreamURLTTL
	}
	s := &server{Deps: deps}

	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			trackRequestPerf,
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
			identifyClient,
			ensureAnonymousIdentifier,
		},
	}

	downloads := routes.WithMiddleware(rateLimitByAddress(deps.Limiter))
	downloads.GET(galleryurl.RegexDownloadQuota, s.DownloadQuota)
	downloads.GET(galleryurl.RegexDownload, s.Download)

	if deps.LocalObjects != nil {
		objects := http.StripPrefix(galleryurl.LocalObjectsPrefix, deps.LocalObjects)
		routes.GET(galleryurl.RegexLocalObjects, func(c *RequestContext) ResponseData {
			var res ResponseData
			objects.ServeHTTP(&res, c.Req)
			return res
		})
	}

	routes.AnyMethod(galleryurl.RegexCatchAll, FourOhFour)

	return router
}
