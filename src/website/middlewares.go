package website

import (
	"fmt"
	"net/http"
	"time"

	"github.com/illustory/gallery/src/identity"
	"github.com/illustory/gallery/src/logging"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/perf"
)

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		defer func() {
			if recovered := recover(); recovered != nil {
				maybeError, ok := recovered.(*error)
				var err error
				if ok {
					err = *maybeError
				} else {
					err = oops.New(nil, fmt.Sprintf("Recovered from panic with value: %v", recovered))
				}
				res = c.ErrorResponse(http.StatusInternalServerError, err)
			}
		}()

		return h(c)
	}
}

func trackRequestPerf(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		c.Perf = perf.MakeNewRequestPerf(c.Route, c.Req.Method, c.Req.URL.Path)
		c.ctx = perf.AttachPerf(c.ctx, c.Perf)
		defer func() {
			c.Perf.EndRequest()
			log := c.Logger.Debug()
			blockStack := make([]time.Time, 0)
			for i, block := range c.Perf.Blocks {
				for len(blockStack) > 0 && block.End.After(blockStack[len(blockStack)-1]) {
					blockStack = blockStack[:len(blockStack)-1]
				}
				log.Str(fmt.Sprintf("[%4.d] At %9.2fms", i, c.Perf.MsFromStart(&block)), fmt.Sprintf("%*.s[%s] %s (%.4fms)", len(blockStack)*2, "", block.Category, block.Description, block.DurationMs()))
				blockStack = append(blockStack, block.End)
			}
			log.Msg(fmt.Sprintf("Served [%s] %s in %.4fms", c.Perf.Method, c.Perf.Path, float64(c.Perf.End.Sub(c.Perf.Start).Nanoseconds())/1000/1000))
		}()

		return h(c)
	}
}

// Works out who is asking and gives the request a logger that says so.
// Addresses are only ever logged hashed.
func identifyClient(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		c.NetworkAddress = identity.ClientIP(c.Req.Header, c.Req.RemoteAddr)
		c.AnonymousID = identity.FromRequest(c.Req)

		logger := c.Logger.With().
			Str("route", c.Route).
			Str("client", identity.HashAddress(c.NetworkAddress)).
			Logger()
		c.Logger = &logger
		c.ctx = logging.AttachLoggerToContext(c.Logger, c.ctx)

		return h(c)
	}
}

// Hands out an identifier cookie to anyone who doesn't have one yet. Only the
// response carries it; the handler still sees what the client sent.
func ensureAnonymousIdentifier(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		if identity.FromRequest(c.Req) == "" {
			res.SetCookie(identity.NewCookie(identity.NewIdentifier()))
		}
		return res
	}
}

func rateLimitByAddress(limiter *AddressLimiter) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			if limiter != nil && !limiter.Allow(c.NetworkAddress) {
				c.Logger.Warn().Msg("client is requesting too fast")
				return c.ErrorResponse(http.StatusTooManyRequests, NewSafeError(nil, "Too many requests"))
			}
			return h(c)
		}
	}
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.FullUrl()).Err(err).Msg("error occurred during request")
	}
}

// Client mistakes are routine, so they get a quiet line without a stack.
func logClientErrors(c *RequestContext, status int, errs ...error) {
	for _, err := range errs {
		c.Logger.Info().Int("status", status).Str("Requested", c.FullUrl()).Err(err).Msg("request rejected")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			logClientErrors(c, res.StatusCode, res.Errors...)
		} else {
			logContextErrors(c, res.Errors...)
		}
		return res
	}
}
