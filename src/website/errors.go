package website

import (
	"errors"
	"fmt"
	"net/http"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func FourOhFour(c *RequestContext) ResponseData {
	res := ResponseData{StatusCode: http.StatusNotFound}
	res.WriteJson(errorBody{Error: "Not Found"}, c.Perf)
	return res
}

// Responds with a JSON error. The message shown to the client is taken from
// the first SafeError among errs; anything else only ends up in the logs.
func (c *RequestContext) ErrorResponse(status int, errs ...error) ResponseData {
	res := ResponseData{
		StatusCode: status,
		Errors:     errs,
	}
	res.WriteJson(errorBody{Error: safeMessage(status, errs)}, c.Perf)
	return res
}

func safeMessage(status int, errs []error) string {
	for _, err := range errs {
		var safe *SafeError
		if errors.As(err, &safe) {
			return safe.Msg
		}
	}
	return http.StatusText(status)
}

// A SafeError can be used to wrap another error and explicitly provide
// an error message that is safe to show to a user. This allows the original
// error to easily be logged and for servers to consistently return errors
// in a standard format, without having to worry about leaking sensitive
// info (assuming you use the right middleware!).
type SafeError struct {
	Wrapped error
	Msg     string
}

func NewSafeError(err error, msg string, args ...any) error {
	return &SafeError{
		Wrapped: err,
		Msg:     fmt.Sprintf(msg, args...),
	}
}

func (s *SafeError) Error() string {
	if s.Wrapped == nil {
		return s.Msg
	}
	return fmt.Sprintf("%s: %v", s.Msg, s.Wrapped)
}

func (s *SafeError) Unwrap() error {
	return s.Wrapped
}
