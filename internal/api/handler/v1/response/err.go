package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

type Err struct {
	HTTPStatusCode int   `json:"-"`
	Err            error `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

func (e *Err) Error() string {
	if e.Err == nil {
		return e.StatusText
	}
	return e.Err.Error()
}

func (e *Err) Unwrap() error {
	return e.Err
}

func RenderErr(ctx *gin.Context, e *Err) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", requestid.Get(ctx)),
			zap.String("path", ctx.FullPath()),
			zap.Error(e.Err),
		)
	}
	ctx.AbortWithStatusJSON(e.HTTPStatusCode, e)
}

func ErrBadRequest(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusBadRequest,
		Err:            err,
		StatusText:     "Bad request.",
		ErrorText:      err.Error(),
	}
}

func ErrNotFound(resource, key string, value any) *Err {
	return &Err{
		HTTPStatusCode: http.StatusNotFound,
		Err:            fmt.Errorf("%s with %s %v not found", resource, key, value),
		StatusText:     "Resource not found.",
		ErrorText:      fmt.Sprintf("%s with %s %v not found", resource, key, value),
	}
}

func ErrUnauthorized(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusUnauthorized,
		Err:            err,
		StatusText:     "Unauthorized.",
		ErrorText:      err.Error(),
	}
}

func ErrWrongCredentials(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusUnauthorized,
		Err:            err,
		StatusText:     "Wrong credentials.",
		ErrorText:      "email or password is incorrect",
	}
}

func ErrPermissionDenied(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusForbidden,
		Err:            err,
		StatusText:     "Permission denied.",
		ErrorText:      err.Error(),
	}
}

func ErrServiceUnavailable(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusServiceUnavailable,
		Err:            err,
		StatusText:     "Service temporarily unavailable, try again.",
	}
}

// ErrInternalServerError hides err from the client; it is only logged.
func ErrInternalServerError(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusInternalServerError,
		Err:            err,
		StatusText:     "Internal server error.",
	}
}

// FromDomain maps a service error onto a response by its domain.ErrorKind.
func FromDomain(err error) *Err {
	var e *Err
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindDecode:
		e = ErrBadRequest(err)
	case domain.KindNotFound:
		e = &Err{
			HTTPStatusCode: http.StatusNotFound,
			Err:            err,
			StatusText:     "Resource not found.",
			ErrorText:      message(err),
		}
	case domain.KindAuth:
		e = ErrUnauthorized(err)
	case domain.KindTransientStorage:
		e = ErrServiceUnavailable(err)
	default:
		return ErrInternalServerError(err)
	}
	e.Kind = string(domain.KindOf(err))
	return e
}

func message(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Msg != "" {
		return de.Msg
	}
	return err.Error()
}
