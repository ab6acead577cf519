package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/infrahq/broker/api"
	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/connect"
	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/internal/server/data"
	"github.com/infrahq/broker/internal/server/redis"
	"github.com/infrahq/broker/internal/validate"
)

const (
	reasonUpstreamFailure          = "upstream_failure"
	reasonConnectMethodUnsupported = "connect_method_unsupported"
	reasonTicketProcessed          = "ticket_processed"
)

// sendAPIError translates err into the appropriate HTTP status code, builds a
// response body using api.Error, then sends both as a response to the active
// request.
func sendAPIError(c *gin.Context, err error) {
	resp := newAPIError(c, err)
	c.JSON(int(resp.Code), resp)
	c.Abort()
}

func newAPIError(c *gin.Context, err error) *api.Error {
	resp := &api.Error{
		Code:    http.StatusInternalServerError,
		Message: "internal server error", // don't leak any info by default
	}

	var validationError validate.Error
	var uniqueConstraintError data.UniqueConstraintError
	var authzError access.AuthorizationError
	var accessError *access.Error
	var upstreamError access.UpstreamError
	var overLimitError redis.OverLimitError

	log := logging.L.Debug()

	switch {
	case errors.Is(err, internal.ErrUnauthorized):
		resp.Code = http.StatusUnauthorized
		// hide the error text, it may contain sensitive information
		resp.Message = "unauthorized"
		// log the error at info because it is not in the response
		log = logging.L.Info()

	case errors.As(err, &authzError):
		resp.Code = http.StatusForbidden
		resp.Message = authzError.Error()

	case errors.Is(err, internal.ErrForbidden):
		resp.Code = http.StatusForbidden
		resp.Message = err.Error()
		if errors.As(err, &accessError) {
			resp.Reason = accessError.Code
		}

	case errors.As(err, &overLimitError):
		resp.Code = http.StatusTooManyRequests
		resp.Message = err.Error()
		c.Header("Retry-After", fmt.Sprint(int(math.Ceil(overLimitError.RetryAfter.Seconds()))))

	case errors.As(err, &uniqueConstraintError):
		resp.Code = http.StatusConflict
		resp.Message = err.Error()

	case errors.Is(err, data.ErrTicketProcessed):
		resp.Code = http.StatusConflict
		resp.Reason = reasonTicketProcessed
		resp.Message = err.Error()

	case errors.Is(err, connect.ErrConnectMethodUnsupported):
		resp.Code = http.StatusBadRequest
		resp.Reason = reasonConnectMethodUnsupported
		resp.Message = err.Error()

	case errors.As(err, &accessError):
		resp.Code = http.StatusBadRequest
		if errors.Is(err, access.ErrTokenNotFoundOrNotOwned) {
			resp.Code = http.StatusNotFound
		}
		resp.Reason = accessError.Code
		resp.Message = err.Error()

	case errors.As(err, &upstreamError):
		resp.Code = http.StatusBadGateway
		resp.Reason = reasonUpstreamFailure
		resp.Message = err.Error()
		log = logging.L.Warn()

	case errors.Is(err, internal.ErrNotFound):
		resp.Code = http.StatusNotFound
		resp.Message = err.Error()

	case errors.As(err, &validationError):
		resp.Code = http.StatusBadRequest
		resp.Message = err.Error()
		for name, problems := range validationError {
			resp.FieldErrors = append(resp.FieldErrors, api.FieldError{
				FieldName: name,
				Errors:    problems,
			})
		}
		sort.Slice(resp.FieldErrors, func(i, j int) bool {
			return resp.FieldErrors[i].FieldName < resp.FieldErrors[j].FieldName
		})

	case errors.Is(err, internal.ErrBadRequest):
		resp.Code = http.StatusBadRequest
		resp.Message = err.Error()

	case errors.Is(err, internal.ErrNotImplemented):
		resp.Code = http.StatusNotImplemented
		resp.Message = internal.ErrNotImplemented.Error()

	case errors.Is(err, internal.ErrBadGateway):
		resp.Code = http.StatusBadGateway
		resp.Message = err.Error()

	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = http.StatusGatewayTimeout // not ideal, but StatusRequestTimeout isn't intended for this.
		resp.Message = "request timed out"

	default:
		log = logging.L.Error()
	}

	log.CallerSkipFrame(2).
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int32("statusCode", resp.Code).
		Str("reason", resp.Reason).
		Str("remoteAddr", c.Request.RemoteAddr).
		Msg("api request error")

	return resp
}
