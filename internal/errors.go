package internal

import (
	"errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadGateway     = errors.New("bad gateway")
	ErrNotImplemented = errors.New("not implemented")
)
