package api

import (
	"errors"

	"github.com/infrahq/broker/internal/validate"
	"github.com/infrahq/broker/uid"
)

// Resource is the uri binding of routes that act on a single record.
type Resource struct {
	ID uid.ID `uri:"id"`
}

func (r Resource) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Required("id", r.ID),
	}
}

type EmptyRequest struct{}

type EmptyResponse struct{}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func NewListResponse[T, M any](items []M, fn func(item M) T) *ListResponse[T] {
	result := &ListResponse[T]{Items: make([]T, 0, len(items)), Count: len(items)}
	for _, item := range items {
		result.Items = append(result.Items, fn(item))
	}
	return result
}

var (
	// ErrUnauthorized means the request did not carry a valid access key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")

	ErrDuplicate       = errors.New("duplicate record")
	ErrNotFound        = errors.New("record not found")
	ErrBadRequest      = errors.New("bad request")
	ErrInternal        = errors.New("internal error")
	ErrTooManyRequests = errors.New("too many requests")
	ErrBadGateway      = errors.New("bad gateway")
)
