package access

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const RequestContextKey = "requestContext"

// RequestContext stores the http.Request, and values derived from the request
// like the authenticated user. It also provides a database transaction.
type RequestContext struct {
	Request       *http.Request
	DBTxn         *gorm.DB
	Authenticated Authenticated
}

// Authenticated stores data about the authenticated user. If User is nil, it
// indicates that no user was authenticated.
type Authenticated struct {
	User *User
}

type Role string

const (
	RoleUser  Role = "user"
	RoleSuper Role = "super"
)

// User is a caller of the broker API. Super users act on behalf of the
// terminal and applet services.
type User struct {
	Name string
	Role Role
}

func (u *User) IsSuper() bool {
	return u != nil && u.Role == RoleSuper
}

// GetRequestContext returns the RequestContext set by the server middleware.
func GetRequestContext(c *gin.Context) RequestContext {
	if raw, ok := c.Get(RequestContextKey); ok {
		if rCtx, ok := raw.(RequestContext); ok {
			return rCtx
		}
	}
	return RequestContext{}
}
