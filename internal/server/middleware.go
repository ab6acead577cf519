package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/logging"
)

// TimeoutMiddleware adds a timeout to the request context within the Gin context.
// To correctly abort long-running requests, this depends on the users of the context to
// stop working when the context cancels.
// Note: The goroutine for the request is never halted; if the context is not
// passed down to lower packages and long-running tasks, then the app will not
// magically stop working on the request. No effort should be made to write
// an early http response here; it's up to the users of the context to watch for
// c.Request.Context().Err() or <-c.Request.Context().Done()
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// DatabaseMiddleware injects a `db` object into the Gin context. The
// transaction is rolled back when the handler responds with an error.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			c.Set("db", tx)
			c.Next()
			if c.Writer.Status() >= http.StatusBadRequest {
				return errRollback
			}
			return nil
		})
		if err != nil && err != errRollback { // nolint:errorlint
			logging.Debugf(err.Error())
		}
	}
}

var errRollback = fmt.Errorf("rollback")

func getDB(c *gin.Context) *gorm.DB {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok {
		return nil
	}
	return db
}

// authenticatedMiddleware is applied to all routes that require
// authentication. It validates the access key and sets the RequestContext.
func authenticatedMiddleware(users *userStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authned, err := requireAccessKey(users, c.Request)
		if err != nil {
			sendAPIError(c, err)
			return
		}

		rCtx := access.RequestContext{
			Request:       c.Request,
			DBTxn:         getDB(c),
			Authenticated: authned,
		}
		c.Set(access.RequestContextKey, rCtx)
		c.Next()
	}
}

// requireAccessKey checks the bearer token is present and valid
func requireAccessKey(users *userStore, req *http.Request) (access.Authenticated, error) {
	var u access.Authenticated
	header := req.Header.Get("Authorization")

	bearer := ""
	parts := strings.Split(header, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		bearer = parts[1]
	}

	if strings.TrimSpace(bearer) == "" {
		return u, fmt.Errorf("%w: valid token not found in request", internal.ErrUnauthorized)
	}

	user, ok := users.lookup(bearer)
	if !ok {
		return u, fmt.Errorf("%w: invalid access key", internal.ErrUnauthorized)
	}

	u.User = user
	return u, nil
}
