package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/internal/validate"
	"github.com/infrahq/broker/metrics"
)

const defaultRequestTimeout = time.Minute

// API is the set of HTTP handlers of the broker.
type API struct {
	server *Server
}

// GenerateRoutes constructs a http.Handler for the primary http server.
//
// The order of routes in this function is important! Gin saves a route along
// with all the middleware that will apply to the route when the
// Router.{GET,POST,etc} method is called.
func (s *Server) GenerateRoutes(promRegistry prometheus.Registerer) http.Handler {
	a := &API{server: s}
	router := gin.New()
	router.NoRoute(a.notFoundHandler)

	router.Use(gin.Recovery())
	router.GET("/healthz", healthHandler)

	requestTimeout := s.options.API.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	router.Use(
		logging.Middleware(s.options.EnableLogSampling),
		TimeoutMiddleware(requestTimeout),
	)

	api := router.Group("/",
		metrics.Middleware(promRegistry),
		DatabaseMiddleware(s.db), // must be after TimeoutMiddleware to time out db queries.
	)

	authn := api.Group("/", authenticatedMiddleware(s.users))

	post(authn, "/api/connection-tokens", a.CreateConnectionToken)
	get(authn, "/api/connection-tokens", a.ListConnectionTokens)
	get(authn, "/api/connection-tokens/:id", a.GetConnectionToken)
	patch(authn, "/api/connection-tokens/renew", a.RenewConnectionToken)
	noContent(authn, http.MethodPatch, "/api/connection-tokens/:id/expire", a.ExpireConnectionToken)
	post(authn, "/api/connection-tokens/exchange", a.ExchangeConnectionToken)
	handle(authn, http.MethodPost, "/api/connection-tokens/secret", http.StatusOK, a.RevealSecret)
	handle(authn, http.MethodPost, "/api/connection-tokens/applet-option", http.StatusOK, a.AppletOption)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		authn.Handle(method, "/api/connection-tokens/:id/rdp-file", a.RDPFile)
		handle(authn, method, "/api/connection-tokens/:id/client-url", http.StatusOK, a.ClientURL)
	}

	for _, method := range []string{http.MethodDelete, http.MethodPost} {
		authn.Handle(method, "/api/connection-tokens/applet-account/release", a.ReleaseAppletAccount)
	}

	get(authn, "/api/tickets", a.ListTickets)
	patch(authn, "/api/tickets/:id/approve", a.ApproveTicket)
	patch(authn, "/api/tickets/:id/reject", a.RejectTicket)

	return router
}

type ReqHandlerFunc[Req any] func(c *gin.Context, req *Req) error
type ReqResHandlerFunc[Req, Res any] func(c *gin.Context, req *Req) (Res, error)

// handle registers a route that binds Req, and responds with status and the
// JSON encoding of Res.
func handle[Req, Res any](r *gin.RouterGroup, method, route string, status int, handler ReqResHandlerFunc[Req, Res]) {
	r.Handle(method, route, func(c *gin.Context) {
		req := new(Req)
		if err := bind(c, req); err != nil {
			sendAPIError(c, err)
			return
		}

		resp, err := handler(c, req)
		if err != nil {
			sendAPIError(c, err)
			return
		}

		c.JSON(status, resp)
	})
}

func get[Req, Res any](r *gin.RouterGroup, route string, handler ReqResHandlerFunc[Req, Res]) {
	handle(r, http.MethodGet, route, http.StatusOK, handler)
}

func post[Req, Res any](r *gin.RouterGroup, route string, handler ReqResHandlerFunc[Req, Res]) {
	handle(r, http.MethodPost, route, http.StatusCreated, handler)
}

func patch[Req, Res any](r *gin.RouterGroup, route string, handler ReqResHandlerFunc[Req, Res]) {
	handle(r, http.MethodPatch, route, http.StatusOK, handler)
}

func noContent[Req any](r *gin.RouterGroup, method, route string, handler ReqHandlerFunc[Req]) {
	r.Handle(method, route, func(c *gin.Context) {
		req := new(Req)
		if err := bind(c, req); err != nil {
			sendAPIError(c, err)
			return
		}

		if err := handler(c, req); err != nil {
			sendAPIError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
		c.Writer.WriteHeaderNow()
	})
}

func bind(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindUri(req); err != nil {
		return fmt.Errorf("%w: %s", internal.ErrBadRequest, err)
	}

	if err := c.ShouldBindQuery(req); err != nil {
		return fmt.Errorf("%w: %s", internal.ErrBadRequest, err)
	}

	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return fmt.Errorf("%w: %s", internal.ErrBadRequest, err)
		}
	}

	if r, ok := req.(validate.Request); ok {
		if err := validate.Validate(r); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	gin.DisableBindValidation()
}

func healthHandler(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (a *API) notFoundHandler(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api") {
		sendAPIError(c, internal.ErrNotFound)
		return
	}

	c.Status(http.StatusNotFound)
}
