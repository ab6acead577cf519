package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"

	"github.com/infrahq/broker/api"
	"github.com/infrahq/broker/internal/validate"
	"github.com/infrahq/broker/uid"
)

func TestBindsQuery(t *testing.T) {
	c, _ := gin.CreateTestContext(nil)

	uri, err := url.Parse("/foo?alpha=beta")
	assert.NilError(t, err)

	c.Request = &http.Request{URL: uri, Method: "GET"}
	r := &struct {
		Alpha string `form:"alpha"`
	}{}
	err = bind(c, r)
	assert.NilError(t, err)

	assert.Equal(t, "beta", r.Alpha)
}

func TestBindsJSON(t *testing.T) {
	c, _ := gin.CreateTestContext(nil)

	uri, err := url.Parse("/foo")
	assert.NilError(t, err)

	body := bytes.NewBufferString(`{"alpha": "zeta"}`)
	c.Request = &http.Request{
		URL:           uri,
		Method:        "GET",
		Body:          io.NopCloser(body),
		ContentLength: int64(body.Len()),
		Header:        http.Header{"Content-Type": []string{"application/json"}},
	}
	r := &struct {
		Alpha string `json:"alpha"`
	}{}
	err = bind(c, r)
	assert.NilError(t, err)

	assert.Equal(t, "zeta", r.Alpha)
}

func TestBindsSnowflake(t *testing.T) {
	c, _ := gin.CreateTestContext(nil)

	id := uid.New()
	id2 := uid.New()

	uri, err := url.Parse(fmt.Sprintf("/foo/%s?form_id=%s", id.String(), id2.String()))
	assert.NilError(t, err)

	c.Request = &http.Request{URL: uri, Method: "GET"}
	c.Params = append(c.Params, gin.Param{Key: "id", Value: id.String()})
	r := &struct {
		ID     uid.ID `uri:"id"`
		FormID uid.ID `form:"form_id"`
	}{}
	err = bind(c, r)
	assert.NilError(t, err)

	assert.Equal(t, id, r.ID)
	assert.Equal(t, id2, r.FormID)
}

func TestBindsLaunchRequest(t *testing.T) {
	c, _ := gin.CreateTestContext(nil)

	id := uid.New()
	uri, err := url.Parse("/api/connection-tokens/" + id.String() + "/rdp-file?width=1280&height=720&full_screen=true")
	assert.NilError(t, err)

	c.Request = &http.Request{URL: uri, Method: "GET"}
	c.Params = append(c.Params, gin.Param{Key: "id", Value: id.String()})
	r := &api.LaunchRequest{}
	err = bind(c, r)
	assert.NilError(t, err)

	expected := &api.LaunchRequest{ID: id, Width: "1280", Height: "720", FullScreen: true}
	assert.DeepEqual(t, expected, r)
}

func TestBindsEmptyRequest(t *testing.T) {
	c, _ := gin.CreateTestContext(nil)

	uri, err := url.Parse("/foo")
	assert.NilError(t, err)

	c.Request = &http.Request{URL: uri, Method: "GET"}
	r := &api.EmptyRequest{}
	err = bind(c, r)
	assert.NilError(t, err)
}

func TestBindValidates(t *testing.T) {
	c, _ := gin.CreateTestContext(nil)

	uri, err := url.Parse("/api/tickets?state=closed")
	assert.NilError(t, err)

	c.Request = &http.Request{URL: uri, Method: "GET"}
	err = bind(c, &api.ListTicketsRequest{})

	var validationErr validate.Error
	assert.Assert(t, errors.As(err, &validationErr), err)
	assert.DeepEqual(t, validationErr["state"], []string{"must be one of (pending, approved, rejected)"})
}

func TestBindsInvalidJSON(t *testing.T) {
	c, _ := gin.CreateTestContext(nil)

	uri, err := url.Parse("/foo")
	assert.NilError(t, err)

	body := bytes.NewBufferString(`{"alpha": `)
	c.Request = &http.Request{
		URL:           uri,
		Method:        "POST",
		Body:          io.NopCloser(body),
		ContentLength: int64(body.Len()),
		Header:        http.Header{"Content-Type": []string{"application/json"}},
	}
	err = bind(c, &struct {
		Alpha string `json:"alpha"`
	}{})
	assert.ErrorContains(t, err, "bad request")
}

func TestGetRoute(t *testing.T) {
	w := httptest.NewRecorder()
	c, e := gin.CreateTestContext(w)
	uri, _ := url.Parse("/")
	c.Request = &http.Request{
		URL: uri,
	}
	r := e.Group("/")

	get(r, "/", func(c *gin.Context, req *api.EmptyRequest) (*api.EmptyResponse, error) {
		return &api.EmptyResponse{}, nil
	})

	routes := e.Routes()

	for _, route := range routes {
		route.HandlerFunc(c)
	}

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNoContentRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	r := router.Group("/")

	called := false
	noContent(r, http.MethodPatch, "/things/:id", func(c *gin.Context, req *api.Resource) error {
		called = req.ID == 42
		return nil
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/things/"+uid.ID(42).String(), nil))
	assert.Equal(t, resp.Code, http.StatusNoContent)
	assert.Assert(t, called)
}
