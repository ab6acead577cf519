package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/uid"
)

type Client struct {
	// Name and Version of the program using the client, sent in the
	// User-Agent header.
	Name      string
	Version   string
	URL       string
	AccessKey string
	HTTP      http.Client
}

type Query map[string][]string

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiError := Error{Code: int32(resp.StatusCode)}
	if err := json.Unmarshal(body, &apiError); err != nil || apiError.Code == 0 {
		apiError.Code = int32(resp.StatusCode)
	}
	return apiError
}

func (c Client) buildRequest(ctx context.Context, method, path string, query Query, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, reader)
	if err != nil {
		return nil, err
	}

	req.URL.RawQuery = url.Values(query).Encode()
	req.Header.Add("Authorization", "Bearer "+c.AccessKey)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Broker-Version", internal.FullVersion())
	req.Header.Add("User-Agent", fmt.Sprintf("Broker/%v (%v %v; %v/%v)", internal.FullVersion(), c.Name, c.Version, runtime.GOOS, runtime.GOARCH))
	return req, nil
}

func (c Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if err := checkError(resp, body); err != nil {
		return nil, fmt.Errorf("%s %q responded %d: %w", req.Method, req.URL.Path, resp.StatusCode, err)
	}
	return body, nil
}

func decode[Res any](body []byte) (*Res, error) {
	var res Res
	if len(body) == 0 {
		return &res, nil
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parsing json response: %w. partial text: %q", err, partialText(body, 100))
	}
	return &res, nil
}

func get[Res any](ctx context.Context, client Client, path string, query Query) (*Res, error) {
	req, err := client.buildRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	body, err := client.do(req)
	if err != nil {
		return nil, err
	}
	return decode[Res](body)
}

func request[Req, Res any](ctx context.Context, client Client, method string, path string, req *Req) (*Res, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}

	httpReq, err := client.buildRequest(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}

	body, err = client.do(httpReq)
	if err != nil {
		return nil, err
	}
	return decode[Res](body)
}

func post[Req, Res any](ctx context.Context, client Client, path string, req *Req) (*Res, error) {
	return request[Req, Res](ctx, client, http.MethodPost, path, req)
}

func patch[Req, Res any](ctx context.Context, client Client, path string, req *Req) (*Res, error) {
	return request[Req, Res](ctx, client, http.MethodPatch, path, req)
}

func (c Client) CreateConnectionToken(ctx context.Context, req *CreateConnectionTokenRequest) (*ConnectionToken, error) {
	return post[CreateConnectionTokenRequest, ConnectionToken](ctx, c, "/api/connection-tokens", req)
}

func (c Client) ListConnectionTokens(ctx context.Context) (*ListResponse[ConnectionToken], error) {
	return get[ListResponse[ConnectionToken]](ctx, c, "/api/connection-tokens", Query{})
}

func (c Client) GetConnectionToken(ctx context.Context, id uid.ID) (*ConnectionToken, error) {
	return get[ConnectionToken](ctx, c, fmt.Sprintf("/api/connection-tokens/%s", id), Query{})
}

func (c Client) RenewConnectionToken(ctx context.Context, id uid.ID) (*RenewConnectionTokenResponse, error) {
	return patch[TokenIDRequest, RenewConnectionTokenResponse](ctx, c, "/api/connection-tokens/renew", &TokenIDRequest{ID: id})
}

func (c Client) ExpireConnectionToken(ctx context.Context, id uid.ID) error {
	_, err := patch[EmptyRequest, EmptyResponse](ctx, c, fmt.Sprintf("/api/connection-tokens/%s/expire", id), &EmptyRequest{})
	return err
}

func (c Client) ExchangeConnectionToken(ctx context.Context, req *ExchangeConnectionTokenRequest) (*ConnectionToken, error) {
	return post[ExchangeConnectionTokenRequest, ConnectionToken](ctx, c, "/api/connection-tokens/exchange", req)
}

func (c Client) RevealSecret(ctx context.Context, req *RevealSecretRequest) (*ConnectionTokenSecret, error) {
	return post[RevealSecretRequest, ConnectionTokenSecret](ctx, c, "/api/connection-tokens/secret", req)
}

func (c Client) ClientURL(ctx context.Context, req LaunchRequest) (*ClientURLResponse, error) {
	return post[LaunchRequest, ClientURLResponse](ctx, c, fmt.Sprintf("/api/connection-tokens/%s/client-url", req.ID), &req)
}

// RDPFile returns the content of the .rdp file of a token.
func (c Client) RDPFile(ctx context.Context, req LaunchRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}

	httpReq, err := c.buildRequest(ctx, http.MethodPost, fmt.Sprintf("/api/connection-tokens/%s/rdp-file", req.ID), nil, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/octet-stream")
	return c.do(httpReq)
}

func (c Client) AppletOption(ctx context.Context, id uid.ID) (*AppletOption, error) {
	return post[TokenIDRequest, AppletOption](ctx, c, "/api/connection-tokens/applet-option", &TokenIDRequest{ID: id})
}

func (c Client) ReleaseAppletAccount(ctx context.Context, accountID string) (*ReleaseAppletAccountResponse, error) {
	return post[ReleaseAppletAccountRequest, ReleaseAppletAccountResponse](ctx, c, "/api/connection-tokens/applet-account/release", &ReleaseAppletAccountRequest{ID: accountID})
}

func (c Client) ListTickets(ctx context.Context, req ListTicketsRequest) (*ListResponse[Ticket], error) {
	return get[ListResponse[Ticket]](ctx, c, "/api/tickets", Query{"state": {req.State}})
}

func (c Client) ApproveTicket(ctx context.Context, id uid.ID) (*Ticket, error) {
	return patch[EmptyRequest, Ticket](ctx, c, fmt.Sprintf("/api/tickets/%s/approve", id), &EmptyRequest{})
}

func (c Client) RejectTicket(ctx context.Context, id uid.ID) (*Ticket, error) {
	return patch[EmptyRequest, Ticket](ctx, c, fmt.Sprintf("/api/tickets/%s/reject", id), &EmptyRequest{})
}

func partialText(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}

	return string(body[:limit]) + "..."
}
