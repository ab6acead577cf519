package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infrahq/broker/api"
	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/internal/server/redis"
)

// rateOK limits how many tokens a user can mint per minute.
func (a *API) rateOK(c *gin.Context, rCtx access.RequestContext) error {
	user := rCtx.Authenticated.User
	if user == nil {
		return nil
	}
	return redis.RateOK(c.Request.Context(), a.server.redis, "tokens:"+user.Name, a.server.options.RateLimit)
}

func countIssued(token *models.ConnectionToken, err error, success string) {
	switch {
	case errors.Is(err, access.ErrACLReject):
		connectionTokensTotal.WithLabelValues(resultRejected).Inc()
	case err != nil:
		connectionTokensTotal.WithLabelValues(resultFailed).Inc()
	case !token.IsActive:
		connectionTokensTotal.WithLabelValues(resultPendingReview).Inc()
	default:
		connectionTokensTotal.WithLabelValues(success).Inc()
	}
}

func (a *API) CreateConnectionToken(c *gin.Context, r *api.CreateConnectionTokenRequest) (*api.ConnectionToken, error) {
	rCtx := access.GetRequestContext(c)
	if err := a.rateOK(c, rCtx); err != nil {
		return nil, err
	}

	token, err := a.server.broker.CreateConnectionToken(rCtx, access.CreateTokenRequest{
		User:           r.User,
		AssetID:        r.AssetID,
		Account:        r.Account,
		Protocol:       r.Protocol,
		ConnectMethod:  r.ConnectMethod,
		InputUsername:  r.InputUsername,
		InputSecret:    r.InputSecret,
		Actions:        r.Actions,
		ConnectOptions: r.ConnectOptions,
		CreateTicket:   r.CreateTicket,
	})
	countIssued(token, err, resultCreated)
	if err != nil {
		return nil, err
	}
	return token.ToAPI(), nil
}

func (a *API) ListConnectionTokens(c *gin.Context, _ *api.EmptyRequest) (*api.ListResponse[api.ConnectionToken], error) {
	tokens, err := a.server.broker.ListConnectionTokens(access.GetRequestContext(c))
	if err != nil {
		return nil, err
	}

	return api.NewListResponse(tokens, func(token models.ConnectionToken) api.ConnectionToken {
		return *token.ToAPI()
	}), nil
}

func (a *API) GetConnectionToken(c *gin.Context, r *api.Resource) (*api.ConnectionToken, error) {
	token, err := a.server.broker.GetConnectionToken(access.GetRequestContext(c), r.ID)
	if err != nil {
		return nil, err
	}
	return token.ToAPI(), nil
}

func (a *API) RenewConnectionToken(c *gin.Context, r *api.TokenIDRequest) (*api.RenewConnectionTokenResponse, error) {
	token, err := a.server.broker.RenewConnectionToken(access.GetRequestContext(c), r.ID)
	if err != nil {
		return nil, err
	}

	return &api.RenewConnectionTokenResponse{
		OK:      true,
		Msg:     fmt.Sprintf("connection token renewed, expires at %v", token.ExpiresAt.UTC().Format("2006-01-02 15:04:05 MST")),
		Expires: api.Time(token.ExpiresAt),
	}, nil
}

func (a *API) ExpireConnectionToken(c *gin.Context, r *api.Resource) error {
	return a.server.broker.ExpireConnectionToken(access.GetRequestContext(c), r.ID)
}

func (a *API) ExchangeConnectionToken(c *gin.Context, r *api.ExchangeConnectionTokenRequest) (*api.ConnectionToken, error) {
	rCtx := access.GetRequestContext(c)
	if err := a.rateOK(c, rCtx); err != nil {
		return nil, err
	}

	token, err := a.server.broker.ExchangeConnectionToken(rCtx, r.ID, r.CreateTicket)
	countIssued(token, err, resultExchanged)
	if err != nil {
		return nil, err
	}
	return token.ToAPI(), nil
}

func (a *API) RevealSecret(c *gin.Context, r *api.RevealSecretRequest) (*api.ConnectionTokenSecret, error) {
	expireNow := true
	if r.ExpireNow != nil {
		expireNow = *r.ExpireNow
	}

	payload, err := a.server.broker.RevealSecret(access.GetRequestContext(c), r.ID, expireNow)
	if err != nil {
		connectionTokensTotal.WithLabelValues(resultFailed).Inc()
		return nil, err
	}
	connectionTokensTotal.WithLabelValues(resultRevealed).Inc()

	token := payload.Token
	return &api.ConnectionTokenSecret{
		ID:            token.ID,
		Value:         token.Value,
		User:          token.UserName,
		Protocol:      token.Protocol,
		ConnectMethod: token.ConnectMethod,
		Asset: api.SecretAsset{
			ID:        payload.Asset.ID,
			Name:      payload.Asset.Name,
			Address:   payload.Asset.Address,
			Protocols: payload.Asset.Protocols,
		},
		Account: secretAccount(payload.Account),
		Actions: payload.Actions,
		Expires: api.Time(token.ExpiresAt),
	}, nil
}

func secretAccount(account access.Account) api.SecretAccount {
	return api.SecretAccount{
		Name:       account.Name,
		Username:   account.Username,
		Secret:     account.Secret,
		SecretType: account.SecretType,
	}
}

func launchOptions(c *gin.Context, r *api.LaunchRequest) access.LaunchOptions {
	return access.LaunchOptions{
		UserAgent:      c.Request.UserAgent(),
		ClientAddr:     c.ClientIP(),
		Width:          r.Width,
		Height:         r.Height,
		DrivesRedirect: r.DrivesRedirect,
		FullScreen:     r.FullScreen,
	}
}

// RDPFile responds with a .rdp file download for the token.
func (a *API) RDPFile(c *gin.Context) {
	r := &api.LaunchRequest{}
	if err := bind(c, r); err != nil {
		sendAPIError(c, err)
		return
	}

	file, err := a.server.broker.RDPFile(access.GetRequestContext(c), r.ID, launchOptions(c, r))
	if err != nil {
		sendAPIError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s.rdp", file.Name))
	c.Data(http.StatusOK, "application/octet-stream", []byte(file.Content))
}

func (a *API) ClientURL(c *gin.Context, r *api.LaunchRequest) (*api.ClientURLResponse, error) {
	url, err := a.server.broker.ClientURL(access.GetRequestContext(c), r.ID, launchOptions(c, r))
	if err != nil {
		return nil, err
	}
	return &api.ClientURLResponse{URL: url}, nil
}

func (a *API) AppletOption(c *gin.Context, r *api.TokenIDRequest) (*api.AppletOption, error) {
	option, err := a.server.broker.AppletOption(access.GetRequestContext(c), r.ID)
	if err != nil {
		return nil, err
	}

	return &api.AppletOption{
		Token:    *option.Token.ToAPI(),
		HostID:   option.Host.ID,
		HostName: option.Host.Name,
		Address:  option.Host.Address,
		Account:  secretAccount(option.Account),
	}, nil
}

// ReleaseAppletAccount responds with 400 when the account was not reserved.
func (a *API) ReleaseAppletAccount(c *gin.Context) {
	r := &api.ReleaseAppletAccountRequest{}
	if err := bind(c, r); err != nil {
		sendAPIError(c, err)
		return
	}

	released, err := a.server.broker.ReleaseAppletSlot(access.GetRequestContext(c), r.ID)
	if err != nil {
		sendAPIError(c, err)
		return
	}

	status := http.StatusOK
	if !released {
		status = http.StatusBadRequest
	}
	c.JSON(status, api.ReleaseAppletAccountResponse{Released: released})
}
