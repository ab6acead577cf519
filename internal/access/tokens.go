package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/server/data"
	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/uid"
)

const resourceConnectionToken = "connection token"

type CreateTokenRequest struct {
	// User is the owner of the token. Only super users may set a user other
	// than themselves.
	User           string
	AssetID        string
	Account        string
	Protocol       string
	ConnectMethod  string
	InputUsername  string
	InputSecret    string
	Actions        []string
	ConnectOptions map[string]interface{}
	// CreateTicket opts in to a review ticket when an ACL rule asks for one.
	CreateTicket bool
}

func (b *Broker) tokenOwner(rCtx RequestContext, requested string) (string, error) {
	user, err := authenticatedUser(rCtx)
	if err != nil {
		return "", err
	}

	if requested == "" || requested == user.Name {
		return user.Name, nil
	}

	if !user.IsSuper() {
		return "", AuthorizationError{
			Resource:      resourceConnectionToken,
			Operation:     "create for another user",
			RequiredRoles: []Role{RoleSuper},
		}
	}

	return requested, nil
}

// CreateConnectionToken checks the login against permissions and ACL rules,
// then stores a new token. A token that waits on a review ticket is stored
// inactive.
func (b *Broker) CreateConnectionToken(rCtx RequestContext, req CreateTokenRequest) (*models.ConnectionToken, error) {
	owner, err := b.tokenOwner(rCtx, req.User)
	if err != nil {
		return nil, err
	}

	result, err := b.check(rCtx, owner, req.AssetID, req.Account, req.Protocol, req.CreateTicket)
	if err != nil {
		return nil, err
	}

	token := &models.ConnectionToken{
		UserName:       owner,
		AssetID:        result.asset.ID,
		AssetName:      result.asset.Name,
		Account:        result.grant.Selector.String(),
		OrganizationID: result.asset.OrganizationID,
		ConnectMethod:  req.ConnectMethod,
		Protocol:       req.Protocol,
		ExpiresAt:      b.now().Add(b.options.TokenExpiry),
		IsActive:       true,
		Actions:        req.Actions,
		ConnectOptions: req.ConnectOptions,
	}

	GateSecret(result.grant, owner).Apply(token, req.InputUsername, req.InputSecret)

	if ticket := result.decision.Ticket; ticket != nil {
		token.IsActive = false
		token.FromTicketID = &ticket.ID
	}

	if err := data.CreateConnectionToken(rCtx.DBTxn, token); err != nil {
		return nil, err
	}

	return token, nil
}

// getOwnedToken returns the token if the caller owns it or is a super user.
func (b *Broker) getOwnedToken(rCtx RequestContext, id uid.ID) (*models.ConnectionToken, error) {
	user, err := authenticatedUser(rCtx)
	if err != nil {
		return nil, err
	}

	token, err := data.GetConnectionToken(rCtx.DBTxn, data.ByID(id))
	switch {
	case errors.Is(err, internal.ErrNotFound):
		return nil, ErrTokenNotFoundOrNotOwned
	case err != nil:
		return nil, err
	}

	if token.UserName != user.Name && !user.IsSuper() {
		return nil, ErrTokenNotFoundOrNotOwned
	}

	return token, nil
}

// GetConnectionToken returns an unexpired token of the caller. Super users may
// read any token.
func (b *Broker) GetConnectionToken(rCtx RequestContext, id uid.ID) (*models.ConnectionToken, error) {
	token, err := b.getOwnedToken(rCtx, id)
	if err != nil {
		return nil, err
	}

	if token.IsExpired(b.now()) && !rCtx.Authenticated.User.IsSuper() {
		return nil, ErrTokenNotFoundOrNotOwned
	}

	return token, nil
}

// ListConnectionTokens returns the unexpired tokens of the caller.
func (b *Broker) ListConnectionTokens(rCtx RequestContext) ([]models.ConnectionToken, error) {
	user, err := authenticatedUser(rCtx)
	if err != nil {
		return nil, err
	}

	return data.ListConnectionTokens(rCtx.DBTxn, data.ByUserName(user.Name), data.ByNotExpired(b.now()))
}

// RenewConnectionToken extends the expiry of a token that has not expired yet.
// Every renewal moves the expiry forward.
func (b *Broker) RenewConnectionToken(rCtx RequestContext, id uid.ID) (*models.ConnectionToken, error) {
	if _, err := requireSuper(rCtx, "renew", resourceConnectionToken); err != nil {
		return nil, err
	}

	token, err := data.GetConnectionToken(rCtx.DBTxn, data.ByID(id))
	if err != nil {
		return nil, err
	}

	now := b.now()
	if token.IsExpired(now) {
		return nil, fmt.Errorf("%w: %w: expired at %v", internal.ErrForbidden, ErrTokenExpired, token.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}

	expiresAt := now.Add(b.options.TokenExpiry)
	if !expiresAt.After(token.ExpiresAt) {
		expiresAt = token.ExpiresAt.Add(b.options.TokenExpiry)
	}

	extended, err := data.ExtendConnectionTokenExpiry(rCtx.DBTxn, token.ID, expiresAt)
	if err != nil {
		return nil, err
	}
	if extended {
		token.ExpiresAt = expiresAt
		return token, nil
	}

	// a concurrent renewal stored a later expiry
	return data.GetConnectionToken(rCtx.DBTxn, data.ByID(token.ID))
}

// ExpireConnectionToken deactivates a token. Expiring an inactive token is
// not an error.
func (b *Broker) ExpireConnectionToken(rCtx RequestContext, id uid.ID) error {
	token, err := b.getOwnedToken(rCtx, id)
	if err != nil {
		return err
	}

	return data.DeactivateConnectionToken(rCtx.DBTxn, token.ID)
}

// ExchangeConnectionToken mints a new token with the same login as a usable
// token owned by the caller. Permissions and ACL rules are checked again. The
// source token is left unchanged.
func (b *Broker) ExchangeConnectionToken(rCtx RequestContext, id uid.ID, createTicket bool) (*models.ConnectionToken, error) {
	user, err := authenticatedUser(rCtx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	source, err := data.GetConnectionToken(rCtx.DBTxn,
		data.ByID(id),
		data.ByUserName(user.Name),
		data.ByUsable(now))
	switch {
	case errors.Is(err, internal.ErrNotFound):
		return nil, ErrTokenNotFoundOrNotOwned
	case err != nil:
		return nil, err
	}

	result, err := b.check(rCtx, source.UserName, source.AssetID, source.Account, source.Protocol, createTicket)
	if err != nil {
		return nil, err
	}

	token := &models.ConnectionToken{
		UserName:       source.UserName,
		AssetID:        source.AssetID,
		AssetName:      source.AssetName,
		Account:        source.Account,
		OrganizationID: source.OrganizationID,
		ConnectMethod:  source.ConnectMethod,
		Protocol:       source.Protocol,
		InputUsername:  source.InputUsername,
		InputSecret:    source.InputSecret,
		ExpiresAt:      now.Add(b.options.TokenExpiry),
		IsActive:       true,
		Actions:        source.Actions,
		ConnectOptions: source.ConnectOptions,
	}

	if ticket := result.decision.Ticket; ticket != nil {
		token.IsActive = false
		token.FromTicketID = &ticket.ID
	}

	if err := data.CreateConnectionToken(rCtx.DBTxn, token); err != nil {
		return nil, err
	}

	return token, nil
}

// SecretPayload is everything a proxy needs to open the session of a token.
type SecretPayload struct {
	Token   *models.ConnectionToken
	Asset   *Asset
	Account Account
	Actions []string
}

// RevealSecret returns the secret payload of a usable token. Unless expireNow
// is false, or the token protocol is exempt, the token is deactivated in the
// same statement that checks it is still usable, so a token is revealed at
// most once.
func (b *Broker) RevealSecret(rCtx RequestContext, id uid.ID, expireNow bool) (*SecretPayload, error) {
	if _, err := requireSuper(rCtx, "reveal the secret of", resourceConnectionToken); err != nil {
		return nil, err
	}

	token, err := data.GetConnectionToken(rCtx.DBTxn, data.ByID(id))
	if err != nil {
		return nil, err
	}

	now := b.now()
	if err := usable(token, now); err != nil {
		return nil, err
	}

	asset, grant, err := b.resolveToken(requestCtx(rCtx), token)
	if err != nil {
		return nil, err
	}

	if b.isNoExpireProtocol(token.Protocol) {
		expireNow = false
	}

	if expireNow {
		ok, err := data.DeactivateUsableConnectionToken(rCtx.DBTxn, token.ID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			// lost to a concurrent reveal or expire
			return nil, b.unusableReason(rCtx, token.ID)
		}
		token.IsActive = false
	}

	return &SecretPayload{
		Token:   token,
		Asset:   asset,
		Account: ResolvedAccount(grant, token),
		Actions: GrantedActions(grant, token.Actions),
	}, nil
}

func usable(token *models.ConnectionToken, now time.Time) error {
	if token.IsExpired(now) {
		return ErrTokenExpired
	}
	if !token.IsActive {
		return ErrTokenInactive
	}
	return nil
}

func (b *Broker) unusableReason(rCtx RequestContext, id uid.ID) error {
	token, err := data.GetConnectionToken(rCtx.DBTxn, data.ByID(id))
	if err != nil {
		return err
	}
	if err := usable(token, b.now()); err != nil {
		return err
	}
	return ErrTokenInactive
}

// usableToken returns a token the caller may materialize, with its asset and
// current grant. The token must be active, unexpired and still permitted.
func (b *Broker) usableToken(rCtx RequestContext, id uid.ID) (*models.ConnectionToken, *Asset, *AccountGrant, error) {
	token, err := b.getOwnedToken(rCtx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := usable(token, b.now()); err != nil {
		return nil, nil, nil, err
	}

	asset, grant, err := b.resolveToken(requestCtx(rCtx), token)
	if err != nil {
		return nil, nil, nil, err
	}

	return token, asset, grant, nil
}
