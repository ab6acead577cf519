package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/connect"
	"github.com/infrahq/broker/internal/server/data"
	"github.com/infrahq/broker/internal/server/models"
)

const defaultTokenExpiry = 5 * time.Minute

type Options struct {
	// TokenExpiry is the lifetime of a new token, and the amount a renewal
	// extends it by.
	TokenExpiry time.Duration
	// NoExpireProtocols lists protocols whose tokens stay active after the
	// secret is revealed, for long lived sessions that reconnect.
	NoExpireProtocols []string
	// AppletSlotTTL bounds how long an applet account is held without a
	// release. Defaults to TokenExpiry.
	AppletSlotTTL time.Duration
}

// Collaborators are the services the broker consults to make a decision.
// Tickets defaults to storing tickets in the request transaction.
type Collaborators struct {
	Assets      AssetSource
	Permissions PermissionSource
	ACLs        ACLSource
	Tickets     TicketCreator
	AppletHosts AppletHostSource
	Slots       SlotRegistry
	Launcher    *connect.Resolver
}

// Broker issues connection tokens and turns them into launch artifacts.
type Broker struct {
	assets      AssetSource
	permissions PermissionSource
	acls        ACLSource
	tickets     TicketCreator
	appletHosts AppletHostSource
	slots       SlotRegistry
	launcher    *connect.Resolver

	options Options
	now     func() time.Time
}

func NewBroker(options Options, c Collaborators) *Broker {
	if options.TokenExpiry <= 0 {
		options.TokenExpiry = defaultTokenExpiry
	}
	if options.AppletSlotTTL <= 0 {
		options.AppletSlotTTL = options.TokenExpiry
	}

	tickets := c.Tickets
	if tickets == nil {
		tickets = dataTickets{}
	}

	return &Broker{
		assets:      c.Assets,
		permissions: c.Permissions,
		acls:        c.ACLs,
		tickets:     tickets,
		appletHosts: c.AppletHosts,
		slots:       c.Slots,
		launcher:    c.Launcher,
		options:     options,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Options returns the effective options of the broker.
func (b *Broker) Options() Options {
	return b.options
}

func (b *Broker) getAsset(ctx context.Context, id string) (*Asset, error) {
	asset, err := b.assets.GetAsset(ctx, id)
	switch {
	case errors.Is(err, internal.ErrNotFound):
		return nil, fmt.Errorf("asset %q: %w", id, internal.ErrNotFound)
	case err != nil:
		return nil, UpstreamError{Collaborator: "asset", Err: err}
	}
	return asset, nil
}

// checked is the result of running a login through permission and ACL checks.
type checked struct {
	asset    *Asset
	grant    *AccountGrant
	decision *ACLDecision
}

// check runs the permission resolver and then the ACL evaluator for a login.
// Nothing is written unless a review ticket is requested.
func (b *Broker) check(rCtx RequestContext, user, assetID, account, protocol string, createTicket bool) (*checked, error) {
	ctx := requestCtx(rCtx)

	selector, err := models.ParseAccountSelector(account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrBadRequest, err)
	}

	asset, err := b.getAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if !asset.SupportsProtocol(protocol) {
		return nil, fmt.Errorf("%w: %q is not a protocol of asset %v", ErrProtocolInvalid, protocol, asset.ID)
	}

	grant, err := b.ResolvePermission(ctx, user, asset, selector)
	if err != nil {
		return nil, err
	}

	decision, err := b.EvaluateACL(rCtx, user, asset, grant.Account, createTicket)
	if err != nil {
		return nil, err
	}

	return &checked{asset: asset, grant: grant, decision: decision}, nil
}

// resolveToken re-resolves the permission of an issued token.
func (b *Broker) resolveToken(ctx context.Context, token *models.ConnectionToken) (*Asset, *AccountGrant, error) {
	selector, err := token.Selector()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", internal.ErrBadRequest, err)
	}

	asset, err := b.getAsset(ctx, token.AssetID)
	if err != nil {
		return nil, nil, err
	}

	grant, err := b.ResolvePermission(ctx, token.UserName, asset, selector)
	if err != nil {
		return nil, nil, err
	}

	return asset, grant, nil
}

func (b *Broker) isNoExpireProtocol(protocol string) bool {
	for _, p := range b.options.NoExpireProtocols {
		if p == protocol {
			return true
		}
	}
	return false
}

// dataTickets stores review tickets in the request transaction.
type dataTickets struct{}

func (dataTickets) CreateReviewTicket(rCtx RequestContext, req ReviewTicket) (*models.Ticket, error) {
	ticket := &models.Ticket{
		Requester:      req.Requester,
		AssetID:        req.Asset.ID,
		AssetName:      req.Asset.Name,
		Account:        req.Account.Username,
		Reviewers:      req.Reviewers,
		OrganizationID: req.OrganizationID,
		State:          models.TicketStatePending,
	}
	if err := data.CreateTicket(rCtx.DBTxn, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}
