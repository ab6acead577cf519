package access

import (
	"context"
	"time"

	"github.com/infrahq/broker/internal/server/models"
)

// Asset is a host, database or cluster a user may connect to.
type Asset struct {
	ID             string
	Name           string
	Address        string
	OrganizationID string
	Protocols      []string
}

// SupportsProtocol returns true if protocol is one of the protocols of the
// asset.
func (a *Asset) SupportsProtocol(protocol string) bool {
	for _, p := range a.Protocols {
		if p == protocol {
			return true
		}
	}
	return false
}

// Account is a set of credentials on an asset.
type Account struct {
	ID         string
	Name       string
	Username   string
	Secret     string
	SecretType string
}

func (a Account) HasSecret() bool {
	return a.Secret != ""
}

// PermittedAccount is one account a user is allowed to use on an asset. Alias
// grants use the alias (@INPUT, @USER) as the account username and carry no
// secret.
type PermittedAccount struct {
	Account   Account
	Actions   []string
	ExpiresAt time.Time
}

// AssetSource looks up assets by id. A missing asset is internal.ErrNotFound.
type AssetSource interface {
	GetAsset(ctx context.Context, id string) (*Asset, error)
}

// PermissionSource lists the accounts user is permitted to use on an asset.
type PermissionSource interface {
	PermittedAccounts(ctx context.Context, user string, assetID string) ([]PermittedAccount, error)
}

// ACLSource lists the login ACL rules that match a user, asset and account,
// ordered by priority.
type ACLSource interface {
	MatchRules(ctx context.Context, user string, asset *Asset, account Account) ([]ACLRule, error)
}

// ReviewTicket describes the login review that a ticket is created for.
type ReviewTicket struct {
	Requester      string
	Asset          *Asset
	Account        Account
	Reviewers      []string
	OrganizationID string
}

// TicketCreator creates a review ticket as part of the request transaction.
type TicketCreator interface {
	CreateReviewTicket(rCtx RequestContext, req ReviewTicket) (*models.Ticket, error)
}

// AppletHost is a remote application server. Its accounts are shared by all
// users of the applet, one session per account at a time.
type AppletHost struct {
	ID       string
	Name     string
	Address  string
	Accounts []Account
}

// AppletHostSource lists the hosts that can serve an applet connect method.
type AppletHostSource interface {
	AppletHosts(ctx context.Context, connectMethod string) ([]AppletHost, error)
}

// SlotRegistry tracks which shared applet accounts are in use.
type SlotRegistry interface {
	// Acquire holds the slot for accountID on behalf of holder until it is
	// released or ttl passes. It returns false if the slot is already held.
	Acquire(ctx context.Context, accountID, holder string, ttl time.Duration) (bool, error)
	// Release frees the slot for accountID. It returns false if no slot was held.
	Release(ctx context.Context, accountID string) (bool, error)
}
