package access

import (
	"sort"

	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/uid"
)

const resourceAppletSlot = "applet account"

// AppletOption is the host account reserved for an applet session.
type AppletOption struct {
	Token   *models.ConnectionToken
	Host    AppletHost
	Account Account
}

// AppletOption reserves a free host account for the applet connect method of
// a token. The reservation lasts until ReleaseAppletSlot or the slot TTL.
func (b *Broker) AppletOption(rCtx RequestContext, id uid.ID) (*AppletOption, error) {
	if _, err := requireSuper(rCtx, "reserve", resourceAppletSlot); err != nil {
		return nil, err
	}

	token, err := b.getOwnedToken(rCtx, id)
	if err != nil {
		return nil, err
	}
	if token.IsExpired(b.now()) {
		return nil, ErrTokenExpired
	}

	ctx := requestCtx(rCtx)
	hosts, err := b.appletHosts.AppletHosts(ctx, token.ConnectMethod)
	if err != nil {
		return nil, UpstreamError{Collaborator: "applet host", Err: err}
	}

	sort.SliceStable(hosts, func(i, j int) bool {
		return hosts[i].Name < hosts[j].Name
	})

	for _, host := range hosts {
		for _, account := range host.Accounts {
			ok, err := b.slots.Acquire(ctx, account.ID, token.ID.String(), b.options.AppletSlotTTL)
			if err != nil {
				return nil, UpstreamError{Collaborator: "applet slot", Err: err}
			}
			if ok {
				return &AppletOption{Token: token, Host: host, Account: account}, nil
			}
		}
	}

	return nil, ErrAppletSlotUnavailable
}

// ReleaseAppletSlot frees the applet host account. It returns false when the
// account was not reserved.
func (b *Broker) ReleaseAppletSlot(rCtx RequestContext, accountID string) (bool, error) {
	if _, err := requireSuper(rCtx, "release", resourceAppletSlot); err != nil {
		return false, err
	}

	released, err := b.slots.Release(requestCtx(rCtx), accountID)
	if err != nil {
		return false, UpstreamError{Collaborator: "applet slot", Err: err}
	}
	return released, nil
}
