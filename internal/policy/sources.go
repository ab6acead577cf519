package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/server/models"
)

func (p *Policy) GetAsset(_ context.Context, id string) (*access.Asset, error) {
	asset, ok := p.assets[id]
	if !ok {
		return nil, internal.ErrNotFound
	}
	copied := *asset
	return &copied, nil
}

// PermittedAccounts merges every permission of user on the asset. An account
// granted more than once gets the union of the actions and the latest expiry.
func (p *Policy) PermittedAccounts(_ context.Context, user, assetID string) ([]access.PermittedAccount, error) {
	if _, ok := p.assets[assetID]; !ok {
		return nil, nil
	}

	var result []access.PermittedAccount
	index := make(map[string]int)

	grant := func(account access.Account, perm ConfigPermission) {
		i, ok := index[account.Name]
		if !ok {
			index[account.Name] = len(result)
			result = append(result, access.PermittedAccount{
				Account:   account,
				Actions:   append([]string{}, perm.Actions...),
				ExpiresAt: perm.ExpiresAt,
			})
			return
		}

		existing := &result[i]
		for _, action := range perm.Actions {
			if !contains(existing.Actions, action) {
				existing.Actions = append(existing.Actions, action)
			}
		}
		existing.ExpiresAt = laterExpiry(existing.ExpiresAt, perm.ExpiresAt)
	}

	for _, perm := range p.permissions {
		if !matches(perm.Users, user) || !matches(perm.Assets, assetID) {
			continue
		}

		for _, name := range perm.Accounts {
			switch name {
			case models.AliasAll:
				for _, account := range p.accounts[assetID] {
					grant(account, perm)
				}
			case models.AliasInput, models.AliasUser:
				grant(access.Account{Name: name, Username: name}, perm)
			default:
				for _, account := range p.accounts[assetID] {
					if account.Name == name {
						grant(account, perm)
					}
				}
			}
		}
	}

	return result, nil
}

// laterExpiry returns the later of two expiry times, where zero never expires.
func laterExpiry(a, b time.Time) time.Time {
	if a.IsZero() || b.IsZero() {
		return time.Time{}
	}
	if b.After(a) {
		return b
	}
	return a
}

// MatchRules returns the rules for the login in priority order.
func (p *Policy) MatchRules(_ context.Context, user string, asset *access.Asset, account access.Account) ([]access.ACLRule, error) {
	var rules []access.ACLRule
	for _, r := range p.rules {
		if !matches(r.users, user) || !matches(r.assets, asset.ID) {
			continue
		}
		if !matches(r.accounts, account.Name) && !matches(r.accounts, account.Username) {
			continue
		}
		rules = append(rules, r.ACLRule)
	}
	return rules, nil
}

func (p *Policy) AppletHosts(_ context.Context, connectMethod string) ([]access.AppletHost, error) {
	if _, ok := p.applets[connectMethod]; !ok {
		return nil, fmt.Errorf("%v is not an applet", connectMethod)
	}

	var hosts []access.AppletHost
	for _, host := range p.appletHosts {
		if contains(p.hostApplets[host.ID], connectMethod) {
			hosts = append(hosts, host)
		}
	}
	return hosts, nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
