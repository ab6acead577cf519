package access

import (
	"context"
	"sort"
	"time"

	"github.com/infrahq/broker/internal/server/models"
)

// AccountGrant is the account a selector resolved to, with the permission
// that allows its use.
type AccountGrant struct {
	Selector  models.AccountSelector
	Account   Account
	Actions   []string
	ExpiresAt time.Time
}

// ResolvePermission maps the account selector to an account user is permitted
// to use on asset.
func (b *Broker) ResolvePermission(ctx context.Context, user string, asset *Asset, selector models.AccountSelector) (*AccountGrant, error) {
	permitted, err := b.permissions.PermittedAccounts(ctx, user, asset.ID)
	if err != nil {
		return nil, UpstreamError{Collaborator: "permission", Err: err}
	}

	var match *PermittedAccount
	switch selector.Kind {
	case models.SelectorLiteral:
		match = findLiteral(permitted, selector.Name)
	case models.SelectorAll:
		match = firstConcrete(permitted)
	case models.SelectorInput, models.SelectorUser:
		match = findAlias(permitted, selector.Name)
	}

	if match == nil || len(match.Actions) == 0 {
		return nil, ErrAccountNotFound
	}

	if !match.ExpiresAt.IsZero() && match.ExpiresAt.Before(b.now()) {
		return nil, ErrPermissionExpired
	}

	grant := &AccountGrant{
		Selector:  selector,
		Account:   match.Account,
		Actions:   match.Actions,
		ExpiresAt: match.ExpiresAt,
	}
	if selector.IsVirtual() {
		grant.Account = Account{Name: selector.Name, Username: selector.Name}
	}

	return grant, nil
}

func isAlias(account Account) bool {
	switch account.Username {
	case models.AliasAll, models.AliasInput, models.AliasUser:
		return true
	}
	return false
}

func findLiteral(permitted []PermittedAccount, name string) *PermittedAccount {
	for i, p := range permitted {
		if isAlias(p.Account) {
			continue
		}
		if p.Account.Name == name || p.Account.Username == name {
			return &permitted[i]
		}
	}
	return nil
}

func firstConcrete(permitted []PermittedAccount) *PermittedAccount {
	var concrete []*PermittedAccount
	for i, p := range permitted {
		if !isAlias(p.Account) {
			concrete = append(concrete, &permitted[i])
		}
	}
	if len(concrete) == 0 {
		return nil
	}

	sort.SliceStable(concrete, func(i, j int) bool {
		return concrete[i].Account.Name < concrete[j].Account.Name
	})
	return concrete[0]
}

func findAlias(permitted []PermittedAccount, alias string) *PermittedAccount {
	for i, p := range permitted {
		if p.Account.Username == alias {
			return &permitted[i]
		}
	}
	return nil
}

// GrantedActions returns the actions a token may use: the requested actions
// allowed by the grant, or every granted action when none were requested.
func GrantedActions(grant *AccountGrant, requested []string) []string {
	if len(requested) == 0 {
		return append([]string{}, grant.Actions...)
	}

	want := make(map[string]struct{}, len(requested))
	for _, action := range requested {
		want[action] = struct{}{}
	}

	granted := []string{}
	for _, action := range grant.Actions {
		if _, ok := want[action]; ok {
			granted = append(granted, action)
		}
	}
	return granted
}
