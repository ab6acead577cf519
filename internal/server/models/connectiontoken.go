package models

import (
	"time"

	"github.com/infrahq/broker/api"
	"github.com/infrahq/broker/uid"
)

// ConnectionTokenValueLength is the length of a token value. With a 62 symbol
// alphabet this is roughly 190 bits of entropy.
const ConnectionTokenValueLength = 32

type ConnectionToken struct {
	Model

	Value string `gorm:"uniqueIndex:idx_connection_tokens_value"`

	UserName       string `gorm:"index"`
	AssetID        string
	AssetName      string
	Account        string
	OrganizationID string

	ConnectMethod string
	Protocol      string

	InputUsername string
	InputSecret   string

	ExpiresAt    time.Time `gorm:"index:idx_connection_tokens_expires_at"`
	IsActive     bool
	FromTicketID *uid.ID

	// Actions are the actions asked for at creation. The granted actions are
	// derived from the account grant whenever the token is used.
	Actions        CommaSeparatedStrings
	ConnectOptions JSONMap
}

// IsExpired returns true once now has reached the token expiry.
func (t *ConnectionToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsable returns true when the token is active and has not expired.
func (t *ConnectionToken) IsUsable(now time.Time) bool {
	return t.IsActive && !t.IsExpired(now)
}

// Selector parses the stored account selector.
func (t *ConnectionToken) Selector() (AccountSelector, error) {
	return ParseAccountSelector(t.Account)
}

func (t *ConnectionToken) ToAPI() *api.ConnectionToken {
	return &api.ConnectionToken{
		ID:             t.ID,
		Created:        api.Time(t.CreatedAt),
		User:           t.UserName,
		Value:          t.Value,
		AssetID:        t.AssetID,
		AssetName:      t.AssetName,
		Account:        t.Account,
		Protocol:       t.Protocol,
		ConnectMethod:  t.ConnectMethod,
		InputUsername:  t.InputUsername,
		Actions:        t.Actions,
		ConnectOptions: t.ConnectOptions,
		IsActive:       t.IsActive,
		Expires:        api.Time(t.ExpiresAt),
		FromTicketID:   t.FromTicketID,
	}
}
