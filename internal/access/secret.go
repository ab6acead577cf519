package access

import (
	"github.com/infrahq/broker/internal/server/models"
)

// SecretExposure describes which credential fields a token may carry.
type SecretExposure struct {
	// BlankSecret is set when the account has a secret. The token never
	// stores it, the client supplies it at connect time.
	BlankSecret bool
	// BlankUsername is set for @INPUT accounts, where the username is left to
	// the client.
	BlankUsername bool
	// LiteralUsername is the username bound to a @USER account.
	LiteralUsername string
}

// GateSecret decides how the input fields of a token for grant are filled.
func GateSecret(grant *AccountGrant, user string) SecretExposure {
	var exposure SecretExposure

	if grant.Account.HasSecret() {
		exposure.BlankSecret = true
	}

	switch grant.Selector.Kind {
	case models.SelectorInput:
		exposure.BlankUsername = true
	case models.SelectorUser:
		exposure.LiteralUsername = user
	}

	return exposure
}

// Apply sets the input fields of token from the values the client asked for.
func (e SecretExposure) Apply(token *models.ConnectionToken, username, secret string) {
	switch {
	case e.LiteralUsername != "":
		token.InputUsername = e.LiteralUsername
	case e.BlankUsername:
		token.InputUsername = username
	default:
		token.InputUsername = ""
	}

	if e.BlankSecret {
		token.InputSecret = ""
	} else {
		token.InputSecret = secret
	}
}

// ResolvedAccount returns the credentials a session for token uses: the input
// username for alias accounts, and the input secret when the account has none.
func ResolvedAccount(grant *AccountGrant, token *models.ConnectionToken) Account {
	account := grant.Account
	if grant.Selector.IsVirtual() {
		account.Username = token.InputUsername
	}
	if !account.HasSecret() {
		account.Secret = token.InputSecret
	}
	return account
}
