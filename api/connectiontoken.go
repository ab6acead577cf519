package api

import (
	"github.com/infrahq/broker/internal/validate"
	"github.com/infrahq/broker/uid"
)

type ConnectionToken struct {
	ID             uid.ID                 `json:"id"`
	Created        Time                   `json:"created"`
	User           string                 `json:"user"`
	Value          string                 `json:"value"`
	AssetID        string                 `json:"asset"`
	AssetName      string                 `json:"assetName"`
	Account        string                 `json:"account"`
	Protocol       string                 `json:"protocol"`
	ConnectMethod  string                 `json:"connectMethod"`
	InputUsername  string                 `json:"inputUsername,omitempty"`
	Actions        []string               `json:"actions"`
	ConnectOptions map[string]interface{} `json:"connectOptions,omitempty"`
	IsActive       bool                   `json:"isActive"`
	Expires        Time                   `json:"expires"`
	FromTicketID   *uid.ID                `json:"fromTicket,omitempty"`
}

type CreateConnectionTokenRequest struct {
	// User is the owner of the token. Only super users may name someone
	// other than themselves.
	User           string                 `json:"user"`
	AssetID        string                 `json:"asset"`
	Account        string                 `json:"account"`
	Protocol       string                 `json:"protocol"`
	ConnectMethod  string                 `json:"connectMethod"`
	InputUsername  string                 `json:"inputUsername"`
	InputSecret    string                 `json:"inputSecret"`
	Actions        []string               `json:"actions"`
	ConnectOptions map[string]interface{} `json:"connectOptions"`
	CreateTicket   bool                   `json:"createTicket"`
}

func (r CreateConnectionTokenRequest) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Required("asset", r.AssetID),
		validate.Required("account", r.Account),
		validate.Required("protocol", r.Protocol),
		validate.Required("connectMethod", r.ConnectMethod),
		validate.StringRule{
			Value:     r.Account,
			Name:      "account",
			MaxLength: 128,
			Printable: true,
		},
		validate.StringRule{
			Value:     r.InputUsername,
			Name:      "inputUsername",
			MaxLength: 128,
			Printable: true,
		},
		validate.Distinct("actions", r.Actions),
	}
}

// TokenIDRequest is the body of the operations that name a token in the
// request body instead of the path.
type TokenIDRequest struct {
	ID uid.ID `json:"id"`
}

func (r TokenIDRequest) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Required("id", r.ID),
	}
}

type RenewConnectionTokenResponse struct {
	OK      bool   `json:"ok"`
	Msg     string `json:"msg"`
	Expires Time   `json:"expires"`
}

type ExchangeConnectionTokenRequest struct {
	ID           uid.ID `json:"id"`
	CreateTicket bool   `json:"createTicket"`
}

func (r ExchangeConnectionTokenRequest) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Required("id", r.ID),
	}
}

type RevealSecretRequest struct {
	ID uid.ID `json:"id"`
	// ExpireNow deactivates the token once the secret is read. It defaults
	// to true.
	ExpireNow *bool `json:"expireNow"`
}

func (r RevealSecretRequest) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Required("id", r.ID),
	}
}

type SecretAsset struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Protocols []string `json:"protocols"`
}

type SecretAccount struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Secret     string `json:"secret"`
	SecretType string `json:"secretType,omitempty"`
}

type ConnectionTokenSecret struct {
	ID            uid.ID        `json:"id"`
	Value         string        `json:"value"`
	User          string        `json:"user"`
	Protocol      string        `json:"protocol"`
	ConnectMethod string        `json:"connectMethod"`
	Asset         SecretAsset   `json:"asset"`
	Account       SecretAccount `json:"account"`
	Actions       []string      `json:"actions"`
	Expires       Time          `json:"expires"`
}

// LaunchRequest carries the client preferences for a launch artifact. It is
// read from the query string or a JSON body.
type LaunchRequest struct {
	ID             uid.ID `uri:"id" json:"-"`
	Width          string `form:"width" json:"width"`
	Height         string `form:"height" json:"height"`
	DrivesRedirect bool   `form:"drives_redirect" json:"drivesRedirect"`
	FullScreen     bool   `form:"full_screen" json:"fullScreen"`
}

func (r LaunchRequest) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Required("id", r.ID),
	}
}

type ClientURLResponse struct {
	URL string `json:"url"`
}

type ReleaseAppletAccountRequest struct {
	ID string `json:"id"`
}

func (r ReleaseAppletAccountRequest) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Required("id", r.ID),
	}
}

type ReleaseAppletAccountResponse struct {
	Released bool `json:"released"`
}

type AppletOption struct {
	Token    ConnectionToken `json:"token"`
	HostID   string          `json:"host"`
	HostName string          `json:"hostName"`
	Address  string          `json:"address"`
	Account  SecretAccount   `json:"account"`
}
