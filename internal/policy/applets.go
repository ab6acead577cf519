package policy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sort"

	"github.com/infrahq/broker/internal/connect"
	"github.com/infrahq/broker/internal/server/models"
)

const defaultAppletProgram = "||tinker"

// ConnectMethods returns the applet connect methods of the policy.
func (p *Policy) ConnectMethods() []connect.Method {
	methods := make([]connect.Method, 0, len(p.applets))
	for _, a := range p.applets {
		methods = append(methods, connect.Method{
			Name:             a.Name,
			Type:             connect.MethodApplet,
			Protocols:        a.Protocols,
			EndpointProtocol: "rdp",
		})
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Name < methods[j].Name
	})
	return methods
}

type appletCommandLine struct {
	AppName      string `json:"app_name"`
	User         string `json:"user"`
	Method       string `json:"method"`
	ConnectToken string `json:"connect_token_id"`
}

// RemoteAppOptions returns the RDP settings that start the applet of the token
// connect method on the applet host. Tokens for other methods get none.
func (p *Policy) RemoteAppOptions(_ context.Context, token *models.ConnectionToken) ([]connect.Option, error) {
	applet, ok := p.applets[token.ConnectMethod]
	if !ok {
		return nil, nil
	}

	cmdline, err := json.Marshal(appletCommandLine{
		AppName:      applet.Name,
		User:         token.UserName,
		Method:       token.ConnectMethod,
		ConnectToken: token.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	program := applet.Program
	if program == "" {
		program = defaultAppletProgram
	}

	return []connect.Option{
		{Key: "remoteapplicationmode:i", Value: "1"},
		{Key: "remoteapplicationprogram:s", Value: program},
		{Key: "remoteapplicationname:s", Value: applet.Name},
		{Key: "remoteapplicationcmdline:s", Value: "- " + base64.StdEncoding.EncodeToString(cmdline)},
	}, nil
}
