package policy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/connect"
	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/uid"
)

const testPolicy = `
assets:
  - id: web
    name: web.example.com
    address: 10.1.0.5
    organization: org-1
    protocols: [ssh]
    accounts:
      - name: root
        secret: hunter2
        secretType: password
      - name: deploy
        username: deployer
  - id: desk
    name: desk
    address: https://desk.example.com:3389
    protocols: [rdp]
    accounts:
      - name: administrator
        secret: s3cret

permissions:
  - users: [alice]
    assets: [web]
    accounts: [root]
    actions: [connect]
    expiresAt: 2030-01-01T00:00:00Z
  - users: [alice, bob]
    assets: [web]
    accounts: [root, "@INPUT"]
    actions: [connect, transfer]
  - users: ["*"]
    assets: [desk]
    accounts: ["@ALL", "@USER"]
    actions: [connect]

aclRules:
  - name: night
    priority: 50
    action: reject
    users: [bob]
  - name: review-root
    priority: 10
    action: review
    accounts: [root]
    reviewers: [carol]
  - name: disabled
    priority: 1
    action: reject
    disabled: true

endpoints:
  - name: default
    host: proxy.example.com
    ports: {ssh: 2222, rdp: 3389}
  - name: dc1
    host: https://dc1.example.com
    ports: {ssh: 22, rdp: 3390}
    networks: [10.1.0.0/16]
  - name: vpn
    host: vpn.example.com
    ports: {rdp: 13389}
    clients: [192.168.50.0/24]

applets:
  - name: chrome
    protocols: [http, https]
  - name: dbeaver
    protocols: [mysql]
    program: "||dbeaver"

appletHosts:
  - id: host-1
    name: applets-1
    address: 10.2.0.1
    applets: [chrome, dbeaver]
    accounts:
      - name: js1
        id: js-1
      - name: js2
        id: js-2
  - id: host-2
    name: applets-2
    applets: [dbeaver]
    accounts:
      - name: js3
`

func parseTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := Parse([]byte(testPolicy))
	assert.NilError(t, err)
	return p
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	assert.NilError(t, os.WriteFile(path, []byte(testPolicy), 0o600))

	p, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, len(p.assets), 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read policy file")
}

func TestParse_Invalid(t *testing.T) {
	type testCase struct {
		policy      string
		expectedErr string
	}

	testCases := map[string]testCase{
		"unknown field": {
			policy:      "assets:\n  - id: web\n    hostname: x\n",
			expectedErr: "field hostname not found",
		},
		"duplicate asset": {
			policy:      "assets:\n  - id: web\n  - id: web\n",
			expectedErr: `duplicate asset id "web"`,
		},
		"reserved account name": {
			policy:      "assets:\n  - id: web\n    accounts:\n      - name: '@ALL'\n",
			expectedErr: `account name "@ALL" is reserved`,
		},
		"permission for unknown asset": {
			policy:      "permissions:\n  - users: [alice]\n    assets: [db]\n    accounts: [root]\n    actions: [connect]\n",
			expectedErr: `permission 0 refers to unknown asset "db"`,
		},
		"permission without users": {
			policy:      "permissions:\n  - assets: ['*']\n    accounts: [root]\n    actions: [connect]\n",
			expectedErr: "permission 0 has no users",
		},
		"unknown acl action": {
			policy:      "aclRules:\n  - name: r\n    action: allow\n",
			expectedErr: `acl rule "r": unknown acl action "allow"`,
		},
		"review without reviewers": {
			policy:      "aclRules:\n  - name: r\n    action: review\n",
			expectedErr: `acl rule "r": review rules need reviewers`,
		},
		"endpoint port": {
			policy:      "endpoints:\n  - name: default\n    host: proxy\n    ports: {ssh: 70000}\n",
			expectedErr: `endpoint "default": invalid ssh port 70000`,
		},
		"endpoint network": {
			policy:      "endpoints:\n  - name: default\n    host: proxy\n    networks: [10.0.0.0]\n",
			expectedErr: "invalid CIDR address",
		},
		"endpoint clients": {
			policy:      "endpoints:\n  - name: default\n    host: proxy\n    clients: [vpn]\n",
			expectedErr: "clients: invalid CIDR address",
		},
		"unknown applet": {
			policy:      "appletHosts:\n  - id: h\n    name: h\n    applets: [chrome]\n",
			expectedErr: `applet host "h" serves unknown applet "chrome"`,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.policy))
			assert.ErrorContains(t, err, tc.expectedErr)
		})
	}
}

func TestPolicy_GetAsset(t *testing.T) {
	p := parseTestPolicy(t)

	asset, err := p.GetAsset(context.Background(), "web")
	assert.NilError(t, err)
	expected := &access.Asset{
		ID:             "web",
		Name:           "web.example.com",
		Address:        "10.1.0.5",
		OrganizationID: "org-1",
		Protocols:      []string{"ssh"},
	}
	assert.DeepEqual(t, asset, expected)

	_, err = p.GetAsset(context.Background(), "nope")
	assert.Assert(t, errors.Is(err, internal.ErrNotFound))
}

func TestPolicy_PermittedAccounts(t *testing.T) {
	p := parseTestPolicy(t)
	ctx := context.Background()

	root := access.Account{ID: "root", Name: "root", Username: "root", Secret: "hunter2", SecretType: "password"}
	input := access.Account{Name: "@INPUT", Username: "@INPUT"}

	t.Run("merged grants", func(t *testing.T) {
		permitted, err := p.PermittedAccounts(ctx, "alice", "web")
		assert.NilError(t, err)
		expected := []access.PermittedAccount{
			{Account: root, Actions: []string{"connect", "transfer"}},
			{Account: input, Actions: []string{"connect", "transfer"}},
		}
		assert.DeepEqual(t, permitted, expected)
	})

	t.Run("wildcard user and all accounts", func(t *testing.T) {
		permitted, err := p.PermittedAccounts(ctx, "zed", "desk")
		assert.NilError(t, err)
		assert.Equal(t, len(permitted), 2)
		assert.Equal(t, permitted[0].Account.Name, "administrator")
		assert.Equal(t, permitted[1].Account.Username, models.AliasUser)
	})

	t.Run("no grants", func(t *testing.T) {
		permitted, err := p.PermittedAccounts(ctx, "zed", "web")
		assert.NilError(t, err)
		assert.Equal(t, len(permitted), 0)

		permitted, err = p.PermittedAccounts(ctx, "alice", "nope")
		assert.NilError(t, err)
		assert.Equal(t, len(permitted), 0)
	})
}

func TestLaterExpiry(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	assert.Equal(t, laterExpiry(early, late), late)
	assert.Equal(t, laterExpiry(late, early), late)
	assert.Assert(t, laterExpiry(early, time.Time{}).IsZero())
	assert.Assert(t, laterExpiry(time.Time{}, late).IsZero())
}

func TestPolicy_MatchRules(t *testing.T) {
	p := parseTestPolicy(t)
	ctx := context.Background()
	web, err := p.GetAsset(ctx, "web")
	assert.NilError(t, err)

	names := func(rules []access.ACLRule) []string {
		var result []string
		for _, r := range rules {
			result = append(result, r.Name)
		}
		return result
	}

	rules, err := p.MatchRules(ctx, "bob", web, access.Account{Name: "root", Username: "root"})
	assert.NilError(t, err)
	assert.DeepEqual(t, names(rules), []string{"disabled", "review-root", "night"})
	assert.Equal(t, rules[0].IsActive, false)
	assert.Equal(t, rules[1].Action, access.ACLReview)
	assert.DeepEqual(t, rules[1].Reviewers, []string{"carol"})

	rules, err = p.MatchRules(ctx, "alice", web, access.Account{Name: "deploy", Username: "deployer"})
	assert.NilError(t, err)
	assert.DeepEqual(t, names(rules), []string{"disabled"})
}

func TestPolicy_ResolveEndpoint(t *testing.T) {
	p := parseTestPolicy(t)
	ctx := context.Background()

	endpoint, err := p.ResolveEndpoint(ctx, "rdp", "web", "")
	assert.NilError(t, err)
	assert.DeepEqual(t, endpoint, &connect.Endpoint{Host: "dc1.example.com", Port: 3390})

	endpoint, err = p.ResolveEndpoint(ctx, "rdp", "desk", "")
	assert.NilError(t, err)
	assert.DeepEqual(t, endpoint, &connect.Endpoint{Host: "proxy.example.com", Port: 3389})

	_, err = p.ResolveEndpoint(ctx, "mysql", "desk", "")
	assert.ErrorContains(t, err, "endpoint default has no mysql port")

	t.Run("client network takes precedence over the asset", func(t *testing.T) {
		vpn := &connect.Endpoint{Host: "vpn.example.com", Port: 13389}

		endpoint, err := p.ResolveEndpoint(ctx, "rdp", "web", "192.168.50.7:51234")
		assert.NilError(t, err)
		assert.DeepEqual(t, endpoint, vpn)

		endpoint, err = p.ResolveEndpoint(ctx, "rdp", "desk", "192.168.50.7")
		assert.NilError(t, err)
		assert.DeepEqual(t, endpoint, vpn)

		_, err = p.ResolveEndpoint(ctx, "ssh", "desk", "192.168.50.7")
		assert.ErrorContains(t, err, "endpoint vpn has no ssh port")
	})

	t.Run("client outside every client network", func(t *testing.T) {
		endpoint, err := p.ResolveEndpoint(ctx, "rdp", "desk", "172.16.0.9:443")
		assert.NilError(t, err)
		assert.DeepEqual(t, endpoint, &connect.Endpoint{Host: "proxy.example.com", Port: 3389})

		endpoint, err = p.ResolveEndpoint(ctx, "rdp", "desk", "not-an-address")
		assert.NilError(t, err)
		assert.DeepEqual(t, endpoint, &connect.Endpoint{Host: "proxy.example.com", Port: 3389})
	})

	empty, err := New(Config{})
	assert.NilError(t, err)
	_, err = empty.ResolveEndpoint(ctx, "rdp", "desk", "")
	assert.Assert(t, errors.Is(err, internal.ErrNotFound))
}

func TestPolicy_AppletHosts(t *testing.T) {
	p := parseTestPolicy(t)
	ctx := context.Background()

	hosts, err := p.AppletHosts(ctx, "dbeaver")
	assert.NilError(t, err)
	assert.Equal(t, len(hosts), 2)
	assert.DeepEqual(t, hosts[1].Accounts, []access.Account{{ID: "js3", Name: "js3", Username: "js3"}})

	hosts, err = p.AppletHosts(ctx, "chrome")
	assert.NilError(t, err)
	assert.Equal(t, len(hosts), 1)
	assert.Equal(t, hosts[0].Accounts[0].ID, "js-1")

	_, err = p.AppletHosts(ctx, "ssh")
	assert.ErrorContains(t, err, "ssh is not an applet")
}

func TestPolicy_ConnectMethods(t *testing.T) {
	p := parseTestPolicy(t)

	methods := p.ConnectMethods()
	assert.Equal(t, len(methods), 2)
	assert.Equal(t, methods[0].Name, "chrome")
	assert.Equal(t, methods[0].Type, connect.MethodApplet)
	assert.DeepEqual(t, methods[0].Protocols, []string{"http", "https"})

	registry, err := connect.NewRegistry(append(connect.NativeMethods, methods...)...)
	assert.NilError(t, err)
	_, err = registry.Lookup("dbeaver", "mysql", connect.OSWindows)
	assert.NilError(t, err)
}

func TestPolicy_RemoteAppOptions(t *testing.T) {
	p := parseTestPolicy(t)
	ctx := context.Background()

	token := &models.ConnectionToken{
		Model:         models.Model{ID: uid.ID(99)},
		UserName:      "alice",
		ConnectMethod: "dbeaver",
	}
	options, err := p.RemoteAppOptions(ctx, token)
	assert.NilError(t, err)
	assert.Equal(t, len(options), 4)
	assert.DeepEqual(t, options[:3], []connect.Option{
		{Key: "remoteapplicationmode:i", Value: "1"},
		{Key: "remoteapplicationprogram:s", Value: "||dbeaver"},
		{Key: "remoteapplicationname:s", Value: "dbeaver"},
	})

	assert.Equal(t, options[3].Key, "remoteapplicationcmdline:s")
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(options[3].Value, "- "))
	assert.NilError(t, err)
	var cmdline map[string]string
	assert.NilError(t, json.Unmarshal(raw, &cmdline))
	assert.DeepEqual(t, cmdline, map[string]string{
		"app_name":         "dbeaver",
		"user":             "alice",
		"method":           "dbeaver",
		"connect_token_id": uid.ID(99).String(),
	})

	options, err = p.RemoteAppOptions(ctx, &models.ConnectionToken{ConnectMethod: "ssh"})
	assert.NilError(t, err)
	assert.Assert(t, options == nil)

	token.ConnectMethod = "chrome"
	options, err = p.RemoteAppOptions(ctx, token)
	assert.NilError(t, err)
	assert.Equal(t, options[1].Value, defaultAppletProgram)
}
