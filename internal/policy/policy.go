// Package policy loads assets, permissions, ACL rules, endpoints and applet
// hosts from a YAML file, and serves them to the broker.
package policy

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/goware/urlx"
	"gopkg.in/yaml.v2"

	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/server/models"
)

const wildcard = "*"

type ConfigAccount struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Username   string `yaml:"username"`
	Secret     string `yaml:"secret"`
	SecretType string `yaml:"secretType"`
}

type ConfigAsset struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Address      string          `yaml:"address"`
	Organization string          `yaml:"organization"`
	Protocols    []string        `yaml:"protocols"`
	Accounts     []ConfigAccount `yaml:"accounts"`
}

type ConfigPermission struct {
	Users     []string  `yaml:"users"`
	Assets    []string  `yaml:"assets"`
	Accounts  []string  `yaml:"accounts"`
	Actions   []string  `yaml:"actions"`
	ExpiresAt time.Time `yaml:"expiresAt"`
}

type ConfigACLRule struct {
	Name      string    `yaml:"name"`
	Priority  int       `yaml:"priority"`
	Action    string    `yaml:"action"`
	Users     []string  `yaml:"users"`
	Assets    []string  `yaml:"assets"`
	Accounts  []string  `yaml:"accounts"`
	Reviewers []string  `yaml:"reviewers"`
	Disabled  bool      `yaml:"disabled"`
	NotBefore time.Time `yaml:"notBefore"`
	NotAfter  time.Time `yaml:"notAfter"`
}

type ConfigEndpoint struct {
	Name  string         `yaml:"name"`
	Host  string         `yaml:"host"`
	Ports map[string]int `yaml:"ports"`
	// Assets and Networks select the targets an endpoint serves. An endpoint
	// named default serves everything else.
	Assets   []string `yaml:"assets"`
	Networks []string `yaml:"networks"`
	// Clients lists CIDRs of client addresses routed through this endpoint
	// regardless of the target.
	Clients []string `yaml:"clients"`
}

type ConfigApplet struct {
	Name      string   `yaml:"name"`
	Protocols []string `yaml:"protocols"`
	Program   string   `yaml:"program"`
}

type ConfigAppletHost struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Address  string          `yaml:"address"`
	Applets  []string        `yaml:"applets"`
	Accounts []ConfigAccount `yaml:"accounts"`
}

type Config struct {
	Assets      []ConfigAsset      `yaml:"assets"`
	Permissions []ConfigPermission `yaml:"permissions"`
	ACLRules    []ConfigACLRule    `yaml:"aclRules"`
	Endpoints   []ConfigEndpoint   `yaml:"endpoints"`
	Applets     []ConfigApplet     `yaml:"applets"`
	AppletHosts []ConfigAppletHost `yaml:"appletHosts"`
}

// Policy is a parsed, validated policy file. It is safe for concurrent use
// because it is never modified after Parse.
type Policy struct {
	assets      map[string]*access.Asset
	accounts    map[string][]access.Account
	permissions []ConfigPermission
	rules       []rule
	endpoints   []endpoint
	applets     map[string]ConfigApplet
	appletHosts []access.AppletHost
	hostApplets map[string][]string
}

type rule struct {
	access.ACLRule
	users    []string
	assets   []string
	accounts []string
}

// Load reads and parses the policy file at path.
func Load(path string) (*Policy, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	p, err := Parse(bs)
	if err != nil {
		return nil, fmt.Errorf("policy file %v: %w", path, err)
	}
	return p, nil
}

func Parse(bs []byte) (*Policy, error) {
	var config Config
	if err := yaml.UnmarshalStrict(bs, &config); err != nil {
		return nil, err
	}

	return New(config)
}

// New validates config and builds a policy from it.
func New(config Config) (*Policy, error) {
	p := &Policy{
		assets:      make(map[string]*access.Asset),
		accounts:    make(map[string][]access.Account),
		permissions: config.Permissions,
		applets:     make(map[string]ConfigApplet),
		hostApplets: make(map[string][]string),
	}

	for _, a := range config.Assets {
		if a.ID == "" {
			return nil, fmt.Errorf("asset %q is missing an id", a.Name)
		}
		if _, exists := p.assets[a.ID]; exists {
			return nil, fmt.Errorf("duplicate asset id %q", a.ID)
		}

		name := a.Name
		if name == "" {
			name = a.ID
		}

		p.assets[a.ID] = &access.Asset{
			ID:             a.ID,
			Name:           name,
			Address:        a.Address,
			OrganizationID: a.Organization,
			Protocols:      a.Protocols,
		}

		accounts, err := buildAccounts(a.Accounts)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", a.ID, err)
		}
		p.accounts[a.ID] = accounts
	}

	for i, perm := range config.Permissions {
		switch {
		case len(perm.Users) == 0:
			return nil, fmt.Errorf("permission %d has no users", i)
		case len(perm.Assets) == 0:
			return nil, fmt.Errorf("permission %d has no assets", i)
		case len(perm.Accounts) == 0:
			return nil, fmt.Errorf("permission %d has no accounts", i)
		case len(perm.Actions) == 0:
			return nil, fmt.Errorf("permission %d has no actions", i)
		}
		for _, id := range perm.Assets {
			if _, ok := p.assets[id]; !ok && id != wildcard {
				return nil, fmt.Errorf("permission %d refers to unknown asset %q", i, id)
			}
		}
	}

	for _, r := range config.ACLRules {
		action, err := access.ParseACLAction(r.Action)
		if err != nil {
			return nil, fmt.Errorf("acl rule %q: %w", r.Name, err)
		}
		if action == access.ACLReview && len(r.Reviewers) == 0 {
			return nil, fmt.Errorf("acl rule %q: review rules need reviewers", r.Name)
		}

		p.rules = append(p.rules, rule{
			ACLRule: access.ACLRule{
				Name:      r.Name,
				Priority:  r.Priority,
				Action:    action,
				Reviewers: r.Reviewers,
				IsActive:  !r.Disabled,
				NotBefore: r.NotBefore,
				NotAfter:  r.NotAfter,
			},
			users:    r.Users,
			assets:   r.Assets,
			accounts: r.Accounts,
		})
	}

	sort.SliceStable(p.rules, func(i, j int) bool {
		return p.rules[i].Priority < p.rules[j].Priority
	})

	for _, e := range config.Endpoints {
		ep, err := buildEndpoint(e)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", e.Name, err)
		}
		p.endpoints = append(p.endpoints, *ep)
	}

	for _, a := range config.Applets {
		if a.Name == "" {
			return nil, fmt.Errorf("applet is missing a name")
		}
		if len(a.Protocols) == 0 {
			return nil, fmt.Errorf("applet %q has no protocols", a.Name)
		}
		if _, exists := p.applets[a.Name]; exists {
			return nil, fmt.Errorf("duplicate applet %q", a.Name)
		}
		p.applets[a.Name] = a
	}

	for _, h := range config.AppletHosts {
		accounts, err := buildAccounts(h.Accounts)
		if err != nil {
			return nil, fmt.Errorf("applet host %q: %w", h.Name, err)
		}
		for _, applet := range h.Applets {
			if _, ok := p.applets[applet]; !ok {
				return nil, fmt.Errorf("applet host %q serves unknown applet %q", h.Name, applet)
			}
		}

		p.appletHosts = append(p.appletHosts, access.AppletHost{
			ID:       h.ID,
			Name:     h.Name,
			Address:  h.Address,
			Accounts: accounts,
		})
		p.hostApplets[h.ID] = h.Applets
	}

	return p, nil
}

func buildAccounts(config []ConfigAccount) ([]access.Account, error) {
	accounts := make([]access.Account, 0, len(config))
	seen := make(map[string]struct{}, len(config))

	for _, a := range config {
		if a.Name == "" {
			return nil, fmt.Errorf("account is missing a name")
		}
		if _, err := models.ParseAccountSelector(a.Name); err != nil {
			return nil, err
		}
		if a.Name[0] == '@' {
			return nil, fmt.Errorf("account name %q is reserved", a.Name)
		}
		if _, exists := seen[a.Name]; exists {
			return nil, fmt.Errorf("duplicate account %q", a.Name)
		}
		seen[a.Name] = struct{}{}

		username := a.Username
		if username == "" {
			username = a.Name
		}

		id := a.ID
		if id == "" {
			id = a.Name
		}

		accounts = append(accounts, access.Account{
			ID:         id,
			Name:       a.Name,
			Username:   username,
			Secret:     a.Secret,
			SecretType: a.SecretType,
		})
	}

	return accounts, nil
}

// hostname returns the host part of an address like "10.0.0.1",
// "db.example.com:5432" or "https://k8s.example.com:6443".
func hostname(address string) (string, error) {
	u, err := urlx.Parse(address)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

func matches(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, value := range values {
		if value == wildcard || value == v {
			return true
		}
	}
	return false
}
