package connect

import (
	"errors"
	"fmt"
	"sort"
)

var ErrConnectMethodUnsupported = errors.New("connect method not supported")

type MethodType string

const (
	MethodNative MethodType = "native"
	MethodApplet MethodType = "applet"
)

// Mstsc is the Microsoft remote desktop client. It is launched with an RDP
// file and never receives remote app options.
const Mstsc = "mstsc"

// OSDefault matches a client whose operating system has no specific entry.
const OSDefault = "default"

// Method is one way of launching a session for a protocol.
type Method struct {
	Name string
	Type MethodType
	// Protocols are the asset protocols the method can connect to.
	Protocols []string
	// EndpointProtocol selects the endpoint port the client connects to. It
	// defaults to the asset protocol.
	EndpointProtocol string
	// OS lists the client operating systems that have the method. Empty means
	// OSDefault.
	OS []string
	// Command is the launch command template. It may refer to {username},
	// {value}, {host}, {port} and {asset}.
	Command string
}

func (m Method) usesRDPFile() bool {
	return m.Name == Mstsc || m.Type == MethodApplet
}

type registryKey struct {
	method   string
	protocol string
	os       string
}

// Registry is a read only table of connect methods.
type Registry struct {
	methods map[registryKey]Method
}

// NewRegistry builds a registry from methods. A (method, protocol, os)
// combination may only be registered once.
func NewRegistry(methods ...Method) (*Registry, error) {
	r := &Registry{methods: make(map[registryKey]Method)}

	for _, m := range methods {
		if m.Name == "" {
			return nil, fmt.Errorf("connect method is missing a name")
		}
		if len(m.Protocols) == 0 {
			return nil, fmt.Errorf("connect method %v has no protocols", m.Name)
		}
		if m.Type == "" {
			m.Type = MethodNative
		}
		if m.Type == MethodNative && !m.usesRDPFile() && m.Command == "" {
			return nil, fmt.Errorf("connect method %v has no command", m.Name)
		}

		osList := m.OS
		if len(osList) == 0 {
			osList = []string{OSDefault}
		}

		for _, protocol := range m.Protocols {
			for _, os := range osList {
				key := registryKey{method: m.Name, protocol: protocol, os: os}
				if _, exists := r.methods[key]; exists {
					return nil, fmt.Errorf("connect method %v for %v on %v is registered twice", m.Name, protocol, os)
				}
				entry := m
				if entry.EndpointProtocol == "" {
					entry.EndpointProtocol = protocol
				}
				r.methods[key] = entry
			}
		}
	}

	return r, nil
}

// Lookup returns the method for a client os, falling back to the OSDefault
// entry.
func (r *Registry) Lookup(method, protocol, os string) (Method, error) {
	if m, ok := r.methods[registryKey{method: method, protocol: protocol, os: os}]; ok {
		return m, nil
	}
	if m, ok := r.methods[registryKey{method: method, protocol: protocol, os: OSDefault}]; ok {
		return m, nil
	}
	return Method{}, fmt.Errorf("%w: %v for %v on %v", ErrConnectMethodUnsupported, method, protocol, os)
}

// Names returns the sorted names of all registered methods.
func (r *Registry) Names() []string {
	seen := make(map[string]struct{})
	for key := range r.methods {
		seen[key.method] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NativeMethods are the client applications the broker knows how to launch.
var NativeMethods = []Method{
	{Name: "ssh", Protocols: []string{"ssh"}, Command: "ssh {username}@{host} -p {port}"},
	{Name: "putty", Protocols: []string{"ssh"}, OS: []string{"windows"}, Command: "putty.exe -ssh {username}@{host} -P {port} -pw {value}"},
	{Name: "xshell", Protocols: []string{"ssh"}, OS: []string{"windows"}, Command: "xshell.exe -url ssh://{username}:{value}@{host}:{port}"},
	{Name: Mstsc, Protocols: []string{"rdp"}},
	{Name: "mysql", Protocols: []string{"mysql", "mariadb"}, Command: "mysql -u {username} -p{value} -h {host} -P {port}"},
	{Name: "psql", Protocols: []string{"postgresql"}, Command: "psql \"user={username} password={value} host={host} port={port}\""},
	{Name: "sqlplus", Protocols: []string{"oracle"}, Command: "sqlplus {username}/{value}@{host}:{port}"},
	{Name: "redis-cli", Protocols: []string{"redis"}, Command: "redis-cli -h {host} -p {port} --user {username} --pass {value}"},
	{Name: "mongosh", Protocols: []string{"mongodb"}, Command: "mongosh mongodb://{username}:{value}@{host}:{port}"},
}
