package policy

import (
	"context"
	"fmt"
	"net"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/connect"
)

const defaultEndpoint = "default"

type endpoint struct {
	name     string
	host     string
	ports    map[string]int
	assets   []string
	networks []*net.IPNet
	clients  []*net.IPNet
}

func buildEndpoint(config ConfigEndpoint) (*endpoint, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("endpoint is missing a name")
	}

	host, err := hostname(config.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}

	e := &endpoint{
		name:   config.Name,
		host:   host,
		ports:  config.Ports,
		assets: config.Assets,
	}

	for protocol, port := range config.Ports {
		if port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid %v port %d", protocol, port)
		}
	}

	if e.networks, err = parseNetworks(config.Networks); err != nil {
		return nil, err
	}
	if e.clients, err = parseNetworks(config.Clients); err != nil {
		return nil, fmt.Errorf("clients: %w", err)
	}

	return e, nil
}

func parseNetworks(cidrs []string) ([]*net.IPNet, error) {
	var networks []*net.IPNet
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		networks = append(networks, ipnet)
	}
	return networks, nil
}

func anyContains(networks []*net.IPNet, ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, network := range networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func (e endpoint) serves(assetID string, ip net.IP) bool {
	return contains(e.assets, assetID) || anyContains(e.networks, ip)
}

// clientIP accepts a bare address or host:port, as found in
// http.Request.RemoteAddr.
func clientIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr)
}

// ResolveEndpoint picks the first endpoint whose clients contain clientAddr,
// then the first that lists the asset or a network containing its address,
// then the default endpoint. The endpoint must have a port for protocol.
func (p *Policy) ResolveEndpoint(_ context.Context, protocol, assetID, clientAddr string) (*connect.Endpoint, error) {
	var match *endpoint
	if client := clientIP(clientAddr); client != nil {
		for i, e := range p.endpoints {
			if anyContains(e.clients, client) {
				match = &p.endpoints[i]
				break
			}
		}
	}

	if match == nil {
		var ip net.IP
		if asset, ok := p.assets[assetID]; ok && asset.Address != "" {
			if host, err := hostname(asset.Address); err == nil {
				ip = net.ParseIP(host)
			}
		}
		for i, e := range p.endpoints {
			if e.serves(assetID, ip) {
				match = &p.endpoints[i]
				break
			}
		}
	}
	if match == nil {
		for i, e := range p.endpoints {
			if e.name == defaultEndpoint {
				match = &p.endpoints[i]
				break
			}
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no endpoint for asset %q: %w", assetID, internal.ErrNotFound)
	}

	port, ok := match.ports[protocol]
	if !ok {
		return nil, fmt.Errorf("endpoint %v has no %v port", match.name, protocol)
	}

	return &connect.Endpoint{Host: match.host, Port: port}, nil
}
