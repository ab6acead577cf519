// Package connect turns connection tokens into the files, commands and URLs
// that client applications use to open a session.
package connect

import (
	"context"
	"fmt"

	"github.com/infrahq/broker/internal/server/models"
)

const defaultColorDepth = 32

// Options are the RDP client settings shared by every generated file.
type Options struct {
	ColorDepth   int
	DisableAudio bool
}

// Endpoint is the address of the proxy a client connects to for a protocol.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Address() string {
	return fmt.Sprintf("%v:%d", e.Host, e.Port)
}

// EndpointResolver finds the proxy endpoint for a protocol and asset, as seen
// from the client at clientAddr.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, protocol, assetID, clientAddr string) (*Endpoint, error)
}

// Option is a single RDP file setting, for example "remoteapplicationmode:i"
// with value "1".
type Option struct {
	Key   string
	Value string
}

// RemoteAppResolver returns the remote application settings for the connect
// method of a token, in the order they are written.
type RemoteAppResolver interface {
	RemoteAppOptions(ctx context.Context, token *models.ConnectionToken) ([]Option, error)
}

// LaunchRequest is everything needed to produce an artifact for a token. All
// fields except Token are optional.
type LaunchRequest struct {
	Token *models.ConnectionToken
	// Actions are the actions granted to the token.
	Actions        []string
	OS             string
	ClientAddr     string
	Width          string
	Height         string
	DrivesRedirect bool
	FullScreen     bool
}

// Resolver builds launch artifacts. It holds no mutable state.
type Resolver struct {
	options   Options
	registry  *Registry
	endpoints EndpointResolver
	apps      RemoteAppResolver
}

func NewResolver(options Options, registry *Registry, endpoints EndpointResolver, apps RemoteAppResolver) *Resolver {
	if options.ColorDepth <= 0 {
		options.ColorDepth = defaultColorDepth
	}
	return &Resolver{
		options:   options,
		registry:  registry,
		endpoints: endpoints,
		apps:      apps,
	}
}

func (r *Resolver) Registry() *Registry {
	return r.registry
}

func (r *Resolver) endpoint(ctx context.Context, protocol string, req LaunchRequest) (*Endpoint, error) {
	endpoint, err := r.endpoints.ResolveEndpoint(ctx, protocol, req.Token.AssetID, req.ClientAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %v endpoint: %w", protocol, err)
	}
	return endpoint, nil
}
