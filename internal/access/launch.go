package access

import (
	"errors"

	"github.com/infrahq/broker/internal/connect"
	"github.com/infrahq/broker/uid"
)

// LaunchOptions are the client side settings of an RDP file or client URL.
type LaunchOptions struct {
	UserAgent      string
	ClientAddr     string
	Width          string
	Height         string
	DrivesRedirect bool
	FullScreen     bool
}

func (b *Broker) launchRequest(rCtx RequestContext, id uid.ID, opts LaunchOptions) (*connect.LaunchRequest, error) {
	token, _, grant, err := b.usableToken(rCtx, id)
	if err != nil {
		return nil, err
	}

	return &connect.LaunchRequest{
		Token:          token,
		Actions:        GrantedActions(grant, token.Actions),
		OS:             connect.ClientOS(opts.UserAgent),
		ClientAddr:     opts.ClientAddr,
		Width:          opts.Width,
		Height:         opts.Height,
		DrivesRedirect: opts.DrivesRedirect,
		FullScreen:     opts.FullScreen,
	}, nil
}

// RDPFile returns the remote desktop file for a usable token.
func (b *Broker) RDPFile(rCtx RequestContext, id uid.ID, opts LaunchOptions) (*connect.RDPFile, error) {
	req, err := b.launchRequest(rCtx, id, opts)
	if err != nil {
		return nil, err
	}

	file, err := b.launcher.RDPFile(requestCtx(rCtx), *req)
	if err != nil {
		return nil, launchError(err)
	}
	return file, nil
}

// ClientURL returns the client launcher URL for a usable token.
func (b *Broker) ClientURL(rCtx RequestContext, id uid.ID, opts LaunchOptions) (string, error) {
	req, err := b.launchRequest(rCtx, id, opts)
	if err != nil {
		return "", err
	}

	artifact, err := b.launcher.ClientURL(requestCtx(rCtx), *req)
	if err != nil {
		return "", launchError(err)
	}
	return artifact.URL, nil
}

func launchError(err error) error {
	if errors.Is(err, connect.ErrConnectMethodUnsupported) {
		return err
	}
	return UpstreamError{Collaborator: "launch", Err: err}
}
