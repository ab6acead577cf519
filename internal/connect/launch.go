package connect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// URLScheme is the scheme of client launch URLs.
const URLScheme = "jms://"

// LaunchUsername is the username a client presents to the proxy. The token
// value is the password.
func LaunchUsername(tokenID fmt.Stringer) string {
	return "JMS-" + tokenID.String()
}

// Launch produces the artifact for the connect method of the token: an RDP file
// for mstsc and applet methods, otherwise a command line.
func (r *Resolver) Launch(ctx context.Context, req LaunchRequest) (*Artifact, error) {
	method, err := r.registry.Lookup(req.Token.ConnectMethod, req.Token.Protocol, req.OS)
	if err != nil {
		return nil, err
	}

	if method.usesRDPFile() {
		file, err := r.RDPFile(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Artifact{Kind: ArtifactFile, File: file}, nil
	}

	endpoint, err := r.endpoint(ctx, method.EndpointProtocol, req)
	if err != nil {
		return nil, err
	}

	return &Artifact{Kind: ArtifactCommand, Command: renderCommand(method.Command, req, endpoint)}, nil
}

func renderCommand(template string, req LaunchRequest, endpoint *Endpoint) string {
	replacer := strings.NewReplacer(
		"{username}", LaunchUsername(req.Token.ID),
		"{value}", req.Token.Value,
		"{host}", endpoint.Host,
		"{port}", strconv.Itoa(endpoint.Port),
		"{asset}", req.Token.AssetName,
	)
	return replacer.Replace(template)
}

type clientFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"`
}

type clientPayload struct {
	ID       string     `json:"id"`
	Value    string     `json:"value"`
	Protocol string     `json:"protocol"`
	Command  string     `json:"command"`
	File     clientFile `json:"file"`
}

// ClientURL encodes the launch artifact of a token as a URL that the client
// launcher application handles.
func (r *Resolver) ClientURL(ctx context.Context, req LaunchRequest) (*Artifact, error) {
	artifact, err := r.Launch(ctx, req)
	if err != nil {
		return nil, err
	}

	payload := clientPayload{
		ID:       req.Token.ID.String(),
		Value:    req.Token.Value,
		Protocol: req.Token.Protocol,
		Command:  artifact.Command,
	}
	if artifact.File != nil {
		payload.Protocol = "rdp"
		payload.File = clientFile{Name: artifact.File.Name, Content: artifact.File.Content}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Kind: ArtifactURL,
		URL:  URLScheme + base64.StdEncoding.EncodeToString(raw),
	}, nil
}
