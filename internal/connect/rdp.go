package connect

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type rdpOptions []Option

// set replaces the value of key in place, or appends it.
func (o *rdpOptions) set(key, value string) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Option{Key: key, Value: value})
}

func (o rdpOptions) String() string {
	var b strings.Builder
	for _, opt := range o {
		b.WriteString(opt.Key)
		b.WriteString(":")
		b.WriteString(opt.Value)
		b.WriteString("\n")
	}
	return b.String()
}

func baseRDPOptions() rdpOptions {
	return rdpOptions{
		{Key: "full address:s", Value: ""},
		{Key: "username:s", Value: ""},
		{Key: "use multimon:i", Value: "0"},
		{Key: "session bpp:i", Value: "32"},
		{Key: "audiomode:i", Value: "0"},
		{Key: "disable wallpaper:i", Value: "0"},
		{Key: "disable full window drag:i", Value: "0"},
		{Key: "disable menu anims:i", Value: "0"},
		{Key: "disable themes:i", Value: "0"},
		{Key: "alternate shell:s", Value: ""},
		{Key: "shell working directory:s", Value: ""},
		{Key: "authentication level:i", Value: "2"},
		{Key: "connect to console:i", Value: "0"},
		{Key: "disable cursor setting:i", Value: "0"},
		{Key: "allow font smoothing:i", Value: "1"},
		{Key: "allow desktop composition:i", Value: "1"},
		{Key: "redirectprinters:i", Value: "0"},
		{Key: "prompt for credentials on client:i", Value: "0"},
		{Key: "autoreconnection enabled:i", Value: "1"},
		{Key: "bookmarktype:i", Value: "3"},
		{Key: "use redirection server name:i", Value: "0"},
		{Key: "smart sizing:i", Value: "1"},
	}
}

// canTransfer is true when the actions allow copying files both ways. The
// transfer action is shorthand for upload and download.
func canTransfer(actions []string) bool {
	if contains(actions, "transfer") {
		return true
	}
	return contains(actions, "upload") && contains(actions, "download")
}

// RDPFile builds the remote desktop file for a token. The same request and
// endpoint always produce the same file.
func (r *Resolver) RDPFile(ctx context.Context, req LaunchRequest) (*RDPFile, error) {
	token := req.Token
	opts := baseRDPOptions()

	if req.DrivesRedirect && canTransfer(req.Actions) {
		opts.set("drivestoredirect:s", "*")
	}

	if req.FullScreen {
		opts.set("screen mode id:i", "2")
	} else {
		opts.set("screen mode id:i", "1")
	}

	endpoint, err := r.endpoint(ctx, "rdp", req)
	if err != nil {
		return nil, err
	}
	opts.set("full address:s", endpoint.Address())
	opts.set("username:s", fmt.Sprintf("%v|%v", token.UserName, token.ID))

	if width, height, ok := dimensions(req.Width, req.Height); ok {
		opts.set("desktopwidth:i", strconv.Itoa(width))
		opts.set("desktopheight:i", strconv.Itoa(height))
		opts.set("winposstr:s", fmt.Sprintf("0,1,0,0,%d,%d", width, height))
	}

	opts.set("session bpp:i", strconv.Itoa(r.options.ColorDepth))
	if r.options.DisableAudio {
		opts.set("audiomode:i", "2")
	} else {
		opts.set("audiomode:i", "0")
	}

	if token.ConnectMethod != Mstsc && r.apps != nil {
		appOptions, err := r.apps.RemoteAppOptions(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("remote app options: %w", err)
		}
		for _, opt := range appOptions {
			opts.set(opt.Key, opt.Value)
		}
	}

	return &RDPFile{
		Name:    Filename(token.UserName + "-" + token.AssetName),
		Content: opts.String(),
	}, nil
}

// dimensions parses the requested window size. Both values must be positive
// integers, otherwise the size is left to the client.
func dimensions(width, height string) (int, int, bool) {
	w, err := strconv.Atoi(width)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(height)
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

var unsafeFilenameChars = strings.NewReplacer("/", "_", "\\", "_", ".", "_")

// Filename returns the percent-encoded name, without extension, of a
// connection file.
func Filename(prefix string) string {
	return quote(unsafeFilenameChars.Replace(prefix) + "-jumpserver")
}

// quote percent-encodes every byte except unreserved characters.
func quote(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
