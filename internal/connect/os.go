package connect

import "strings"

const (
	OSWindows = "windows"
	OSMacOS   = "macos"
	OSLinux   = "linux"
)

// ClientOS classifies a User-Agent header by operating system.
func ClientOS(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "windows"):
		return OSWindows
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os x"):
		return OSMacOS
	case strings.Contains(ua, "linux"), strings.Contains(ua, "x11"):
		return OSLinux
	}
	return OSDefault
}
