package sys

import (
	"net"
	neturl "net/url"
	"strings"
)

// IsLocalhost reports whether url points at the loopback interface. It accepts a full
// URL, a redis:// address or a bare host[:port].
func IsLocalhost(url string) bool {
	host := url
	if u, err := neturl.Parse(url); err == nil && u.Host != "" {
		host = u.Hostname() // strips [] for IPv6
	} else if h, _, err := net.SplitHostPort(url); err == nil {
		host = h
	} else {
		host = strings.Trim(host, "[]")
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}
