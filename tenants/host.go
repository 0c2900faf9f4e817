package tenants

import (
	"net"
	"strings"
)

// Host is a request host split into labels, with the port kept separately.
type Host struct {
	Labels []string
	Port   string
	local  bool
}

// ParseHost splits hostport. Hosts whose last label is in localSuffixes are local
// development hosts.
func ParseHost(hostport string, localSuffixes []string) Host {
	hostname, port := splitHostPort(hostport)
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")

	h := Host{Port: port}
	if hostname == "" || net.ParseIP(hostname) != nil {
		return h
	}
	h.Labels = strings.Split(hostname, ".")

	last := h.Labels[len(h.Labels)-1]
	for _, suffix := range localSuffixes {
		if last == suffix {
			h.local = true
			break
		}
	}
	return h
}

func splitHostPort(hostport string) (string, string) {
	if host, port, err := net.SplitHostPort(hostport); err == nil {
		return host, port
	}
	return hostport, ""
}

// IsTenant reports whether the host carries a tenant subdomain: more than two
// labels for real domains, exactly two for local development hosts.
func (h Host) IsTenant() bool {
	if h.local {
		return len(h.Labels) == 2
	}
	return len(h.Labels) > 2
}

// Subdomain returns the first label.
func (h Host) Subdomain() string {
	if len(h.Labels) == 0 {
		return ""
	}
	return h.Labels[0]
}

// WithSubdomain returns the host:port string for subdomain on the same parent
// domain. The first label is replaced on tenant hosts and prepended otherwise.
func (h Host) WithSubdomain(subdomain string) string {
	parent := h.Labels
	if h.IsTenant() {
		parent = h.Labels[1:]
	}
	hostname := strings.Join(append([]string{subdomain}, parent...), ".")
	if h.Port == "" {
		return hostname
	}
	return net.JoinHostPort(hostname, h.Port)
}
