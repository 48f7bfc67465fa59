package identity

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Environment variables consulted for the node name, in order.
var NodeNameEnvVars = []string{"MY_NODE_NAME", "NODE_NAME"}

var ErrNoIdentity = errors.New("identity: hostname could not be determined")

// Identity names the reporting node.
type Identity struct {
	NodeName string
	Hostname string
}

// Resolver looks up identity from configuration, the environment and the
// host. Its lookup functions are replaceable for tests.
type Resolver struct {
	Getenv       func(string) string
	HostInfo     func(ctx context.Context) (string, error)
	HostnameFunc func() (string, error)
}

func NewResolver() *Resolver {
	return &Resolver{
		Getenv:       os.Getenv,
		HostInfo:     hostInfoHostname,
		HostnameFunc: os.Hostname,
	}
}

// Resolve fills the identity from the configured values first. A missing
// hostname falls back to host info, then os.Hostname. A missing node name
// falls back to NodeNameEnvVars, then to the hostname.
func (r *Resolver) Resolve(ctx context.Context, nodeName, hostname string) (Identity, error) {
	id := Identity{
		NodeName: strings.TrimSpace(nodeName),
		Hostname: strings.TrimSpace(hostname),
	}

	if id.Hostname == "" {
		id.Hostname = r.lookupHostname(ctx)
	}
	if id.Hostname == "" {
		return Identity{}, ErrNoIdentity
	}

	if id.NodeName == "" {
		for _, key := range NodeNameEnvVars {
			if v := strings.TrimSpace(r.Getenv(key)); v != "" {
				id.NodeName = v
				break
			}
		}
	}
	if id.NodeName == "" {
		id.NodeName = id.Hostname
	}

	return id, nil
}

func (r *Resolver) lookupHostname(ctx context.Context) string {
	if r.HostInfo != nil {
		if name, err := r.HostInfo(ctx); err == nil && name != "" {
			return name
		}
	}
	if r.HostnameFunc != nil {
		if name, err := r.HostnameFunc(); err == nil {
			return name
		}
	}
	return ""
}

func hostInfoHostname(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", err
	}
	return info.Hostname, nil
}
