package discovery

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/tablewire/tablewire-go/pkg/wire"
)

const (
	// ServiceType is the mDNS service type for table servers.
	ServiceType = "_tablewire._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// Config configures an Advertiser.
type Config struct {
	// InstanceName is the advertised instance. Defaults to the host
	// name; truncated to the DNS label limit.
	InstanceName string

	// Port the table server listens on.
	Port int

	// Interface restricts advertising to one network interface. Empty
	// means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Defaults to DefaultTTL.
	TTL time.Duration
}

// Advertiser registers the table service with mDNS. Safe for
// concurrent use; Start and Stop may be called repeatedly.
type Advertiser struct {
	cfg Config

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Advertisement begins on Start.
func NewAdvertiser(cfg Config) *Advertiser {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Advertiser{cfg: cfg}
}

// Start registers the service. A running advertisement is replaced.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	opts := []zeroconf.ServerOption{
		zeroconf.TTL(uint32(a.cfg.TTL.Seconds())),
	}

	server, err := zeroconf.Register(
		instanceName(a.cfg.InstanceName),
		ServiceType,
		Domain,
		a.cfg.Port,
		txtRecords(),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement. Safe to call without Start.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns the configured interface, nil for all.
func (a *Advertiser) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// instanceName resolves and bounds the advertised instance name.
func instanceName(configured string) string {
	name := configured
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "tablewire"
		}
		name = host
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// txtRecords builds the advertised TXT records.
func txtRecords() []string {
	return []string{
		"version=" + wire.ProtocolVersion,
	}
}
