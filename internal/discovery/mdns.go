// Package discovery advertises the server on the local network over mDNS so
// nearby devices can find it without typing an address.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_wifix._tcp"

// Announcer registers a zeroconf service record for the running server.
// Registration failures are never fatal; discovery is a convenience.
type Announcer struct {
	server *zeroconf.Server
	logger *slog.Logger
}

func NewAnnouncer(logger *slog.Logger) *Announcer {
	return &Announcer{logger: logger.With(slog.String("component", "discovery"))}
}

// Start advertises the service on the given port under serviceName, which
// defaults to the hostname.
func (a *Announcer) Start(port int, serviceName string) error {
	if a.server != nil {
		return nil
	}
	if serviceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "wifix"
		}
		serviceName = hostname
	}
	// mDNS instance names tolerate few special characters.
	serviceName = strings.NewReplacer(" ", "-", "_", "-").Replace(serviceName)

	txt := []string{"path=/", "description=WifiX File Sharing Server"}
	server, err := zeroconf.Register(serviceName, serviceType, "local.", port, txt, nil)
	if err != nil {
		return fmt.Errorf("zeroconf registration: %w", err)
	}
	a.server = server
	a.logger.Info("mDNS service registered",
		slog.String("instance", serviceName),
		slog.String("service", serviceType),
		slog.Int("port", port),
	)
	return nil
}

// Stop withdraws the advertisement.
func (a *Announcer) Stop() {
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mDNS service unregistered")
}
