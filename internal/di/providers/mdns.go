package providers

import (
	"github.com/samber/do/v2"

	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/id"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/mdns"
)

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	if h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideMDNSService advertises the server on the local network.
// Advertisement failures are logged and never stop startup.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Server.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &MDNSServiceHandle{}, nil
	}

	port := cfg.PortNumber()
	if port == 0 {
		log.Warn("server port is not numeric, skipping mDNS", "port", cfg.Server.Port)
		return &MDNSServiceHandle{}, nil
	}

	svc := mdns.NewService(log.Logger)
	err := svc.Start(mdns.Announcement{
		// Stable across restarts for the same data directory.
		ID:           id.FromKey("srv", cfg.Data.BasePath),
		Name:         cfg.Server.Name,
		Port:         port,
		Personalized: cfg.Music.ServiceURL != "",
	})
	if err != nil {
		log.Warn("mDNS advertisement unavailable", "error", err)
	}
	return &MDNSServiceHandle{Service: svc}, nil
}
