// Package mdns advertises the PageTune server on the local network so
// reader apps can find it without manual configuration.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the mDNS service type for PageTune servers.
	ServiceType = "_pagetune._tcp"

	// APIVersion is the API version advertised in TXT records.
	APIVersion = "v1"

	// ServerVersion is the server version advertised in TXT records.
	ServerVersion = "1.0.0"
)

// Announcement describes the server being advertised.
type Announcement struct {
	ID   string
	Name string
	Port int
	// Personalized is true when a music generation service is configured.
	Personalized bool
}

// TXTRecords returns the key=value pairs published with the service.
func (a Announcement) TXTRecords() []string {
	records := []string{
		fmt.Sprintf("id=%s", a.ID),
		fmt.Sprintf("name=%s", a.Name),
		fmt.Sprintf("version=%s", ServerVersion),
		fmt.Sprintf("api=%s", APIVersion),
	}
	if a.Personalized {
		records = append(records, "music=generated")
	}
	return records
}

// Service manages mDNS advertisement for the server.
type Service struct {
	server *mdns.Server
	logger *slog.Logger
	mu     sync.Mutex
}

// NewService creates a new mDNS service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		logger: logger,
	}
}

// Start begins advertising the server. A running advertisement is
// replaced. Errors are usually non-fatal: multicast is often missing in
// containers.
func (s *Service) Start(a Announcement) error {
	if a.Port <= 0 {
		return fmt.Errorf("invalid port %d", a.Port)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
	}

	host, err := os.Hostname()
	if err != nil {
		host = "pagetune-server"
	}

	service, err := mdns.NewMDNSService(
		host,        // instance name
		ServiceType, // service type
		"",          // domain (.local)
		"",          // host (system hostname)
		a.Port,
		nil, // all interfaces
		a.TXTRecords(),
	)
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("start mDNS server: %w", err)
	}
	s.server = server

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", a.Port,
		"name", a.Name,
		"id", a.ID,
	)
	return nil
}

// Running reports whether an advertisement is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Stop stops advertising. Safe to call multiple times or if not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
		s.logger.Info("mDNS advertisement stopped")
	}
}
