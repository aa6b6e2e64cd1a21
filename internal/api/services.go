package api

import "github.com/pagetune/pagetune-server/internal/service"

// Services groups the service layer dependencies used by handlers.
type Services struct {
	Documents *service.DocumentService
	Sessions  *service.SessionService
}
