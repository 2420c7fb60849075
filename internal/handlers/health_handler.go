package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/recebimentosmart/billing-backend/internal/dto"
)

// Pinger reports database reachability.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	ping      Pinger
	providers map[string]bool
}

// NewHealthHandler takes the providers map as name -> credentials configured.
func NewHealthHandler(ping Pinger, providers map[string]bool) *HealthHandler {
	return &HealthHandler{ping: ping, providers: providers}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "ok"
	if err := h.ping(ctx); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Providers: h.providers,
	})
}
