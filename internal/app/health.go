package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/prperemyshlev/hybrid-auth/pkg/database"
)

const healthCheckTimeout = 2 * time.Second

// Health statuses. The service keeps serving from local storage while the
// primary store is down, so a degraded service still answers 200.
const (
	HealthPass     = "pass"
	HealthDegraded = "degraded"
)

type HealthChecker struct {
	probe repository.Prober
	redis *database.Redis
}

func NewHealthChecker(probe repository.Prober, redis *database.Redis) *HealthChecker {
	return &HealthChecker{
		probe: probe,
		redis: redis,
	}
}

// HealthReport is the body of GET /health
type HealthReport struct {
	Status  string `json:"status"`
	Primary string `json:"primary"`
	Redis   string `json:"redis"`
}

func (h *HealthChecker) check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	primary := make(chan bool, 1)
	go func() {
		primary <- h.probe.IsAvailable(ctx)
	}()

	report := HealthReport{Status: HealthPass, Primary: "up", Redis: "disabled"}
	if h.redis != nil {
		report.Redis = "up"
		if err := h.redis.Ping(ctx); err != nil {
			report.Redis = "down"
			report.Status = HealthDegraded
		}
	}

	if !<-primary {
		report.Primary = "down"
		report.Status = HealthDegraded
	}

	return report
}

func (h *HealthChecker) Handler(c *gin.Context) {
	c.JSON(http.StatusOK, h.check(c.Request.Context()))
}
