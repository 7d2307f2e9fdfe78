package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type detailedHealthResponse struct {
	healthResponse
	CognitoConfigured  bool `json:"cognito_configured"`
	APIKeysConfigured  bool `json:"api_keys_configured"`
	DatabaseConfigured bool `json:"database_configured"`
	DatabaseConnected  bool `json:"database_connected"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:      "healthy",
		Version:     h.cfg.AppVersion,
		Environment: h.cfg.Environment,
	})
}

// healthDetailed reports "degraded" when a configured database does not
// answer a ping.
func (h *handler) healthDetailed(c *gin.Context) {
	configured := h.cfg.DatabaseDSN != "" && h.db != nil
	connected := false
	if configured {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn(ctx, "database ping failed", "error", err)
		} else {
			connected = true
		}
	}

	status := "healthy"
	if configured && !connected {
		status = "degraded"
	}

	c.JSON(http.StatusOK, detailedHealthResponse{
		healthResponse: healthResponse{
			Status:      status,
			Version:     h.cfg.AppVersion,
			Environment: h.cfg.Environment,
		},
		CognitoConfigured:  h.cfg.CognitoConfigured(),
		APIKeysConfigured:  h.resolver.APIKeysConfigured(),
		DatabaseConfigured: configured,
		DatabaseConnected:  connected,
	})
}
