package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/response"
)

const serviceName = "production-management-api"

// Health is used by load balancers to check that the process is serving.
func Health(c echo.Context) error {
	return response.OK(c, http.StatusOK, echo.Map{
		"status":  "ok",
		"service": serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Version reports the running build.
func Version(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return response.OK(c, http.StatusOK, echo.Map{"version": version})
	}
}
