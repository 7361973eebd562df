package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/tablebank/internal/middleware"
)

// HealthPath is probed often and logged at debug level
const HealthPath = "/api/v1/health"

// Logging creates request logging middleware for the API
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger, HealthPath)
}
