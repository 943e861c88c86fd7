package middleware

import (
	"time"

	"log/slog"

	"rallypoint/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// CorrelationContext copies the request id assigned by the requestid
// middleware into the request context as the correlation id, so logs emitted
// deep in the service layer can be tied back to the request.
func CorrelationContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID, _ := c.Locals("requestid").(string)
		if correlationID == "" {
			correlationID = observability.GenerateCorrelationID()
		}
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), correlationID))
		return c.Next()
	}
}

// RequestLogger returns a Fiber middleware logging each request with slog.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		fields := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("correlation_id", observability.ExtractCorrelationID(c.UserContext())),
		}

		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			observability.GlobalLogger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			observability.GlobalLogger.InfoContext(c.UserContext(), "request processed", fields...)
		}

		return err
	}
}
