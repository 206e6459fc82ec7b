package middlewares

import (
	"chupload/core/database"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const RequestIDHeaderKey = echo.HeaderXRequestID

// RequestLogger tags every request with an id and puts a logger carrying
// it into the request context, where zerolog.Ctx finds it.
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(RequestIDHeaderKey)
			if requestID == "" {
				id, err := database.NewID()
				if err == nil {
					requestID = id
				}
			}

			c.Response().Header().Set(RequestIDHeaderKey, requestID)

			logger := base.With().Str("request_id", requestID).Logger()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info().
				Str("method", req.Method).
				Str("path", c.Path()).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("request")

			return nil
		}
	}
}
