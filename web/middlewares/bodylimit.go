package middlewares

import (
	"chupload/core/api"
	"chupload/core/chunks"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// BodyLimit caps request bodies at limit bytes. Requests that announce a
// bigger body are refused outright with the transport errno for an
// oversized upload; bodies that only turn out too big while being read
// fail in the handler with the same errno.
func BodyLimit(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if req.ContentLength > limit {
				zerolog.Ctx(req.Context()).Warn().
					Int64("length", req.ContentLength).
					Int64("limit", limit).
					Msg("request body too large")

				err := chunks.NewError(chunks.Errno(chunks.UploadIniSize), "request body too large", nil)
				resp := api.BuildResponse(err, nil)
				return c.JSON(resp.HttpStatus, resp)
			}

			req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)

			return next(c)
		}
	}
}
