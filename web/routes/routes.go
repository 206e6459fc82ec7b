package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const RoutePing = "/ping"

func Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// Register mounts the upload routes on g. extra runs only in front of the
// chunk upload route.
func Register(g *echo.Group, chunk *ChunkHandler, sse *SSEHandler, extra ...echo.MiddlewareFunc) {
	g.GET(RoutePing, Ping)
	g.POST(RouteChunkUpload, chunk.UploadChunk, extra...)

	if sse != nil {
		g.GET(RouteUploadEvents, sse.StreamProgress)
	}
}
