package routes

import (
	"chupload/pkg/brokers"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const RouteUploadEvents = "/upload/events/:name"

func SetupSSEeventResponse(c echo.Context) *echo.Response {
	respHeader := c.Response().Header()

	respHeader.Set(echo.HeaderContentType, "text/event-stream")
	respHeader.Set(echo.HeaderCacheControl, "no-cache")
	respHeader.Set(echo.HeaderConnection, "keep-alive")

	return c.Response()
}

// SSEHandler streams the progress of one upload, chunk by chunk and, when
// an archive worker runs, the archive result.
type SSEHandler struct {
	Progress  *brokers.Broker
	Heartbeat time.Duration
}

func (slf *SSEHandler) StreamProgress(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return c.NoContent(http.StatusBadRequest)
	}

	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx).With().Str("topic", name).Logger()

	heartbeat := slf.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}

	receiver, unsubscribe := slf.Progress.Subscribe(ctx, name)
	defer unsubscribe()

	w := SetupSSEeventResponse(c)
	w.WriteHeader(http.StatusOK)
	w.Flush()

	logger.Debug().Msg("progress listener attached")

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("progress listener gone")
			return nil

		case msg, ok := <-receiver:
			if !ok {
				return nil
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Content)
			w.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			w.Flush()
		}
	}
}
