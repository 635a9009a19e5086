package httpapi

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskmate/internal/tasks"
)

// streamEvents sends the current state, then one frame per state change
// until the client goes away or the server shuts down. Changes that arrive while a frame is being
// written collapse into the next frame.
func (s *Server) streamEvents(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	c.Response().WriteHeader(http.StatusOK)

	updates := make(chan struct{}, 1)
	cancel := s.tasks.Subscribe(func(tasks.State) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer cancel()

	ctx := c.Request().Context()
	for {
		data, err := sonic.Marshal(toStateJSON(s.tasks.Snapshot()))
		if err != nil {
			s.log.WithError(err).Error("encode state event")
			return nil
		}
		if _, err := c.Response().Write([]byte("data: ")); err != nil {
			return nil
		}
		if _, err := c.Response().Write(data); err != nil {
			return nil
		}
		if _, err := c.Response().Write([]byte("\n\n")); err != nil {
			return nil
		}
		flusher.Flush()

		select {
		case <-ctx.Done():
			return nil
		case <-s.stopping:
			return nil
		case <-updates:
		}
	}
}
