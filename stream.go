package printshop

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/printshop/sectioncache"
)

const streamKeepAlive = 25 * time.Second

// handleSectionStream sends the cache view as server-sent events: once on
// connect, then after every cache transition. A slow client only ever
// receives the latest state.
func (a *App) handleSectionStream(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	ctx := c.Request().Context()

	updates := make(chan sectioncache.View, 1)
	unsubscribe := a.Cache.Subscribe(func(sectioncache.State) {
		v := a.Cache.View()
		for {
			select {
			case updates <- v:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	view := a.Cache.View()
	if view.IsLoading {
		go a.Cache.Fetch(context.WithoutCancel(ctx), false)
	}

	if err := writeEvent(c, flusher, sectionsResponse(view)); err != nil {
		c.Logger().Error(err)
		return err
	}

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case view = <-updates:
			if err := writeEvent(c, flusher, sectionsResponse(view)); err != nil {
				c.Logger().Error(err)
				return err
			}
		case <-ticker.C:
			if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeEvent(c echo.Context, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	w := c.Response()
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
