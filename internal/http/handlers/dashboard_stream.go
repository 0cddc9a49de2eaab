package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/http/views"
	"github.com/buyukinventory/marketplace/internal/logging"
	"github.com/labstack/echo/v5"
)

// HandleDashboardStoresStream pushes the vendor's store list as server-sent
// events, once on connect and again whenever a store changes. The stream
// ends when the client goes away or the server shuts down.
func (h *Handlers) HandleDashboardStoresStream(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx := c.Request().Context()
	logger := logging.FromContext(ctx).With("vendor_id", principal.ID)
	query := strings.TrimSpace(c.QueryParam("q"))

	// Only the latest snapshot matters; a slow client skips intermediate ones.
	updates := make(chan []catalog.Store, 1)
	cancel, err := h.Catalog.WatchVendorStores(ctx, principal.ID, func(stores []catalog.Store) {
		select {
		case <-updates:
		default:
		}
		updates <- stores
	})
	if err != nil {
		logger.Warn("watch vendor stores", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, dashboardLoadError)
	}
	defer cancel()

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-store")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(res)
	if err := rc.Flush(); err != nil {
		logger.Warn("flush store stream", "error", err)
		return nil
	}

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return nil
		case stores := <-updates:
			products, err := h.Catalog.VendorProducts(ctx, principal.ID)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("load products for store stream", "error", err)
				}
				continue
			}
			items := dashboardStores(catalog.FilterStores(stores, query), products)

			buf.Reset()
			if err := views.DashboardStoreList(items).Render(ctx, &buf); err != nil {
				logger.Error("render store stream", "error", err)
				return nil
			}
			if err := writeEvent(res, views.DashboardStoresEvent, buf.String()); err != nil {
				return nil
			}
			if err := rc.Flush(); err != nil {
				return nil
			}
		}
	}
}

// writeEvent writes one server-sent event. Every payload line gets its own
// data field.
func writeEvent(w http.ResponseWriter, event, payload string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteString("\n")
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	_, err := w.Write([]byte(b.String()))
	return err
}
