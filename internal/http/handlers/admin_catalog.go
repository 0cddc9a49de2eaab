package handlers

import (
	"sort"
	"strings"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
	"github.com/buyukinventory/marketplace/internal/http/views"
	"github.com/buyukinventory/marketplace/internal/logging"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
)

const (
	adminStoresLoadError   = "We could not load the stores right now."
	adminVendorsLoadError  = "We could not load the vendors right now."
	adminEventsLoadError   = "We could not load the events right now."
	adminProductsLoadError = "We could not load the products right now."
)

// HandleAdminStores lists every store with its vendor and product totals.
func (h *Handlers) HandleAdminStores(c *echo.Context) error {
	ctx := c.Request().Context()
	query := strings.TrimSpace(c.QueryParam("q"))
	data := viewmodels.AdminStoresViewData{
		Layout: h.LayoutData(c, "Stores"),
		Query:  query,
	}

	stores, err := h.Catalog.Stores(ctx)
	var products []catalog.Product
	if err == nil {
		products, err = h.Catalog.Products(ctx, stores)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("load admin stores", "error", err)
		data.LoadError = adminStoresLoadError
		return h.RenderComponent(c, views.AdminStoresPage(data))
	}

	counts := make(map[string]int, len(stores))
	for _, p := range products {
		counts[p.StoreID]++
	}
	for _, s := range catalog.FilterStores(stores, query) {
		data.Stores = append(data.Stores, viewmodels.AdminStoreItem{
			ID:           s.ID,
			Name:         s.Name,
			Description:  s.Description,
			VendorCount:  len(s.VendorIDs),
			ProductCount: counts[s.ID],
			StockValue:   catalog.FormatCurrency(catalog.StoreValue(products, s.ID)),
		})
	}
	return h.RenderComponent(c, views.AdminStoresPage(data))
}

// HandleAdminVendors lists vendor profiles with the stores they are assigned
// to. The search matches names, emails and store names.
func (h *Handlers) HandleAdminVendors(c *echo.Context) error {
	ctx := c.Request().Context()
	query := strings.TrimSpace(c.QueryParam("q"))
	data := viewmodels.AdminVendorsViewData{
		Layout: h.LayoutData(c, "Vendors"),
		Query:  query,
	}

	records, err := h.Profiles.List(ctx)
	var stores []catalog.Store
	if err == nil {
		stores, err = h.Catalog.Stores(ctx)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("load admin vendors", "error", err)
		data.LoadError = adminVendorsLoadError
		return h.RenderComponent(c, views.AdminVendorsPage(data))
	}

	data.Vendors = adminVendors(records, catalog.StoreNamesByVendor(stores), query)
	return h.RenderComponent(c, views.AdminVendorsPage(data))
}

func adminVendors(records []profile.Record, storeNames map[string][]string, query string) []viewmodels.AdminVendorItem {
	query = strings.ToLower(query)
	var out []viewmodels.AdminVendorItem
	for _, r := range records {
		if r.Role != auth.RoleVendor {
			continue
		}
		names := storeNames[r.ID]
		if query != "" && !containsAnyFold(query, append([]string{r.Name, r.Email}, names...)...) {
			continue
		}
		out = append(out, viewmodels.AdminVendorItem{
			ID:     r.ID,
			Name:   r.Name,
			Email:  r.Email,
			Stores: names,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// HandleAdminEvents lists events latest first, filtered by search and state.
func (h *Handlers) HandleAdminEvents(c *echo.Context) error {
	ctx := c.Request().Context()
	query := strings.TrimSpace(c.QueryParam("q"))
	state := strings.TrimSpace(c.QueryParam("state"))
	if state == "" {
		state = catalog.FilterAll
	}
	data := viewmodels.AdminEventsViewData{
		Layout: h.LayoutData(c, "Events"),
		Query:  query,
		State:  state,
	}

	events, err := h.Catalog.Events(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("load admin events", "error", err)
		data.LoadError = adminEventsLoadError
		return h.RenderComponent(c, views.AdminEventsPage(data))
	}

	now := time.Now()
	for _, e := range catalog.FilterEvents(events, query, state, now) {
		data.Events = append(data.Events, adminEvent(e, now))
	}
	return h.RenderComponent(c, views.AdminEventsPage(data))
}

func adminEvent(e catalog.Event, now time.Time) viewmodels.AdminEventItem {
	const day = "2 Jan 2006"
	dates := e.Date.UTC().Format(day)
	if last := e.LastDay(); !last.Equal(e.Date) {
		dates += " to " + last.UTC().Format(day)
	}
	schedule := e.Schedule.StartTime
	if e.Schedule.EndTime != "" {
		schedule = strings.TrimPrefix(schedule+" to "+e.Schedule.EndTime, " to ")
	}
	return viewmodels.AdminEventItem{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Dates:       dates,
		Schedule:    schedule,
		Location:    e.Location,
		State:       e.State(now),
	}
}

// HandleAdminProducts lists every product across stores with the dashboard
// search and stock filters.
func (h *Handlers) HandleAdminProducts(c *echo.Context) error {
	ctx := c.Request().Context()
	query := strings.TrimSpace(c.QueryParam("q"))
	filter := strings.TrimSpace(c.QueryParam("filter"))
	if filter == "" {
		filter = catalog.FilterAll
	}
	data := viewmodels.AdminProductsViewData{
		Layout: h.LayoutData(c, "Products"),
		Query:  query,
		Filter: filter,
	}

	stores, err := h.Catalog.Stores(ctx)
	var products []catalog.Product
	if err == nil {
		products, err = h.Catalog.Products(ctx, stores)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("load admin products", "error", err)
		data.LoadError = adminProductsLoadError
		return h.RenderComponent(c, views.AdminProductsPage(data))
	}

	data.Categories = catalog.Categories(products)
	for _, p := range catalog.FilterProducts(products, query, filter) {
		data.Products = append(data.Products, viewmodels.AdminProductItem{
			ID:        p.ID,
			Name:      p.Name,
			Category:  p.Category,
			StoreName: p.StoreName,
			Price:     catalog.FormatCurrency(decimal.NewFromFloat(p.Price)),
			InStock:   p.InStock,
			LowStock:  p.InStock < catalog.LowStockThreshold,
		})
	}
	return h.RenderComponent(c, views.AdminProductsPage(data))
}
