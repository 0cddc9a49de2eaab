package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
	"github.com/buyukinventory/marketplace/internal/http/views"
	"github.com/buyukinventory/marketplace/internal/logging"
	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
)

const (
	dashboardLoadError = "We could not load your inventory right now."
	recentSalesLimit   = 10
)

// HandleDashboard renders the vendor dashboard. Load failures are shown on
// the page; they never change the session's auth state.
func (h *Handlers) HandleDashboard(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx := c.Request().Context()
	addVary(c, hxRequestHeader, hxTargetHeader, hxBoostedHeader)

	query := strings.TrimSpace(c.QueryParam("q"))
	filter := strings.TrimSpace(c.QueryParam("filter"))
	if filter == "" {
		filter = catalog.FilterAll
	}

	data := viewmodels.DashboardViewData{
		Layout:     h.LayoutData(c, "Dashboard"),
		VendorName: principal.Email,
		Query:      query,
		Filter:     filter,
	}
	if rec, err := h.Profiles.Get(ctx, principal.ID); err == nil && rec.Name != "" {
		data.VendorName = rec.Name
	}

	stores, err := h.Catalog.VendorStores(ctx, principal.ID)
	var products []catalog.Product
	if err == nil {
		products, err = h.Catalog.VendorProducts(ctx, principal.ID)
	}
	var sales []catalog.Sale
	if err == nil {
		sales, err = h.Catalog.VendorSales(ctx, principal.ID)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("load vendor dashboard", "vendor_id", principal.ID, "error", err)
		data.LoadError = dashboardLoadError
		return h.RenderComponentStatus(c, http.StatusOK, views.DashboardPage(data))
	}

	m := catalog.Metrics(products)
	data.Metrics = viewmodels.DashboardMetrics{
		TotalRevenue:  catalog.FormatCurrency(m.TotalRevenue),
		TotalCost:     catalog.FormatCurrency(m.TotalCost),
		TotalProducts: m.TotalProducts,
		AverageMargin: m.AverageMargin.StringFixed(1) + "%",
		LowStockItems: m.LowStockItems,
	}
	data.HasStores = len(stores) > 0
	data.Categories = catalog.Categories(products)
	data.Stores = dashboardStores(catalog.FilterStores(stores, query), products)
	data.Products = dashboardProducts(catalog.FilterProducts(products, query, filter))
	data.Sales = dashboardSales(sales, stores)

	if hxFrom(c).swaps(views.DashboardResultsID) {
		return h.RenderComponent(c, views.DashboardResults(data))
	}
	return h.RenderComponent(c, views.DashboardPage(data))
}

func dashboardStores(stores []catalog.Store, products []catalog.Product) []viewmodels.DashboardStoreItem {
	counts := make(map[string]int, len(stores))
	for _, p := range products {
		counts[p.StoreID]++
	}
	out := make([]viewmodels.DashboardStoreItem, 0, len(stores))
	for _, s := range stores {
		out = append(out, viewmodels.DashboardStoreItem{
			ID:           s.ID,
			Name:         s.Name,
			Description:  s.Description,
			ProductCount: counts[s.ID],
			StockValue:   catalog.FormatCurrency(catalog.StoreValue(products, s.ID)),
		})
	}
	return out
}

func dashboardProducts(products []catalog.Product) []viewmodels.DashboardProductItem {
	out := make([]viewmodels.DashboardProductItem, 0, len(products))
	for _, p := range products {
		out = append(out, viewmodels.DashboardProductItem{
			ID:        p.ID,
			Name:      p.Name,
			Category:  p.Category,
			StoreName: p.StoreName,
			Price:     catalog.FormatCurrency(decimal.NewFromFloat(p.Price)),
			Cost:      catalog.FormatCurrency(decimal.NewFromFloat(p.Cost)),
			Margin:    catalog.ProductMargin(p).StringFixed(1) + "%",
			InStock:   p.InStock,
			LowStock:  p.InStock < catalog.LowStockThreshold,
			ImageURL:  p.ImageURL,
		})
	}
	return out
}

// dashboardSales returns the most recent sales first.
func dashboardSales(sales []catalog.Sale, stores []catalog.Store) []viewmodels.DashboardSaleItem {
	names := make(map[string]string, len(stores))
	for _, s := range stores {
		names[s.ID] = s.Name
	}
	sorted := append([]catalog.Sale(nil), sales...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > recentSalesLimit {
		sorted = sorted[:recentSalesLimit]
	}

	out := make([]viewmodels.DashboardSaleItem, 0, len(sorted))
	for _, s := range sorted {
		items := 0
		for _, line := range s.Products {
			items += line.Quantity
		}
		storeName := names[s.StoreID]
		if storeName == "" {
			storeName = s.StoreID
		}
		out = append(out, viewmodels.DashboardSaleItem{
			ID:            s.ID,
			StoreName:     storeName,
			Items:         items,
			Total:         catalog.FormatCurrency(decimal.NewFromFloat(s.Total)),
			PaymentMethod: s.PaymentMethod,
			CreatedAt:     s.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return out
}
