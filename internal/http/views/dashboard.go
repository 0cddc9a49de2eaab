package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
)

const (
	DashboardResultsID = "dashboard-results"

	// The store list is kept live over server-sent events.
	DashboardStoresID         = "dashboard-stores"
	DashboardStoresStreamPath = "/dashboard/stores/stream"
	DashboardStoresEvent      = "stores"

	filterTrigger = "input changed delay:300ms from:input[name='q'], change delay:150ms from:select, submit"
)

func DashboardPage(data viewmodels.DashboardViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="page-header"><h1>`)
		h.text(data.VendorName)
		h.raw(`</h1><p class="muted">Vendor dashboard</p></section>`)
		if data.LoadError != "" {
			retryPanel(h, data.LoadError, DashboardURL(data.Query, data.Filter))
			return h.err
		}
		dashboardFilters(h, data)
		h.component(DashboardResults(data))
		return h.err
	})
	return page(Layout(data.Layout), body)
}

func dashboardFilters(h *htmlWriter, data viewmodels.DashboardViewData) {
	h.raw(`<form class="filters" method="get" action="/dashboard" hx-get="/dashboard"`)
	h.attr("hx-target", "#"+DashboardResultsID)
	h.raw(` hx-swap="outerHTML" hx-push-url="true"`)
	h.attr("hx-trigger", filterTrigger)
	h.raw(`><input type="search" name="q" placeholder="Search products and stores"`)
	h.attr("value", data.Query)
	h.raw(`><select name="filter">`)
	option := func(value, label string) {
		h.raw(`<option`)
		h.attr("value", value)
		if value == data.Filter {
			h.raw(` selected`)
		}
		h.raw(`>`)
		h.text(label)
		h.raw(`</option>`)
	}
	option("all", "All products")
	option("low-stock", "Low stock")
	option("out-of-stock", "Out of stock")
	for _, category := range data.Categories {
		option(category, category)
	}
	h.raw(`</select><button type="submit" class="btn-ghost">Apply</button></form>`)
}

// DashboardStoreList renders the vendor's stores. It is also the payload of
// each live update.
func DashboardStoreList(stores []viewmodels.DashboardStoreItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		if len(stores) == 0 {
			h.raw(`<p class="muted">No stores match your search.</p>`)
			return h.err
		}
		h.raw(`<ul class="store-list">`)
		for _, s := range stores {
			h.raw(`<li class="store"><strong>`)
			h.text(s.Name)
			h.raw(`</strong>`)
			if s.Description != "" {
				h.raw(`<p>`)
				h.text(s.Description)
				h.raw(`</p>`)
			}
			h.raw(`<span class="muted">`)
			h.text(FormatInt(s.ProductCount) + " products · " + s.StockValue)
			h.raw(`</span></li>`)
		}
		h.raw(`</ul>`)
		return h.err
	})
}

// DashboardResults is the fragment swapped by the dashboard filters.
func DashboardResults(data viewmodels.DashboardViewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<div`)
		h.attr("id", DashboardResultsID)
		h.raw(`>`)

		h.raw(`<section class="metrics" aria-label="Inventory metrics">`)
		metricCard(h, "Stock value", data.Metrics.TotalRevenue)
		metricCard(h, "Products", FormatInt(data.Metrics.TotalProducts))
		metricCard(h, "Average margin", data.Metrics.AverageMargin)
		metricCard(h, "Low stock", FormatInt(data.Metrics.LowStockItems))
		h.raw(`</section>`)

		if !data.HasStores {
			h.raw(`<section class="empty-state"><p>You are not assigned to any store yet.</p></section></div>`)
			return h.err
		}

		h.raw(`<section><h2>Stores</h2><div`)
		h.attr("id", DashboardStoresID)
		h.raw(` hx-ext="sse"`)
		h.attr("sse-connect", ListURL(DashboardStoresStreamPath, data.Query, "", ""))
		h.attr("sse-swap", DashboardStoresEvent)
		h.raw(`>`)
		h.component(DashboardStoreList(data.Stores))
		h.raw(`</div></section>`)

		h.raw(`<section><h2>Products</h2>`)
		if len(data.Products) == 0 {
			h.raw(`<p class="muted">No products match your filters.</p>`)
		} else {
			h.raw(`<table class="table"><thead><tr><th>Product</th><th>Category</th><th>Store</th><th>Price</th><th>Cost</th><th>Margin</th><th>In stock</th></tr></thead><tbody>`)
			for _, p := range data.Products {
				h.raw(`<tr`)
				h.attr("data-product-id", p.ID)
				h.raw(`><td>`)
				if p.ImageURL != "" {
					h.raw(`<img class="thumb" alt="" loading="lazy"`)
					h.url("src", p.ImageURL)
					h.raw(`>`)
				}
				h.text(p.Name)
				h.raw(`</td><td>`)
				h.text(p.Category)
				h.raw(`</td><td>`)
				h.text(p.StoreName)
				h.raw(`</td><td>`)
				h.text(p.Price)
				h.raw(`</td><td>`)
				h.text(p.Cost)
				h.raw(`</td><td>`)
				h.text(p.Margin)
				h.raw(`</td><td><span`)
				h.attr("class", StockBadgeClass(p.InStock, p.LowStock))
				h.raw(`>`)
				h.text(FormatInt(p.InStock))
				h.raw(`</span></td></tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		h.raw(`</section>`)

		h.raw(`<section><h2>Recent sales</h2>`)
		if len(data.Sales) == 0 {
			h.raw(`<p class="muted">No sales recorded yet.</p>`)
		} else {
			h.raw(`<table class="table"><thead><tr><th>Date</th><th>Store</th><th>Items</th><th>Payment</th><th>Total</th></tr></thead><tbody>`)
			for _, s := range data.Sales {
				h.raw(`<tr><td>`)
				h.text(s.CreatedAt)
				h.raw(`</td><td>`)
				h.text(s.StoreName)
				h.raw(`</td><td>`)
				h.text(FormatInt(s.Items))
				h.raw(`</td><td>`)
				h.text(HumanizePaymentMethod(s.PaymentMethod))
				h.raw(`</td><td>`)
				h.text(s.Total)
				h.raw(`</td></tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		h.raw(`</section></div>`)
		return h.err
	})
}

func metricCard(h *htmlWriter, label, value string) {
	h.raw(`<div class="card metric"><span class="muted">`)
	h.text(label)
	h.raw(`</span><strong>`)
	h.text(value)
	h.raw(`</strong></div>`)
}
