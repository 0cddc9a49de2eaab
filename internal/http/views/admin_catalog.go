package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
)

const (
	AdminStoresPath   = "/admin/stores"
	AdminVendorsPath  = "/admin/vendors"
	AdminEventsPath   = "/admin/events"
	AdminProductsPath = "/admin/products"
)

// adminNav links the admin sections. The overview is only current on /admin
// itself.
func adminNav(h *htmlWriter, activePath string) {
	h.raw(`<nav class="subnav" aria-label="Admin sections"><a href="/admin"`)
	if activePath == "/admin" {
		h.raw(` aria-current="page"`)
	}
	h.raw(`>Overview</a>`)
	navLink(h, activePath, AdminStoresPath, "Stores")
	navLink(h, activePath, AdminVendorsPath, "Vendors")
	navLink(h, activePath, AdminProductsPath, "Products")
	navLink(h, activePath, AdminEventsPath, "Events")
	h.raw(`</nav>`)
}

func adminHeader(h *htmlWriter, title string, layout viewmodels.LayoutData) {
	h.raw(`<section class="page-header"><h1>`)
	h.text(title)
	h.raw(`</h1></section>`)
	adminNav(h, layout.ActivePath)
}

func adminSearch(h *htmlWriter, action, placeholder, query string, extra func()) {
	h.raw(`<form class="filters" method="get"`)
	h.url("action", action)
	h.raw(`><input type="search" name="q"`)
	h.attr("placeholder", placeholder)
	h.attr("value", query)
	h.raw(`>`)
	if extra != nil {
		extra()
	}
	h.raw(`<button type="submit" class="btn-ghost">Search</button></form>`)
}

func selectOptions(h *htmlWriter, name string, selected string, options [][2]string) {
	h.raw(`<select`)
	h.attr("name", name)
	h.raw(`>`)
	for _, o := range options {
		h.raw(`<option`)
		h.attr("value", o[0])
		if o[0] == selected {
			h.raw(` selected`)
		}
		h.raw(`>`)
		h.text(o[1])
		h.raw(`</option>`)
	}
	h.raw(`</select>`)
}

func AdminStoresPage(data viewmodels.AdminStoresViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		adminHeader(h, "Stores", data.Layout)
		if data.LoadError != "" {
			retryPanel(h, data.LoadError, ListURL(AdminStoresPath, data.Query, "", ""))
			return h.err
		}
		adminSearch(h, AdminStoresPath, "Search stores", data.Query, nil)
		if len(data.Stores) == 0 {
			h.raw(`<p class="muted">No stores found.</p>`)
			return h.err
		}
		h.raw(`<table class="table"><thead><tr><th>Store</th><th>Vendors</th><th>Products</th><th>Stock value</th></tr></thead><tbody>`)
		for _, s := range data.Stores {
			h.raw(`<tr`)
			h.attr("data-store-id", s.ID)
			h.raw(`><td><strong>`)
			h.text(s.Name)
			h.raw(`</strong>`)
			if s.Description != "" {
				h.raw(`<p class="muted">`)
				h.text(s.Description)
				h.raw(`</p>`)
			}
			h.raw(`</td><td>`)
			h.text(FormatInt(s.VendorCount))
			h.raw(`</td><td>`)
			h.text(FormatInt(s.ProductCount))
			h.raw(`</td><td>`)
			h.text(s.StockValue)
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}

func AdminVendorsPage(data viewmodels.AdminVendorsViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		adminHeader(h, "Vendors", data.Layout)
		if data.LoadError != "" {
			retryPanel(h, data.LoadError, ListURL(AdminVendorsPath, data.Query, "", ""))
			return h.err
		}
		adminSearch(h, AdminVendorsPath, "Search vendors or stores", data.Query, nil)
		if len(data.Vendors) == 0 {
			h.raw(`<p class="muted">No vendors found.</p>`)
			return h.err
		}
		h.raw(`<table class="table"><thead><tr><th>Vendor</th><th>Email</th><th>Stores</th></tr></thead><tbody>`)
		for _, v := range data.Vendors {
			h.raw(`<tr`)
			h.attr("data-vendor-id", v.ID)
			h.raw(`><td>`)
			h.text(v.Name)
			h.raw(`</td><td>`)
			h.text(v.Email)
			h.raw(`</td><td>`)
			if len(v.Stores) == 0 {
				h.raw(`<span class="muted">Unassigned</span>`)
			} else {
				h.text(strings.Join(v.Stores, ", "))
			}
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}

func AdminEventsPage(data viewmodels.AdminEventsViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		adminHeader(h, "Events", data.Layout)
		if data.LoadError != "" {
			retryPanel(h, data.LoadError, ListURL(AdminEventsPath, data.Query, "state", data.State))
			return h.err
		}
		adminSearch(h, AdminEventsPath, "Search events", data.Query, func() {
			selectOptions(h, "state", data.State, [][2]string{
				{"all", "All events"},
				{"upcoming", "Upcoming"},
				{"past", "Past"},
				{"cancelled", "Cancelled"},
			})
		})
		if len(data.Events) == 0 {
			h.raw(`<p class="muted">No events found.</p>`)
			return h.err
		}
		h.raw(`<ul class="event-list">`)
		for _, e := range data.Events {
			h.raw(`<li class="card event"`)
			h.attr("data-event-id", e.ID)
			h.raw(`><div class="event-header"><strong>`)
			h.text(e.Name)
			h.raw(`</strong><span`)
			h.attr("class", EventStateBadgeClass(e.State))
			h.raw(`>`)
			h.text(HumanizeEventState(e.State))
			h.raw(`</span></div>`)
			if e.Description != "" {
				h.raw(`<p>`)
				h.text(e.Description)
				h.raw(`</p>`)
			}
			h.raw(`<p class="muted">`)
			h.text(e.Dates)
			if e.Schedule != "" {
				h.text(" · " + e.Schedule)
			}
			if e.Location != "" {
				h.text(" · " + e.Location)
			}
			h.raw(`</p></li>`)
		}
		h.raw(`</ul>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}

func AdminProductsPage(data viewmodels.AdminProductsViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		adminHeader(h, "Products", data.Layout)
		if data.LoadError != "" {
			retryPanel(h, data.LoadError, ListURL(AdminProductsPath, data.Query, "filter", data.Filter))
			return h.err
		}
		adminSearch(h, AdminProductsPath, "Search products or stores", data.Query, func() {
			options := [][2]string{
				{"all", "All products"},
				{"low-stock", "Low stock"},
				{"out-of-stock", "Out of stock"},
			}
			for _, c := range data.Categories {
				options = append(options, [2]string{c, c})
			}
			selectOptions(h, "filter", data.Filter, options)
		})
		if len(data.Products) == 0 {
			h.raw(`<p class="muted">No products found.</p>`)
			return h.err
		}
		h.raw(`<table class="table"><thead><tr><th>Product</th><th>Category</th><th>Price</th><th>In stock</th><th>Store</th></tr></thead><tbody>`)
		for _, p := range data.Products {
			h.raw(`<tr`)
			h.attr("data-product-id", p.ID)
			h.raw(`><td>`)
			h.text(p.Name)
			h.raw(`</td><td>`)
			h.text(p.Category)
			h.raw(`</td><td>`)
			h.text(p.Price)
			h.raw(`</td><td><span`)
			h.attr("class", StockBadgeClass(p.InStock, p.LowStock))
			h.raw(`>`)
			h.text(FormatInt(p.InStock))
			h.raw(`</span></td><td>`)
			if p.StoreName == "" {
				h.raw(`<span class="muted">Unknown store</span>`)
			} else {
				h.text(p.StoreName)
			}
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}
