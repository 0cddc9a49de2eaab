package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

const LowStockThreshold = 10

const (
	FilterAll        = "all"
	FilterLowStock   = "low-stock"
	FilterOutOfStock = "out-of-stock"
)

var hundred = decimal.NewFromInt(100)

// VendorMetrics summarises a vendor's inventory. Revenue is the stock value at
// list price.
type VendorMetrics struct {
	TotalRevenue  decimal.Decimal
	TotalCost     decimal.Decimal
	TotalProducts int
	AverageMargin decimal.Decimal
	LowStockItems int
}

func Metrics(products []Product) VendorMetrics {
	m := VendorMetrics{TotalProducts: len(products)}
	for _, p := range products {
		stock := decimal.NewFromInt(int64(max(p.InStock, 0)))
		m.TotalRevenue = m.TotalRevenue.Add(decimal.NewFromFloat(p.Price).Mul(stock))
		m.TotalCost = m.TotalCost.Add(decimal.NewFromFloat(p.Cost).Mul(stock))
		if p.InStock < LowStockThreshold {
			m.LowStockItems++
		}
	}
	if m.TotalRevenue.IsPositive() {
		m.AverageMargin = m.TotalRevenue.Sub(m.TotalCost).Div(m.TotalRevenue).Mul(hundred).Round(1)
	}
	return m
}

// ProductMargin is the per-unit margin in percent, zero when price is not
// positive.
func ProductMargin(p Product) decimal.Decimal {
	price := decimal.NewFromFloat(p.Price)
	if !price.IsPositive() || p.Cost < 0 {
		return decimal.Zero
	}
	return price.Sub(decimal.NewFromFloat(p.Cost)).Div(price).Mul(hundred).Round(1)
}

// StoreValue is the stock value at list price of the products in one store.
func StoreValue(products []Product, storeID string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		if p.StoreID != storeID {
			continue
		}
		total = total.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(max(p.InStock, 0)))))
	}
	return total
}

func SaleTotal(lines []SaleLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Round(2)
}

// FormatCurrency renders an amount in rand with two decimals and thousands
// separators, e.g. "R 12 345.50".
func FormatCurrency(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + "R " + b.String() + "." + frac
}

// FilterProducts applies the dashboard search box and filter selector to
// already-fetched products. filter is all, low-stock, out-of-stock or a
// category name.
func FilterProducts(products []Product, search, filter string) []Product {
	search = strings.ToLower(strings.TrimSpace(search))
	filter = strings.TrimSpace(filter)

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if search != "" && !containsFold(search, p.Name, p.Category, p.StoreName) {
			continue
		}
		switch filter {
		case "", FilterAll:
		case FilterLowStock:
			if p.InStock >= LowStockThreshold {
				continue
			}
		case FilterOutOfStock:
			if p.InStock > 0 {
				continue
			}
		default:
			if !strings.EqualFold(p.Category, filter) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// FilterStores applies the search box to stores by name and description.
func FilterStores(stores []Store, search string) []Store {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return stores
	}
	out := make([]Store, 0, len(stores))
	for _, s := range stores {
		if containsFold(search, s.Name, s.Description) {
			out = append(out, s)
		}
	}
	return out
}

// Categories returns the distinct product categories in first-seen order.
func Categories(products []Product) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range products {
		c := strings.TrimSpace(p.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func containsFold(lowerNeedle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerNeedle) {
			return true
		}
	}
	return false
}
