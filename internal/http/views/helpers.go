package views

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

func FormatInt(v int) string {
	return strconv.Itoa(v)
}

func QueryEscape(v string) string {
	return url.QueryEscape(v)
}

// DashboardURL builds the dashboard link for a search box value and product
// filter.
func DashboardURL(query, filter string) string {
	return ListURL("/dashboard", query, "filter", filter)
}

// ListURL appends a q parameter and one optional named parameter to baseHref.
func ListURL(baseHref, query, key, value string) string {
	values := url.Values{}
	if query = strings.TrimSpace(query); query != "" {
		values.Set("q", query)
	}
	if value = strings.TrimSpace(value); value != "" && value != "all" {
		values.Set(key, value)
	}
	if len(values) == 0 {
		return baseHref
	}
	return baseHref + "?" + values.Encode()
}

func HumanizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin":
		return "Admin"
	case "vendor":
		return "Vendor"
	case "customer":
		return "Customer"
	default:
		return fallbackHumanized(role)
	}
}

func RoleBadgeClass(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin":
		return "badge bg-sky-100 text-sky-800 dark:bg-sky-900/50 dark:text-sky-100"
	case "vendor":
		return "badge bg-emerald-100 text-emerald-800 dark:bg-emerald-900/50 dark:text-emerald-100"
	case "customer":
		return "badge bg-slate-100 text-slate-800 dark:bg-slate-900/50 dark:text-slate-100"
	default:
		return "badge-outline"
	}
}

func StockBadgeClass(inStock int, low bool) string {
	switch {
	case inStock <= 0:
		return "badge bg-rose-100 text-rose-800 dark:bg-rose-900/50 dark:text-rose-100"
	case low:
		return "badge bg-amber-100 text-amber-800 dark:bg-amber-900/50 dark:text-amber-100"
	default:
		return "badge bg-emerald-100 text-emerald-800 dark:bg-emerald-900/50 dark:text-emerald-100"
	}
}

func HumanizeEventState(state string) string {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "upcoming":
		return "Upcoming"
	case "past":
		return "Past"
	case "cancelled":
		return "Cancelled"
	default:
		return fallbackHumanized(state)
	}
}

func EventStateBadgeClass(state string) string {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "upcoming":
		return "badge bg-emerald-100 text-emerald-800 dark:bg-emerald-900/50 dark:text-emerald-100"
	case "cancelled":
		return "badge bg-rose-100 text-rose-800 dark:bg-rose-900/50 dark:text-rose-100"
	default:
		return "badge bg-slate-100 text-slate-800 dark:bg-slate-900/50 dark:text-slate-100"
	}
}

func HumanizePaymentMethod(method string) string {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "cash":
		return "Cash"
	case "card":
		return "Card"
	case "transfer":
		return "Bank transfer"
	default:
		return fallbackHumanized(method)
	}
}

func fallbackHumanized(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "—"
	}
	parts := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return r == '_' || r == ':' || r == '-'
	})
	for idx, part := range parts {
		runes := []rune(part)
		if len(runes) == 0 {
			continue
		}
		runes[0] = unicode.ToUpper(runes[0])
		parts[idx] = string(runes)
	}
	if len(parts) == 0 {
		return value
	}
	return strings.Join(parts, " ")
}

func IsAlertDestructive(class string) bool {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "" {
		return false
	}
	return strings.Contains(class, "error") || strings.Contains(class, "destructive")
}

func AlertRole(destructive bool) string {
	if destructive {
		return "alert"
	}
	return "status"
}

func AlertAriaLive(destructive bool) string {
	if destructive {
		return "assertive"
	}
	return "polite"
}

func IsActivePath(activePath, target string) bool {
	activePath = strings.TrimSpace(activePath)
	target = strings.TrimSpace(target)
	if target == "/" {
		return activePath == "/"
	}
	return activePath == target || strings.HasPrefix(activePath, target+"/")
}

func AriaCurrent(activePath, target string) string {
	if IsActivePath(activePath, target) {
		return "page"
	}
	return ""
}
