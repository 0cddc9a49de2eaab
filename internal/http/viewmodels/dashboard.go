package viewmodels

type DashboardMetrics struct {
	TotalRevenue  string
	TotalCost     string
	TotalProducts int
	AverageMargin string
	LowStockItems int
}

type DashboardStoreItem struct {
	ID           string
	Name         string
	Description  string
	ProductCount int
	StockValue   string
}

type DashboardProductItem struct {
	ID        string
	Name      string
	Category  string
	StoreName string
	Price     string
	Cost      string
	Margin    string
	InStock   int
	LowStock  bool
	ImageURL  string
}

type DashboardSaleItem struct {
	ID            string
	StoreName     string
	Items         int
	Total         string
	PaymentMethod string
	CreatedAt     string
}

type DashboardViewData struct {
	Layout     LayoutData
	VendorName string
	Metrics    DashboardMetrics
	Stores     []DashboardStoreItem
	Products   []DashboardProductItem
	Sales      []DashboardSaleItem
	Categories []string
	Query      string
	Filter     string
	LoadError  string
	HasStores  bool
}
