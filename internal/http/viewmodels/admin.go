package viewmodels

type AdminCounts struct {
	Users    int
	Stores   int
	Products int
	Events   int
	Sales    int
}

type AdminUserItem struct {
	ID        string
	Email     string
	Domain    string
	Name      string
	Role      string
	Credits   string
	CreatedAt string
	IsSelf    bool
}

type AdminViewData struct {
	Layout    LayoutData
	Counts    AdminCounts
	Users     []AdminUserItem
	Roles     []string
	Query     string
	LoadError string
}

type AdminStoreItem struct {
	ID           string
	Name         string
	Description  string
	VendorCount  int
	ProductCount int
	StockValue   string
}

type AdminStoresViewData struct {
	Layout    LayoutData
	Stores    []AdminStoreItem
	Query     string
	LoadError string
}

type AdminVendorItem struct {
	ID     string
	Name   string
	Email  string
	Stores []string
}

type AdminVendorsViewData struct {
	Layout    LayoutData
	Vendors   []AdminVendorItem
	Query     string
	LoadError string
}

type AdminEventItem struct {
	ID          string
	Name        string
	Description string
	Dates       string
	Schedule    string
	Location    string
	State       string
}

type AdminEventsViewData struct {
	Layout    LayoutData
	Events    []AdminEventItem
	Query     string
	State     string
	LoadError string
}

type AdminProductItem struct {
	ID        string
	Name      string
	Category  string
	StoreName string
	Price     string
	InStock   int
	LowStock  bool
}

type AdminProductsViewData struct {
	Layout     LayoutData
	Products   []AdminProductItem
	Categories []string
	Query      string
	Filter     string
	LoadError  string
}
