// Package catalog reads and writes vendor stores, products and sales.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buyukinventory/marketplace/internal/docstore"
	"github.com/buyukinventory/marketplace/internal/logging"
	"github.com/go-playground/validator/v10"
)

var (
	ErrStoreNotOwned     = errors.New("store is not assigned to vendor")
	ErrProductNotInStore = errors.New("product does not belong to store")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Store struct {
	ID          string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	VendorIDs   []string  `json:"vendorIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Product struct {
	ID        string  `json:"-"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"`
	InStock   int     `json:"inStock"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	StoreID   string  `json:"storeId"`
	StoreName string  `json:"-"`
}

type SaleLine struct {
	ProductID string  `json:"productId" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
}

type Sale struct {
	ID            string     `json:"-"`
	Products      []SaleLine `json:"products" validate:"required,min=1,dive"`
	Total         float64    `json:"total"`
	VendorID      string     `json:"vendorId" validate:"required"`
	StoreID       string     `json:"storeId" validate:"required"`
	PaymentMethod string     `json:"paymentMethod" validate:"required,oneof=cash card transfer"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type Counts struct {
	Users    int
	Stores   int
	Products int
	Events   int
	Sales    int
}

type Catalog struct {
	docs docstore.Store
	now  func() time.Time
}

func New(docs docstore.Store) *Catalog {
	return &Catalog{docs: docs, now: time.Now}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// VendorStores returns the stores the vendor is assigned to.
func (c *Catalog) VendorStores(ctx context.Context, vendorID string) ([]Store, error) {
	docs, err := c.docs.Query(ctx, docstore.CollectionStores, docstore.ArrayContains("vendorIds", vendorID))
	if err != nil {
		return nil, err
	}
	return decodeAll[Store](docs)
}

// WatchVendorStores calls fn with the vendor's stores now and after every
// change until the returned cancel func is called.
func (c *Catalog) WatchVendorStores(ctx context.Context, vendorID string, fn func([]Store)) (func(), error) {
	filters := []docstore.Filter{docstore.ArrayContains("vendorIds", vendorID)}
	return c.docs.Subscribe(ctx, docstore.CollectionStores, filters, func(docs []docstore.Document) {
		stores, err := decodeAll[Store](docs)
		if err != nil {
			logging.FromContext(ctx).Warn("decode live vendor stores", "vendor_id", vendorID, "error", err)
			return
		}
		fn(stores)
	})
}

// VendorProducts returns every product stocked in the vendor's stores, with
// StoreName filled in.
func (c *Catalog) VendorProducts(ctx context.Context, vendorID string) ([]Product, error) {
	stores, err := c.VendorStores(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return c.storeProducts(ctx, stores)
}

func (c *Catalog) storeProducts(ctx context.Context, stores []Store) ([]Product, error) {
	if len(stores) == 0 {
		return nil, nil
	}
	names := make(map[string]string, len(stores))
	ids := make([]string, 0, len(stores))
	for _, s := range stores {
		names[s.ID] = s.Name
		ids = append(ids, s.ID)
	}

	docs, err := c.docs.Query(ctx, docstore.CollectionProducts, docstore.In("storeId", ids...))
	if err != nil {
		return nil, err
	}
	products, err := decodeAll[Product](docs)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].StoreName = names[products[i].StoreID]
	}
	return products, nil
}

// CreateSale records a sale and decrements the stock of every sold product.
// Line prices and the total come from the stored products. Stock is checked
// and decremented in one atomic update per product; if any product runs short
// the decrements already made are undone and no sale is recorded.
func (c *Catalog) CreateSale(ctx context.Context, sale Sale) (Sale, error) {
	if err := getValidator().Struct(sale); err != nil {
		return Sale{}, err
	}

	storeDoc, err := c.docs.Get(ctx, docstore.CollectionStores, sale.StoreID)
	if err != nil {
		return Sale{}, fmt.Errorf("store %s: %w", sale.StoreID, err)
	}
	var store Store
	if err := storeDoc.Decode(&store); err != nil {
		return Sale{}, err
	}
	if !contains(store.VendorIDs, sale.VendorID) {
		return Sale{}, ErrStoreNotOwned
	}

	wanted := make(map[string]int, len(sale.Products))
	order := make([]string, 0, len(sale.Products))
	for _, line := range sale.Products {
		if _, seen := wanted[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		wanted[line.ProductID] += line.Quantity
	}
	prices := make(map[string]float64, len(order))
	for _, productID := range order {
		doc, err := c.docs.Get(ctx, docstore.CollectionProducts, productID)
		if err != nil {
			return Sale{}, fmt.Errorf("product %s: %w", productID, err)
		}
		var p Product
		if err := doc.Decode(&p); err != nil {
			return Sale{}, err
		}
		if p.StoreID != sale.StoreID {
			return Sale{}, fmt.Errorf("product %s: %w", productID, ErrProductNotInStore)
		}
		if p.InStock < wanted[productID] {
			return Sale{}, fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
		}
		prices[productID] = p.Price
	}
	for i := range sale.Products {
		sale.Products[i].Price = prices[sale.Products[i].ProductID]
	}

	taken, err := c.takeStock(ctx, order, wanted)
	if err != nil {
		return Sale{}, err
	}

	sale.Total = SaleTotal(sale.Products).InexactFloat64()
	sale.CreatedAt = c.now().UTC()
	id, err := c.docs.Add(ctx, docstore.CollectionSales, sale)
	if err != nil {
		c.returnStock(ctx, taken, wanted)
		return Sale{}, err
	}
	sale.ID = id
	return sale, nil
}

// takeStock decrements each product in order, refusing to go below zero. On
// failure the products already decremented are restored.
func (c *Catalog) takeStock(ctx context.Context, order []string, wanted map[string]int) ([]string, error) {
	taken := make([]string, 0, len(order))
	for _, productID := range order {
		patch := docstore.Patch{"inStock": docstore.IncrementAtLeast(-float64(wanted[productID]), 0)}
		err := c.docs.Update(ctx, docstore.CollectionProducts, productID, patch)
		if err == nil {
			taken = append(taken, productID)
			continue
		}
		c.returnStock(ctx, taken, wanted)
		if errors.Is(err, docstore.ErrConditionFailed) {
			return nil, fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
		}
		return nil, fmt.Errorf("decrement stock for %s: %w", productID, err)
	}
	return taken, nil
}

// returnStock undoes takeStock. It runs detached from ctx so a canceled
// request still restores stock.
func (c *Catalog) returnStock(ctx context.Context, productIDs []string, wanted map[string]int) {
	ctx = context.WithoutCancel(ctx)
	for _, productID := range productIDs {
		patch := docstore.Patch{"inStock": docstore.Increment(float64(wanted[productID]))}
		if err := c.docs.Update(ctx, docstore.CollectionProducts, productID, patch); err != nil {
			logging.FromContext(ctx).Error("restore stock after failed sale", "product_id", productID, "quantity", wanted[productID], "error", err)
		}
	}
}

func (c *Catalog) VendorSales(ctx context.Context, vendorID string) ([]Sale, error) {
	docs, err := c.docs.Query(ctx, docstore.CollectionSales, docstore.Eq("vendorId", vendorID))
	if err != nil {
		return nil, err
	}
	return decodeAll[Sale](docs)
}

// Counts returns collection sizes for the admin overview.
func (c *Catalog) Counts(ctx context.Context) (Counts, error) {
	var out Counts
	targets := []struct {
		collection string
		dst        *int
	}{
		{docstore.CollectionUsers, &out.Users},
		{docstore.CollectionStores, &out.Stores},
		{docstore.CollectionProducts, &out.Products},
		{docstore.CollectionEvents, &out.Events},
		{docstore.CollectionSales, &out.Sales},
	}
	for _, t := range targets {
		docs, err := c.docs.Query(ctx, t.collection)
		if err != nil {
			return Counts{}, err
		}
		*t.dst = len(docs)
	}
	return out, nil
}

func decodeAll[T any](docs []docstore.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", doc.ID, err)
		}
		setID(&v, doc.ID)
		out = append(out, v)
	}
	return out, nil
}

func setID(v any, id string) {
	switch t := v.(type) {
	case *Store:
		t.ID = id
	case *Product:
		t.ID = id
	case *Sale:
		t.ID = id
	case *Event:
		t.ID = id
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
