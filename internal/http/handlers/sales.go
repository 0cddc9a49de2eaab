package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/docstore"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v5"
)

const maxSaleBodyBytes = 64 << 10

type createSaleRequest struct {
	StoreID       string             `json:"storeId"`
	PaymentMethod string             `json:"paymentMethod"`
	Products      []catalog.SaleLine `json:"products"`
}

type createSaleResponse struct {
	ID    string  `json:"id"`
	Total float64 `json:"total"`
}

type apiError struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// HandleCreateSale records a sale for one of the signed-in vendor's stores.
// The vendor id always comes from the session, never from the body.
func (h *Handlers) HandleCreateSale(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, apiError{Error: "unauthorized"})
	}

	var req createSaleRequest
	dec := json.NewDecoder(http.MaxBytesReader(c.Response(), c.Request().Body, maxSaleBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "invalid JSON body"})
	}

	sale, err := h.Catalog.CreateSale(c.Request().Context(), catalog.Sale{
		Products:      req.Products,
		VendorID:      principal.ID,
		StoreID:       strings.TrimSpace(req.StoreID),
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
	})
	if err != nil {
		return h.saleError(c, err)
	}
	return c.JSON(http.StatusCreated, createSaleResponse{ID: sale.ID, Total: sale.Total})
}

func (h *Handlers) saleError(c *echo.Context, err error) error {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace())
		}
		return c.JSON(http.StatusUnprocessableEntity, apiError{Error: "invalid sale", Fields: fields})
	case errors.Is(err, docstore.ErrNotFound):
		return c.JSON(http.StatusNotFound, apiError{Error: "store or product not found"})
	case errors.Is(err, catalog.ErrStoreNotOwned):
		return c.JSON(http.StatusForbidden, apiError{Error: "store is not assigned to you"})
	case errors.Is(err, catalog.ErrProductNotInStore):
		return c.JSON(http.StatusUnprocessableEntity, apiError{Error: "product does not belong to the store"})
	case errors.Is(err, catalog.ErrInsufficientStock):
		return c.JSON(http.StatusConflict, apiError{Error: "insufficient stock"})
	default:
		return err
	}
}
