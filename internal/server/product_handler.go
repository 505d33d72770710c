package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ranntharath/ecomerce-backend/internal/domain"
	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

// ProductHandler is read-only; catalog management lives elsewhere.
type ProductHandler struct {
	products repository.ProductStore
}

func NewProductHandler(products repository.ProductStore) *ProductHandler {
	return &ProductHandler{products: products}
}

type ProductListResponse struct {
	Products []domain.Product `json:"products"`
	Total    int64            `json:"total"`
	Limit    int64            `json:"limit"`
	Offset   int64            `json:"offset"`
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	products, total, err := h.products.List(r.Context(), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.FindByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}
