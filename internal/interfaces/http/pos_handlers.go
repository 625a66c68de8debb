package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolibooks/bolibooks/internal/application/service"
)

// ListSales handles GET /api/v1/pos/sales
func (h *Handlers) ListSales(c *gin.Context) {
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	page, err := h.services.POS.ListSales(c.Request.Context(), companyID(c), service.SaleQuery{
		From:   queryString(c, "from", "date"),
		To:     queryString(c, "to", "date"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateSale handles POST /api/v1/pos/sales
func (h *Handlers) CreateSale(c *gin.Context) {
	var in service.SaleInput
	if !h.bind(c, &in) {
		return
	}
	sale, err := h.services.POS.CreateSale(c.Request.Context(), companyID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// GetSale handles GET /api/v1/pos/sales/:id
func (h *Handlers) GetSale(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	sale, err := h.services.POS.GetSale(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// VoidSale handles POST /api/v1/pos/sales/:id/void
func (h *Handlers) VoidSale(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	sale, err := h.services.POS.VoidSale(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
