package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolibooks/bolibooks/internal/application/service"
)

// ListCustomers handles GET /api/v1/customers
func (h *Handlers) ListCustomers(c *gin.Context) {
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	page, err := h.services.Customers.List(c.Request.Context(), companyID(c), c.Query("search"), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateCustomer handles POST /api/v1/customers
func (h *Handlers) CreateCustomer(c *gin.Context) {
	var in service.CustomerInput
	if !h.bind(c, &in) {
		return
	}
	customer, err := h.services.Customers.Create(c.Request.Context(), companyID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

// GetCustomer handles GET /api/v1/customers/:id
func (h *Handlers) GetCustomer(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	customer, err := h.services.Customers.Get(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// UpdateCustomer handles PUT /api/v1/customers/:id
func (h *Handlers) UpdateCustomer(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var in service.CustomerInput
	if !h.bind(c, &in) {
		return
	}
	customer, err := h.services.Customers.Update(c.Request.Context(), companyID(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// DeleteCustomer handles DELETE /api/v1/customers/:id
func (h *Handlers) DeleteCustomer(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.services.Customers.Delete(c.Request.Context(), companyID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "customer deleted"})
}

// ListProducts handles GET /api/v1/products
func (h *Handlers) ListProducts(c *gin.Context) {
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	page, err := h.services.Products.List(c.Request.Context(), companyID(c), c.Query("search"), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateProduct handles POST /api/v1/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var in service.ProductInput
	if !h.bind(c, &in) {
		return
	}
	product, err := h.services.Products.Create(c.Request.Context(), companyID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// GetProduct handles GET /api/v1/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.services.Products.Get(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// UpdateProduct handles PUT /api/v1/products/:id
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var in service.ProductInput
	if !h.bind(c, &in) {
		return
	}
	product, err := h.services.Products.Update(c.Request.Context(), companyID(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/:id
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.services.Products.Delete(c.Request.Context(), companyID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}
