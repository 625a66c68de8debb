package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolibooks/bolibooks/internal/application/service"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

// ListDocuments handles GET /api/v1/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	customerID, err := queryInt(c, "customer_id", "customerId")
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	page, err := h.services.Documents.List(c.Request.Context(), companyID(c), service.DocumentQuery{
		Kind:       c.Query("kind"),
		Status:     c.Query("status"),
		CustomerID: customerID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateDocument handles POST /api/v1/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var in service.DocumentInput
	if !h.bind(c, &in) {
		return
	}
	doc, err := h.services.Documents.Create(c.Request.Context(), companyID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// GetDocument handles GET /api/v1/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	h.documentAction(c, h.services.Documents.Get)
}

// UpdateDocument handles PUT /api/v1/documents/:id
func (h *Handlers) UpdateDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var in service.DocumentInput
	if !h.bind(c, &in) {
		return
	}
	doc, err := h.services.Documents.Update(c.Request.Context(), companyID(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/v1/documents/:id
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.services.Documents.Delete(c.Request.Context(), companyID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

// SendDocument handles POST /api/v1/documents/:id/send
func (h *Handlers) SendDocument(c *gin.Context) {
	h.documentAction(c, h.services.Documents.Send)
}

// CancelDocument handles POST /api/v1/documents/:id/cancel
func (h *Handlers) CancelDocument(c *gin.Context) {
	h.documentAction(c, h.services.Documents.Cancel)
}

// ConvertQuote handles POST /api/v1/documents/:id/convert
func (h *Handlers) ConvertQuote(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.services.Documents.ConvertQuote(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *Handlers) documentAction(c *gin.Context, action func(ctx context.Context, companyID, id int64) (*entity.Invoice, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	doc, err := action(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
