package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolibooks/bolibooks/internal/application/service"
)

// IntentRequest starts an online collection for an invoice
type IntentRequest struct {
	InvoiceID int64  `json:"invoice_id" binding:"required"`
	Provider  string `json:"provider" binding:"required"`
}

func (h *Handlers) paymentQuery(c *gin.Context) (service.PaymentQuery, bool) {
	invoiceID, err := queryInt(c, "invoice_id", "invoiceId")
	if err != nil {
		h.fail(c, err)
		return service.PaymentQuery{}, false
	}
	limit, offset, ok := h.page(c)
	if !ok {
		return service.PaymentQuery{}, false
	}
	return service.PaymentQuery{
		InvoiceID: invoiceID,
		Method:    c.Query("method"),
		From:      queryString(c, "from", "start_date", "startDate"),
		To:        queryString(c, "to", "end_date", "endDate"),
		Limit:     limit,
		Offset:    offset,
	}, true
}

// ListPayments handles GET /api/v1/payments
func (h *Handlers) ListPayments(c *gin.Context) {
	q, ok := h.paymentQuery(c)
	if !ok {
		return
	}
	page, err := h.services.Payments.List(c.Request.Context(), companyID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *Handlers) GetPayment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.services.Payments.Get(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// CreatePayment handles POST /api/v1/payments
func (h *Handlers) CreatePayment(c *gin.Context) {
	var in service.PaymentInput
	if !h.bind(c, &in) {
		return
	}
	payment, err := h.services.Payments.Create(c.Request.Context(), companyID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// UpdatePayment handles PUT /api/v1/payments/:id
func (h *Handlers) UpdatePayment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var in service.PaymentUpdate
	if !h.bind(c, &in) {
		return
	}
	payment, err := h.services.Payments.Update(c.Request.Context(), companyID(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// DeletePayment handles DELETE /api/v1/payments/:id
func (h *Handlers) DeletePayment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.services.Payments.Delete(c.Request.Context(), companyID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment deleted"})
}

// PaymentMethodStats handles GET /api/v1/payments/stats/methods
func (h *Handlers) PaymentMethodStats(c *gin.Context) {
	stats, err := h.services.Payments.MethodStats(c.Request.Context(), companyID(c),
		queryString(c, "from", "start_date", "startDate"), queryString(c, "to", "end_date", "endDate"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListInvoicePayments handles GET /api/v1/payments/invoice/:invoiceId
func (h *Handlers) ListInvoicePayments(c *gin.Context) {
	invoiceID, ok := h.pathID(c, "invoiceId")
	if !ok {
		return
	}
	payments, err := h.services.Payments.ListByInvoice(c.Request.Context(), companyID(c), invoiceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// ExportPayments handles GET /api/v1/payments/export
func (h *Handlers) ExportPayments(c *gin.Context) {
	q, ok := h.paymentQuery(c)
	if !ok {
		return
	}
	export, err := h.services.Payments.Export(c.Request.Context(), companyID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Data(http.StatusOK, export.ContentType, export.Body)
}

// CreatePaymentIntent handles POST /api/v1/payments/intents
func (h *Handlers) CreatePaymentIntent(c *gin.Context) {
	var req IntentRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.services.Checkout.StartCheckout(c.Request.Context(), companyID(c), req.InvoiceID, req.Provider)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
