package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// PortalCheckoutRequest is the body of POST /portal/:token/checkout
type PortalCheckoutRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// ReceiveWebhook handles POST /webhooks/:provider. The raw body is passed on
// untouched so providers can verify their signatures.
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}
	if len(payload) > maxWebhookBody {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		return
	}

	wh, err := h.services.Checkout.HandleWebhook(c.Request.Context(), c.Param("provider"), payload, c.Request.Header)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": wh.Outcome})
}

// ViewPortal handles GET /portal/:token
func (h *Handlers) ViewPortal(c *gin.Context) {
	view, err := h.services.Portal.View(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PortalCheckout handles POST /portal/:token/checkout
func (h *Handlers) PortalCheckout(c *gin.Context) {
	var req PortalCheckoutRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.services.Portal.Checkout(c.Request.Context(), c.Param("token"), req.Provider)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
