package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolibooks/bolibooks/internal/application/service"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SelectPlanRequest is the body of PUT /company/plan
type SelectPlanRequest struct {
	PlanID int64 `json:"plan_id" binding:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var in service.RegisterInput
	if !h.bind(c, &in) {
		return
	}
	session, err := h.services.Auth.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}
	session, err := h.services.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	claims := currentClaims(c)
	session, err := h.services.Auth.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetCompany handles GET /api/v1/company
func (h *Handlers) GetCompany(c *gin.Context) {
	profile, err := h.services.Company.Get(c.Request.Context(), companyID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateCompany handles PUT /api/v1/company
func (h *Handlers) UpdateCompany(c *gin.Context) {
	var in service.CompanyInput
	if !h.bind(c, &in) {
		return
	}
	profile, err := h.services.Company.Update(c.Request.Context(), companyID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SelectPlan handles PUT /api/v1/company/plan
func (h *Handlers) SelectPlan(c *gin.Context) {
	var req SelectPlanRequest
	if !h.bind(c, &req) {
		return
	}
	profile, err := h.services.Company.SelectPlan(c.Request.Context(), companyID(c), req.PlanID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListPlans handles GET /api/v1/subscription-plans. ?all=true includes withdrawn plans.
func (h *Handlers) ListPlans(c *gin.Context) {
	plans, err := h.services.Plans.List(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// GetPlan handles GET /api/v1/subscription-plans/:id
func (h *Handlers) GetPlan(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	plan, err := h.services.Plans.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// CreatePlan handles POST /api/v1/subscription-plans
func (h *Handlers) CreatePlan(c *gin.Context) {
	var in service.PlanInput
	if !h.bind(c, &in) {
		return
	}
	plan, err := h.services.Plans.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// UpdatePlan handles PUT /api/v1/subscription-plans/:id
func (h *Handlers) UpdatePlan(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var in service.PlanInput
	if !h.bind(c, &in) {
		return
	}
	plan, err := h.services.Plans.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// DeactivatePlan handles DELETE /api/v1/subscription-plans/:id
func (h *Handlers) DeactivatePlan(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.services.Plans.Deactivate(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "subscription plan deactivated"})
}

// ListActivity handles GET /api/v1/activity
func (h *Handlers) ListActivity(c *gin.Context) {
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	page, err := h.services.Activity.List(c.Request.Context(), companyID(c), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
