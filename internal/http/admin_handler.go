package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/service"
)

// AdminHandler exposes the dashboard CRUD and aggregation endpoints.
type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ==================== Pools ====================

func (h *AdminHandler) CreatePool(c *gin.Context) {
	var req models.CreatePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pool, err := h.adminService.CreatePool(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pool)
}

func (h *AdminHandler) UpdatePool(c *gin.Context) {
	var req models.UpdatePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pool, err := h.adminService.UpdatePool(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (h *AdminHandler) DeletePool(c *gin.Context) {
	if err := h.adminService.DeletePool(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) ListPools(c *gin.Context) {
	pools, err := h.adminService.ListPools(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pools": pools})
}

// ==================== Plans ====================

func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req models.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.adminService.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	var req models.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.adminService.UpdatePlan(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *AdminHandler) TogglePlan(c *gin.Context) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.TogglePlan(c.Request.Context(), c.Param("id"), req.Active); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, stock, err := h.adminService.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans, "voucher_stock": stock})
}

// ==================== Access points ====================

func (h *AdminHandler) ListAccessPoints(c *gin.Context) {
	aps, err := h.adminService.ListAccessPoints(c.Request.Context(), c.Query("pool_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_points": aps})
}

func (h *AdminHandler) UpdateAccessPoint(c *gin.Context) {
	var req models.UpdateAccessPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.UpdateAccessPoint(c.Request.Context(), c.Param("ap_mac"), &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) ImportAccessPoint(c *gin.Context) {
	var req models.ImportAccessPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ap, err := h.adminService.ImportAccessPoint(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ap)
}

// ==================== Vouchers / audit / revenue ====================

func (h *AdminHandler) RevokeVoucher(c *gin.Context) {
	revokedBy := c.GetString("adminID")
	if err := h.adminService.RevokeVoucher(c.Request.Context(), c.Param("id"), revokedBy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) ListAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := h.adminService.ListAudit(c.Request.Context(), &models.AuditListQuery{
		EventType: c.Query("event_type"),
		Status:    c.Query("status"),
		ClientMAC: c.Query("client_mac"),
		PlanID:    c.Query("plan_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "limit": limit, "offset": offset})
}

func (h *AdminHandler) Revenue(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	var (
		points []*models.RevenuePoint
		err    error
	)
	if c.DefaultQuery("group_by", "day") == "plan" {
		points, err = h.adminService.RevenueByPlan(c.Request.Context(), days)
	} else {
		points, err = h.adminService.RevenueByDay(c.Request.Context(), days)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revenue": points, "days": days})
}
