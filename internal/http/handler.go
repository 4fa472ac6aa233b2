package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/apperr"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	portalparams "github.com/mandrosoa/hotspot-platform/portal-service/internal/portal"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/service"
)

type Handler struct {
	purchaseService   *service.PurchaseService
	activationService *service.ActivationService
	freePlanGuard     *service.FreePlanGuard
}

func NewHandler(purchaseService *service.PurchaseService, activationService *service.ActivationService, freePlanGuard *service.FreePlanGuard) *Handler {
	return &Handler{
		purchaseService:   purchaseService,
		activationService: activationService,
		freePlanGuard:     freePlanGuard,
	}
}

// respondError maps the error taxonomy to HTTP. Conflict details (existing
// code, last used timestamp) ride along so the portal page can keep the user
// moving forward instead of dead-ending.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body := gin.H{"error": appErr.Message, "kind": string(appErr.Kind)}
		for k, v := range appErr.Details {
			body[k] = v
		}
		c.JSON(apperr.HTTPStatus(appErr.Kind), body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// ==================== Portal Handlers ====================

// ListPlans returns the visible plan catalog for the portal page.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.purchaseService.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// Purchase initiates a paid purchase or claims a free plan immediately.
func (h *Handler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.purchaseService.Purchase(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PollPurchase is the client's bounded retry loop. The request context is
// cancelled when the user abandons the page; nothing server-side depends on
// the poll completing.
func (h *Handler) PollPurchase(c *gin.Context) {
	requestRef := c.Param("request_ref")
	if requestRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_ref required"})
		return
	}

	resp, err := h.purchaseService.Poll(c.Request.Context(), requestRef, c.Query("client_mac"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Activate redeems a code and returns the network login target. Redirect
// parameters may also arrive on the query string straight from the captive
// portal; body fields win when both are present.
func (h *Handler) Activate(c *gin.Context) {
	var req models.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := portalparams.ParseRedirect(c.Request.URL.Query())
	if req.ClientMAC == "" {
		req.ClientMAC = params.ClientMAC
	}
	if req.APMAC == "" {
		req.APMAC = params.APMAC
	}
	if req.LoginURL == "" {
		req.LoginURL = params.LoginURL
	}
	if req.ContinueURL == "" {
		req.ContinueURL = params.ContinueURL
	}
	if req.GatewayIP == "" {
		req.GatewayIP = params.GatewayIP
	}

	resp, err := h.activationService.Activate(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FreeEligibility reports whether the device may still claim a free plan.
func (h *Handler) FreeEligibility(c *gin.Context) {
	planID := c.Query("plan_id")
	clientMAC, ok := portalparams.NormalizeMAC(c.Query("client_mac"))
	if planID == "" || !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id and client_mac required"})
		return
	}

	resp, err := h.freePlanGuard.CheckEligibility(c.Request.Context(), planID, clientMAC)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ==================== Internal Handlers ====================

// ConfirmPayment is called by the payment callback bridge once an MVola
// transaction is confirmed. By this boundary the payment is trusted.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.purchaseService.ConfirmPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
