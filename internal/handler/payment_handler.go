package handler

import (
	"net/http"

	"shipledger/internal/middleware"
	"shipledger/internal/service"
	"shipledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/api/payments")
	{
		payments.POST("", middleware.RequireRole("admin", "accountant"), h.CreatePayment)
		payments.DELETE("/:id", middleware.RequireRole("admin"), h.DeletePayment)
	}

	shipments := router.Group("/api/shipments")
	{
		shipments.GET("/:id/allowance", middleware.RequireRole("admin", "accountant", "staff"), h.GetPaymentAllowance)
		shipments.GET("/:id/allocation-preview", middleware.RequireRole("admin", "accountant"), h.GetAllocationPreview)
	}
}

// CreatePayment records a payment against a shipment
// @Summary      Create payment
// @Description  Records a payment against a shipment with overpayment checks; optionally auto-allocates goods payments across suppliers
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        auto_allocate  query     bool  false  "Proportionally allocate the payment across suppliers"
// @Param        payload  body      service.CreatePaymentRequest  true  "Create Payment Payload"
// @Success      201      {object}  response.Response{data=service.PaymentResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	opts := service.CreatePaymentOptions{
		AutoAllocate: c.Query("auto_allocate") == "true",
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), userIDStr, req, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// DeletePayment removes a payment and its allocations, restoring the shipment balance
// @Summary      Delete payment
// @Description  Deletes a payment together with its allocations and recomputes the shipment aggregates
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  response.Response{data=service.DeletePaymentResult}
// @Failure      404  {object}  response.Response
// @Router       /api/payments/{id} [delete]
func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	result, err := h.paymentService.DeletePayment(c.Request.Context(), userIDStr, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetPaymentAllowance reports how much can still be paid against a shipment
// @Summary      Get payment allowance
// @Description  Returns the shipment's known total, what has been paid, and the remaining allowed amount
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Shipment ID"
// @Success      200  {object}  response.Response{data=service.PaymentAllowance}
// @Failure      404  {object}  response.Response
// @Router       /api/shipments/{id}/allowance [get]
func (h *PaymentHandler) GetPaymentAllowance(c *gin.Context) {
	allowance, err := h.paymentService.GetPaymentAllowance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, allowance))
}

// GetAllocationPreview shows how an RMB amount would split across suppliers
// @Summary      Preview payment allocation
// @Description  Computes the proportional split of an RMB amount across the shipment's suppliers without persisting anything
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id          path      string  true   "Shipment ID"
// @Param        amount_rmb  query     string  true   "RMB amount to split"
// @Success      200         {object}  response.Response{data=service.AllocationPreview}
// @Failure      404         {object}  response.Response
// @Router       /api/shipments/{id}/allocation-preview [get]
func (h *PaymentHandler) GetAllocationPreview(c *gin.Context) {
	preview, err := h.paymentService.GetAllocationPreview(c.Request.Context(), c.Param("id"), c.Query("amount_rmb"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}
