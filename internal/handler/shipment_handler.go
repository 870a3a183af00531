package handler

import (
	"net/http"

	"shipledger/internal/middleware"
	"shipledger/internal/service"
	"shipledger/pkg/pagination"
	"shipledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type ShipmentHandler struct {
	shipmentService service.ShipmentService
}

func NewShipmentHandler(shipmentService service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{shipmentService: shipmentService}
}

func (h *ShipmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	shipments := router.Group("/api/shipments")
	{
		shipments.POST("", middleware.RequireRole("admin", "accountant"), h.CreateShipment)
		shipments.GET("", middleware.RequireRole("admin", "accountant", "staff"), h.ListShipments)
		shipments.GET("/:id", middleware.RequireRole("admin", "accountant", "staff"), h.GetShipment)
		shipments.POST("/:id/shipping-details", middleware.RequireRole("admin", "accountant"), h.AddShippingDetail)
		shipments.POST("/:id/customs-details", middleware.RequireRole("admin", "accountant"), h.AddCustomsDetail)
		shipments.PUT("/:id/archive", middleware.RequireRole("admin"), h.ArchiveShipment)
		shipments.PUT("/:id/unarchive", middleware.RequireRole("admin"), h.UnarchiveShipment)
	}
}

// CreateShipment creates a new shipment with its items
// @Summary      Create shipment
// @Description  Creates a shipment with declared costs and line items; the code is generated sequentially
// @Tags         shipments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateShipmentRequest  true  "Create Shipment Payload"
// @Success      201      {object}  response.Response{data=model.Shipment}
// @Failure      400      {object}  response.Response
// @Router       /api/shipments [post]
func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	var req service.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	shipment, err := h.shipmentService.CreateShipment(c.Request.Context(), userIDStr, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, shipment))
}

// ListShipments returns a paginated list of shipments
// @Summary      List shipments
// @Description  Retrieves a paginated shipment list, optionally filtered by code search
// @Tags         shipments
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Filter by code substring"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/shipments [get]
func (h *ShipmentHandler) ListShipments(c *gin.Context) {
	params := pagination.Parse(c)

	shipments, total, err := h.shipmentService.ListShipments(c.Request.Context(), params.Page, params.Limit, c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"shipments": shipments,
		"meta":      pagination.NewMeta(params, total),
	}))
}

// GetShipment returns one shipment with its resolved cost breakdown
// @Summary      Get shipment
// @Description  Retrieves a shipment with items, payments, and the resolved known-total breakdown
// @Tags         shipments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Shipment ID"
// @Success      200  {object}  response.Response{data=service.ShipmentDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/shipments/{id} [get]
func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	detail, err := h.shipmentService.GetShipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// AddShippingDetail attaches a freight record to a shipment
// @Summary      Add shipping detail
// @Description  Attaches an RMB freight record used as a fallback cost source
// @Tags         shipments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Shipment ID"
// @Param        payload  body      service.AddShippingDetailRequest  true  "Shipping Detail Payload"
// @Success      201      {object}  response.Response{data=model.ShippingDetail}
// @Failure      404      {object}  response.Response
// @Router       /api/shipments/{id}/shipping-details [post]
func (h *ShipmentHandler) AddShippingDetail(c *gin.Context) {
	var req service.AddShippingDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	detail, err := h.shipmentService.AddShippingDetail(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, detail))
}

// AddCustomsDetail attaches a clearance record to a shipment
// @Summary      Add customs detail
// @Description  Attaches an EGP customs/clearance record used as a fallback cost source
// @Tags         shipments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Shipment ID"
// @Param        payload  body      service.AddCustomsDetailRequest  true  "Customs Detail Payload"
// @Success      201      {object}  response.Response{data=model.CustomsDetail}
// @Failure      404      {object}  response.Response
// @Router       /api/shipments/{id}/customs-details [post]
func (h *ShipmentHandler) AddCustomsDetail(c *gin.Context) {
	var req service.AddCustomsDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	detail, err := h.shipmentService.AddCustomsDetail(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, detail))
}

// ArchiveShipment locks a shipment against further payments
// @Summary      Archive shipment
// @Tags         shipments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Shipment ID"
// @Success      200  {object}  response.Response{data=model.Shipment}
// @Failure      404  {object}  response.Response
// @Router       /api/shipments/{id}/archive [put]
func (h *ShipmentHandler) ArchiveShipment(c *gin.Context) {
	h.setArchived(c, true)
}

// UnarchiveShipment reopens an archived shipment
// @Summary      Unarchive shipment
// @Tags         shipments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Shipment ID"
// @Success      200  {object}  response.Response{data=model.Shipment}
// @Failure      404  {object}  response.Response
// @Router       /api/shipments/{id}/unarchive [put]
func (h *ShipmentHandler) UnarchiveShipment(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ShipmentHandler) setArchived(c *gin.Context, archived bool) {
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	shipment, err := h.shipmentService.SetArchived(c.Request.Context(), userIDStr, c.Param("id"), archived)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, shipment))
}
