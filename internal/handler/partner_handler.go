package handler

import (
	"net/http"

	"shipledger/internal/middleware"
	"shipledger/internal/service"
	"shipledger/pkg/pagination"
	"shipledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type PartnerHandler struct {
	partnerService service.PartnerService
}

func NewPartnerHandler(partnerService service.PartnerService) *PartnerHandler {
	return &PartnerHandler{partnerService: partnerService}
}

func (h *PartnerHandler) RegisterRoutes(router *gin.RouterGroup) {
	suppliers := router.Group("/api/suppliers")
	{
		suppliers.POST("", middleware.RequireRole("admin", "accountant"), h.CreateSupplier)
		suppliers.GET("", middleware.RequireRole("admin", "accountant", "staff"), h.ListSuppliers)
		suppliers.GET("/:id", middleware.RequireRole("admin", "accountant", "staff"), h.GetSupplier)
	}

	companies := router.Group("/api/shipping-companies")
	{
		companies.POST("", middleware.RequireRole("admin", "accountant"), h.CreateShippingCompany)
		companies.GET("", middleware.RequireRole("admin", "accountant", "staff"), h.ListShippingCompanies)
		companies.GET("/:id", middleware.RequireRole("admin", "accountant", "staff"), h.GetShippingCompany)
	}
}

// CreateSupplier registers a goods supplier
// @Summary      Create supplier
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePartnerRequest  true  "Create Supplier Payload"
// @Success      201      {object}  response.Response{data=model.Supplier}
// @Failure      400      {object}  response.Response
// @Router       /api/suppliers [post]
func (h *PartnerHandler) CreateSupplier(c *gin.Context) {
	var req service.CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	supplier, err := h.partnerService.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, supplier))
}

// ListSuppliers returns a paginated supplier list
// @Summary      List suppliers
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Filter by name substring"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/suppliers [get]
func (h *PartnerHandler) ListSuppliers(c *gin.Context) {
	params := pagination.Parse(c)

	suppliers, total, err := h.partnerService.ListSuppliers(c.Request.Context(), c.Query("search"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"suppliers": suppliers,
		"meta":      pagination.NewMeta(params, total),
	}))
}

// GetSupplier returns one supplier
// @Summary      Get supplier
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=model.Supplier}
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id} [get]
func (h *PartnerHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.partnerService.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// CreateShippingCompany registers a freight forwarder
// @Summary      Create shipping company
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePartnerRequest  true  "Create Shipping Company Payload"
// @Success      201      {object}  response.Response{data=model.ShippingCompany}
// @Failure      400      {object}  response.Response
// @Router       /api/shipping-companies [post]
func (h *PartnerHandler) CreateShippingCompany(c *gin.Context) {
	var req service.CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	company, err := h.partnerService.CreateShippingCompany(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, company))
}

// ListShippingCompanies returns a paginated shipping company list
// @Summary      List shipping companies
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Filter by name substring"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/shipping-companies [get]
func (h *PartnerHandler) ListShippingCompanies(c *gin.Context) {
	params := pagination.Parse(c)

	companies, total, err := h.partnerService.ListShippingCompanies(c.Request.Context(), c.Query("search"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"companies": companies,
		"meta":      pagination.NewMeta(params, total),
	}))
}

// GetShippingCompany returns one shipping company
// @Summary      Get shipping company
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Shipping Company ID"
// @Success      200  {object}  response.Response{data=model.ShippingCompany}
// @Failure      404  {object}  response.Response
// @Router       /api/shipping-companies/{id} [get]
func (h *PartnerHandler) GetShippingCompany(c *gin.Context) {
	company, err := h.partnerService.GetShippingCompany(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}
