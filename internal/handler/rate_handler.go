package handler

import (
	"net/http"

	"shipledger/internal/middleware"
	"shipledger/internal/service"
	"shipledger/pkg/pagination"
	"shipledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type RateHandler struct {
	rateService service.RateService
}

func NewRateHandler(rateService service.RateService) *RateHandler {
	return &RateHandler{rateService: rateService}
}

func (h *RateHandler) RegisterRoutes(router *gin.RouterGroup) {
	rates := router.Group("/api/rates")
	{
		rates.POST("", middleware.RequireRole("admin", "accountant"), h.CreateRate)
		rates.GET("/latest", middleware.RequireRole("admin", "accountant", "staff"), h.GetLatestRate)
		rates.GET("", middleware.RequireRole("admin", "accountant", "staff"), h.ListRates)
	}
}

// CreateRate records a market RMB to EGP quote
// @Summary      Create exchange rate
// @Tags         rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRateRequest  true  "Create Rate Payload"
// @Success      201      {object}  response.Response{data=model.ExchangeRate}
// @Failure      400      {object}  response.Response
// @Router       /api/rates [post]
func (h *RateHandler) CreateRate(c *gin.Context) {
	var req service.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rate, err := h.rateService.CreateRate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rate))
}

// GetLatestRate returns the newest quote for a currency
// @Summary      Get latest exchange rate
// @Tags         rates
// @Security     BearerAuth
// @Produce      json
// @Param        currency  query     string  false  "Currency (default RMB)"
// @Success      200       {object}  response.Response{data=model.ExchangeRate}
// @Failure      404       {object}  response.Response
// @Router       /api/rates/latest [get]
func (h *RateHandler) GetLatestRate(c *gin.Context) {
	rate, err := h.rateService.GetLatestRate(c.Request.Context(), c.Query("currency"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rate))
}

// ListRates returns the quote history, newest first
// @Summary      List exchange rates
// @Tags         rates
// @Security     BearerAuth
// @Produce      json
// @Param        currency  query     string  false  "Filter by currency"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=object}
// @Failure      500       {object}  response.Response
// @Router       /api/rates [get]
func (h *RateHandler) ListRates(c *gin.Context) {
	params := pagination.Parse(c)

	rates, total, err := h.rateService.ListRates(c.Request.Context(), c.Query("currency"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"rates": rates,
		"meta":  pagination.NewMeta(params, total),
	}))
}
