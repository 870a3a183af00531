package handler

import (
	"context"
	"net/http"

	"shipledger/internal/middleware"
	"shipledger/internal/model"
	"shipledger/internal/service"
	"shipledger/pkg/pagination"
	"shipledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	ledgerService service.LedgerService
}

func NewLedgerHandler(ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	parties := router.Group("/api/parties")
	{
		parties.POST("", middleware.RequireRole("admin", "accountant"), h.CreateParty)
		parties.GET("", middleware.RequireRole("admin", "accountant", "staff"), h.ListParties)
		parties.GET("/:id", middleware.RequireRole("admin", "accountant", "staff"), h.GetParty)
		parties.POST("/:id/invoices", middleware.RequireRole("admin", "accountant"), h.CreateLocalInvoice)
		parties.POST("/:id/payments", middleware.RequireRole("admin", "accountant"), h.CreateLocalPayment)
		parties.GET("/:id/balance", middleware.RequireRole("admin", "accountant", "staff"), h.GetPartyBalance)
		parties.GET("/:id/ledger", middleware.RequireRole("admin", "accountant", "staff"), h.ListLedgerEntries)
		parties.POST("/:id/close-season", middleware.RequireRole("admin"), h.CloseSeason)
	}

	cases := router.Group("/api/return-cases")
	{
		cases.POST("", middleware.RequireRole("admin", "accountant", "staff"), h.CreateReturnCase)
		cases.GET("", middleware.RequireRole("admin", "accountant", "staff"), h.ListReturnCases)
		cases.PUT("/:id/resolve", middleware.RequireRole("admin", "accountant"), h.ResolveReturnCase)
	}
}

// CreateParty registers a local trading party with an initial open season
// @Summary      Create party
// @Tags         parties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePartyRequest  true  "Create Party Payload"
// @Success      201      {object}  response.Response{data=model.Party}
// @Failure      400      {object}  response.Response
// @Router       /api/parties [post]
func (h *LedgerHandler) CreateParty(c *gin.Context) {
	var req service.CreatePartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	party, err := h.ledgerService.CreateParty(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, party))
}

// ListParties returns a paginated list of trading parties
// @Summary      List parties
// @Tags         parties
// @Security     BearerAuth
// @Produce      json
// @Param        type    query     string  false  "Filter by party type (MERCHANT, CUSTOMER, BOTH)"
// @Param        search  query     string  false  "Filter by name substring"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/parties [get]
func (h *LedgerHandler) ListParties(c *gin.Context) {
	params := pagination.Parse(c)

	parties, total, err := h.ledgerService.ListParties(c.Request.Context(), c.Query("type"), c.Query("search"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"parties": parties,
		"meta":    pagination.NewMeta(params, total),
	}))
}

// GetParty returns one party with its seasons
// @Summary      Get party
// @Tags         parties
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Party ID"
// @Success      200  {object}  response.Response{data=model.Party}
// @Failure      404  {object}  response.Response
// @Router       /api/parties/{id} [get]
func (h *LedgerHandler) GetParty(c *gin.Context) {
	party, err := h.ledgerService.GetParty(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, party))
}

// CreateLocalInvoice debits the party's open-season ledger
// @Summary      Create local invoice
// @Description  Records a local sale; the party owes more after this entry
// @Tags         parties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Party ID"
// @Param        payload  body      service.LedgerEntryRequest  true  "Invoice Payload"
// @Success      201      {object}  response.Response{data=model.PartyLedgerEntry}
// @Failure      404      {object}  response.Response
// @Router       /api/parties/{id}/invoices [post]
func (h *LedgerHandler) CreateLocalInvoice(c *gin.Context) {
	h.createEntry(c, h.ledgerService.CreateLocalInvoice)
}

// CreateLocalPayment credits the party's open-season ledger
// @Summary      Create local payment
// @Description  Records a settlement received from the party
// @Tags         parties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Party ID"
// @Param        payload  body      service.LedgerEntryRequest  true  "Payment Payload"
// @Success      201      {object}  response.Response{data=model.PartyLedgerEntry}
// @Failure      404      {object}  response.Response
// @Router       /api/parties/{id}/payments [post]
func (h *LedgerHandler) CreateLocalPayment(c *gin.Context) {
	h.createEntry(c, h.ledgerService.CreateLocalPayment)
}

func (h *LedgerHandler) createEntry(c *gin.Context, create func(ctx context.Context, userID string, partyID string, req service.LedgerEntryRequest) (*model.PartyLedgerEntry, error)) {
	var req service.LedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	entry, err := create(c.Request.Context(), userIDStr, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entry))
}

// GetPartyBalance returns the signed ledger sum for a party
// @Summary      Get party balance
// @Description  Returns the party's balance; scope=season limits it to the open season
// @Tags         parties
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Party ID"
// @Param        scope  query     string  false  "all (default) or season"
// @Success      200    {object}  response.Response{data=service.PartyBalance}
// @Failure      404    {object}  response.Response
// @Router       /api/parties/{id}/balance [get]
func (h *LedgerHandler) GetPartyBalance(c *gin.Context) {
	balance, err := h.ledgerService.GetPartyBalance(c.Request.Context(), c.Param("id"), c.Query("scope") == "season")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, balance))
}

// ListLedgerEntries returns the party's ledger entries, newest first
// @Summary      List ledger entries
// @Tags         parties
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Party ID"
// @Param        scope  query     string  false  "all (default) or season"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      404    {object}  response.Response
// @Router       /api/parties/{id}/ledger [get]
func (h *LedgerHandler) ListLedgerEntries(c *gin.Context) {
	params := pagination.Parse(c)

	entries, total, err := h.ledgerService.ListLedgerEntries(c.Request.Context(), c.Param("id"), c.Query("scope") == "season", params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"meta":    pagination.NewMeta(params, total),
	}))
}

type closeSeasonRequest struct {
	NewSeasonName string `json:"new_season_name"`
}

// CloseSeason closes the open season and opens its successor
// @Summary      Close season
// @Description  Closes the party's open season; rejected unless the season balance is exactly zero
// @Tags         parties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Party ID"
// @Param        payload  body      closeSeasonRequest  false  "Close Season Payload"
// @Success      200      {object}  response.Response{data=service.CloseSeasonResult}
// @Failure      409      {object}  response.Response
// @Router       /api/parties/{id}/close-season [post]
func (h *LedgerHandler) CloseSeason(c *gin.Context) {
	var req closeSeasonRequest
	_ = c.ShouldBindJSON(&req)

	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	result, err := h.ledgerService.CloseSeason(c.Request.Context(), userIDStr, c.Param("id"), req.NewSeasonName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CreateReturnCase opens a return case against a party
// @Summary      Create return case
// @Tags         return-cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReturnCaseRequest  true  "Create Return Case Payload"
// @Success      201      {object}  response.Response{data=model.ReturnCase}
// @Failure      404      {object}  response.Response
// @Router       /api/return-cases [post]
func (h *LedgerHandler) CreateReturnCase(c *gin.Context) {
	var req service.CreateReturnCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	returnCase, err := h.ledgerService.CreateReturnCase(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, returnCase))
}

// ListReturnCases returns a paginated list of return cases
// @Summary      List return cases
// @Tags         return-cases
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (UNDER_INSPECTION, RESOLVED)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/return-cases [get]
func (h *LedgerHandler) ListReturnCases(c *gin.Context) {
	params := pagination.Parse(c)

	cases, total, err := h.ledgerService.ListReturnCases(c.Request.Context(), c.Query("status"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"cases": cases,
		"meta":  pagination.NewMeta(params, total),
	}))
}

// ResolveReturnCase applies a resolution to a pending return case
// @Summary      Resolve return case
// @Description  Applies ACCEPTED_RETURN, EXCHANGE, DEDUCT_VALUE, or DAMAGED; ledger and inventory effects follow the resolution
// @Tags         return-cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Return Case ID"
// @Param        payload  body      service.ResolveReturnCaseRequest  true  "Resolve Payload"
// @Success      200      {object}  response.Response{data=model.ReturnCase}
// @Failure      409      {object}  response.Response
// @Router       /api/return-cases/{id}/resolve [put]
func (h *LedgerHandler) ResolveReturnCase(c *gin.Context) {
	var req service.ResolveReturnCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	returnCase, err := h.ledgerService.ResolveReturnCase(c.Request.Context(), userIDStr, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, returnCase))
}
