package handler

import (
	"errors"
	"net/http"

	"shipledger/internal/service"
	"shipledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps service failures onto HTTP statuses. Domain errors keep
// their machine code and details in the envelope; anything else is a 500.
func respondError(c *gin.Context, err error) {
	var domainErr *service.DomainError
	if errors.As(err, &domainErr) {
		c.JSON(statusForCode(domainErr.Code), response.DomainError(statusForCode(domainErr.Code), domainErr.Code, domainErr.Message, domainErr.Details))
		return
	}

	var missingRate *service.MissingRmbRateError
	if errors.As(err, &missingRate) {
		c.JSON(http.StatusUnprocessableEntity, response.DomainError(
			http.StatusUnprocessableEntity,
			"PAYMENT_RATE_MISSING",
			missingRate.Error(),
			map[string]interface{}{"component": missingRate.Component},
		))
		return
	}

	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
}

func statusForCode(code string) int {
	switch code {
	case "SHIPMENT_NOT_FOUND", "SUPPLIER_NOT_FOUND", "SHIPPING_COMPANY_NOT_FOUND",
		"PARTY_NOT_FOUND", "PAYMENT_NOT_FOUND", "RETURN_CASE_NOT_FOUND":
		return http.StatusNotFound
	case "SHIPMENT_LOCKED", "RETURN_CASE_ALREADY_RESOLVED", "SEASON_BALANCE_NOT_ZERO", "PAYMENT_OVERPAY":
		return http.StatusConflict
	case "PAYMENT_RATE_MISSING", "AUTO_ALLOCATION_NOT_ELIGIBLE":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
