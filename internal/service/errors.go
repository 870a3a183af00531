package service

import (
	"errors"
	"fmt"
)

// DomainError carries a stable machine code alongside a human message so
// handlers can map failures without string matching. Details hold contextual
// values (remaining allowance, eligible parties, ...) for the caller.
type DomainError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches by code so errors.Is works across WithDetails copies.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// WithDetails returns a copy of the error carrying contextual details.
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrShipmentNotFound        = NewDomainError("SHIPMENT_NOT_FOUND", "shipment not found")
	ErrShipmentLocked          = NewDomainError("SHIPMENT_LOCKED", "shipment is archived and cannot accept payments")
	ErrSupplierNotFound        = NewDomainError("SUPPLIER_NOT_FOUND", "supplier not found")
	ErrShippingCompanyNotFound = NewDomainError("SHIPPING_COMPANY_NOT_FOUND", "shipping company not found")
	ErrPartyNotFound           = NewDomainError("PARTY_NOT_FOUND", "trading party not found")
	ErrPartyRequired           = NewDomainError("PARTY_REQUIRED", "multiple parties are eligible; party_type and party_id must be specified")
	ErrPartyMismatch           = NewDomainError("PARTY_MISMATCH", "the specified party is not eligible for this shipment")
	ErrPaymentPayloadInvalid   = NewDomainError("PAYMENT_PAYLOAD_INVALID", "payment payload is invalid")
	ErrPaymentDateInvalid      = NewDomainError("PAYMENT_DATE_INVALID", "payment date is invalid")
	ErrPaymentRateMissing      = NewDomainError("PAYMENT_RATE_MISSING", "a positive RMB to EGP rate is required")
	ErrCurrencyUnsupported     = NewDomainError("PAYMENT_CURRENCY_UNSUPPORTED", "only EGP and RMB payments are supported")
	ErrPaymentOverpay          = NewDomainError("PAYMENT_OVERPAY", "payment exceeds the remaining allowed amount")
	ErrAllocationNotEligible   = NewDomainError("AUTO_ALLOCATION_NOT_ELIGIBLE", "payment is not eligible for automatic allocation")
	ErrPaymentNotFound         = NewDomainError("PAYMENT_NOT_FOUND", "payment not found")
	ErrReturnCaseNotFound      = NewDomainError("RETURN_CASE_NOT_FOUND", "return case not found")
	ErrReturnCaseResolved      = NewDomainError("RETURN_CASE_ALREADY_RESOLVED", "return case is already resolved")
	ErrSeasonBalanceNotZero    = NewDomainError("SEASON_BALANCE_NOT_ZERO", "season balance must be zero before closing")
)

// MissingRmbRateError signals that a cost component is only known in RMB and
// no positive rate candidate was available to convert it. It is recoverable:
// the caller may supply a rate and retry.
type MissingRmbRateError struct {
	Component string
}

func (e *MissingRmbRateError) Error() string {
	return fmt.Sprintf("no positive RMB rate available to resolve the %s component", e.Component)
}
