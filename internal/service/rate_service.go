package service

import (
	"context"
	"errors"
	"fmt"

	"shipledger/internal/model"
	"shipledger/internal/repository"

	"gorm.io/gorm"
)

type CreateRateRequest struct {
	Currency  string `json:"currency"` // defaults to RMB
	RateToEgp string `json:"rate_to_egp" binding:"required"`
	Source    string `json:"source"`
}

type RateService interface {
	CreateRate(ctx context.Context, req CreateRateRequest) (*model.ExchangeRate, error)
	GetLatestRate(ctx context.Context, currency string) (*model.ExchangeRate, error)
	ListRates(ctx context.Context, currency string, page, limit int) ([]model.ExchangeRate, int64, error)
}

type rateService struct {
	rateRepo repository.RateRepository
}

func NewRateService(rateRepo repository.RateRepository) RateService {
	return &rateService{rateRepo: rateRepo}
}

func (s *rateService) CreateRate(ctx context.Context, req CreateRateRequest) (*model.ExchangeRate, error) {
	currency := req.Currency
	if currency == "" {
		currency = model.CurrencyRMB
	}
	if currency != model.CurrencyRMB {
		return nil, ErrCurrencyUnsupported.WithDetails(map[string]interface{}{"currency": currency})
	}

	rate := RoundRate(ParseAmountOrZero(req.RateToEgp))
	if !rate.IsPositive() {
		return nil, ErrPaymentRateMissing
	}

	record := &model.ExchangeRate{
		Currency:  currency,
		RateToEgp: rate,
		Source:    req.Source,
	}
	if err := s.rateRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create exchange rate: %w", err)
	}
	return record, nil
}

func (s *rateService) GetLatestRate(ctx context.Context, currency string) (*model.ExchangeRate, error) {
	if currency == "" {
		currency = model.CurrencyRMB
	}
	rate, err := s.rateRepo.FindLatest(ctx, currency)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentRateMissing
		}
		return nil, fmt.Errorf("failed to load latest rate: %w", err)
	}
	return rate, nil
}

func (s *rateService) ListRates(ctx context.Context, currency string, page, limit int) ([]model.ExchangeRate, int64, error) {
	return s.rateRepo.List(ctx, currency, page, limit)
}
