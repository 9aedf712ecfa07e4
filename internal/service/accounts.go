package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/payments"
	"github.com/puntoventa/backend/internal/repository"
)

// ErrAccountClaimed is returned when a manual save references an external
// account id already linked to another user.
var ErrAccountClaimed = errors.New("account already claimed by another user")

// OnboardResult carries the hosted onboarding URL for a new account.
type OnboardResult struct {
	Account       *entity.ConnectedAccount `json:"account"`
	OnboardingURL string                   `json:"onboarding_url"`
}

// AccountService manages connected sub-merchant accounts.
type AccountService struct {
	accounts repository.ConnectedAccountRepository
	gateway  payments.Gateway

	defaultRate   float64
	publicBaseURL string
}

func NewAccountService(accounts repository.ConnectedAccountRepository, gateway payments.Gateway, defaultRate float64, publicBaseURL string) *AccountService {
	return &AccountService{
		accounts:      accounts,
		gateway:       gateway,
		defaultRate:   defaultRate,
		publicBaseURL: publicBaseURL,
	}
}

// Onboard creates an Express account at the gateway and returns the
// hosted onboarding link. When the user already has an active account,
// a fresh onboarding link for it is returned instead.
func (s *AccountService) Onboard(ctx context.Context, userID, email, businessName, country string) (*OnboardResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	existing, err := s.accounts.FindActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up connected account: %w", err)
	}
	if existing != nil {
		url, err := s.onboardingLink(ctx, existing.StripeAccountID)
		if err != nil {
			return nil, err
		}
		return &OnboardResult{Account: existing, OnboardingURL: url}, nil
	}

	gwAccount, err := s.gateway.CreateAccount(ctx, payments.AccountParams{
		Email:        email,
		Country:      country,
		BusinessName: businessName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway account: %w", err)
	}

	account := &entity.ConnectedAccount{
		ID:              uuid.New().String(),
		UserID:          userID,
		StripeAccountID: gwAccount.ID,
		Email:           email,
		BusinessName:    businessName,
		Country:         gwAccount.Country,
		CommissionRate:  s.defaultRate,
		Status:          entity.AccountStatusActive,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	url, err := s.onboardingLink(ctx, gwAccount.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("Connected account created", "user_id", userID, "stripe_account_id", gwAccount.ID)
	return &OnboardResult{Account: account, OnboardingURL: url}, nil
}

func (s *AccountService) onboardingLink(ctx context.Context, accountID string) (string, error) {
	url, err := s.gateway.CreateAccountLink(ctx,
		accountID,
		s.publicBaseURL+"/conectar/reintentar",
		s.publicBaseURL+"/conectar/completado",
	)
	if err != nil {
		return "", fmt.Errorf("failed to create onboarding link: %w", err)
	}
	return url, nil
}

// Status returns the stored account refreshed with the gateway's current
// capability flags.
func (s *AccountService) Status(ctx context.Context, userID string) (*entity.ConnectedAccount, error) {
	account, err := s.accounts.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	gwAccount, err := s.gateway.GetAccount(ctx, account.StripeAccountID)
	if err != nil {
		// Stale flags beat an unavailable status page.
		slog.Error("Failed to refresh account from gateway", "stripe_account_id", account.StripeAccountID, "err", err)
		return account, nil
	}

	account.DetailsSubmitted = gwAccount.DetailsSubmitted
	account.ChargesEnabled = gwAccount.ChargesEnabled
	account.PayoutsEnabled = gwAccount.PayoutsEnabled
	if gwAccount.DetailsSubmitted && gwAccount.ChargesEnabled {
		account.OnboardingCompleted = true
	}
	if gwAccount.Country != "" {
		account.Country = gwAccount.Country
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		slog.Error("Failed to persist refreshed account flags", "stripe_account_id", account.StripeAccountID, "err", err)
	}
	return account, nil
}

// ManualSave links an admin-entered external account id to the user. The
// id is validated against the gateway and refused when another user
// already claimed it.
func (s *AccountService) ManualSave(ctx context.Context, userID, stripeAccountID string, rate float64) (*entity.ConnectedAccount, error) {
	if stripeAccountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("commission rate must be within [0,1]")
	}

	claimed, err := s.accounts.FindByStripeAccount(ctx, stripeAccountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check account claim: %w", err)
	}
	if claimed != nil && claimed.UserID != userID {
		return nil, ErrAccountClaimed
	}

	gwAccount, err := s.gateway.GetAccount(ctx, stripeAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate account with gateway: %w", err)
	}

	if rate == 0 {
		rate = s.defaultRate
	}

	if claimed != nil {
		claimed.CommissionRate = rate
		claimed.Email = gwAccount.Email
		claimed.Country = gwAccount.Country
		claimed.DetailsSubmitted = gwAccount.DetailsSubmitted
		claimed.ChargesEnabled = gwAccount.ChargesEnabled
		claimed.PayoutsEnabled = gwAccount.PayoutsEnabled
		claimed.Status = entity.AccountStatusActive
		if err := s.accounts.Update(ctx, claimed); err != nil {
			return nil, err
		}
		return claimed, nil
	}

	account := &entity.ConnectedAccount{
		ID:               uuid.New().String(),
		UserID:           userID,
		StripeAccountID:  stripeAccountID,
		Email:            gwAccount.Email,
		Country:          gwAccount.Country,
		CommissionRate:   rate,
		Status:           entity.AccountStatusActive,
		DetailsSubmitted: gwAccount.DetailsSubmitted,
		ChargesEnabled:   gwAccount.ChargesEnabled,
		PayoutsEnabled:   gwAccount.PayoutsEnabled,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if gwAccount.DetailsSubmitted && gwAccount.ChargesEnabled {
		account.OnboardingCompleted = true
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	slog.Info("Connected account saved manually", "user_id", userID, "stripe_account_id", stripeAccountID)
	return account, nil
}
