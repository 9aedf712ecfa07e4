package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puntoventa/backend/internal/entity"
	"github.com/puntoventa/backend/internal/service"
)

func TestOnboardCreatesAccountAndLink(t *testing.T) {
	ctx := context.Background()
	accounts := &fakeAccountRepo{}
	gw := newFakeGateway()
	svc := service.NewAccountService(accounts, gw, 0.05, "https://tienda.example")

	res, err := svc.Onboard(ctx, "u1", "seller@example.com", "Tienda Uno", "ES")
	require.NoError(t, err)
	require.NotEmpty(t, res.OnboardingURL)
	require.Equal(t, "u1", res.Account.UserID)
	require.Equal(t, 0.05, res.Account.CommissionRate)
	require.Equal(t, entity.AccountStatusActive, res.Account.Status)

	stored, err := accounts.FindActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, res.Account.StripeAccountID, stored.StripeAccountID)
}

func TestOnboardExistingAccountReturnsFreshLink(t *testing.T) {
	ctx := context.Background()
	accounts := &fakeAccountRepo{}
	require.NoError(t, accounts.Create(ctx, activeAccount("u1")))
	gw := newFakeGateway()
	svc := service.NewAccountService(accounts, gw, 0.05, "https://tienda.example")

	res, err := svc.Onboard(ctx, "u1", "seller@example.com", "", "ES")
	require.NoError(t, err)
	require.Equal(t, "acct_u1", res.Account.StripeAccountID)
	require.NotEmpty(t, res.OnboardingURL)
	require.Empty(t, gw.accounts, "no second gateway account is created")
}

func TestStatusRefreshesCapabilityFlags(t *testing.T) {
	ctx := context.Background()
	accounts := &fakeAccountRepo{}
	acct := activeAccount("u1")
	acct.ChargesEnabled = false
	require.NoError(t, accounts.Create(ctx, acct))

	// The fake gateway reports unknown accounts as fully enabled.
	svc := service.NewAccountService(accounts, newFakeGateway(), 0.05, "https://tienda.example")

	refreshed, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	require.True(t, refreshed.ChargesEnabled)
	require.True(t, refreshed.DetailsSubmitted)
	require.True(t, refreshed.OnboardingCompleted)

	stored, err := accounts.FindActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, stored.OnboardingCompleted, "refreshed flags are persisted")
}

func TestManualSaveClaimConflict(t *testing.T) {
	ctx := context.Background()
	accounts := &fakeAccountRepo{}
	require.NoError(t, accounts.Create(ctx, activeAccount("u1")))
	svc := service.NewAccountService(accounts, newFakeGateway(), 0.05, "https://tienda.example")

	_, err := svc.ManualSave(ctx, "u2", "acct_u1", 0.10)
	require.ErrorIs(t, err, service.ErrAccountClaimed)
}

func TestManualSaveNewAccountDefaultsRate(t *testing.T) {
	ctx := context.Background()
	accounts := &fakeAccountRepo{}
	svc := service.NewAccountService(accounts, newFakeGateway(), 0.05, "https://tienda.example")

	saved, err := svc.ManualSave(ctx, "u1", "acct_external", 0)
	require.NoError(t, err)
	require.Equal(t, 0.05, saved.CommissionRate)
	require.Equal(t, entity.AccountStatusActive, saved.Status)
	require.True(t, saved.OnboardingCompleted)
}

func TestManualSaveUpdatesOwnAccount(t *testing.T) {
	ctx := context.Background()
	accounts := &fakeAccountRepo{}
	require.NoError(t, accounts.Create(ctx, activeAccount("u1")))
	svc := service.NewAccountService(accounts, newFakeGateway(), 0.05, "https://tienda.example")

	saved, err := svc.ManualSave(ctx, "u1", "acct_u1", 0.12)
	require.NoError(t, err)
	require.Equal(t, 0.12, saved.CommissionRate)

	stored, err := accounts.FindActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0.12, stored.CommissionRate)
}

func TestManualSaveRejectsOutOfRangeRate(t *testing.T) {
	svc := service.NewAccountService(&fakeAccountRepo{}, newFakeGateway(), 0.05, "https://tienda.example")

	_, err := svc.ManualSave(context.Background(), "u1", "acct_x", 1.5)
	require.Error(t, err)

	_, err = svc.ManualSave(context.Background(), "u1", "acct_x", -0.1)
	require.Error(t, err)
}
