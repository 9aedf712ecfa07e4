// Package stripe implements payments.Gateway against the Stripe API.
package stripe

import (
	"context"
	"fmt"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/account"
	"github.com/stripe/stripe-go/v79/accountlink"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/transfer"

	"github.com/puntoventa/backend/internal/payments"
)

type gateway struct{}

// NewGateway configures the Stripe client with the secret key and returns
// a payments.Gateway backed by it.
func NewGateway(secretKey string) payments.Gateway {
	stripego.Key = secretKey
	return &gateway{}
}

func (g *gateway) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	sp := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL: stripego.String(params.SuccessURL),
		CancelURL:  stripego.String(params.CancelURL),
	}
	sp.Context = ctx
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripego.String(params.CustomerEmail)
	}
	for _, li := range params.LineItems {
		sp.LineItems = append(sp.LineItems, &stripego.CheckoutSessionLineItemParams{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(params.Currency),
				UnitAmount: stripego.Int64(li.UnitAmount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(li.Name),
				},
			},
			Quantity: stripego.Int64(li.Quantity),
		})
	}
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	s, err := session.New(sp)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return fromSession(s), nil
}

func (g *gateway) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.CheckoutSession, error) {
	gp := &stripego.CheckoutSessionParams{}
	gp.Context = ctx
	s, err := session.Get(sessionID, gp)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session %s: %w", sessionID, err)
	}
	cs := fromSession(s)

	lp := &stripego.CheckoutSessionListLineItemsParams{Session: stripego.String(sessionID)}
	lp.Context = ctx
	iter := session.ListLineItems(lp)
	for iter.Next() {
		li := iter.LineItem()
		item := payments.LineItem{
			UnitAmount: li.AmountTotal,
			Quantity:   li.Quantity,
		}
		if li.Quantity > 0 {
			item.UnitAmount = li.AmountTotal / li.Quantity
		}
		item.Name = li.Description
		cs.LineItems = append(cs.LineItems, item)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list line items for %s: %w", sessionID, err)
	}
	return cs, nil
}

func fromSession(s *stripego.CheckoutSession) *payments.CheckoutSession {
	cs := &payments.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		cs.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.CustomerDetails != nil {
		cs.CustomerEmail = s.CustomerDetails.Email
	}
	return cs
}

func (g *gateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*payments.PaymentIntent, error) {
	pp := &stripego.PaymentIntentParams{}
	pp.Context = ctx
	pi, err := paymentintent.Get(paymentIntentID, pp)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", paymentIntentID, err)
	}
	return &payments.PaymentIntent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
	}, nil
}

func (g *gateway) CreateAccount(ctx context.Context, params payments.AccountParams) (*payments.Account, error) {
	ap := &stripego.AccountParams{
		Type:    stripego.String(string(stripego.AccountTypeExpress)),
		Email:   stripego.String(params.Email),
		Country: stripego.String(params.Country),
		Capabilities: &stripego.AccountCapabilitiesParams{
			CardPayments: &stripego.AccountCapabilitiesCardPaymentsParams{Requested: stripego.Bool(true)},
			Transfers:    &stripego.AccountCapabilitiesTransfersParams{Requested: stripego.Bool(true)},
		},
	}
	ap.Context = ctx
	if params.BusinessName != "" {
		ap.BusinessProfile = &stripego.AccountBusinessProfileParams{
			Name: stripego.String(params.BusinessName),
		}
	}
	a, err := account.New(ap)
	if err != nil {
		return nil, fmt.Errorf("failed to create connected account: %w", err)
	}
	return fromAccount(a), nil
}

func (g *gateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	lp := &stripego.AccountLinkParams{
		Account:    stripego.String(accountID),
		RefreshURL: stripego.String(refreshURL),
		ReturnURL:  stripego.String(returnURL),
		Type:       stripego.String("account_onboarding"),
	}
	lp.Context = ctx
	link, err := accountlink.New(lp)
	if err != nil {
		return "", fmt.Errorf("failed to create account link for %s: %w", accountID, err)
	}
	return link.URL, nil
}

func (g *gateway) GetAccount(ctx context.Context, accountID string) (*payments.Account, error) {
	ap := &stripego.AccountParams{}
	ap.Context = ctx
	a, err := account.GetByID(accountID, ap)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve account %s: %w", accountID, err)
	}
	return fromAccount(a), nil
}

func fromAccount(a *stripego.Account) *payments.Account {
	return &payments.Account{
		ID:               a.ID,
		Email:            a.Email,
		Country:          a.Country,
		DetailsSubmitted: a.DetailsSubmitted,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
	}
}

func (g *gateway) CreateTransfer(ctx context.Context, params payments.TransferParams) (*payments.Transfer, error) {
	tp := &stripego.TransferParams{
		Amount:      stripego.Int64(params.Amount),
		Currency:    stripego.String(params.Currency),
		Destination: stripego.String(params.Destination),
	}
	tp.Context = ctx
	if params.TransferGroup != "" {
		tp.TransferGroup = stripego.String(params.TransferGroup)
	}
	t, err := transfer.New(tp)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer to %s: %w", params.Destination, err)
	}
	return &payments.Transfer{
		ID:       t.ID,
		Amount:   t.Amount,
		Currency: string(t.Currency),
	}, nil
}
