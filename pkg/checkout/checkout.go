// Package checkout creates Stripe Checkout sessions for credit top-ups.
package checkout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v84"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
)

// Config describes one purchasable credit pack.
type Config struct {
	// SecretKey is the Stripe API key.
	SecretKey string

	// PriceID identifies the credit pack price in Stripe.
	PriceID string

	SuccessURL string
	CancelURL  string

	// CreditSeconds is the credit grant fulfilled after payment. Attached
	// to the session metadata so the fulfillment webhook knows what to
	// grant.
	CreditSeconds int
}

// Service creates checkout sessions.
type Service struct {
	cfg Config
}

// NewService validates the config and sets the Stripe API key.
func NewService(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if strings.TrimSpace(cfg.PriceID) == "" {
		return nil, fmt.Errorf("stripe price id is required")
	}
	stripe.Key = cfg.SecretKey
	return &Service{cfg: cfg}, nil
}

// CreateSession starts one checkout flow for the given learner and returns
// the hosted payment page URL.
func (s *Service) CreateSession(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(userID),
		Metadata: map[string]string{
			"credit_seconds": strconv.Itoa(s.cfg.CreditSeconds),
		},
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}
