package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// SeatHolder places a refundable hold on the seat price when a passenger
// joins a ride, to be captured once the ride completes.
type SeatHolder interface {
	HoldSeat(ctx context.Context, amountCents int64, currency, customerID string) (string, error)
	ReleaseSeat(ctx context.Context, holdID string) error
	CaptureSeat(ctx context.Context, holdID string) error
}

// StripeSeatHolder implements SeatHolder with manual-capture
// PaymentIntents.
type StripeSeatHolder struct{}

// NewStripeSeatHolder reads STRIPE_API_KEY from the environment.
func NewStripeSeatHolder() *StripeSeatHolder {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeSeatHolder{}
}

func (s *StripeSeatHolder) HoldSeat(ctx context.Context, amountCents int64, currency, customerID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeSeatHolder) ReleaseSeat(ctx context.Context, holdID string) error {
	_, err := paymentintent.Cancel(holdID, nil)
	return err
}

func (s *StripeSeatHolder) CaptureSeat(ctx context.Context, holdID string) error {
	_, err := paymentintent.Capture(holdID, nil)
	return err
}
