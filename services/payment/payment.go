// Package payment defines the gateway used to charge users for
// subscriptions. Only a configurable stub ships with the service.
package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrDeclined is returned when the gateway refuses the charge.
var ErrDeclined = errors.New("payment: charge declined")

type Result struct {
	Method    string
	Reference string
}

// Gateway charges a user. Any error means no money moved.
type Gateway interface {
	Charge(ctx context.Context, userID uint, amount decimal.Decimal) (Result, error)
}

// StubGateway approves or declines every charge according to Succeed.
type StubGateway struct {
	Succeed bool

	mu      sync.Mutex
	charges []Charge
}

type Charge struct {
	UserID uint
	Amount decimal.Decimal
}

func NewStubGateway(succeed bool) *StubGateway {
	return &StubGateway{Succeed: succeed}
}

func (g *StubGateway) Charge(ctx context.Context, userID uint, amount decimal.Decimal) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, Charge{UserID: userID, Amount: amount})
	if !g.Succeed {
		return Result{}, ErrDeclined
	}
	return Result{Method: "stub", Reference: "stub_" + uuid.NewString()}, nil
}

// Charges returns every attempted charge, approved or not.
func (g *StubGateway) Charges() []Charge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Charge, len(g.charges))
	copy(out, g.charges)
	return out
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, userID uint, amount decimal.Decimal) (Result, error)

func (f GatewayFunc) Charge(ctx context.Context, userID uint, amount decimal.Decimal) (Result, error) {
	return f(ctx, userID, amount)
}
