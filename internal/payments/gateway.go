package payments

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/modacart/modacart-backend/pkg/config"
	"github.com/modacart/modacart-backend/pkg/db/models"
)

// Gateway decides the outcome of a charge attempt. The production wiring
// uses the simulated gateway; tests swap in deterministic outcomes.
type Gateway interface {
	Charge(ctx context.Context, payment *models.Payment) (bool, error)
}

type simulatedGateway struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedGateway builds a gateway that approves roughly successRate of
// the charges it sees. Rates outside [0, 1] are clamped.
func NewSimulatedGateway(cfg config.PaymentsConfig) Gateway {
	rate := cfg.SuccessRate
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &simulatedGateway{
		successRate: rate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *simulatedGateway) Charge(_ context.Context, _ *models.Payment) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < g.successRate, nil
}

// GatewayFunc adapts a plain function to the Gateway interface.
type GatewayFunc func(ctx context.Context, payment *models.Payment) (bool, error)

func (f GatewayFunc) Charge(ctx context.Context, payment *models.Payment) (bool, error) {
	return f(ctx, payment)
}
