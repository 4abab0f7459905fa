package payments

import (
	"context"
	"math/rand"
	"time"

	"github.com/abarbet/shoply-backend/pkg/config"
	"github.com/abarbet/shoply-backend/pkg/db/models"
)

// Gateway performs the external authorization step of a settlement attempt.
// Charge returns whether the charge was approved; an error means the
// attempt did not complete (typically cancellation).
type Gateway interface {
	Charge(ctx context.Context, payment *models.Payment) (bool, error)
}

type simulatedGateway struct {
	cfg config.SettlementConfig
}

// NewSimulatedGateway builds a gateway that sleeps for a random duration
// inside the configured window and approves at the configured rate.
func NewSimulatedGateway(cfg config.SettlementConfig) Gateway {
	return &simulatedGateway{cfg: cfg}
}

func (g *simulatedGateway) Charge(ctx context.Context, _ *models.Payment) (bool, error) {
	delay := g.cfg.MinDelay
	if spread := g.cfg.MaxDelay - g.cfg.MinDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
	}

	return rand.Float64() < g.cfg.SuccessRate, nil
}
