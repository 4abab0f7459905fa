package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abarbet/shoply-backend/pkg/config"
)

func TestSimulatedGatewayOutcomeFollowsRate(t *testing.T) {
	ctx := context.Background()

	always := NewSimulatedGateway(config.SettlementConfig{SuccessRate: 1.0})
	for i := 0; i < 5; i++ {
		approved, err := always.Charge(ctx, nil)
		if err != nil {
			t.Fatalf("charge failed: %v", err)
		}
		if !approved {
			t.Fatal("success rate 1.0 must always approve")
		}
	}

	never := NewSimulatedGateway(config.SettlementConfig{SuccessRate: 0.0})
	for i := 0; i < 5; i++ {
		approved, err := never.Charge(ctx, nil)
		if err != nil {
			t.Fatalf("charge failed: %v", err)
		}
		if approved {
			t.Fatal("success rate 0.0 must never approve")
		}
	}
}

func TestSimulatedGatewayHonorsCancellation(t *testing.T) {
	gateway := NewSimulatedGateway(config.SettlementConfig{
		MinDelay:    time.Minute,
		MaxDelay:    time.Minute,
		SuccessRate: 1.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.Charge(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}
