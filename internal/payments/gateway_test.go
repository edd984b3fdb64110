package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modacart/modacart-backend/pkg/config"
	"github.com/modacart/modacart-backend/pkg/db/models"
)

func TestSimulatedGatewayRespectsRateBounds(t *testing.T) {
	always := NewSimulatedGateway(config.PaymentsConfig{SuccessRate: 1})
	never := NewSimulatedGateway(config.PaymentsConfig{SuccessRate: 0})
	clampedHigh := NewSimulatedGateway(config.PaymentsConfig{SuccessRate: 4.2})
	clampedLow := NewSimulatedGateway(config.PaymentsConfig{SuccessRate: -1})

	payment := &models.Payment{}
	for i := 0; i < 50; i++ {
		approved, err := always.Charge(context.Background(), payment)
		require.NoError(t, err)
		assert.True(t, approved)

		approved, err = never.Charge(context.Background(), payment)
		require.NoError(t, err)
		assert.False(t, approved)

		approved, err = clampedHigh.Charge(context.Background(), payment)
		require.NoError(t, err)
		assert.True(t, approved)

		approved, err = clampedLow.Charge(context.Background(), payment)
		require.NoError(t, err)
		assert.False(t, approved)
	}
}

func TestSimulatedGatewayApproximatesConfiguredRate(t *testing.T) {
	gateway := NewSimulatedGateway(config.PaymentsConfig{SuccessRate: 0.8})

	approved := 0
	const attempts = 5000
	for i := 0; i < attempts; i++ {
		ok, err := gateway.Charge(context.Background(), &models.Payment{})
		require.NoError(t, err)
		if ok {
			approved++
		}
	}

	rate := float64(approved) / float64(attempts)
	assert.InDelta(t, 0.8, rate, 0.05)
}
