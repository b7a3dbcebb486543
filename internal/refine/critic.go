package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/aeroforge/aeroforge/internal/cache"
	"github.com/aeroforge/aeroforge/internal/gateway"
	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/ports"
)

// standardPressurePa is one atmosphere; equilibrium critiques run at
// ambient pressure.
const standardPressurePa = 101325

// critic validates candidates against the thermodynamic solver, with an
// optional read-through memo of prior solves.
type critic struct {
	gw   *gateway.Gateway
	memo ports.ThermoCache
}

// critique returns the equilibrium result for the candidate plus any
// degraded-path warning. A cached hit skips the solver entirely.
func (c *critic) critique(ctx context.Context, candidate *domain.AlloyCandidate) (*domain.ThermoResult, string) {
	key := cache.Key(candidate.Matrix, candidate.TargetTemperatureK, standardPressurePa)
	if c.memo != nil {
		if cached, ok := c.memo.Get(ctx, key); ok {
			return cached, ""
		}
	}
	result, warning := c.gw.SolveEquilibrium(ctx, candidate.Matrix, candidate.TargetTemperatureK, standardPressurePa)
	if c.memo != nil {
		c.memo.Put(ctx, key, result)
	}
	return result, warning
}

// rejectionFeedback summarizes why a result failed, phrased for the next
// generation prompt.
func rejectionFeedback(candidate *domain.AlloyCandidate, result *domain.ThermoResult) string {
	matrix := strings.Join(candidate.Matrix, "-")
	if result.Error != "" {
		return fmt.Sprintf("%s at %.0fK: solver error (%s)", matrix, candidate.TargetTemperatureK, result.Error)
	}
	var phases []string
	for _, p := range result.StablePhases {
		phases = append(phases, fmt.Sprintf("%s at fraction %.3f", p.Phase, p.Fraction))
	}
	return fmt.Sprintf("%s at %.0fK: unstable phases %s", matrix, candidate.TargetTemperatureK, strings.Join(phases, ", "))
}
