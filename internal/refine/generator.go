package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aeroforge/aeroforge/internal/gateway"
	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/validate"
)

// generator proposes alloy candidates from the research plan, folding in
// the rejection feedback accumulated by earlier iterations.
type generator struct {
	gw      *gateway.Gateway
	retries int
}

func candidatePrompt(plan *domain.ResearchPlan, feedback []string) string {
	var b strings.Builder
	b.WriteString("Propose an alloy candidate for an aerospace component.\n")
	fmt.Fprintf(&b, "Required properties: %s.\n", strings.Join(plan.RequiredProperties, ", "))
	fmt.Fprintf(&b, "Suggested elements: %s.\n", strings.Join(plan.SuggestedElements, ", "))
	if plan.ThermodynamicConstraints != "" {
		fmt.Fprintf(&b, "Constraints: %s\n", plan.ThermodynamicConstraints)
	}
	if len(feedback) > 0 {
		b.WriteString("\nEarlier candidates were rejected by the equilibrium solver:\n")
		for _, f := range feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("Propose a different composition that avoids these instabilities.\n")
	}
	b.WriteString("\nRespond with ONLY a JSON object: " +
		`{"matrix": ["El", ...], "target_temperature_k": <number>}` +
		"\nmatrix must be valid chemical element symbols and the temperature must be positive.")
	return b.String()
}

// propose asks the reasoning collaborator for one candidate. A reply
// that fails to parse or validate is a generation failure, retried up to
// the generation bound before the whole iteration counts as rejected.
func (g *generator) propose(ctx context.Context, plan *domain.ResearchPlan, feedback []string) (*domain.AlloyCandidate, error) {
	prompt := candidatePrompt(plan, feedback)
	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		reply, err := g.gw.Reason(ctx, prompt, domain.DepthHigh)
		if err != nil {
			lastErr = err
			continue
		}
		var candidate domain.AlloyCandidate
		if err := json.Unmarshal([]byte(gateway.StripFences(reply)), &candidate); err != nil {
			lastErr = fmt.Errorf("unparseable candidate: %w", err)
			continue
		}
		if err := validate.Candidate(&candidate); err != nil {
			lastErr = fmt.Errorf("invalid candidate: %w", err)
			continue
		}
		return &candidate, nil
	}
	return nil, fmt.Errorf("candidate generation failed: %w", lastErr)
}
