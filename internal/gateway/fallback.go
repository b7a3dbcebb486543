package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aeroforge/aeroforge/internal/adapters/synthesis"
	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/validate"
)

// defaultPlan is the research fallback: a fixed aerospace-alloy element
// set, flagged low confidence.
func defaultPlan() *domain.ResearchPlan {
	return &domain.ResearchPlan{
		RequiredProperties:       []string{"high_tensile_strength", "oxidation_resistance", "low_weight"},
		SuggestedElements:        []string{"Ti", "Al", "V"},
		ThermodynamicConstraints: "Maintain phase stability below 1000K.",
		Provenance:               domain.ProvenanceLowConfidence,
	}
}

// planPrompt asks for a strict-JSON research plan grounded in the
// retrieved findings.
func planPrompt(intent string, findings []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Synthesize an alloy research plan for this request: ")
	b.WriteString(intent)
	b.WriteString("\n\nRetrieved literature, ranked by relevance:\n")
	for i, f := range findings {
		fmt.Fprintf(&b, "%d. (score %.3f) %s\n", i+1, f.RelevanceScore, f.Content)
	}
	b.WriteString("\nRespond with ONLY a JSON object: " +
		`{"required_properties": [...], "suggested_elements": [...], "thermodynamic_constraints": "..."}` +
		"\nsuggested_elements must be valid chemical element symbols.")
	return b.String()
}

// Plan synthesizes a ResearchPlan from the query intent and search
// findings. After retries exhaust, or when the reply fails validation,
// it degrades to the default plan; the returned warning is non-empty
// exactly when the fallback fired.
func (g *Gateway) Plan(ctx context.Context, intent string, findings []domain.SearchResult) (*domain.ResearchPlan, string) {
	reply, err := g.Reason(ctx, planPrompt(intent, findings), domain.DepthMedium)
	if err == nil {
		var plan domain.ResearchPlan
		if jsonErr := json.Unmarshal([]byte(StripFences(reply)), &plan); jsonErr == nil {
			if validate.Plan(&plan) == nil {
				return &plan, ""
			}
		}
		err = fmt.Errorf("reasoner returned an unusable plan")
	}
	g.fallback(ctx, "research")
	g.logger.WarnContext(ctx, "research plan degraded to default", "error", err)
	return defaultPlan(), "research: collaborator unavailable, using default aerospace plan (lowConfidence)"
}

// SolveEquilibrium runs the thermodynamic solver. There is no fabricated
// fallback value: after retries exhaust, or when the payload fails its
// sanity check, the result is unstable with the error recorded, which the
// critic treats as a rejection.
func (g *Gateway) SolveEquilibrium(ctx context.Context, elements []string, temperatureK, pressurePa float64) (*domain.ThermoResult, string) {
	result, err := call(ctx, g, "thermo", func(ctx context.Context) (*domain.ThermoResult, error) {
		return g.thermo.SolveEquilibrium(ctx, elements, temperatureK, pressurePa)
	})
	if err == nil {
		if verr := validate.Thermo(result); verr != nil {
			err = fmt.Errorf("solver payload failed sanity check: %w", verr)
		} else {
			return result, ""
		}
	}
	g.fallback(ctx, "thermo")
	g.logger.WarnContext(ctx, "thermodynamic solve degraded", "error", err)
	return &domain.ThermoResult{
		Elements:     append([]string(nil), elements...),
		TemperatureK: temperatureK,
		PressurePa:   pressurePa,
		IsStable:     false,
		Error:        err.Error(),
	}, "thermo: solver unavailable, candidate treated as unstable"
}

// SolveStructural runs the finite-element solver, degrading to an
// analytical closed-form estimate derived from the load magnitudes when
// the solver is unreachable.
func (g *Gateway) SolveStructural(ctx context.Context, geometryRef string, thermalLoadK, structuralLoadMPa float64) (*domain.FEAResult, string) {
	result, err := call(ctx, g, "structural", func(ctx context.Context) (*domain.FEAResult, error) {
		return g.structural.SolveStructural(ctx, geometryRef, thermalLoadK, structuralLoadMPa)
	})
	if err == nil {
		if verr := validate.FEA(result); verr != nil {
			err = fmt.Errorf("solver payload failed sanity check: %w", verr)
		} else {
			return result, ""
		}
	}
	g.fallback(ctx, "structural")
	g.logger.WarnContext(ctx, "structural solve degraded to analytical estimate", "error", err)
	return analyticalEstimate(thermalLoadK, structuralLoadMPa),
		"structural: solver unavailable, using analytical closed-form estimate (analyticalFallback)"
}

// analyticalEstimate is the closed-form stand-in for a full FEA run:
// displacement and stress scale linearly with the applied loads, and the
// survival thresholds are 5mm displacement and 1000MPa von Mises stress.
func analyticalEstimate(thermalLoadK, structuralLoadMPa float64) *domain.FEAResult {
	disp := structuralLoadMPa*0.05 + thermalLoadK*0.001
	vonMises := structuralLoadMPa * 1.5
	survived := disp < 5.0 && vonMises < 1000.0

	result := &domain.FEAResult{
		MaxDisplacementMm: disp,
		VonMisesStressMPa: vonMises,
		ThermalGradientK:  thermalLoadK,
		Survived:          survived,
		Provenance:        domain.ProvenanceAnalyticalFallback,
	}
	if !survived {
		result.FailureMode = "Yield Criteria Exceeded"
	}
	return result
}

// SynthesizeVisual renders the stress heatmap artifact, degrading to a
// locally generated static SVG when the synthesis collaborator is
// unavailable. The returned error is only for local write failures.
func (g *Gateway) SynthesizeVisual(ctx context.Context, sim *domain.FEAResult, path string) (string, error) {
	_, err := call(ctx, g, "synthesize_visual", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.synth.SynthesizeVisual(ctx, sim, path)
	})
	if err == nil {
		return "", nil
	}
	g.fallback(ctx, "synthesize_visual")
	g.logger.WarnContext(ctx, "visual synthesis degraded to static artifact", "error", err)
	if werr := os.WriteFile(path, []byte(staticHeatmapSVG(sim)), 0o644); werr != nil {
		return "", fmt.Errorf("write fallback visual artifact: %w", werr)
	}
	return "synthesis: visual collaborator unavailable, wrote static heatmap (degradedMode)", nil
}

// SynthesizeAudio renders the spoken briefing, degrading to a plain-text
// transcript of the same briefing script when the synthesis collaborator
// is unavailable. It returns the path actually written, since the
// degraded artifact is a .txt file.
func (g *Gateway) SynthesizeAudio(ctx context.Context, state *domain.SessionState, path string) (string, string, error) {
	_, err := call(ctx, g, "synthesize_audio", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.synth.SynthesizeAudio(ctx, state, path)
	})
	if err == nil {
		return path, "", nil
	}
	g.fallback(ctx, "synthesize_audio")
	g.logger.WarnContext(ctx, "audio synthesis degraded to transcript", "error", err)
	transcriptPath := strings.TrimSuffix(path, ".mp3") + ".txt"
	if werr := os.WriteFile(transcriptPath, []byte(synthesis.BriefingScript(state)), 0o644); werr != nil {
		return "", "", fmt.Errorf("write fallback audio artifact: %w", werr)
	}
	return transcriptPath, "synthesis: audio collaborator unavailable, wrote text transcript (degradedMode)", nil
}

// staticHeatmapSVG is the no-collaborator visual artifact.
func staticHeatmapSVG(sim *domain.FEAResult) string {
	color := "red"
	if sim != nil && sim.Survived {
		color = "green"
	}
	var disp, stress float64
	if sim != nil {
		disp = sim.MaxDisplacementMm
		stress = sim.VonMisesStressMPa
	}
	radius := disp*10 + 50
	if radius > 200 {
		radius = 200
	}
	return fmt.Sprintf(`<svg width="400" height="400" xmlns="http://www.w3.org/2000/svg">
  <rect width="100%%" height="100%%" fill="#1a1a1a" />
  <circle cx="200" cy="200" r="%.0f" fill="%s" opacity="0.8">
    <animate attributeName="r" values="50;%.0f;50" dur="2s" repeatCount="indefinite" />
  </circle>
  <text x="200" y="50" font-family="Arial" font-size="20" fill="white" text-anchor="middle">Stress Map: %.1f MPa</text>
</svg>
`, radius, color, radius, stress)
}

// StripFences removes a surrounding markdown code fence from a model
// reply, tolerating ```json / ```svg / ```xml markers.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```svg")
	s = strings.TrimPrefix(s, "```xml")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
