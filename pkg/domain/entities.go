package domain

import "strings"

// Provenance flags mark values that were produced by a degraded path.
// Downstream consumers must be able to tell a fallback-derived value from
// a validated one; the flag is load-bearing, not cosmetic.
const (
	ProvenanceLowConfidence      = "lowConfidence"
	ProvenanceAnalyticalFallback = "analyticalFallback"
	ProvenanceDegradedMode       = "degradedMode"
	ProvenanceUnvalidated        = "unvalidated"
)

// ResearchPlan is synthesized by the research stage and immutable
// afterward.
type ResearchPlan struct {
	RequiredProperties       []string `json:"required_properties" mapstructure:"required_properties"`
	SuggestedElements        []string `json:"suggested_elements" mapstructure:"suggested_elements"`
	ThermodynamicConstraints string   `json:"thermodynamic_constraints" mapstructure:"thermodynamic_constraints"`
	Provenance               string   `json:"provenance,omitempty" mapstructure:"provenance"`
}

// AlloyCandidate is a proposed chemical composition plus target operating
// temperature. Each refinement iteration supersedes the previous candidate
// rather than mutating it.
type AlloyCandidate struct {
	Matrix             []string `json:"matrix" mapstructure:"matrix"`
	TargetTemperatureK float64  `json:"target_temperature_k" mapstructure:"target_temperature_k"`
	Provenance         string   `json:"provenance,omitempty" mapstructure:"provenance"`
}

// PhaseFraction is one stable phase and its computed fraction.
type PhaseFraction struct {
	Phase    string  `json:"phase" mapstructure:"phase"`
	Fraction float64 `json:"fraction" mapstructure:"fraction"`
}

// ThermoResult is the equilibrium solver's verdict for one candidate.
// Either the phase fractions sum to 1.0 within tolerance, or Error is set
// and IsStable is false. Never mutated after creation.
type ThermoResult struct {
	Elements     []string        `json:"elements" mapstructure:"elements"`
	TemperatureK float64         `json:"temperature_k" mapstructure:"temperature_k"`
	PressurePa   float64         `json:"pressure_pa" mapstructure:"pressure_pa"`
	StablePhases []PhaseFraction `json:"stable_phases" mapstructure:"stable_phases"`
	IsStable     bool            `json:"is_stable" mapstructure:"is_stable"`
	Error        string          `json:"error,omitempty" mapstructure:"error"`
}

// InstabilityMass scores how far a result is from a clean pass: 0 for a
// stable result, the mass fraction held by destabilizing phases (liquid,
// gas) for an unstable one, and 1 for an errored or empty result. Used
// to pick a best-effort candidate when the refinement loop exhausts.
func (r *ThermoResult) InstabilityMass() float64 {
	if r == nil || r.Error != "" || len(r.StablePhases) == 0 {
		return 1.0
	}
	if r.IsStable {
		return 0.0
	}
	mass := 0.0
	for _, p := range r.StablePhases {
		if destabilizing(p.Phase) {
			mass += p.Fraction
		}
	}
	return mass
}

func destabilizing(phase string) bool {
	u := strings.ToUpper(phase)
	return strings.Contains(u, "LIQUID") || strings.Contains(u, "GAS")
}

// FEAResult is the structural solver's output, produced once per run.
type FEAResult struct {
	MaxDisplacementMm float64 `json:"max_displacement_mm" mapstructure:"max_displacement_mm"`
	VonMisesStressMPa float64 `json:"von_mises_stress_mpa" mapstructure:"von_mises_stress_mpa"`
	ThermalGradientK  float64 `json:"thermal_gradient_k" mapstructure:"thermal_gradient_k"`
	Survived          bool    `json:"survived" mapstructure:"survived"`
	FailureMode       string  `json:"failure_mode,omitempty" mapstructure:"failure_mode"`
	Provenance        string  `json:"provenance,omitempty" mapstructure:"provenance"`
}

// SearchResult is one ranked hit from the literature search collaborator.
type SearchResult struct {
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RelevanceScore float64           `json:"relevance_score"`
}
