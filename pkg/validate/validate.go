// Package validate holds the pure predicates guarding entity invariants:
// chemical symbol membership, positivity, range, and sum-to-one checks.
// It carries no state and performs no I/O.
package validate

import (
	"math"
	"strings"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

// FractionTolerance is how far phase fractions may deviate from summing
// to exactly 1.0 before a ThermoResult is considered inconsistent.
const FractionTolerance = 1e-2

// Elements checks that every symbol is a valid element and that the list
// is non-empty with no duplicates.
func Elements(key string, symbols []string) []error {
	var errs []error
	if len(symbols) == 0 {
		errs = append(errs, &FieldError{Key: key, Reason: "must not be empty"})
		return errs
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if !IsElement(sym) {
			errs = append(errs, &FieldError{Key: key, Reason: "invalid element symbol", Value: sym})
			continue
		}
		if _, dup := seen[sym]; dup {
			errs = append(errs, &FieldError{Key: key, Reason: "duplicate element symbol", Value: sym})
		}
		seen[sym] = struct{}{}
	}
	return errs
}

// Plan validates a ResearchPlan.
func Plan(p *domain.ResearchPlan) error {
	if p == nil {
		return &FieldError{Key: "research_plan", Reason: "must not be nil"}
	}
	var errs []error
	if len(p.RequiredProperties) == 0 {
		errs = append(errs, &FieldError{Key: "required_properties", Reason: "must not be empty"})
	}
	for _, prop := range p.RequiredProperties {
		if strings.TrimSpace(prop) == "" {
			errs = append(errs, &FieldError{Key: "required_properties", Reason: "must not contain blank entries"})
			break
		}
	}
	errs = append(errs, Elements("suggested_elements", p.SuggestedElements)...)
	if strings.TrimSpace(p.ThermodynamicConstraints) == "" {
		errs = append(errs, &FieldError{Key: "thermodynamic_constraints", Reason: "must not be blank"})
	}
	return aggregate(errs)
}

// Candidate validates an AlloyCandidate.
func Candidate(c *domain.AlloyCandidate) error {
	if c == nil {
		return &FieldError{Key: "candidate", Reason: "must not be nil"}
	}
	errs := Elements("matrix", c.Matrix)
	if !(c.TargetTemperatureK > 0) {
		errs = append(errs, &FieldError{Key: "target_temperature_k", Reason: "must be positive", Value: c.TargetTemperatureK})
	}
	return aggregate(errs)
}

// Thermo validates a ThermoResult: either the result carries an error
// and is marked unstable, or it reports at least one phase and the
// fractions sum to 1.0 within FractionTolerance. A result with no error
// and no phases is rejected; stability needs phase evidence.
func Thermo(r *domain.ThermoResult) error {
	if r == nil {
		return &FieldError{Key: "thermo_result", Reason: "must not be nil"}
	}
	var errs []error
	if r.Error != "" {
		if r.IsStable {
			errs = append(errs, &FieldError{Key: "is_stable", Reason: "must be false when error is set"})
		}
		return aggregate(errs)
	}
	if len(r.StablePhases) == 0 {
		errs = append(errs, &FieldError{Key: "stable_phases", Reason: "must not be empty when no error is set"})
	}
	sum := 0.0
	for _, p := range r.StablePhases {
		if p.Fraction < 0 || p.Fraction > 1 {
			errs = append(errs, &FieldError{Key: "stable_phases", Reason: "fraction out of [0,1]", Value: p.Fraction})
		}
		sum += p.Fraction
	}
	if len(r.StablePhases) > 0 && math.Abs(sum-1.0) > FractionTolerance {
		errs = append(errs, &FieldError{Key: "stable_phases", Reason: "fractions must sum to 1.0 within tolerance", Value: sum})
	}
	if !(r.TemperatureK > 0) {
		errs = append(errs, &FieldError{Key: "temperature_k", Reason: "must be positive", Value: r.TemperatureK})
	}
	return aggregate(errs)
}

// FEA validates an FEAResult: non-negative magnitudes and a failure mode
// present exactly when the component did not survive.
func FEA(r *domain.FEAResult) error {
	if r == nil {
		return &FieldError{Key: "simulation_result", Reason: "must not be nil"}
	}
	var errs []error
	if r.MaxDisplacementMm < 0 {
		errs = append(errs, &FieldError{Key: "max_displacement_mm", Reason: "must be non-negative", Value: r.MaxDisplacementMm})
	}
	if r.VonMisesStressMPa < 0 {
		errs = append(errs, &FieldError{Key: "von_mises_stress_mpa", Reason: "must be non-negative", Value: r.VonMisesStressMPa})
	}
	if r.ThermalGradientK < 0 {
		errs = append(errs, &FieldError{Key: "thermal_gradient_k", Reason: "must be non-negative", Value: r.ThermalGradientK})
	}
	if r.Survived && r.FailureMode != "" {
		errs = append(errs, &FieldError{Key: "failure_mode", Reason: "must be empty when survived"})
	}
	if !r.Survived && r.FailureMode == "" {
		errs = append(errs, &FieldError{Key: "failure_mode", Reason: "required when not survived"})
	}
	return aggregate(errs)
}

// Session validates the cross-cutting SessionState invariants. Entity
// fields are checked only when present; stages own when they appear.
func Session(s *domain.SessionState) error {
	if s == nil {
		return &FieldError{Key: "session", Reason: "must not be nil"}
	}
	var errs []error
	if strings.TrimSpace(s.InitialRequest) == "" {
		errs = append(errs, &FieldError{Key: "initial_request", Reason: "must not be empty"})
	}
	if s.LoopIterations < 0 {
		errs = append(errs, &FieldError{Key: "loop_iterations", Reason: "must be non-negative", Value: s.LoopIterations})
	}
	if s.ResearchPlan != nil {
		if err := Plan(s.ResearchPlan); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range []*domain.AlloyCandidate{s.ProposedCandidate, s.FinalFormulation} {
		if c != nil {
			if err := Candidate(c); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if s.ThermoResult != nil {
		if err := Thermo(s.ThermoResult); err != nil {
			errs = append(errs, err)
		}
	}
	for i := range s.RejectedResults {
		if err := Thermo(&s.RejectedResults[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if s.SimulationResult != nil {
		if err := FEA(s.SimulationResult); err != nil {
			errs = append(errs, err)
		}
	}
	return aggregate(errs)
}
