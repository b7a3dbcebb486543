package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

type fakeSearcher struct {
	results []domain.SearchResult
	err     error
	calls   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeReasoner struct {
	replies []string
	err     error
	calls   int
}

func (f *fakeReasoner) Reason(ctx context.Context, prompt string, depth domain.DepthLevel) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type fakeThermo struct {
	result *domain.ThermoResult
	errs   []error
	calls  int
}

func (f *fakeThermo) SolveEquilibrium(ctx context.Context, elements []string, temperatureK, pressurePa float64) (*domain.ThermoResult, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.result, nil
}

type fakeStructural struct {
	result *domain.FEAResult
	err    error
}

func (f *fakeStructural) SolveStructural(ctx context.Context, geometryRef string, thermalLoadK, structuralLoadMPa float64) (*domain.FEAResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSynth struct {
	err error
}

func (f *fakeSynth) SynthesizeVisual(ctx context.Context, sim *domain.FEAResult, path string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("<svg/>"), 0o644)
}

func (f *fakeSynth) SynthesizeAudio(ctx context.Context, state *domain.SessionState, path string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("audio"), 0o644)
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 1 * time.Second,
		BackoffCap:  4 * time.Second,
		CallTimeout: time.Minute,
	}
}

func newTestGateway(t *testing.T, searcher *fakeSearcher, reasoner *fakeReasoner,
	thermo *fakeThermo, structural *fakeStructural, synth *fakeSynth) (*Gateway, *[]time.Duration) {
	t.Helper()
	if searcher == nil {
		searcher = &fakeSearcher{}
	}
	if reasoner == nil {
		reasoner = &fakeReasoner{replies: []string{"{}"}}
	}
	if thermo == nil {
		thermo = &fakeThermo{}
	}
	if structural == nil {
		structural = &fakeStructural{}
	}
	if synth == nil {
		synth = &fakeSynth{}
	}
	var sleeps []time.Duration
	g := New(searcher, reasoner, thermo, structural, synth, testPolicy(),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}))
	return g, &sleeps
}

func TestCallRetriesTransientWithExponentialBackoff(t *testing.T) {
	thermo := &fakeThermo{
		result: &domain.ThermoResult{
			Elements: []string{"Ti"}, TemperatureK: 1000, PressurePa: 101325,
			StablePhases: []domain.PhaseFraction{{Phase: "ALPHA", Fraction: 1.0}},
			IsStable:     true,
		},
		errs: []error{
			domain.Transient(errors.New("rate limited")),
			domain.Transient(errors.New("rate limited")),
		},
	}
	g, sleeps := newTestGateway(t, nil, nil, thermo, nil, nil)

	result, warning := g.SolveEquilibrium(context.Background(), []string{"Ti"}, 1000, 101325)
	assert.Empty(t, warning)
	assert.True(t, result.IsStable)
	assert.Equal(t, 3, thermo.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *sleeps)
}

func TestCallDoesNotRetryPermanentErrors(t *testing.T) {
	searcher := &fakeSearcher{err: domain.Permanent(errors.New("bad query"))}
	g, sleeps := newTestGateway(t, searcher, nil, nil, nil, nil)

	_, err := g.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 1, searcher.calls)
	assert.Empty(t, *sleeps)
}

func TestCallStopsAfterMaxAttempts(t *testing.T) {
	searcher := &fakeSearcher{err: domain.Transient(errors.New("overloaded"))}
	g, _ := newTestGateway(t, searcher, nil, nil, nil, nil)

	_, err := g.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 3, searcher.calls)
}

func TestBackoffIsCapped(t *testing.T) {
	searcher := &fakeSearcher{err: domain.Transient(errors.New("overloaded"))}
	var sleeps []time.Duration
	g := New(searcher, &fakeReasoner{replies: []string{"{}"}}, &fakeThermo{}, &fakeStructural{}, &fakeSynth{},
		RetryPolicy{MaxAttempts: 5, BackoffBase: time.Second, BackoffCap: 2 * time.Second, CallTimeout: time.Minute},
		WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}))

	_, err := g.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, sleeps)
}

func TestPlanParsesReasonerReply(t *testing.T) {
	reply := "```json\n" + `{"required_properties":["creep_resistance"],"suggested_elements":["Ni","Cr"],"thermodynamic_constraints":"stable to 1100K"}` + "\n```"
	g, _ := newTestGateway(t, nil, &fakeReasoner{replies: []string{reply}}, nil, nil, nil)

	plan, warning := g.Plan(context.Background(), "turbine alloy", nil)
	assert.Empty(t, warning)
	assert.Equal(t, []string{"Ni", "Cr"}, plan.SuggestedElements)
	assert.Empty(t, plan.Provenance)
}

func TestPlanFallsBackToDefaultPlan(t *testing.T) {
	g, _ := newTestGateway(t, nil, &fakeReasoner{err: domain.Transient(errors.New("down"))}, nil, nil, nil)

	plan, warning := g.Plan(context.Background(), "turbine alloy", nil)
	require.NotNil(t, plan)
	assert.Equal(t, domain.ProvenanceLowConfidence, plan.Provenance)
	assert.Equal(t, []string{"Ti", "Al", "V"}, plan.SuggestedElements)
	assert.NotEmpty(t, warning)
}

func TestPlanFallsBackOnUnusableReply(t *testing.T) {
	g, _ := newTestGateway(t, nil, &fakeReasoner{replies: []string{"not json at all"}}, nil, nil, nil)

	plan, warning := g.Plan(context.Background(), "turbine alloy", nil)
	assert.Equal(t, domain.ProvenanceLowConfidence, plan.Provenance)
	assert.NotEmpty(t, warning)
}

func TestSolveEquilibriumNeverFabricates(t *testing.T) {
	thermo := &fakeThermo{errs: []error{
		domain.Permanent(errors.New("tdb database missing")),
	}}
	g, _ := newTestGateway(t, nil, nil, thermo, nil, nil)

	result, warning := g.SolveEquilibrium(context.Background(), []string{"Ti", "Al"}, 1000, 101325)
	require.NotNil(t, result)
	assert.False(t, result.IsStable)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.StablePhases)
	assert.NotEmpty(t, warning)
}

func TestSolveEquilibriumSanityChecksPayload(t *testing.T) {
	// Fractions sum to 1.2: corrupt solver output must not pass through.
	thermo := &fakeThermo{result: &domain.ThermoResult{
		Elements: []string{"Ti"}, TemperatureK: 1000, PressurePa: 101325,
		StablePhases: []domain.PhaseFraction{
			{Phase: "ALPHA", Fraction: 0.8},
			{Phase: "BETA", Fraction: 0.4},
		},
		IsStable: true,
	}}
	g, _ := newTestGateway(t, nil, nil, thermo, nil, nil)

	result, warning := g.SolveEquilibrium(context.Background(), []string{"Ti"}, 1000, 101325)
	assert.False(t, result.IsStable)
	assert.NotEmpty(t, result.Error)
	assert.NotEmpty(t, warning)
}

func TestSolveEquilibriumRejectsPhaselessPayload(t *testing.T) {
	// A solver claiming stability with no phases offers no evidence; the
	// result must come back unstable so the critic rejects the candidate.
	thermo := &fakeThermo{result: &domain.ThermoResult{
		Elements: []string{"Ti", "Al"}, TemperatureK: 1000, PressurePa: 101325,
		StablePhases: nil,
		IsStable:     true,
	}}
	g, _ := newTestGateway(t, nil, nil, thermo, nil, nil)

	result, warning := g.SolveEquilibrium(context.Background(), []string{"Ti", "Al"}, 1000, 101325)
	require.NotNil(t, result)
	assert.False(t, result.IsStable)
	assert.NotEmpty(t, result.Error)
	assert.NotEmpty(t, warning)
}

func TestSolveStructuralAnalyticalFallback(t *testing.T) {
	structural := &fakeStructural{err: domain.Transient(errors.New("unreachable"))}
	g, _ := newTestGateway(t, nil, nil, nil, structural, nil)

	result, warning := g.SolveStructural(context.Background(), "blade_v1", 1500, 650)
	require.NotNil(t, result)
	assert.Equal(t, domain.ProvenanceAnalyticalFallback, result.Provenance)
	assert.NotEmpty(t, warning)

	// Closed-form: 650*0.05 + 1500*0.001 = 34mm, 650*1.5 = 975MPa.
	assert.InDelta(t, 34.0, result.MaxDisplacementMm, 1e-9)
	assert.InDelta(t, 975.0, result.VonMisesStressMPa, 1e-9)
	assert.False(t, result.Survived)
	assert.Equal(t, "Yield Criteria Exceeded", result.FailureMode)
}

func TestSolveStructuralAnalyticalFallbackSurvives(t *testing.T) {
	structural := &fakeStructural{err: domain.Transient(errors.New("unreachable"))}
	g, _ := newTestGateway(t, nil, nil, nil, structural, nil)

	result, _ := g.SolveStructural(context.Background(), "blade_v1", 500, 80)
	assert.True(t, result.Survived)
	assert.Empty(t, result.FailureMode)
}

func TestSynthesizeVisualDegradesToStaticSVG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heatmap.svg")
	g, _ := newTestGateway(t, nil, nil, nil, nil, &fakeSynth{err: domain.Transient(errors.New("down"))})

	warning, err := g.SynthesizeVisual(context.Background(), &domain.FEAResult{
		MaxDisplacementMm: 1.0, VonMisesStressMPa: 975, Survived: true,
	}, path)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
	assert.Contains(t, string(data), "green")
}

func TestSynthesizeAudioDegradesToTranscript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "briefing.mp3")
	g, _ := newTestGateway(t, nil, nil, nil, nil, &fakeSynth{err: domain.Transient(errors.New("down"))})

	state := &domain.SessionState{
		FinalFormulation: &domain.AlloyCandidate{Matrix: []string{"Ti", "Al", "V"}, TargetTemperatureK: 1000},
		SimulationResult: &domain.FEAResult{MaxDisplacementMm: 34, VonMisesStressMPa: 975, Survived: true},
	}
	written, warning, err := g.SynthesizeAudio(context.Background(), state, path)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)
	assert.Equal(t, filepath.Join(dir, "briefing.txt"), written)

	// The transcript is the same briefing script the audio would have
	// spoken.
	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AeroForge mission briefing")
	assert.Contains(t, string(data), "Ti Al V")
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"```\n{\"a\":1}\n```":            `{"a":1}`,
		"```svg\n<svg/>\n```":            "<svg/>",
		"  \n```xml\n<svg/>\n```\n  ":    "<svg/>",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripFences(in), fmt.Sprintf("input %q", in))
	}
}
