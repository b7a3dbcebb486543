package state

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

func TestInitializeRejectsBadInput(t *testing.T) {
	_, err := Initialize("", 1000)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Initialize("   ", 1000)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Initialize(strings.Repeat("x", 1001), 1000)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	s, err := Initialize(strings.Repeat("x", 1000), 1000)
	require.NoError(t, err)
	assert.NotEmpty(t, s.RunID())
	assert.Equal(t, domain.PipelineStage(""), s.State().CurrentStage)
}

func TestApplyEnforcesStageOwnership(t *testing.T) {
	s, err := Initialize("turbine alloy", 1000)
	require.NoError(t, err)

	// Discovery may not write research fields.
	err = s.Apply(domain.StageDiscovery, map[string]any{
		"research_plan": &domain.ResearchPlan{},
	})
	var sv *domain.SchemaViolationError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, domain.StageDiscovery, sv.Stage)

	require.NoError(t, s.Apply(domain.StageDiscovery, map[string]any{
		"query_intent": "lightweight high-temperature turbine alloy",
	}))
	assert.Equal(t, "lightweight high-temperature turbine alloy", s.State().QueryIntent)
}

func TestApplyIsCopyOnWrite(t *testing.T) {
	s, err := Initialize("turbine alloy", 1000)
	require.NoError(t, err)
	require.NoError(t, s.Apply(domain.StageDiscovery, map[string]any{
		"query_intent": "intent",
	}))
	before := s.State()
	v := s.Version()

	// Invalid candidate: the write must not partially apply.
	err = s.Apply(domain.StageRefinement, map[string]any{
		"loop_iterations": 1,
		"proposed_candidate": &domain.AlloyCandidate{
			Matrix:             []string{"NotAnElement"},
			TargetTemperatureK: 1000,
		},
	})
	require.Error(t, err)
	assert.Equal(t, before, s.State())
	assert.Equal(t, v, s.Version())
}

func TestApplyAdvancesVersion(t *testing.T) {
	s, err := Initialize("turbine alloy", 1000)
	require.NoError(t, err)
	require.EqualValues(t, 0, s.Version())

	require.NoError(t, s.Apply(domain.StageDiscovery, map[string]any{"query_intent": "a"}))
	require.EqualValues(t, 1, s.Version())
	require.NoError(t, s.Apply(domain.StageDiscovery, map[string]any{"query_intent": "b"}))
	require.EqualValues(t, 2, s.Version())
}

func TestEnterStageMonotonicity(t *testing.T) {
	s, err := Initialize("turbine alloy", 1000)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.EnterStage(domain.StageDiscovery, base))
	require.NoError(t, s.EnterStage(domain.StageResearch, base.Add(time.Second)))

	// Revisiting or skipping stages is illegal.
	require.Error(t, s.EnterStage(domain.StageDiscovery, base.Add(2*time.Second)))
	require.Error(t, s.EnterStage(domain.StageSimulation, base.Add(2*time.Second)))

	// Non-increasing timestamps are a consistency fault.
	require.Error(t, s.EnterStage(domain.StageRefinement, base.Add(time.Second)))
	require.NoError(t, s.EnterStage(domain.StageRefinement, base.Add(2*time.Second)))
}

func TestFailIsTerminalAndAbsorbing(t *testing.T) {
	s, err := Initialize("turbine alloy", 1000)
	require.NoError(t, err)
	require.NoError(t, s.EnterStage(domain.StageDiscovery, time.Now()))
	require.NoError(t, s.Apply(domain.StageDiscovery, map[string]any{"query_intent": "x"}))

	s.Fail("discovery collapsed")
	st := s.State()
	assert.Equal(t, domain.StageFailed, st.CurrentStage)
	assert.Equal(t, "discovery collapsed", st.FailureReason)
	// Previously written fields survive.
	assert.Equal(t, "x", st.QueryIntent)

	s.Fail("second reason")
	assert.Equal(t, "discovery collapsed", s.State().FailureReason)

	require.Error(t, s.EnterStage(domain.StageResearch, time.Now()))
}

func TestSerializationRoundTrip(t *testing.T) {
	s, err := Initialize("turbine alloy", 1000)
	require.NoError(t, err)
	require.NoError(t, s.EnterStage(domain.StageDiscovery, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, s.Apply(domain.StageDiscovery, map[string]any{"query_intent": "intent"}))
	require.NoError(t, s.EnterStage(domain.StageResearch, time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)))
	require.NoError(t, s.Apply(domain.StageResearch, map[string]any{
		"research_plan": &domain.ResearchPlan{
			RequiredProperties:       []string{"oxidation_resistance"},
			SuggestedElements:        []string{"Ti", "Al", "V"},
			ThermodynamicConstraints: "Maintain phase stability below 1000K.",
		},
	}))
	s.AppendWarning("research: degraded source")

	data, err := s.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, s.State(), restored.State())
	assert.Equal(t, s.Version(), restored.Version())

	// And round-tripping again is byte-stable.
	data2, err := restored.Marshal()
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s, err := Initialize("turbine alloy", 1000)
	require.NoError(t, err)
	require.NoError(t, s.Apply(domain.StageDiscovery, map[string]any{"query_intent": "intent"}))

	snap := s.State()
	snap.QueryIntent = "tampered"
	snap.Warnings = append(snap.Warnings, "tampered")
	assert.Equal(t, "intent", s.State().QueryIntent)
	assert.Empty(t, s.State().Warnings)
}
