package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aeroforge/aeroforge/internal/state"
	"github.com/aeroforge/aeroforge/pkg/domain"
)

func intentPrompt(request string) string {
	return "Distill this material request into one concise engineering query intent, " +
		"naming the component and the properties that matter. Reply with the intent only.\n\n" +
		request
}

// discovery distills the raw request into a query intent. A collaborator
// outage degrades to the raw request; discovery never fails the run.
func (s *Sequencer) discovery(ctx context.Context, session *state.Session) error {
	request := session.State().InitialRequest
	intent, err := s.gw.Reason(ctx, intentPrompt(request), depthFor(domain.StageDiscovery))
	intent = strings.TrimSpace(intent)
	if err != nil || intent == "" {
		s.logger.WarnContext(ctx, "intent distillation degraded to raw request", "error", err)
		session.AppendWarning("discovery: collaborator unavailable, using raw request as query intent")
		intent = request
	}
	return session.Apply(domain.StageDiscovery, map[string]any{"query_intent": intent})
}

// queryVariants spreads one intent across the literature corpus angles.
func queryVariants(intent string) []string {
	return []string{
		intent,
		intent + " alloy composition candidates",
		intent + " failure modes and phase stability",
	}
}

// research fans the search variants out concurrently, merges the hits
// deterministically, and synthesizes the research plan. Ties in relevance
// keep the original query order, so the merge is reproducible regardless
// of goroutine scheduling.
func (s *Sequencer) research(ctx context.Context, session *state.Session) error {
	intent := session.State().QueryIntent
	variants := queryVariants(intent)

	hits := make([][]domain.SearchResult, len(variants))
	var wg sync.WaitGroup
	for i, query := range variants {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			results, err := s.gw.Search(ctx, query)
			if err != nil {
				s.logger.WarnContext(ctx, "search variant failed", "query", query, "error", err)
				return
			}
			hits[i] = results
		}(i, query)
	}
	wg.Wait()

	findings := mergeFindings(hits)
	if len(findings) == 0 {
		session.AppendWarning("research: literature search returned no findings")
	}

	plan, warning := s.gw.Plan(ctx, intent, findings)
	session.AppendWarning(warning)
	return session.Apply(domain.StageResearch, map[string]any{"research_plan": plan})
}

// mergeFindings flattens the fan-out results in query order, then stable
// sorts by relevance descending. Equal scores keep query order, so the
// merge does not depend on goroutine scheduling.
func mergeFindings(hits [][]domain.SearchResult) []domain.SearchResult {
	var findings []domain.SearchResult
	for _, results := range hits {
		findings = append(findings, results...)
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].RelevanceScore > findings[j].RelevanceScore
	})
	return findings
}

// refinement delegates to the generator-critic loop.
func (s *Sequencer) refinement(ctx context.Context, session *state.Session) error {
	return s.loop.Run(ctx, session)
}

// simulation applies the configured structural scenario to the final
// formulation.
func (s *Sequencer) simulation(ctx context.Context, session *state.Session) error {
	sim := s.simCfg
	result, warning := s.gw.SolveStructural(ctx, sim.GeometryRef, sim.ThermalLoadK, sim.StructuralLoadMPa)
	session.AppendWarning(warning)
	return session.Apply(domain.StageSimulation, map[string]any{"simulation_result": result})
}

// synthesis renders the report artifacts into the output directory.
// Collaborator outages degrade to static artifacts; only a local write
// failure fails the stage.
func (s *Sequencer) synthesis(ctx context.Context, session *state.Session) error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	snap := session.State()

	visualPath := filepath.Join(s.outputDir, fmt.Sprintf("heatmap_%s.svg", snap.RunID))
	warning, err := s.gw.SynthesizeVisual(ctx, snap.SimulationResult, visualPath)
	if err != nil {
		return err
	}
	session.AppendWarning(warning)

	audioPath := filepath.Join(s.outputDir, fmt.Sprintf("briefing_%s.mp3", snap.RunID))
	writtenAudio, warning, err := s.gw.SynthesizeAudio(ctx, snap, audioPath)
	if err != nil {
		return err
	}
	session.AppendWarning(warning)

	return session.Apply(domain.StageSynthesis, map[string]any{
		"artifacts": map[string]string{
			"visual": visualPath,
			"audio":  writtenAudio,
		},
	})
}
