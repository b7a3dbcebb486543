// Package synthesis renders the report artifacts: a stress heatmap SVG
// generated by the reasoning collaborator, and a spoken mission briefing
// rendered through the OpenAI speech API.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/ports"
)

// Synthesizer produces the visual and audio artifacts.
type Synthesizer struct {
	reasoner ports.Reasoner
	speech   *openai.Client
}

// New creates the adapter. The speech client may be nil, in which case
// audio synthesis reports itself unavailable and the caller degrades.
func New(reasoner ports.Reasoner, speech *openai.Client) *Synthesizer {
	return &Synthesizer{reasoner: reasoner, speech: speech}
}

// NewFromAPIKey builds the speech client from a key.
func NewFromAPIKey(reasoner ports.Reasoner, apiKey string) *Synthesizer {
	var client *openai.Client
	if strings.TrimSpace(apiKey) != "" {
		client = openai.NewClient(apiKey)
	}
	return New(reasoner, client)
}

func visualPrompt(sim *domain.FEAResult) string {
	status := "FAILED"
	if sim.Survived {
		status = "SURVIVED"
	}
	return fmt.Sprintf(
		"Generate a raw SVG file (400x400, dark background) visualizing a turbine blade stress map.\n"+
			"Max displacement: %.3f mm. Von Mises stress: %.1f MPa. Outcome: %s.\n"+
			"Use a red-to-green gradient keyed to the outcome and label the peak stress.\n"+
			"Output ONLY the SVG markup, starting with <svg and ending with </svg>. No markdown.",
		sim.MaxDisplacementMm, sim.VonMisesStressMPa, status)
}

// SynthesizeVisual implements ports.Synthesizer. It asks the
// collaborator for raw SVG markup and writes it to path; a reply that is
// not SVG is an error so the caller can degrade.
func (s *Synthesizer) SynthesizeVisual(ctx context.Context, sim *domain.FEAResult, path string) error {
	if sim == nil {
		return domain.Permanent(errors.New("no simulation result to visualize"))
	}
	reply, err := s.reasoner.Reason(ctx, visualPrompt(sim), domain.DepthMedium)
	if err != nil {
		return err
	}
	markup := extractSVG(reply)
	if markup == "" {
		return domain.Transient(errors.New("collaborator reply contained no svg"))
	}
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		return domain.Permanent(fmt.Errorf("write visual artifact: %w", err))
	}
	return nil
}

// BriefingScript is the narration rendered to speech. Exposed so the
// degraded text transcript matches what the audio would have said.
func BriefingScript(state *domain.SessionState) string {
	if state == nil {
		return "AeroForge mission briefing. No session data available."
	}
	var b strings.Builder
	b.WriteString("AeroForge mission briefing. ")
	if state.FinalFormulation != nil {
		fmt.Fprintf(&b, "The selected matrix is %s, targeting %.0f kelvin. ",
			strings.Join(state.FinalFormulation.Matrix, " "), state.FinalFormulation.TargetTemperatureK)
	}
	if state.SimulationResult != nil {
		outcome := "failed under load"
		if state.SimulationResult.Survived {
			outcome = "survived all applied loads"
		}
		fmt.Fprintf(&b, "Structural simulation %s, with peak displacement %.3f millimeters and von Mises stress %.0f megapascals. ",
			outcome, state.SimulationResult.MaxDisplacementMm, state.SimulationResult.VonMisesStressMPa)
	}
	fmt.Fprintf(&b, "The refinement loop converged in %d iterations.", state.LoopIterations)
	return b.String()
}

// SynthesizeAudio implements ports.Synthesizer.
func (s *Synthesizer) SynthesizeAudio(ctx context.Context, state *domain.SessionState, path string) error {
	if s.speech == nil {
		return domain.Permanent(errors.New("speech client not configured"))
	}
	resp, err := s.speech.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          BriefingScript(state),
		Voice:          openai.VoiceOnyx,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return domain.Transient(fmt.Errorf("speech synthesis: %w", err))
	}
	defer resp.Close()

	f, err := os.Create(path)
	if err != nil {
		return domain.Permanent(fmt.Errorf("create audio artifact: %w", err))
	}
	defer f.Close()
	if _, err := io.Copy(f, resp); err != nil {
		return domain.Transient(fmt.Errorf("stream audio artifact: %w", err))
	}
	return nil
}

// extractSVG pulls the <svg>...</svg> block out of a model reply,
// tolerating fences and surrounding prose.
func extractSVG(reply string) string {
	start := strings.Index(reply, "<svg")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(reply, "</svg>")
	if end < start {
		return ""
	}
	return reply[start : end+len("</svg>")]
}
