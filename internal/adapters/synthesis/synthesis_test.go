package synthesis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

type scriptedReasoner struct {
	reply string
	err   error
}

func (s *scriptedReasoner) Reason(context.Context, string, domain.DepthLevel) (string, error) {
	return s.reply, s.err
}

func TestExtractSVG(t *testing.T) {
	cases := map[string]struct {
		reply string
		want  string
	}{
		"bare":       {"<svg width=\"1\"></svg>", "<svg width=\"1\"></svg>"},
		"fenced":     {"```svg\n<svg></svg>\n```", "<svg></svg>"},
		"with prose": {"Here is your map:\n<svg>x</svg>\nEnjoy.", "<svg>x</svg>"},
		"no svg":     {"I cannot do that.", ""},
		"truncated":  {"<svg>half a file", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractSVG(tc.reply))
		})
	}
}

func TestSynthesizeVisualWritesMarkup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heatmap.svg")
	s := New(&scriptedReasoner{reply: "```svg\n<svg><text>792 MPa</text></svg>\n```"}, nil)

	sim := &domain.FEAResult{MaxDisplacementMm: 1.2, VonMisesStressMPa: 792, Survived: true}
	require.NoError(t, s.SynthesizeVisual(context.Background(), sim, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<svg"))
}

func TestSynthesizeVisualRejectsNonSVGReply(t *testing.T) {
	s := New(&scriptedReasoner{reply: "sorry, no"}, nil)
	sim := &domain.FEAResult{Survived: true}
	err := s.SynthesizeVisual(context.Background(), sim, filepath.Join(t.TempDir(), "x.svg"))
	require.Error(t, err)

	var transient *domain.TransientError
	assert.ErrorAs(t, err, &transient)
}

func TestBriefingScriptCoversOutcome(t *testing.T) {
	state := &domain.SessionState{
		FinalFormulation: &domain.AlloyCandidate{Matrix: []string{"Ti", "Al", "V"}, TargetTemperatureK: 1000},
		SimulationResult: &domain.FEAResult{Survived: true, MaxDisplacementMm: 1.5, VonMisesStressMPa: 975},
		LoopIterations:   3,
	}
	script := BriefingScript(state)
	assert.Contains(t, script, "Ti Al V")
	assert.Contains(t, script, "survived")
	assert.Contains(t, script, "3 iterations")
}

func TestSynthesizeAudioWithoutClientIsPermanent(t *testing.T) {
	s := New(&scriptedReasoner{}, nil)
	err := s.SynthesizeAudio(context.Background(), &domain.SessionState{}, filepath.Join(t.TempDir(), "b.mp3"))
	var permanent *domain.PermanentError
	assert.ErrorAs(t, err, &permanent)
}
