package pipeline

import "github.com/aeroforge/aeroforge/pkg/domain"

// stageDepth fixes which reasoning depth each stage's direct collaborator
// calls use. The mapping is static; depth never varies at runtime within
// a stage.
var stageDepth = map[domain.PipelineStage]domain.DepthLevel{
	domain.StageDiscovery:  domain.DepthLow,
	domain.StageResearch:   domain.DepthMedium,
	domain.StageRefinement: domain.DepthHigh,
	domain.StageSynthesis:  domain.DepthMedium,
}

func depthFor(stage domain.PipelineStage) domain.DepthLevel {
	if d, ok := stageDepth[stage]; ok {
		return d
	}
	return domain.DepthMedium
}
