package pipeline

import (
	"time"
)

// StageExecutionMetadata is the per-stage record of one run: outcome,
// timing, nested records for sub-stages, and the free-form info the recipe
// collected. Durations serialize as nanoseconds so a round trip preserves
// them exactly.
type StageExecutionMetadata struct {
	Name           string                   `json:"name"`
	Status         Status                   `json:"status"`
	Duration       time.Duration            `json:"duration"`
	Error          string                   `json:"error,omitempty"`
	SkipReason     string                   `json:"skip_reason,omitempty"`
	SubStages      []StageExecutionMetadata `json:"sub_stages,omitempty"`
	AdditionalInfo map[string]any           `json:"additional_info,omitempty"`
}

// PipelineExecutionMetadata is the whole-run record, built incrementally
// while the run progresses and read-only once the result is returned.
type PipelineExecutionMetadata struct {
	PipelineName   string                   `json:"pipeline_name"`
	StartTime      time.Time                `json:"start_time"`
	EndTime        time.Time                `json:"end_time"`
	Duration       time.Duration            `json:"duration"`
	Status         Status                   `json:"status"`
	StagesExecuted []StageExecutionMetadata `json:"stages_executed"`
	Error          string                   `json:"error,omitempty"`
}

// Result is what a run returns: the runner never raises, it reports.
type Result struct {
	Success  bool
	Metadata *PipelineExecutionMetadata
	Err      error
}

// newStageMetadata records a stage outcome. Sub-stages inherit the
// composite's status: a skipped composite's children were skipped with it,
// a completed loop's children completed as part of it.
func newStageMetadata(st *Stage, status Status, err error) StageExecutionMetadata {
	m := StageExecutionMetadata{
		Name:       st.Name(),
		Status:     status,
		Duration:   st.Duration(),
		SkipReason: st.SkipReason(),
	}
	if err != nil {
		m.Error = err.Error()
	}
	if len(st.meta) > 0 {
		m.AdditionalInfo = make(map[string]any, len(st.meta))
		for k, v := range st.meta {
			m.AdditionalInfo[k] = v
		}
	}
	for _, child := range st.Children() {
		m.SubStages = append(m.SubStages, newStageMetadata(child, status, nil))
	}
	return m
}
