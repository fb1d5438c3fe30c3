package build

// StageName is a strongly-typed identifier for a pipeline stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageFetch   StageName = "fetch"
	StageOverlay StageName = "overlay"
	StageExecute StageName = "execute"
	StagePublish StageName = "publish"
	StageReclaim StageName = "reclaim"
)

// Stages lists the pipeline stages in the order a task runs them.
var Stages = []StageName{StageFetch, StageOverlay, StageExecute, StagePublish, StageReclaim}

// StageResult enumerates per-stage outcomes. Mirrors metrics.ResultLabel values.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)
