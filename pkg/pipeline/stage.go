package pipeline

// Stage is a point in a request's progress.
//
//	Start -> Detected -> Parsed -> Framed -> Rendered -> Done
//
// Failed is entered from Detected (unknown or unparsable data) or Parsed
// (empty scene). Framing and rasterizing cannot fail.
type Stage int

const (
	StageStart Stage = iota
	StageDetected
	StageParsed
	StageFramed
	StageRendered
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageStart:    "start",
	StageDetected: "detected",
	StageParsed:   "parsed",
	StageFramed:   "framed",
	StageRendered: "rendered",
	StageDone:     "done",
	StageFailed:   "failed",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "invalid"
}
