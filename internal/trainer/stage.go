package trainer

import (
	"errors"
	"fmt"
)

// Stage is a step of a training run. Stages run strictly in declaration
// order; a run ends in StageDone or StageFailed.
type Stage int

const (
	StageFetching Stage = iota
	StageCleaning
	StageEncoding
	StageSplitting
	StageScaling
	StageFitting
	StageEvaluating
	StageBundling
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageFetching:   "fetching",
	StageCleaning:   "cleaning",
	StageEncoding:   "encoding",
	StageSplitting:  "splitting",
	StageScaling:    "scaling",
	StageFitting:    "fitting",
	StageEvaluating: "evaluating",
	StageBundling:   "bundling",
	StageDone:       "done",
	StageFailed:     "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrEmptyDataset is returned when cleaning leaves no rows to train on.
var ErrEmptyDataset = errors.New("no rows left after cleaning")

// StageError records the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("training failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
