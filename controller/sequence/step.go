package sequence

import (
	"fmt"
	"time"

	"github.com/labjacker/labjacker/controller/status"
)

// StepKind tags the closed set of step variants. Steps are plain data, so
// the engine never evaluates free-form expressions.
type StepKind int

const (
	StepWait StepKind = iota
	StepSetValve
	StepLogOnly
)

// Step is one entry in the actuation sequence.
type Step struct {
	Kind     StepKind
	Port     int              // StepSetValve only
	Target   status.PortState // StepSetValve only
	Delay    time.Duration    // StepWait only
	Msg      string
	Snapshot bool // log a status snapshot just before the side effect
}

func valveStep(port int, target status.PortState, snapshot bool) Step {
	verb := "opening"
	if target == status.Closed {
		verb = "closing"
	}
	return Step{
		Kind:     StepSetValve,
		Port:     port,
		Target:   target,
		Msg:      fmt.Sprintf("%s valve %d", verb, port),
		Snapshot: snapshot,
	}
}

// startStep is emitted once at the top of every loop iteration, before the
// step list proper. It carries the snapshot flag, so every iteration opens
// with a logged record of the state it starts from.
var startStep = Step{Kind: StepLogOnly, Msg: "sequence starting ...", Snapshot: true}

// BuildSteps constructs the fixed 17-entry sequence for one loop iteration.
// The wait entries all use the operator-chosen step interval; five entries
// are flagged to log a snapshot immediately before their actuation.
func BuildSteps(intervalSeconds int) []Step {
	wait := Step{
		Kind:  StepWait,
		Delay: time.Duration(intervalSeconds) * time.Second,
		Msg:   fmt.Sprintf("waiting for %d seconds", intervalSeconds),
	}
	return []Step{
		valveStep(2, status.Open, false),
		valveStep(3, status.Open, false),
		valveStep(4, status.Open, false),
		wait,
		valveStep(2, status.Closed, true),
		valveStep(4, status.Closed, false),
		valveStep(1, status.Open, false),
		wait,
		valveStep(1, status.Closed, true),
		wait,
		valveStep(2, status.Open, true),
		wait,
		valveStep(4, status.Open, true),
		wait,
		valveStep(2, status.Closed, true),
		valveStep(3, status.Closed, false),
		valveStep(4, status.Closed, false),
	}
}
